// Package ledgertest runs an in-memory WalletWizard ledger over httptest
// so the client, session and TUI layers can be exercised end to end.
package ledgertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/walletwizard/wizard/pkg/domain"
)

// DefaultCode is the OTP every phone receives unless Code is changed.
const DefaultCode = "123456"

const codeTTL = 5 * time.Minute

type pendingCode struct {
	hash    []byte
	expires time.Time
}

type failure struct {
	status  int
	code    string
	message string
}

// Server is a fake ledger. All exported methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	secret   []byte
	code     string
	gen      int
	codes    map[string]pendingCode
	users    map[string]*domain.User // by user ID
	byPhone  map[string]string
	calls    map[string]int
	failures map[string][]failure
	delay    time.Duration
	now      func() time.Time
}

// New starts a fake ledger and registers its shutdown with t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		secret:   []byte("ledgertest-" + uuid.NewString()),
		code:     DefaultCode,
		codes:    make(map[string]pendingCode),
		users:    make(map[string]*domain.User),
		byPhone:  make(map[string]string),
		calls:    make(map[string]int),
		failures: make(map[string][]failure),
		now:      time.Now,
	}

	mux := http.NewServeMux()
	s.handle(mux, "POST /api/v1/verify/send", s.handleSend)
	s.handle(mux, "POST /api/v1/verify/check", s.handleCheck)
	s.handle(mux, "GET /api/v1/user", s.authed(s.handleUser))
	s.handle(mux, "PUT /api/v1/user/name", s.authed(s.handleRename))
	s.handle(mux, "POST /api/v1/accounts", s.authed(s.handleCreateAccount))
	s.handle(mux, "DELETE /api/v1/accounts/{id}", s.authed(s.handleDeleteAccount))
	s.handle(mux, "POST /api/v1/accounts/{id}/deposit", s.authed(s.handleDeposit))
	s.handle(mux, "POST /api/v1/accounts/{id}/withdraw", s.authed(s.handleWithdraw))
	s.handle(mux, "POST /api/v1/transfers", s.authed(s.handleTransfer))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// SetCode changes the OTP handed out by subsequent sends.
func (s *Server) SetCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
}

// SetDelay makes every handler sleep before answering.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// ExpireCodes makes every pending OTP expired.
func (s *Server) ExpireCodes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for phone, pc := range s.codes {
		pc.expires = s.now().Add(-time.Second)
		s.codes[phone] = pc
	}
}

// RevokeTokens invalidates every token issued so far.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
}

// FailNext makes the next request to pattern (e.g. "GET /api/v1/user")
// answer with the given status and error body instead of being served.
func (s *Server) FailNext(pattern string, status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[pattern] = append(s.failures[pattern], failure{status: status, code: code, message: message})
}

// Calls returns how many requests reached pattern.
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern]
}

// TotalCalls returns the number of requests served on any route.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// SeedUser creates (or replaces the accounts of) the user with phone and
// returns a token for them. Balances are in cents.
func (s *Server) SeedUser(phone, name string, accounts ...domain.Account) (string, *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userForPhoneLocked(phone)
	if name != "" {
		u.Name = domain.StringPtr(name)
	}
	u.Accounts = nil
	for _, a := range accounts {
		if a.ID == "" {
			a.ID = ksuid.New().String()
		}
		u.Accounts = append(u.Accounts, a)
	}
	tok, err := s.issueTokenLocked(u.UserID)
	if err != nil {
		panic(fmt.Sprintf("ledgertest: sign token: %v", err))
	}
	return tok, u.Clone()
}

// User returns a copy of the user registered with phone.
func (s *Server) User(phone string) (*domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return nil, false
	}
	return s.users[id].Clone(), true
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[pattern]++
		delay := s.delay
		var fail *failure
		if q := s.failures[pattern]; len(q) > 0 {
			fail = &q[0]
			s.failures[pattern] = q[1:]
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if fail != nil {
			writeError(w, fail.status, fail.code, fail.message)
			return
		}
		h(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, u *domain.User)

func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "No authentication token found")
			return
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
			return
		}
		sub, _ := claims.GetSubject() //nolint:errcheck // missing subject fails the lookup below
		gen, _ := claims["gen"].(float64)

		s.mu.Lock()
		defer s.mu.Unlock()
		u, ok := s.users[sub]
		if !ok || int(gen) != s.gen {
			writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
			return
		}
		h(w, r, u)
	}
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"e164PhoneNumber"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !domain.IsE164(req.Phone) {
		writeError(w, http.StatusBadRequest, "invalid_phone_number", "Invalid phone number")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, err := bcrypt.GenerateFromPassword([]byte(s.code), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	s.codes[req.Phone] = pendingCode{hash: hash, expires: s.now().Add(codeTTL)}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"e164PhoneNumber"`
		Code  string `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.codes[req.Phone]
	if !ok || bcrypt.CompareHashAndPassword(pc.hash, []byte(req.Code)) != nil {
		writeError(w, http.StatusBadRequest, "invalid_code", "Invalid verification code")
		return
	}
	if s.now().After(pc.expires) {
		delete(s.codes, req.Phone)
		writeError(w, http.StatusBadRequest, "code_expired", "Verification code expired")
		return
	}
	delete(s.codes, req.Phone)
	u := s.userForPhoneLocked(req.Phone)
	tok, err := s.issueTokenLocked(u.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"authToken": tok})
}

func (s *Server) handleUser(w http.ResponseWriter, _ *http.Request, u *domain.User) {
	writeUser(w, u)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request, u *domain.User) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_name", "Name is required")
		return
	}
	u.Name = domain.StringPtr(req.Name)
	writeUser(w, u)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, u *domain.User) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_name", "Account name is required")
		return
	}
	u.Accounts = append(u.Accounts, domain.Account{ID: ksuid.New().String(), Name: req.Name})
	writeUser(w, u)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, u *domain.User) {
	idx := accountIndex(u, r.PathValue("id"))
	if idx < 0 {
		writeError(w, http.StatusNotFound, "account_not_found", "Account not found")
		return
	}
	u.Accounts = append(u.Accounts[:idx:idx], u.Accounts[idx+1:]...)
	writeUser(w, u)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, u *domain.User) {
	s.adjust(w, r, u, 1)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, u *domain.User) {
	s.adjust(w, r, u, -1)
}

func (s *Server) adjust(w http.ResponseWriter, r *http.Request, u *domain.User, sign int64) {
	var req struct {
		Amount int64 `json:"amountInCents"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_amount", "Amount must be greater than 0")
		return
	}
	idx := accountIndex(u, r.PathValue("id"))
	if idx < 0 {
		writeError(w, http.StatusNotFound, "account_not_found", "Account not found")
		return
	}
	if sign < 0 && u.Accounts[idx].Balance < req.Amount {
		writeError(w, http.StatusBadRequest, "insufficient_balance", "Insufficient balance for withdrawal")
		return
	}
	u.Accounts[idx].Balance += sign * req.Amount
	writeUser(w, u)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, u *domain.User) {
	var req struct {
		From   string `json:"fromAccountId"`
		To     string `json:"toAccountId"`
		Amount int64  `json:"amountInCents"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_amount", "Amount must be greater than 0")
		return
	}
	if req.From == req.To {
		writeError(w, http.StatusBadRequest, "same_account", "Cannot transfer to the same account")
		return
	}
	from, to := accountIndex(u, req.From), accountIndex(u, req.To)
	if from < 0 || to < 0 {
		writeError(w, http.StatusNotFound, "account_not_found", "Account not found")
		return
	}
	if u.Accounts[from].Balance < req.Amount {
		writeError(w, http.StatusBadRequest, "insufficient_balance", "Insufficient balance for transfer")
		return
	}
	u.Accounts[from].Balance -= req.Amount
	u.Accounts[to].Balance += req.Amount
	writeUser(w, u)
}

func (s *Server) userForPhoneLocked(phone string) *domain.User {
	if id, ok := s.byPhone[phone]; ok {
		return s.users[id]
	}
	u := &domain.User{UserID: uuid.NewString(), E164PhoneNumber: phone, Accounts: []domain.Account{}}
	s.users[u.UserID] = u
	s.byPhone[phone] = u.UserID
	return u
}

func (s *Server) issueTokenLocked(userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss": "ledgertest",
		"sub": userID,
		"gen": s.gen,
		"iat": now.Unix(),
		"exp": now.Add(24 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func accountIndex(u *domain.User, id string) int {
	for i, a := range u.Accounts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return false
	}
	return true
}

func writeUser(w http.ResponseWriter, u *domain.User) {
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"errorCode": code, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
