package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/walletwizard/wizard/pkg/domain"
)

// DefaultTimeout bounds every request when no http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// Ack is the acknowledgement returned when a verification code is sent.
type Ack struct {
	Status string `json:"status"`
}

type userResponse struct {
	User *domain.User `json:"user"`
}

type verifyResponse struct {
	AuthToken string `json:"authToken"`
}

type amountRequest struct {
	AmountInCents int64 `json:"amountInCents"`
}

type transferRequest struct {
	FromAccountID string `json:"fromAccountId"`
	ToAccountID   string `json:"toAccountId"`
	AmountInCents int64  `json:"amountInCents"`
}

// Client is the WalletWizard ledger API client. It holds no session state:
// the bearer token is passed to every authenticated call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a new API client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendVerificationCode asks the server to text a one-time code to phone,
// which must already be in E.164 form.
func (c *Client) SendVerificationCode(ctx context.Context, phone string) (*Ack, error) {
	const op = "client.SendVerificationCode"
	if !domain.IsE164(phone) {
		return nil, domain.Errorf(domain.KindInvalidPhoneNumber, op, "invalid phone number")
	}
	var ack Ack
	if err := c.post(ctx, op, "", "/api/v1/verify/send", map[string]string{"e164PhoneNumber": phone}, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// VerifyCode exchanges a 6-digit code for a session token.
func (c *Client) VerifyCode(ctx context.Context, phone, code string) (string, error) {
	const op = "client.VerifyCode"
	if !domain.IsE164(phone) {
		return "", domain.Errorf(domain.KindInvalidPhoneNumber, op, "invalid phone number")
	}
	if !validCode(code) {
		return "", domain.Errorf(domain.KindValidation, op, "please enter the 6-digit code")
	}
	body := map[string]string{"e164PhoneNumber": phone, "code": code}
	var resp verifyResponse
	if err := c.post(ctx, op, "", "/api/v1/verify/check", body, &resp); err != nil {
		return "", err
	}
	if resp.AuthToken == "" {
		return "", domain.Errorf(domain.KindUnknown, op, "server returned no token")
	}
	return resp.AuthToken, nil
}

// FetchUser returns the authenticated user's snapshot.
func (c *Client) FetchUser(ctx context.Context, token string) (*domain.User, error) {
	const op = "client.FetchUser"
	if err := requireToken(op, token); err != nil {
		return nil, err
	}
	return c.userCall(ctx, op, http.MethodGet, token, "/api/v1/user", nil)
}

// CreateAccount opens a new account and returns the updated user.
func (c *Client) CreateAccount(ctx context.Context, token, name string) (*domain.User, error) {
	const op = "client.CreateAccount"
	if err := requireToken(op, token); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Errorf(domain.KindValidation, op, "account name is required")
	}
	return c.userCall(ctx, op, http.MethodPost, token, "/api/v1/accounts", map[string]string{"name": name})
}

// DeleteAccount removes an account and returns the updated user.
func (c *Client) DeleteAccount(ctx context.Context, token, accountID string) (*domain.User, error) {
	const op = "client.DeleteAccount"
	if err := requireToken(op, token); err != nil {
		return nil, err
	}
	if err := requireAccount(op, accountID); err != nil {
		return nil, err
	}
	return c.userCall(ctx, op, http.MethodDelete, token, "/api/v1/accounts/"+url.PathEscape(accountID), nil)
}

// Deposit credits amountCents to an account.
func (c *Client) Deposit(ctx context.Context, token, accountID string, amountCents int64) (*domain.User, error) {
	const op = "client.Deposit"
	if err := checkMutation(op, token, accountID, amountCents); err != nil {
		return nil, err
	}
	return c.userCall(ctx, op, http.MethodPost, token,
		"/api/v1/accounts/"+url.PathEscape(accountID)+"/deposit", amountRequest{AmountInCents: amountCents})
}

// Withdraw debits amountCents from an account.
func (c *Client) Withdraw(ctx context.Context, token, accountID string, amountCents int64) (*domain.User, error) {
	const op = "client.Withdraw"
	if err := checkMutation(op, token, accountID, amountCents); err != nil {
		return nil, err
	}
	return c.userCall(ctx, op, http.MethodPost, token,
		"/api/v1/accounts/"+url.PathEscape(accountID)+"/withdraw", amountRequest{AmountInCents: amountCents})
}

// Transfer moves amountCents between two of the user's accounts.
func (c *Client) Transfer(ctx context.Context, token, fromID, toID string, amountCents int64) (*domain.User, error) {
	const op = "client.Transfer"
	if err := checkMutation(op, token, fromID, amountCents); err != nil {
		return nil, err
	}
	if err := requireAccount(op, toID); err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, domain.Errorf(domain.KindSameAccount, op, "cannot transfer to the same account")
	}
	return c.userCall(ctx, op, http.MethodPost, token, "/api/v1/transfers", transferRequest{
		FromAccountID: fromID,
		ToAccountID:   toID,
		AmountInCents: amountCents,
	})
}

// RenameUser sets the user's display name.
func (c *Client) RenameUser(ctx context.Context, token, name string) (*domain.User, error) {
	const op = "client.RenameUser"
	if err := requireToken(op, token); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Errorf(domain.KindValidation, op, "name is required")
	}
	return c.userCall(ctx, op, http.MethodPut, token, "/api/v1/user/name", map[string]string{"name": name})
}

func (c *Client) userCall(ctx context.Context, op, method, token, path string, body any) (*domain.User, error) {
	var resp userResponse
	if err := c.doRequest(ctx, op, method, token, path, body, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, domain.Errorf(domain.KindUnknown, op, "server returned no user")
	}
	return resp.User, nil
}

func (c *Client) post(ctx context.Context, op, token, path string, body any, out any) error {
	return c.doRequest(ctx, op, http.MethodPost, token, path, body, out)
}

// doRequest performs one call. Every error it returns is a *domain.Error
// tagged with op.
func (c *Client) doRequest(ctx context.Context, op, method, token, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &domain.Error{Kind: domain.KindUnknown, Op: op, Err: fmt.Errorf("marshal body: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &domain.Error{Kind: domain.KindUnknown, Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return &domain.Error{Kind: domain.KindNetwork, Op: op, Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	c.logger.Debug("request done",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return classify(op, &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)})
		}
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && (apiErr.Message != "" || apiErr.ErrorCode != "") {
			msg := apiErr.Message
			if msg == "" {
				msg = apiErr.ErrorCode
			}
			return classify(op, &HTTPError{StatusCode: resp.StatusCode, Code: apiErr.ErrorCode, Message: msg})
		}
		return classify(op, &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))})
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return &domain.Error{Kind: domain.KindUnknown, Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

func validCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func requireToken(op, token string) error {
	if token == "" {
		return domain.Errorf(domain.KindUnauthorized, op, "no authentication token found")
	}
	return nil
}

func requireAccount(op, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return domain.Errorf(domain.KindValidation, op, "account is required")
	}
	return nil
}

func checkMutation(op, token, accountID string, amountCents int64) error {
	if err := requireToken(op, token); err != nil {
		return err
	}
	if err := requireAccount(op, accountID); err != nil {
		return err
	}
	if amountCents <= 0 {
		return domain.Errorf(domain.KindValidation, op, "amount must be greater than 0")
	}
	return nil
}
