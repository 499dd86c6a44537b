// Package session owns the logged-in session: the bearer token, the cached
// user snapshot and their durable copy.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/walletwizard/wizard/pkg/domain"
)

// UserFetcher loads the current user for a token. *client.Client satisfies it.
type UserFetcher interface {
	FetchUser(ctx context.Context, token string) (*domain.User, error)
}

// Profile is the minimal identity kept on disk between runs.
type Profile struct {
	Name  string
	Phone string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTokenOverride makes Load prefer token over the persisted one. The
// override is never written to storage.
func WithTokenOverride(token string) Option {
	return func(s *Store) { s.override = token }
}

// Store is the single writer of session state. Every mutation goes through
// its methods; readers get copies.
//
// Server responses are ordered with tickets: take one with Ticket before a
// request and hand it to Apply with the response. A response whose ticket
// is older than the last applied one is dropped, and Clear or SetToken
// invalidate every outstanding ticket.
type Store struct {
	storage  Storage
	fetcher  UserFetcher
	logger   *zap.Logger
	override string

	mu      sync.Mutex
	sess    domain.Session
	profile Profile
	lastErr error
	issued  uint64
	applied uint64
	floor   uint64
}

// New creates a Store. Call Load to populate it from storage.
func New(storage Storage, fetcher UserFetcher, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		fetcher: fetcher,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted token and profile. The token is not validated
// and the returned session has no user until a refresh succeeds.
func (s *Store) Load() (domain.Session, error) {
	token, _, err := s.storage.Get(KeyAuthToken)
	if err != nil {
		return domain.Session{}, fmt.Errorf("session.Load: %w", err)
	}
	name, _, err := s.storage.Get(KeyUsername)
	if err != nil {
		return domain.Session{}, fmt.Errorf("session.Load: %w", err)
	}
	phone, _, err := s.storage.Get(KeyPhoneNumber)
	if err != nil {
		return domain.Session{}, fmt.Errorf("session.Load: %w", err)
	}
	if s.override != "" {
		token = s.override
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = domain.Session{Token: token}
	s.profile = Profile{Name: name, Phone: phone}
	s.logger.Debug("session loaded", zap.Bool("has_token", token != ""), zap.Bool("has_profile", phone != ""))
	return s.sess.Clone(), nil
}

// SetToken stores and persists a new token. A user cached for a different
// token is dropped; callers follow with RefreshUser, or use Commit when the
// user is already in hand.
func (s *Store) SetToken(token string) error {
	if token == "" {
		return domain.Errorf(domain.KindValidation, "session.SetToken", "empty token")
	}
	if err := s.storage.Set(KeyAuthToken, token); err != nil {
		return fmt.Errorf("session.SetToken: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess.Token != token {
		s.sess.User = nil
	}
	s.sess.Token = token
	s.floor = s.issued
	return nil
}

// Commit installs a token together with the user fetched with it, so a
// login is observed as one step.
func (s *Store) Commit(token string, user *domain.User) error {
	if user == nil {
		return domain.Errorf(domain.KindValidation, "session.Commit", "missing user")
	}
	if err := s.SetToken(token); err != nil {
		return err
	}
	s.Apply(s.Ticket(), user)
	return nil
}

// Ticket reserves a position in the response order.
func (s *Store) Ticket() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Apply replaces the cached user with a server snapshot unless a newer
// response was already applied or the ticket predates the current token.
// It reports whether the snapshot was taken.
func (s *Store) Apply(ticket uint64, user *domain.User) bool {
	if user == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess.Token == "" || ticket <= s.floor || ticket < s.applied {
		s.logger.Debug("dropping stale user snapshot",
			zap.Uint64("ticket", ticket),
			zap.Uint64("applied", s.applied),
			zap.Uint64("floor", s.floor))
		return false
	}
	s.applied = ticket
	s.sess.User = user.Clone()
	s.lastErr = nil
	s.persistProfileLocked(user)
	return true
}

func (s *Store) persistProfileLocked(user *domain.User) {
	s.profile = Profile{Name: user.NameOrEmpty(), Phone: user.E164PhoneNumber}
	var err error
	if user.Name != nil {
		err = s.storage.Set(KeyUsername, *user.Name)
	} else {
		err = s.storage.Delete(KeyUsername)
	}
	if err == nil {
		err = s.storage.Set(KeyPhoneNumber, user.E164PhoneNumber)
	}
	if err != nil {
		s.logger.Warn("persist profile failed", zap.Error(err))
	}
}

// RefreshUser fetches the user with the stored token. On failure the error
// is recorded and the cached user is left untouched.
func (s *Store) RefreshUser(ctx context.Context) error {
	token := s.Token()
	if token == "" {
		err := domain.Errorf(domain.KindUnauthorized, "session.RefreshUser", "no authentication token found")
		s.recordErr(err)
		return err
	}
	if s.fetcher == nil {
		return errors.New("session.RefreshUser: no user fetcher configured")
	}

	ticket := s.Ticket()
	user, err := s.fetcher.FetchUser(ctx, token)
	if err != nil {
		s.logger.Warn("refresh user failed", zap.Stringer("kind", domain.KindOf(err)), zap.Error(err))
		s.recordErr(err)
		return fmt.Errorf("session.RefreshUser: %w", err)
	}
	s.Apply(ticket, user)
	return nil
}

func (s *Store) recordErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

// Clear logs out: the token and profile keys are removed from storage, the
// session is emptied and in-flight responses are invalidated.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.sess = domain.Session{}
	s.profile = Profile{}
	s.lastErr = nil
	s.floor = s.issued
	s.override = ""
	s.mu.Unlock()

	if err := s.storage.Delete(KeyAuthToken, KeyUsername, KeyPhoneNumber); err != nil {
		return fmt.Errorf("session.Clear: %w", err)
	}
	s.logger.Info("session cleared")
	return nil
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Clone()
}

// Token returns the current token, or "".
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Token
}

// User returns a copy of the cached user, or nil.
func (s *Store) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.User.Clone()
}

// Profile returns the persisted name and phone.
func (s *Store) Profile() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Err returns the last refresh error, cleared by the next applied snapshot.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
