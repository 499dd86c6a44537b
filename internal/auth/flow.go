// Package auth drives phone-number login: send a one-time code, verify it,
// and install the resulting session.
package auth

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/walletwizard/wizard/internal/session"
	"github.com/walletwizard/wizard/pkg/client"
	"github.com/walletwizard/wizard/pkg/domain"
)

// State is the client-observable login state.
type State int

const (
	LoggedOut State = iota
	AwaitingCode
	LoggedIn
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case AwaitingCode:
		return "awaiting_code"
	case LoggedIn:
		return "logged_in"
	}
	return "unknown"
}

// API is the part of the wallet client the login flow needs.
type API interface {
	SendVerificationCode(ctx context.Context, phone string) (*client.Ack, error)
	VerifyCode(ctx context.Context, phone, code string) (string, error)
	FetchUser(ctx context.Context, token string) (*domain.User, error)
}

// Flow is the login state machine:
//
//	LoggedOut --SendCode--> AwaitingCode --Verify--> LoggedIn
//
// AwaitingCode loops on Resend. A failed step never advances the state.
// LoggedIn is derived from the session store, so a persisted token puts a
// fresh process straight into LoggedIn.
type Flow struct {
	api    API
	store  *session.Store
	region string
	logger *zap.Logger

	mu       sync.Mutex
	awaiting bool
	phone    string
	lastErr  error
}

// NewFlow creates a login flow. region is used to read phone numbers typed
// without a country code.
func NewFlow(api API, store *session.Store, region string, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if region == "" {
		region = domain.DefaultRegion
	}
	return &Flow{api: api, store: store, region: region, logger: logger}
}

// State returns the current state.
func (f *Flow) State() State {
	if f.store.Snapshot().LoggedIn() {
		return LoggedIn
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.awaiting {
		return AwaitingCode
	}
	return LoggedOut
}

// Phone returns the E.164 number a code was sent to, if any.
func (f *Flow) Phone() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phone
}

// Err returns the error of the last failed step, or nil.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// SendCode normalizes rawPhone and asks the server to text it a code.
func (f *Flow) SendCode(ctx context.Context, rawPhone string) error {
	const op = "auth.SendCode"
	if f.State() == LoggedIn {
		return f.fail(domain.Errorf(domain.KindValidation, op, "already logged in"))
	}
	phone, err := domain.NormalizePhone(rawPhone, f.region)
	if err != nil {
		return f.fail(err)
	}
	if _, err := f.api.SendVerificationCode(ctx, phone); err != nil {
		f.logger.Info("send code failed", zap.Stringer("kind", domain.KindOf(err)))
		return f.fail(err)
	}

	f.mu.Lock()
	f.awaiting = true
	f.phone = phone
	f.lastErr = nil
	f.mu.Unlock()
	f.logger.Info("verification code sent")
	return nil
}

// Resend sends a fresh code to the same number.
func (f *Flow) Resend(ctx context.Context) error {
	const op = "auth.Resend"
	if f.State() != AwaitingCode {
		return f.fail(domain.Errorf(domain.KindValidation, op, "no verification in progress"))
	}
	phone := f.Phone()
	if _, err := f.api.SendVerificationCode(ctx, phone); err != nil {
		return f.fail(err)
	}
	f.mu.Lock()
	f.lastErr = nil
	f.mu.Unlock()
	return nil
}

// Verify checks code, fetches the user with the issued token and commits
// both to the session store. The store only changes when both calls
// succeed; otherwise the flow stays in AwaitingCode.
func (f *Flow) Verify(ctx context.Context, code string) error {
	const op = "auth.Verify"
	if f.State() != AwaitingCode {
		return f.fail(domain.Errorf(domain.KindValidation, op, "no verification in progress"))
	}
	phone := f.Phone()

	token, err := f.api.VerifyCode(ctx, phone, strings.TrimSpace(code))
	if err != nil {
		f.logger.Info("verify code failed", zap.Stringer("kind", domain.KindOf(err)))
		return f.fail(err)
	}
	user, err := f.api.FetchUser(ctx, token)
	if err != nil {
		f.logger.Warn("fetch user after verify failed", zap.Stringer("kind", domain.KindOf(err)))
		return f.fail(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// Cancel may have run while the requests were in flight.
	if !f.awaiting {
		return domain.Errorf(domain.KindValidation, op, "verification was cancelled")
	}
	if err := f.store.Commit(token, user); err != nil {
		f.lastErr = err
		return err
	}
	f.awaiting = false
	f.lastErr = nil
	f.logger.Info("logged in", zap.String("user_id", user.UserID))
	return nil
}

// Cancel abandons a pending verification.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awaiting = false
	f.phone = ""
	f.lastErr = nil
}

// Logout clears the session and returns to LoggedOut.
func (f *Flow) Logout() error {
	f.Cancel()
	return f.store.Clear()
}

func (f *Flow) fail(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastErr = err
	return err
}
