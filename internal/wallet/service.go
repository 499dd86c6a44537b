// Package wallet runs user actions against the ledger: it validates input
// locally, refuses double submits, and hands every server snapshot to the
// session store.
package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/walletwizard/wizard/internal/session"
	"github.com/walletwizard/wizard/pkg/domain"
)

// API is the subset of the wallet client used for account actions.
type API interface {
	FetchUser(ctx context.Context, token string) (*domain.User, error)
	CreateAccount(ctx context.Context, token, name string) (*domain.User, error)
	DeleteAccount(ctx context.Context, token, accountID string) (*domain.User, error)
	Deposit(ctx context.Context, token, accountID string, amountCents int64) (*domain.User, error)
	Withdraw(ctx context.Context, token, accountID string, amountCents int64) (*domain.User, error)
	Transfer(ctx context.Context, token, fromID, toID string, amountCents int64) (*domain.User, error)
	RenameUser(ctx context.Context, token, name string) (*domain.User, error)
}

// Guard keys for actions that are not tied to one account.
const (
	keyCreateAccount = "action:create-account"
	keyRename        = "action:rename"
)

// Service performs wallet actions for the session held in store.
type Service struct {
	api    API
	store  *session.Store
	logger *zap.Logger
	guard  *inflight
}

// NewService creates a Service.
func NewService(api API, store *session.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, store: store, logger: logger, guard: newInflight()}
}

// Store returns the session store the service writes to.
func (s *Service) Store() *session.Store { return s.store }

// Busy reports whether a mutating request for accountID is running.
func (s *Service) Busy(accountID string) bool { return s.guard.held(accountID) }

// Refresh reloads the user. On failure the cached user is kept.
func (s *Service) Refresh(ctx context.Context) (*domain.User, error) {
	if err := s.store.RefreshUser(ctx); err != nil {
		return s.store.User(), err
	}
	return s.store.User(), nil
}

// CreateAccount opens an account named name.
func (s *Service) CreateAccount(ctx context.Context, name string) (*domain.User, error) {
	const op = "wallet.CreateAccount"
	if strings.TrimSpace(name) == "" {
		return nil, domain.Errorf(domain.KindValidation, op, "account name is required")
	}
	return s.mutate(op, []string{keyCreateAccount}, func(token string) (*domain.User, error) {
		return s.api.CreateAccount(ctx, token, name)
	})
}

// DeleteAccount closes an account.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) (*domain.User, error) {
	const op = "wallet.DeleteAccount"
	return s.mutate(op, []string{accountID}, func(token string) (*domain.User, error) {
		return s.api.DeleteAccount(ctx, token, accountID)
	})
}

// Deposit parses amountInput as dollars and credits it to accountID. It
// returns the updated user and the cents that were sent.
func (s *Service) Deposit(ctx context.Context, accountID, amountInput string) (*domain.User, int64, error) {
	const op = "wallet.Deposit"
	cents, err := domain.ParseAmount(amountInput)
	if err != nil {
		return nil, 0, err
	}
	u, err := s.mutate(op, []string{accountID}, func(token string) (*domain.User, error) {
		return s.api.Deposit(ctx, token, accountID, cents)
	})
	if err != nil {
		return nil, 0, err
	}
	return u, cents, nil
}

// Withdraw parses amountInput as dollars and debits it from accountID.
func (s *Service) Withdraw(ctx context.Context, accountID, amountInput string) (*domain.User, int64, error) {
	const op = "wallet.Withdraw"
	cents, err := domain.ParseAmount(amountInput)
	if err != nil {
		return nil, 0, err
	}
	u, err := s.mutate(op, []string{accountID}, func(token string) (*domain.User, error) {
		return s.api.Withdraw(ctx, token, accountID, cents)
	})
	if err != nil {
		return nil, 0, err
	}
	return u, cents, nil
}

// Transfer moves amountInput dollars from one account to another. Both
// accounts are held for the duration of the request.
func (s *Service) Transfer(ctx context.Context, fromID, toID, amountInput string) (*domain.User, int64, error) {
	const op = "wallet.Transfer"
	if toID == "" {
		return nil, 0, domain.Errorf(domain.KindValidation, op, "choose an account to transfer to")
	}
	if fromID == toID {
		return nil, 0, domain.Errorf(domain.KindSameAccount, op, "cannot transfer to the same account")
	}
	cents, err := domain.ParseAmount(amountInput)
	if err != nil {
		return nil, 0, err
	}
	u, err := s.mutate(op, []string{fromID, toID}, func(token string) (*domain.User, error) {
		return s.api.Transfer(ctx, token, fromID, toID, cents)
	})
	if err != nil {
		return nil, 0, err
	}
	return u, cents, nil
}

// Rename sets the user's display name.
func (s *Service) Rename(ctx context.Context, name string) (*domain.User, error) {
	const op = "wallet.Rename"
	if strings.TrimSpace(name) == "" {
		return nil, domain.Errorf(domain.KindValidation, op, "name is required")
	}
	return s.mutate(op, []string{keyRename}, func(token string) (*domain.User, error) {
		return s.api.RenameUser(ctx, token, name)
	})
}

func (s *Service) mutate(op string, keys []string, call func(token string) (*domain.User, error)) (*domain.User, error) {
	token := s.store.Token()
	if token == "" {
		return nil, domain.Errorf(domain.KindUnauthorized, op, "no authentication token found")
	}
	release, ok := s.guard.acquire(keys...)
	if !ok {
		return nil, domain.Errorf(domain.KindBusy, op, "a request for this account is already in progress")
	}
	defer release()

	ticket := s.store.Ticket()
	start := time.Now()
	user, err := call(token)
	if err != nil {
		s.logger.Info("wallet action failed",
			zap.String("op", op),
			zap.Stringer("kind", domain.KindOf(err)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	applied := s.store.Apply(ticket, user)
	s.logger.Debug("wallet action done",
		zap.String("op", op),
		zap.Bool("applied", applied),
		zap.Duration("elapsed", time.Since(start)))
	return user.Clone(), nil
}
