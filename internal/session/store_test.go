package session

import (
	"context"
	"errors"
	"testing"

	"github.com/walletwizard/wizard/pkg/domain"
)

type fetcherFunc func(ctx context.Context, token string) (*domain.User, error)

func (f fetcherFunc) FetchUser(ctx context.Context, token string) (*domain.User, error) {
	return f(ctx, token)
}

func testUser(name string, balance int64) *domain.User {
	return &domain.User{
		UserID:          "u1",
		Name:            domain.StringPtr(name),
		E164PhoneNumber: "+16692514001",
		Accounts:        []domain.Account{{ID: "a1", Name: "Checking", Balance: balance}},
	}
}

func okFetcher(u *domain.User) fetcherFunc {
	return func(context.Context, string) (*domain.User, error) { return u, nil }
}

func TestLoadDoesNotPopulateUser(t *testing.T) {
	st := NewMemoryStorage()
	st.Set(KeyAuthToken, "tok")          //nolint:errcheck
	st.Set(KeyUsername, "Agam")          //nolint:errcheck
	st.Set(KeyPhoneNumber, "+16692514001") //nolint:errcheck

	calls := 0
	s := New(st, fetcherFunc(func(context.Context, string) (*domain.User, error) {
		calls++
		return nil, errors.New("unexpected")
	}))
	sess, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if sess.Token != "tok" {
		t.Errorf("Token = %q, want tok", sess.Token)
	}
	if sess.User != nil {
		t.Error("User should be unset after Load")
	}
	if calls != 0 {
		t.Errorf("Load made %d fetches, want 0", calls)
	}
	if p := s.Profile(); p.Name != "Agam" || p.Phone != "+16692514001" {
		t.Errorf("Profile() = %+v", p)
	}
}

func TestLoadTokenOverride(t *testing.T) {
	st := NewMemoryStorage()
	st.Set(KeyAuthToken, "stored") //nolint:errcheck

	s := New(st, nil, WithTokenOverride("from-env"))
	sess, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if sess.Token != "from-env" {
		t.Errorf("Token = %q, want from-env", sess.Token)
	}
	if v, _, _ := st.Get(KeyAuthToken); v != "stored" {
		t.Errorf("override leaked into storage: %q", v)
	}
}

func TestSetTokenThenRefresh(t *testing.T) {
	st := NewMemoryStorage()
	var gotToken string
	s := New(st, fetcherFunc(func(_ context.Context, token string) (*domain.User, error) {
		gotToken = token
		return testUser("Agam", 100), nil
	}))

	if err := s.SetToken("tok"); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}
	if v, _, _ := st.Get(KeyAuthToken); v != "tok" {
		t.Errorf("persisted token = %q, want tok", v)
	}
	if err := s.RefreshUser(context.Background()); err != nil {
		t.Fatalf("RefreshUser() error: %v", err)
	}
	if gotToken != "tok" {
		t.Errorf("fetch used token %q, want tok", gotToken)
	}
	u := s.User()
	if u == nil || u.DisplayName() != "Agam" {
		t.Fatalf("User() = %+v, want Agam", u)
	}
	if v, _, _ := st.Get(KeyUsername); v != "Agam" {
		t.Errorf("persisted username = %q", v)
	}
	if v, _, _ := st.Get(KeyPhoneNumber); v != "+16692514001" {
		t.Errorf("persisted phone = %q", v)
	}
}

func TestSetTokenDropsOtherTokensUser(t *testing.T) {
	s := New(NewMemoryStorage(), okFetcher(testUser("Agam", 100)))
	if err := s.SetToken("tok"); err != nil {
		t.Fatal(err)
	}
	if err := s.RefreshUser(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := s.SetToken("tok"); err != nil {
		t.Fatal(err)
	}
	if s.User() == nil {
		t.Fatal("same token should keep the cached user")
	}

	if err := s.SetToken("other"); err != nil {
		t.Fatal(err)
	}
	if u := s.Snapshot().User; u != nil {
		t.Errorf("user after token change = %+v, want nil", u)
	}
}

func TestSetTokenRejectsEmpty(t *testing.T) {
	s := New(NewMemoryStorage(), nil)
	if err := s.SetToken(""); !domain.IsKind(err, domain.KindValidation) {
		t.Errorf("SetToken(\"\") err = %v, want validation", err)
	}
}

func TestFailedRefreshKeepsCachedUser(t *testing.T) {
	fail := false
	s := New(NewMemoryStorage(), fetcherFunc(func(context.Context, string) (*domain.User, error) {
		if fail {
			return nil, &domain.Error{Kind: domain.KindNetwork, Err: errors.New("offline")}
		}
		return testUser("Agam", 500), nil
	}))
	if err := s.SetToken("tok"); err != nil {
		t.Fatal(err)
	}
	if err := s.RefreshUser(context.Background()); err != nil {
		t.Fatal(err)
	}

	fail = true
	err := s.RefreshUser(context.Background())
	if !domain.IsKind(err, domain.KindNetwork) {
		t.Fatalf("RefreshUser() err = %v, want network", err)
	}
	u := s.User()
	if u == nil || u.Accounts[0].Balance != 500 {
		t.Errorf("cached user lost after failed refresh: %+v", u)
	}
	if s.Err() == nil {
		t.Error("Err() = nil, want recorded refresh error")
	}

	fail = false
	if err := s.RefreshUser(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v after successful refresh, want nil", s.Err())
	}
}

func TestRefreshWithoutToken(t *testing.T) {
	s := New(NewMemoryStorage(), okFetcher(testUser("x", 0)))
	err := s.RefreshUser(context.Background())
	if !domain.IsKind(err, domain.KindUnauthorized) {
		t.Errorf("err = %v, want unauthorized", err)
	}
	if s.User() != nil {
		t.Error("user populated without token")
	}
}

func TestClearResetsEverything(t *testing.T) {
	st := NewMemoryStorage()
	s := New(st, okFetcher(testUser("Agam", 100)))
	if err := s.SetToken("tok"); err != nil {
		t.Fatal(err)
	}
	if err := s.RefreshUser(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	sess := s.Snapshot()
	if sess.Token != "" || sess.User != nil {
		t.Errorf("Snapshot() after Clear = %+v, want empty", sess)
	}
	for _, k := range []string{KeyAuthToken, KeyUsername, KeyPhoneNumber} {
		if _, ok, _ := st.Get(k); ok {
			t.Errorf("key %q still persisted after Clear", k)
		}
	}
	if p := s.Profile(); p != (Profile{}) {
		t.Errorf("Profile() after Clear = %+v", p)
	}

	// Clearing an empty session is fine too.
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear() error: %v", err)
	}
}

func TestApplyDropsStaleResponses(t *testing.T) {
	s := New(NewMemoryStorage(), nil)
	if err := s.SetToken("tok"); err != nil {
		t.Fatal(err)
	}
	older := s.Ticket()
	newer := s.Ticket()

	if !s.Apply(newer, testUser("new", 200)) {
		t.Fatal("Apply(newer) = false, want true")
	}
	if s.Apply(older, testUser("old", 100)) {
		t.Error("Apply(older) = true after newer was applied")
	}
	if got := s.User().DisplayName(); got != "new" {
		t.Errorf("User = %q, want new", got)
	}
}

func TestClearInvalidatesInflightResponses(t *testing.T) {
	s := New(NewMemoryStorage(), nil)
	if err := s.SetToken("tok"); err != nil {
		t.Fatal(err)
	}
	ticket := s.Ticket()
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if s.Apply(ticket, testUser("late", 1)) {
		t.Error("late response applied after Clear")
	}
	if s.User() != nil {
		t.Error("user resurrected after Clear")
	}

	// A new login ignores tickets from the previous session as well.
	if err := s.SetToken("tok2"); err != nil {
		t.Fatal(err)
	}
	if s.Apply(ticket, testUser("late", 1)) {
		t.Error("pre-logout ticket applied to new session")
	}
}

func TestCommit(t *testing.T) {
	st := NewMemoryStorage()
	s := New(st, nil)
	if err := s.Commit("tok", nil); !domain.IsKind(err, domain.KindValidation) {
		t.Errorf("Commit(nil user) err = %v, want validation", err)
	}
	if s.Token() != "" {
		t.Error("token set by failed Commit")
	}
	if err := s.Commit("tok", testUser("Agam", 1)); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	sess := s.Snapshot()
	if sess.Token != "tok" || sess.User == nil {
		t.Errorf("Snapshot() = %+v, want token and user", sess)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(NewMemoryStorage(), nil)
	if err := s.Commit("tok", testUser("Agam", 100)); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	snap.User.Accounts[0].Balance = 0
	if got := s.User().Accounts[0].Balance; got != 100 {
		t.Errorf("store mutated through snapshot: balance %d", got)
	}
}
