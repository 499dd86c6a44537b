package tui

import (
	"net/http"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/walletwizard/wizard/internal/auth"
	"github.com/walletwizard/wizard/internal/ledgertest"
	"github.com/walletwizard/wizard/internal/session"
	"github.com/walletwizard/wizard/internal/wallet"
	"github.com/walletwizard/wizard/pkg/client"
	"github.com/walletwizard/wizard/pkg/domain"
)

const testPhone = "+16692514001"

type harness struct {
	ledger *ledgertest.Server
	store  *session.Store
	flow   *auth.Flow
	svc    *wallet.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ledger := ledgertest.New(t)
	c := client.New(ledger.URL)
	store := session.New(session.NewMemoryStorage(), c)
	return &harness{
		ledger: ledger,
		store:  store,
		flow:   auth.NewFlow(c, store, "US", nil),
		svc:    wallet.NewService(c, store, nil),
	}
}

func (h *harness) app() App {
	a := NewApp(h.flow, h.svc)
	a.width = 80
	a.height = 30
	return a
}

// loggedInApp seeds a user, installs their token and runs the first refresh.
func loggedInApp(t *testing.T, accounts ...domain.Account) (App, *harness, *domain.User) {
	t.Helper()
	h := newHarness(t)
	token, seeded := h.ledger.SeedUser(testPhone, "Agam", accounts...)
	if err := h.store.SetToken(token); err != nil {
		t.Fatal(err)
	}
	a := h.app()
	if a.view != viewHome {
		t.Fatalf("view = %d, want home", a.view)
	}
	a, _ = run(t, a, a.refresh())
	if a.user == nil {
		t.Fatal("user not loaded after refresh")
	}
	return a, h, seeded
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(a App, msgs ...tea.Msg) (App, tea.Cmd) {
	var cmd tea.Cmd
	for _, msg := range msgs {
		var m tea.Model
		m, cmd = a.Update(msg)
		a = m.(App)
	}
	return a, cmd
}

func typeText(a App, s string) App {
	for _, r := range s {
		a, _ = press(a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return a
}

// run executes cmd synchronously and feeds its message back into the app.
func run(t *testing.T, a App, cmd tea.Cmd) (App, tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command, got nil")
	}
	return press(a, cmd())
}

func TestNewAppStartsOnLoginWithoutToken(t *testing.T) {
	h := newHarness(t)
	a := h.app()
	if a.view != viewLogin {
		t.Fatalf("view = %d, want login", a.view)
	}
	if !strings.Contains(a.View(), "Log in with your phone number") {
		t.Errorf("login view missing title:\n%s", a.View())
	}
}

func TestLoginThroughKeys(t *testing.T) {
	h := newHarness(t)
	a := h.app()

	a = typeText(a, "6692514001")
	a, cmd := press(a, tea.KeyMsg{Type: tea.KeyEnter})
	if a.login.pending == "" {
		t.Error("expected pending label while sending")
	}
	a, _ = run(t, a, cmd)
	if a.login.stage != stageCode {
		t.Fatalf("stage = %d, want code (err: %v)", a.login.stage, a.login.err)
	}
	if !strings.Contains(a.login.status, testPhone) {
		t.Errorf("status = %q, want normalized phone", a.login.status)
	}

	a = typeText(a, ledgertest.DefaultCode)
	a, cmd = press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)
	if a.view != viewHome {
		t.Fatalf("view = %d, want home (err: %v)", a.view, a.login.err)
	}
	if a.user == nil || a.user.E164PhoneNumber != testPhone {
		t.Errorf("user = %+v", a.user)
	}
}

func TestLoginWrongCodeClearsField(t *testing.T) {
	h := newHarness(t)
	a := h.app()
	a = typeText(a, "6692514001")
	a, cmd := press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)

	a = typeText(a, "999999")
	a, cmd = press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)
	if a.view != viewLogin || a.login.stage != stageCode {
		t.Fatalf("view/stage = %d/%d, want login/code", a.view, a.login.stage)
	}
	if a.login.code != "" {
		t.Errorf("code = %q, want cleared", a.login.code)
	}
	if !domain.IsKind(a.login.err, domain.KindInvalidCode) {
		t.Errorf("err = %v, want invalid code", a.login.err)
	}
	if h.store.Token() != "" {
		t.Error("token stored after wrong code")
	}
}

func TestLoginCodeFieldAcceptsDigitsOnly(t *testing.T) {
	h := newHarness(t)
	a := h.app()
	a = typeText(a, "6692514001")
	a, cmd := press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)

	a = typeText(a, "12ab3456789")
	if a.login.code != "123456" {
		t.Errorf("code = %q, want 123456", a.login.code)
	}
	a, _ = press(a, tea.KeyMsg{Type: tea.KeyEsc})
	if a.login.stage != stagePhone || h.flow.State() != auth.LoggedOut {
		t.Errorf("esc should cancel verification, stage=%d state=%v", a.login.stage, h.flow.State())
	}
}

func TestLoginResend(t *testing.T) {
	h := newHarness(t)
	a := h.app()
	a = typeText(a, "6692514001")
	a, cmd := press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)

	a, cmd = press(a, tea.KeyMsg{Type: tea.KeyCtrlR})
	a, _ = run(t, a, cmd)
	if !strings.HasPrefix(a.login.status, "new code sent") {
		t.Errorf("status = %q", a.login.status)
	}
	if n := h.ledger.Calls("POST /api/v1/verify/send"); n != 2 {
		t.Errorf("send calls = %d, want 2", n)
	}
}

func TestLoginInvalidPhoneShowsError(t *testing.T) {
	h := newHarness(t)
	a := h.app()
	a = typeText(a, "12")
	a, cmd := press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)
	if a.login.stage != stagePhone {
		t.Errorf("stage = %d, want phone", a.login.stage)
	}
	if !strings.Contains(a.View(), "invalid phone number") {
		t.Errorf("view missing error:\n%s", a.View())
	}
	if h.ledger.TotalCalls() != 0 {
		t.Errorf("ledger calls = %d, want 0", h.ledger.TotalCalls())
	}
}

func TestHomeShowsAccountsAndTotal(t *testing.T) {
	a, _, _ := loggedInApp(t,
		domain.Account{Name: "Checking", Balance: 12345},
		domain.Account{Name: "Savings", Balance: 500},
	)
	out := a.View()
	for _, want := range []string{"Checking", "Savings", "$123.45", "$5.00", "$128.45"} {
		if !strings.Contains(out, want) {
			t.Errorf("home view missing %q:\n%s", want, out)
		}
	}
}

func TestDepositFromAccountView(t *testing.T) {
	a, h, seeded := loggedInApp(t, domain.Account{Name: "Checking", Balance: 1000})

	a, cmd := press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)
	if a.view != viewAccount || a.account.accountID != seeded.Accounts[0].ID {
		t.Fatalf("view = %d account = %q", a.view, a.account.accountID)
	}

	a, _ = press(a, key("d"))
	a = typeText(a, "12.345")
	a, cmd = press(a, tea.KeyMsg{Type: tea.KeyEnter})
	if !a.account.pending {
		t.Error("expected pending while deposit runs")
	}
	// A second enter while pending must not submit again.
	a, again := press(a, tea.KeyMsg{Type: tea.KeyEnter})
	if again != nil {
		t.Error("second enter produced a command while pending")
	}
	a, _ = run(t, a, cmd)

	if a.account.mode != accountIdle {
		t.Errorf("mode = %d, want idle", a.account.mode)
	}
	if a.account.status != "deposited $12.35" {
		t.Errorf("status = %q", a.account.status)
	}
	if got := a.user.Accounts[0].Balance; got != 2235 {
		t.Errorf("balance = %d, want 2235", got)
	}
	u, _ := h.ledger.User(testPhone)
	if u.Accounts[0].Balance != 2235 {
		t.Errorf("ledger balance = %d, want 2235", u.Accounts[0].Balance)
	}
}

func TestWithdrawInsufficientShowsInlineError(t *testing.T) {
	a, _, _ := loggedInApp(t, domain.Account{Name: "Checking", Balance: 100})
	a, cmd := press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)

	a, _ = press(a, key("w"))
	a = typeText(a, "5")
	a, cmd = press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)

	if a.account.mode != accountWithdraw {
		t.Errorf("mode = %d, want withdraw kept open", a.account.mode)
	}
	if !domain.IsKind(a.account.err, domain.KindInsufficientBalance) {
		t.Errorf("err = %v, want insufficient balance", a.account.err)
	}
	if got := a.user.Accounts[0].Balance; got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}
	if !strings.Contains(strings.ToLower(a.View()), "insufficient") {
		t.Errorf("view missing error:\n%s", a.View())
	}
}

func TestInvalidAmountNeverReachesLedger(t *testing.T) {
	a, h, _ := loggedInApp(t, domain.Account{Name: "Checking", Balance: 100})
	a, cmd := press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)
	before := h.ledger.TotalCalls()

	a, _ = press(a, key("d"))
	a = typeText(a, "abc")
	a, cmd = press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)
	if !domain.IsKind(a.account.err, domain.KindValidation) {
		t.Errorf("err = %v, want validation", a.account.err)
	}
	if h.ledger.TotalCalls() != before {
		t.Errorf("ledger calls went from %d to %d", before, h.ledger.TotalCalls())
	}
}

func TestTransferExcludesSourceAndMovesMoney(t *testing.T) {
	a, _, seeded := loggedInApp(t,
		domain.Account{Name: "Checking", Balance: 10000},
		domain.Account{Name: "Savings"},
		domain.Account{Name: "Travel"},
	)
	a, cmd := press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)
	a, cmd = press(a, key("t"))
	a, _ = run(t, a, cmd)
	if a.view != viewTransfer {
		t.Fatalf("view = %d, want transfer", a.view)
	}

	targets := a.transfer.targets()
	if len(targets) != 2 {
		t.Fatalf("targets = %+v, want 2", targets)
	}
	for _, tgt := range targets {
		if tgt.ID == seeded.Accounts[0].ID {
			t.Error("source account offered as target")
		}
	}

	a, _ = press(a, key("j"), tea.KeyMsg{Type: tea.KeyEnter})
	if a.transfer.stage != transferAmount || a.transfer.toID != seeded.Accounts[2].ID {
		t.Fatalf("stage/to = %d/%q", a.transfer.stage, a.transfer.toID)
	}
	a = typeText(a, "25")
	a, cmd = press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)

	if a.view != viewAccount {
		t.Errorf("view = %d, want account after transfer (err: %v)", a.view, a.transfer.err)
	}
	if a.user.Accounts[0].Balance != 7500 || a.user.Accounts[2].Balance != 2500 {
		t.Errorf("balances = %+v", a.user.Accounts)
	}
	if a.account.status != "transferred $25.00" {
		t.Errorf("status = %q", a.account.status)
	}
}

func TestTransferNeedsAnotherAccount(t *testing.T) {
	a, _, _ := loggedInApp(t, domain.Account{Name: "Checking", Balance: 100})
	a, cmd := press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)
	a, cmd = press(a, key("t"))
	if cmd != nil {
		t.Error("transfer opened with no other account")
	}
	if !domain.IsKind(a.account.err, domain.KindValidation) {
		t.Errorf("err = %v, want validation", a.account.err)
	}
}

func TestOpenAndCloseAccount(t *testing.T) {
	a, _, _ := loggedInApp(t, domain.Account{Name: "Checking"})

	a, cmd := press(a, key("n"))
	a, _ = run(t, a, cmd)
	if a.view != viewOpenAccount {
		t.Fatalf("view = %d, want open account", a.view)
	}
	a = typeText(a, "Travel")
	a, cmd = press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)
	if a.view != viewHome || len(a.user.Accounts) != 2 {
		t.Fatalf("view = %d accounts = %+v", a.view, a.user.Accounts)
	}
	if sel, _ := a.home.selected(); sel.Name != "Travel" {
		t.Errorf("selected = %q, want the new account", sel.Name)
	}

	a, cmd = press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)
	a, _ = press(a, key("x"))
	if a.account.mode != accountDeleting {
		t.Fatalf("mode = %d, want deleting", a.account.mode)
	}
	a, cmd = press(a, key("y"))
	a, _ = run(t, a, cmd)
	if a.view != viewHome || len(a.user.Accounts) != 1 {
		t.Errorf("after close view = %d accounts = %+v", a.view, a.user.Accounts)
	}
	if a.status != "account closed" {
		t.Errorf("status = %q", a.status)
	}
}

func TestRefreshFailureKeepsCachedUser(t *testing.T) {
	a, h, _ := loggedInApp(t, domain.Account{Name: "Checking", Balance: 700})
	h.ledger.FailNext("GET /api/v1/user", http.StatusBadGateway, "", "")

	a, cmd := press(a, key("r"))
	if !a.refreshing {
		t.Error("refreshing = false after r")
	}
	a, _ = run(t, a, cmd)
	if a.user == nil || a.user.Accounts[0].Balance != 700 {
		t.Errorf("user = %+v, want cached", a.user)
	}
	if !a.statusErr || !strings.Contains(a.status, "couldn't refresh") {
		t.Errorf("status = %q (err %v)", a.status, a.statusErr)
	}
}

func TestRevokedSessionReturnsToLogin(t *testing.T) {
	a, h, _ := loggedInApp(t, domain.Account{Name: "Checking"})
	h.ledger.RevokeTokens()

	a, cmd := press(a, key("r"))
	a, cmd = run(t, a, cmd)
	a, _ = run(t, a, cmd)
	if a.view != viewLogin {
		t.Fatalf("view = %d, want login", a.view)
	}
	if h.store.Token() != "" {
		t.Error("token kept after unauthorized refresh")
	}
	if !strings.Contains(a.status, "session expired") {
		t.Errorf("status = %q", a.status)
	}
}

func TestSettingsRenameAndLogout(t *testing.T) {
	a, h, _ := loggedInApp(t, domain.Account{Name: "Checking"})

	a, _ = press(a, key("s"))
	if a.view != viewSettings {
		t.Fatalf("view = %d, want settings", a.view)
	}
	if !strings.Contains(a.View(), testPhone) {
		t.Errorf("settings missing phone:\n%s", a.View())
	}
	if !strings.Contains(a.View(), "expires in") {
		t.Errorf("settings missing token expiry:\n%s", a.View())
	}

	a, _ = press(a, key("e"))
	if a.settings.name != "Agam" {
		t.Errorf("rename field = %q, want current name", a.settings.name)
	}
	a, _ = press(a, tea.KeyMsg{Type: tea.KeyBackspace}, tea.KeyMsg{Type: tea.KeyBackspace},
		tea.KeyMsg{Type: tea.KeyBackspace}, tea.KeyMsg{Type: tea.KeyBackspace})
	a = typeText(a, "Wiz")
	a, cmd := press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)
	if a.user.DisplayName() != "Wiz" || a.settings.status != "name updated" {
		t.Errorf("name = %q status = %q err = %v", a.user.DisplayName(), a.settings.status, a.settings.err)
	}

	a, _ = press(a, key("L"))
	a, cmd = press(a, key("y"))
	a, cmd = run(t, a, cmd)
	a, _ = run(t, a, cmd)
	if a.view != viewLogin || a.user != nil {
		t.Errorf("view = %d user = %+v after logout", a.view, a.user)
	}
	if h.store.Token() != "" {
		t.Error("token kept after logout")
	}
}

func TestGlobalKeys(t *testing.T) {
	a, _, _ := loggedInApp(t, domain.Account{Name: "Checking"})

	if _, cmd := press(a, key("q")); cmd == nil {
		t.Error("expected quit command on q")
	}
	if _, cmd := press(a, tea.KeyMsg{Type: tea.KeyCtrlC}); cmd == nil {
		t.Error("expected quit command on ctrl+c")
	}

	a, _ = press(a, key("?"))
	if !a.helpOpen || !strings.Contains(a.View(), "wizard transfer") {
		t.Errorf("help overlay not shown:\n%s", a.View())
	}
	a, _ = press(a, tea.KeyMsg{Type: tea.KeyEsc})
	if a.helpOpen {
		t.Error("help still open after esc")
	}
}

func TestTypingQInAmountDoesNotQuit(t *testing.T) {
	a, _, _ := loggedInApp(t, domain.Account{Name: "Checking"})
	a, cmd := press(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = run(t, a, cmd)
	a, _ = press(a, key("d"))

	a, cmd = press(a, key("q"))
	if cmd != nil {
		t.Error("q while editing produced a command")
	}
	if a.account.amount != "q" {
		t.Errorf("amount = %q, want q", a.account.amount)
	}
}

func TestProvisionalProfileBeforeFirstFetch(t *testing.T) {
	h := newHarness(t)
	token, _ := h.ledger.SeedUser(testPhone, "Agam")
	st := session.NewMemoryStorage()
	st.Set(session.KeyAuthToken, token) //nolint:errcheck
	st.Set(session.KeyUsername, "Agam") //nolint:errcheck
	c := client.New(h.ledger.URL)
	store := session.New(st, c)
	if _, err := store.Load(); err != nil {
		t.Fatal(err)
	}

	a := NewApp(auth.NewFlow(c, store, "", nil), wallet.NewService(c, store, nil))
	a.width, a.height = 80, 30
	if a.view != viewHome {
		t.Fatalf("view = %d, want home", a.view)
	}
	out := a.View()
	if !strings.Contains(out, "Agam") || !strings.Contains(out, "loading") {
		t.Errorf("view missing provisional profile:\n%s", out)
	}
	if n := h.ledger.TotalCalls(); n != 0 {
		t.Fatalf("ledger calls before Init = %d, want 0", n)
	}

	a, _ = run(t, a, a.refresh())
	if a.user == nil || a.user.DisplayName() != "Agam" {
		t.Fatalf("user after first fetch = %+v", a.user)
	}
	if n := h.ledger.Calls("GET /api/v1/user"); n != 1 {
		t.Errorf("user fetches = %d, want 1", n)
	}
}
