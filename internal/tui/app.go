package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/walletwizard/wizard/internal/auth"
	"github.com/walletwizard/wizard/internal/wallet"
	"github.com/walletwizard/wizard/pkg/domain"
)

type view int

const (
	viewLogin view = iota
	viewHome
	viewAccount
	viewTransfer
	viewOpenAccount
	viewSettings
)

// action names a wallet mutation whose result comes back as actionDoneMsg.
type action int

const (
	actDeposit action = iota
	actWithdraw
	actTransfer
	actDelete
	actCreate
	actRename
)

// actionDoneMsg carries the result of a wallet mutation. The store has
// already applied the returned user by the time it arrives.
type actionDoneMsg struct {
	action    action
	accountID string
	cents     int64
	name      string
	err       error
}

// userRefreshedMsg carries the result of a background refresh.
type userRefreshedMsg struct{ err error }

// loggedOutMsg arrives once the session has been cleared.
type loggedOutMsg struct {
	reason string
	err    error
}

// navigateMsg switches views. accountID selects the account for
// viewAccount and viewTransfer.
type navigateMsg struct {
	to        view
	accountID string
}

const sessionExpired = "session expired, please log in again"

func navigate(to view, accountID string) tea.Cmd {
	return func() tea.Msg { return navigateMsg{to: to, accountID: accountID} }
}

// App is the root Bubbletea model. Update is the only writer of UI state;
// commands run service calls and report back through messages.
type App struct {
	flow *auth.Flow
	svc  *wallet.Service

	view     view
	login    loginModel
	home     homeModel
	account  accountModel
	transfer transferModel
	open     openAccountModel
	settings settingsModel
	helpOpen bool

	user       *domain.User
	refreshing bool
	status     string
	statusErr  bool

	width  int
	height int
	frame  int
	now    func() time.Time
}

// NewApp creates the TUI. A session already holding a token starts on the
// home view; otherwise on login.
func NewApp(flow *auth.Flow, svc *wallet.Service) App {
	a := App{
		flow:     flow,
		svc:      svc,
		login:    newLoginModel(flow),
		home:     newHomeModel(svc),
		account:  newAccountModel(svc),
		transfer: newTransferModel(svc),
		open:     newOpenAccountModel(svc),
		settings: newSettingsModel(svc),
		now:      time.Now,
	}
	if flow.State() == auth.LoggedIn {
		a.view = viewHome
		a.syncUser()
	}
	return a
}

func (a App) Init() tea.Cmd {
	if a.view == viewLogin {
		return shimmerTickCmd()
	}
	return tea.Batch(shimmerTickCmd(), a.refresh())
}

func (a *App) refreshCmd() tea.Cmd {
	a.refreshing = true
	return a.refresh()
}

func (a App) refresh() tea.Cmd {
	svc := a.svc
	return func() tea.Msg {
		_, err := svc.Refresh(context.Background())
		return userRefreshedMsg{err: err}
	}
}

func (a App) logout(reason string) tea.Cmd {
	flow := a.flow
	return func() tea.Msg {
		return loggedOutMsg{reason: reason, err: flow.Logout()}
	}
}

// syncUser copies the store's user into every view.
func (a *App) syncUser() {
	u := a.svc.Store().User()
	a.user = u
	a.home.user = u
	a.account.user = u
	a.transfer.user = u
	a.settings.user = u
	a.settings.profile = a.svc.Store().Profile()
	a.settings.token = a.svc.Store().Token()
	a.home.clampCursor()
}

func (a *App) setStatus(s string, isErr bool) {
	a.status = s
	a.statusErr = isErr
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(2) + status(1) + help(1)
		body := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 4}
		a.home, _ = a.home.Update(body)
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case verifiedMsg:
		var cmd tea.Cmd
		a.login, cmd = a.login.Update(msg)
		if msg.err != nil {
			return a, cmd
		}
		a.view = viewHome
		a.syncUser()
		a.setStatus("welcome, "+a.user.DisplayName(), false)
		return a, cmd

	case userRefreshedMsg:
		a.refreshing = false
		if domain.IsKind(msg.err, domain.KindUnauthorized) {
			return a, a.logout(sessionExpired)
		}
		a.syncUser()
		if msg.err != nil {
			a.setStatus("couldn't refresh: "+domain.UserMessage(msg.err), true)
		} else if a.status != "" && a.statusErr {
			a.setStatus("", false)
		}
		return a, nil

	case actionDoneMsg:
		return a.handleAction(msg)

	case loggedOutMsg:
		a.view = viewLogin
		a.user = nil
		a.helpOpen = false
		a.login = newLoginModel(a.flow)
		a.home = newHomeModel(a.svc)
		a.account = newAccountModel(a.svc)
		a.transfer = newTransferModel(a.svc)
		a.open = newOpenAccountModel(a.svc)
		a.settings = newSettingsModel(a.svc)
		if msg.err != nil {
			a.setStatus("logout failed: "+msg.err.Error(), true)
		} else {
			a.setStatus(msg.reason, msg.reason != "")
		}
		return a, nil

	case navigateMsg:
		return a.navigate(msg)

	case logoutRequestMsg:
		return a, a.logout("")

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.helpOpen {
			switch msg.String() {
			case "?", "esc":
				a.helpOpen = false
			case "q":
				return a, tea.Quit
			}
			return a, nil
		}
		if a.view != viewLogin && !a.isEditing() {
			switch msg.String() {
			case "q":
				return a, tea.Quit
			case "?":
				a.helpOpen = true
				return a, nil
			case "r":
				if !a.refreshing {
					a.setStatus("refreshing…", false)
					return a, a.refreshCmd()
				}
				return a, nil
			case "s":
				if a.view != viewSettings {
					return a.navigate(navigateMsg{to: viewSettings})
				}
			}
		}
	}

	var cmd tea.Cmd
	switch a.view {
	case viewLogin:
		a.login, cmd = a.login.Update(msg)
	case viewHome:
		a.home, cmd = a.home.Update(msg)
	case viewAccount:
		a.account, cmd = a.account.Update(msg)
	case viewTransfer:
		a.transfer, cmd = a.transfer.Update(msg)
	case viewOpenAccount:
		a.open, cmd = a.open.Update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.Update(msg)
	}
	return a, cmd
}

func (a App) navigate(msg navigateMsg) (tea.Model, tea.Cmd) {
	a.helpOpen = false
	a.syncUser()
	switch msg.to {
	case viewAccount:
		if _, ok := a.user.Account(msg.accountID); !ok {
			a.setStatus("account not found", true)
			msg.to = viewHome
			break
		}
		if a.account.accountID != msg.accountID {
			a.account = newAccountModel(a.svc)
			a.account.user = a.user
		}
		a.account.accountID = msg.accountID
	case viewTransfer:
		a.transfer = newTransferModel(a.svc)
		a.transfer.user = a.user
		a.transfer.fromID = msg.accountID
	case viewOpenAccount:
		a.open = newOpenAccountModel(a.svc)
	case viewSettings:
		a.settings.mode = settingsIdle
		a.settings.err = nil
		a.settings.status = ""
	}
	a.view = msg.to
	return a, nil
}

func (a App) handleAction(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	if domain.IsKind(msg.err, domain.KindUnauthorized) {
		return a, a.logout(sessionExpired)
	}
	a.syncUser()

	var cmd tea.Cmd
	switch msg.action {
	case actDeposit, actWithdraw, actDelete:
		a.account, cmd = a.account.Update(msg)
		if msg.action == actDelete && msg.err == nil {
			a.view = viewHome
			a.setStatus("account closed", false)
		}
	case actTransfer:
		a.transfer, cmd = a.transfer.Update(msg)
		if msg.err == nil {
			a.account.status = "transferred " + domain.FormatCents(msg.cents)
			a.account.err = nil
			if a.view == viewTransfer {
				a.view = viewAccount
			}
		}
	case actCreate:
		a.open, cmd = a.open.Update(msg)
		if msg.err == nil {
			a.home.selectLast()
			a.view = viewHome
			a.setStatus("opened "+msg.name, false)
		}
	case actRename:
		a.settings, cmd = a.settings.Update(msg)
	}
	return a, cmd
}

func (a App) isEditing() bool {
	switch a.view {
	case viewLogin, viewOpenAccount:
		return true
	case viewAccount:
		return a.account.mode != accountIdle
	case viewTransfer:
		return a.transfer.stage == transferAmount
	case viewSettings:
		return a.settings.mode == settingsRename
	}
	return false
}

func (a App) View() string {
	logo := renderShimmerLogo(a.frame)
	header := center(logo, a.width) + "\n"

	var sub string
	switch {
	case a.user != nil:
		sub = dimStyle.Render(a.user.DisplayName()) + metaStyle.Render(" · total ") + renderBalance(a.user.TotalBalance())
	case a.view != viewLogin:
		// Saved name and phone until the first fetch lands.
		p := a.svc.Store().Profile()
		name := p.Name
		if name == "" {
			name = p.Phone
		}
		if name != "" {
			sub = dimStyle.Render(name) + metaStyle.Render(" · loading…")
		}
	}
	header += center(sub, a.width)

	var body, help string
	switch a.view {
	case viewLogin:
		body = a.login.View()
		help = a.login.helpKeys()
	case viewHome:
		body = a.home.View()
		help = helpBar("j/k", "nav", "enter", "open", "n", "new", "r", "refresh", "s", "settings", "?", "help", "q", "quit")
	case viewAccount:
		body = a.account.View()
		help = a.account.helpKeys()
	case viewTransfer:
		body = a.transfer.View()
		help = a.transfer.helpKeys()
	case viewOpenAccount:
		body = a.open.View()
		help = helpBar("enter", "open", "esc", "cancel")
	case viewSettings:
		body = a.settings.View(a.now())
		help = a.settings.helpKeys()
	}
	if a.helpOpen {
		body = helpView()
		help = helpBar("esc", "close")
	}

	status := ""
	if a.status != "" {
		if a.statusErr {
			status = " " + errorStyle.Render(a.status)
		} else {
			status = " " + metaStyle.Render(a.status)
		}
	}

	chrome := 4
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")
	return fmt.Sprintf("%s\n%s\n%s\n%s", header, body, status, help)
}

func center(s string, width int) string {
	pad := (width - lipgloss.Width(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}
