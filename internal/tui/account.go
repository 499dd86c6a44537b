package tui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/walletwizard/wizard/internal/wallet"
	"github.com/walletwizard/wizard/pkg/domain"
)

// accountMode is the state machine for the account detail view.
type accountMode int

const (
	accountIdle     accountMode = iota
	accountDeposit              // typing a deposit amount
	accountWithdraw             // typing a withdrawal amount
	accountDeleting             // delete confirmation
)

type copiedMsg struct{ err error }

type accountModel struct {
	svc       *wallet.Service
	user      *domain.User
	accountID string
	mode      accountMode
	amount    string
	pending   bool
	status    string
	err       error
}

func newAccountModel(svc *wallet.Service) accountModel {
	return accountModel{svc: svc}
}

func (m accountModel) current() (domain.Account, bool) {
	return m.user.Account(m.accountID)
}

func (m accountModel) submitAmount() tea.Cmd {
	svc, id, input, mode := m.svc, m.accountID, m.amount, m.mode
	return func() tea.Msg {
		var (
			cents int64
			err   error
		)
		act := actDeposit
		if mode == accountWithdraw {
			act = actWithdraw
			_, cents, err = svc.Withdraw(context.Background(), id, input)
		} else {
			_, cents, err = svc.Deposit(context.Background(), id, input)
		}
		return actionDoneMsg{action: act, accountID: id, cents: cents, err: err}
	}
}

func (m accountModel) deleteAccount() tea.Cmd {
	svc, id := m.svc, m.accountID
	return func() tea.Msg {
		_, err := svc.DeleteAccount(context.Background(), id)
		return actionDoneMsg{action: actDelete, accountID: id, err: err}
	}
}

func (m accountModel) Update(msg tea.Msg) (accountModel, tea.Cmd) {
	switch msg := msg.(type) {
	case actionDoneMsg:
		if msg.accountID != m.accountID {
			return m, nil
		}
		m.pending = false
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			if msg.action == actDelete {
				m.mode = accountIdle
			}
			return m, nil
		}
		m.err = nil
		m.mode = accountIdle
		m.amount = ""
		switch msg.action {
		case actDeposit:
			m.status = "deposited " + domain.FormatCents(msg.cents)
		case actWithdraw:
			m.status = "withdrew " + domain.FormatCents(msg.cents)
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
		} else {
			m.status = "account ID copied"
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m accountModel) updateKeys(msg tea.KeyMsg) (accountModel, tea.Cmd) {
	key := msg.String()
	switch m.mode {
	case accountDeposit, accountWithdraw:
		switch key {
		case "enter":
			if m.pending || strings.TrimSpace(m.amount) == "" {
				return m, nil
			}
			m.pending = true
			m.err = nil
			m.status = ""
			return m, m.submitAmount()
		case "esc":
			if !m.pending {
				m.mode = accountIdle
				m.amount = ""
				m.err = nil
			}
		default:
			if !m.pending {
				m.amount = editRune(m.amount, key)
			}
		}
		return m, nil

	case accountDeleting:
		switch key {
		case "y":
			if m.pending {
				return m, nil
			}
			m.pending = true
			m.err = nil
			return m, m.deleteAccount()
		case "n", "esc":
			if !m.pending {
				m.mode = accountIdle
			}
		}
		return m, nil
	}

	switch key {
	case "d":
		m.mode = accountDeposit
		m.amount = ""
		m.err = nil
		m.status = ""
	case "w":
		m.mode = accountWithdraw
		m.amount = ""
		m.err = nil
		m.status = ""
	case "t":
		if len(m.user.OtherAccounts(m.accountID)) == 0 {
			m.err = domain.Errorf(domain.KindValidation, "tui.Transfer", "open another account to transfer to")
			return m, nil
		}
		return m, navigate(viewTransfer, m.accountID)
	case "x":
		m.mode = accountDeleting
		m.err = nil
		m.status = ""
	case "c":
		id := m.accountID
		return m, func() tea.Msg {
			return copiedMsg{err: clipboard.WriteAll(id)}
		}
	case "esc", "h":
		return m, navigate(viewHome, "")
	}
	return m, nil
}

func (m accountModel) helpKeys() string {
	switch m.mode {
	case accountDeposit, accountWithdraw:
		return helpBar("enter", "submit", "esc", "cancel")
	case accountDeleting:
		return helpBar("y", "close account", "n", "keep")
	}
	return helpBar("d", "deposit", "w", "withdraw", "t", "transfer", "x", "close", "c", "copy id", "esc", "back", "q", "quit")
}

func (m accountModel) View() string {
	a, ok := m.current()
	if !ok {
		return "\n  " + dimStyle.Render("account not found") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n  " + selectedStyle.Render(a.Name) + "  " + metaStyle.Render(a.ID) + "\n\n")
	b.WriteString("  " + metaStyle.Render("balance ") + renderBalance(a.Balance) + "\n\n")

	switch m.mode {
	case accountDeposit:
		b.WriteString(renderField("deposit $", m.amount, "0.00", true) + "\n")
	case accountWithdraw:
		b.WriteString(renderField("withdraw $", m.amount, "0.00", true) + "\n")
	case accountDeleting:
		b.WriteString("  " + errorStyle.Render("close "+a.Name+"? (y/n)") + "\n")
	}

	switch {
	case m.pending || (m.svc != nil && m.svc.Busy(a.ID)):
		b.WriteString("\n  " + dimStyle.Render("pending…"))
	case m.err != nil:
		b.WriteString("\n  " + errorLine(m.err))
	case m.status != "":
		b.WriteString("\n  " + successStyle.Render(m.status))
	}
	return b.String()
}
