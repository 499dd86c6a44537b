package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/walletwizard/wizard/internal/wallet"
	"github.com/walletwizard/wizard/pkg/domain"
)

type transferStage int

const (
	transferPick transferStage = iota
	transferAmount
)

// transferModel picks a target account, then an amount.
type transferModel struct {
	svc     *wallet.Service
	user    *domain.User
	fromID  string
	toID    string
	cursor  int
	stage   transferStage
	amount  string
	pending bool
	err     error
}

func newTransferModel(svc *wallet.Service) transferModel {
	return transferModel{svc: svc}
}

// targets never includes the source account.
func (m transferModel) targets() []domain.Account {
	return m.user.OtherAccounts(m.fromID)
}

func (m transferModel) submit() tea.Cmd {
	svc, from, to, input := m.svc, m.fromID, m.toID, m.amount
	return func() tea.Msg {
		_, cents, err := svc.Transfer(context.Background(), from, to, input)
		return actionDoneMsg{action: actTransfer, accountID: from, cents: cents, err: err}
	}
}

func (m transferModel) Update(msg tea.Msg) (transferModel, tea.Cmd) {
	switch msg := msg.(type) {
	case actionDoneMsg:
		if msg.action != actTransfer || msg.accountID != m.fromID {
			return m, nil
		}
		m.pending = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.amount = ""
		m.stage = transferPick
		return m, nil

	case tea.KeyMsg:
		if m.pending {
			return m, nil
		}
		key := msg.String()
		if m.stage == transferAmount {
			switch key {
			case "enter":
				if strings.TrimSpace(m.amount) == "" {
					return m, nil
				}
				m.pending = true
				m.err = nil
				return m, m.submit()
			case "esc":
				m.stage = transferPick
				m.amount = ""
				m.err = nil
			default:
				m.amount = editRune(m.amount, key)
			}
			return m, nil
		}

		targets := m.targets()
		switch key {
		case "j", "down":
			if m.cursor < len(targets)-1 {
				m.cursor++
			}
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "enter", "l":
			if m.cursor < len(targets) {
				m.toID = targets[m.cursor].ID
				m.stage = transferAmount
				m.err = nil
			}
		case "esc", "h":
			return m, navigate(viewAccount, m.fromID)
		}
	}
	return m, nil
}

func (m transferModel) helpKeys() string {
	if m.stage == transferAmount {
		return helpBar("enter", "transfer", "esc", "back")
	}
	return helpBar("j/k", "nav", "enter", "choose", "esc", "back")
}

func (m transferModel) View() string {
	from, ok := m.user.Account(m.fromID)
	if !ok {
		return "\n  " + dimStyle.Render("account not found") + "\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s %s  %s\n\n",
		sectionHeaderStyle.Render("Transfer from"), selectedStyle.Render(from.Name), renderBalance(from.Balance))

	switch m.stage {
	case transferPick:
		targets := m.targets()
		if len(targets) == 0 {
			b.WriteString("  " + dimStyle.Render("no other accounts") + "\n")
		}
		for i, a := range targets {
			prefix := "  "
			name := normalStyle.Render(fmt.Sprintf("%-*s", nameColWidth, truncStr(a.Name, nameColWidth)))
			if i == m.cursor {
				prefix = accentStyle.Render("> ")
				name = selectedStyle.Render(fmt.Sprintf("%-*s", nameColWidth, truncStr(a.Name, nameColWidth)))
			}
			b.WriteString(prefix + name + " " + renderBalance(a.Balance) + "\n")
		}
	case transferAmount:
		to, _ := m.user.Account(m.toID)
		b.WriteString("  " + metaStyle.Render("to ") + selectedStyle.Render(to.Name) + "\n")
		b.WriteString(renderField("amount $", m.amount, "0.00", true) + "\n")
	}

	switch {
	case m.pending:
		b.WriteString("\n  " + dimStyle.Render("transferring…"))
	case m.err != nil:
		b.WriteString("\n  " + errorLine(m.err))
	}
	return b.String()
}
