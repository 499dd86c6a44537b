package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/walletwizard/wizard/internal/wallet"
)

// openAccountModel asks for the name of a new account.
type openAccountModel struct {
	svc     *wallet.Service
	name    string
	pending bool
	err     error
}

func newOpenAccountModel(svc *wallet.Service) openAccountModel {
	return openAccountModel{svc: svc}
}

func (m openAccountModel) submit() tea.Cmd {
	svc, name := m.svc, strings.TrimSpace(m.name)
	return func() tea.Msg {
		_, err := svc.CreateAccount(context.Background(), name)
		return actionDoneMsg{action: actCreate, name: name, err: err}
	}
}

func (m openAccountModel) Update(msg tea.Msg) (openAccountModel, tea.Cmd) {
	switch msg := msg.(type) {
	case actionDoneMsg:
		m.pending = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.name = ""
		return m, nil

	case tea.KeyMsg:
		if m.pending {
			return m, nil
		}
		switch key := msg.String(); key {
		case "enter":
			if strings.TrimSpace(m.name) == "" {
				return m, nil
			}
			m.pending = true
			m.err = nil
			return m, m.submit()
		case "esc":
			return m, navigate(viewHome, "")
		default:
			m.name = editRune(m.name, key)
		}
	}
	return m, nil
}

func (m openAccountModel) View() string {
	var b strings.Builder
	b.WriteString("\n  " + sectionHeaderStyle.Render("Open a new account") + "\n\n")
	b.WriteString(renderField("name", m.name, "e.g. Savings", true) + "\n")
	switch {
	case m.pending:
		b.WriteString("\n  " + dimStyle.Render("opening…"))
	case m.err != nil:
		b.WriteString("\n  " + errorLine(m.err))
	}
	return b.String()
}
