package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/walletwizard/wizard/internal/session"
	"github.com/walletwizard/wizard/internal/wallet"
	"github.com/walletwizard/wizard/pkg/domain"
)

type settingsMode int

const (
	settingsIdle settingsMode = iota
	settingsRename
	settingsLogout // logout confirmation
)

type settingsModel struct {
	svc     *wallet.Service
	user    *domain.User
	profile session.Profile
	token   string
	mode    settingsMode
	name    string
	pending bool
	status  string
	err     error
}

func newSettingsModel(svc *wallet.Service) settingsModel {
	return settingsModel{svc: svc}
}

func (m settingsModel) rename() tea.Cmd {
	svc, name := m.svc, strings.TrimSpace(m.name)
	return func() tea.Msg {
		_, err := svc.Rename(context.Background(), name)
		return actionDoneMsg{action: actRename, name: name, err: err}
	}
}

func (m settingsModel) Update(msg tea.Msg) (settingsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case actionDoneMsg:
		m.pending = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.mode = settingsIdle
		m.name = ""
		m.status = "name updated"
		return m, nil

	case tea.KeyMsg:
		if m.pending {
			return m, nil
		}
		key := msg.String()
		switch m.mode {
		case settingsRename:
			switch key {
			case "enter":
				if strings.TrimSpace(m.name) == "" {
					return m, nil
				}
				m.pending = true
				m.err = nil
				return m, m.rename()
			case "esc":
				m.mode = settingsIdle
				m.name = ""
				m.err = nil
			default:
				m.name = editRune(m.name, key)
			}
			return m, nil

		case settingsLogout:
			switch key {
			case "y":
				return m, func() tea.Msg { return logoutRequestMsg{} }
			case "n", "esc":
				m.mode = settingsIdle
			}
			return m, nil
		}

		switch key {
		case "e":
			m.mode = settingsRename
			m.name = m.user.NameOrEmpty()
			m.status = ""
			m.err = nil
		case "L":
			m.mode = settingsLogout
			m.status = ""
		case "esc", "h":
			return m, navigate(viewHome, "")
		}
	}
	return m, nil
}

// logoutRequestMsg asks the App to clear the session.
type logoutRequestMsg struct{}

func (m settingsModel) helpKeys() string {
	switch m.mode {
	case settingsRename:
		return helpBar("enter", "save", "esc", "cancel")
	case settingsLogout:
		return helpBar("y", "log out", "n", "stay")
	}
	return helpBar("e", "edit name", "L", "log out", "esc", "back", "q", "quit")
}

func (m settingsModel) View(now time.Time) string {
	phone := m.profile.Phone
	name := m.profile.Name
	if m.user != nil {
		phone = m.user.E164PhoneNumber
		name = m.user.NameOrEmpty()
	}
	if name == "" {
		name = "not set"
	}

	var b strings.Builder
	b.WriteString("\n  " + sectionHeaderStyle.Render("Settings") + "\n\n")
	b.WriteString("  " + metaStyle.Render("phone    ") + normalStyle.Render(phone) + "\n")
	if m.mode == settingsRename {
		b.WriteString(renderField("name  ", m.name, "your name", true) + "\n")
	} else {
		b.WriteString("  " + metaStyle.Render("name     ") + normalStyle.Render(name) + "\n")
	}
	expiry := "active"
	if exp, ok := domain.TokenExpiry(m.token); ok {
		expiry = formatExpiry(exp, now)
	}
	b.WriteString("  " + metaStyle.Render("session  ") + dimStyle.Render(expiry) + "\n")

	if m.mode == settingsLogout {
		b.WriteString("\n  " + errorStyle.Render("log out of this device? (y/n)"))
	}
	switch {
	case m.pending:
		b.WriteString("\n  " + dimStyle.Render("saving…"))
	case m.err != nil:
		b.WriteString("\n  " + errorLine(m.err))
	case m.status != "":
		b.WriteString("\n  " + successStyle.Render(m.status))
	}
	return b.String()
}
