package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/walletwizard/wizard/internal/auth"
)

type loginStage int

const (
	stagePhone loginStage = iota
	stageCode
)

const codeLen = 6

type codeSentMsg struct {
	resend bool
	err    error
}

type verifiedMsg struct{ err error }

type loginModel struct {
	flow    *auth.Flow
	stage   loginStage
	phone   string
	code    string
	pending string // label shown while a request runs
	status  string
	err     error
}

func newLoginModel(flow *auth.Flow) loginModel {
	m := loginModel{flow: flow}
	if flow != nil && flow.State() == auth.AwaitingCode {
		m.stage = stageCode
	}
	return m
}

func (m loginModel) sendCode(resend bool) tea.Cmd {
	flow, raw := m.flow, m.phone
	return func() tea.Msg {
		var err error
		if resend {
			err = flow.Resend(context.Background())
		} else {
			err = flow.SendCode(context.Background(), raw)
		}
		return codeSentMsg{resend: resend, err: err}
	}
}

func (m loginModel) verify() tea.Cmd {
	flow, code := m.flow, m.code
	return func() tea.Msg {
		return verifiedMsg{err: flow.Verify(context.Background(), code)}
	}
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case codeSentMsg:
		m.pending = ""
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.stage = stageCode
		m.code = ""
		if msg.resend {
			m.status = "new code sent to " + m.flow.Phone()
		} else {
			m.status = "code sent to " + m.flow.Phone()
		}
		return m, nil

	case verifiedMsg:
		m.pending = ""
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			m.code = ""
		}
		return m, nil

	case tea.KeyMsg:
		if m.pending != "" {
			return m, nil
		}
		if m.stage == stageCode {
			return m.updateCode(msg)
		}
		return m.updatePhone(msg)
	}
	return m, nil
}

func (m loginModel) updatePhone(msg tea.KeyMsg) (loginModel, tea.Cmd) {
	switch key := msg.String(); key {
	case "enter":
		if strings.TrimSpace(m.phone) == "" {
			return m, nil
		}
		m.pending = "sending code…"
		m.err = nil
		m.status = ""
		return m, m.sendCode(false)
	case "esc":
		return m, tea.Quit
	default:
		m.phone = editRune(m.phone, key)
	}
	return m, nil
}

func (m loginModel) updateCode(msg tea.KeyMsg) (loginModel, tea.Cmd) {
	switch key := msg.String(); key {
	case "enter":
		if len(m.code) != codeLen {
			return m, nil
		}
		m.pending = "verifying…"
		m.err = nil
		m.status = ""
		return m, m.verify()
	case "ctrl+r":
		m.pending = "sending a new code…"
		m.err = nil
		m.status = ""
		return m, m.sendCode(true)
	case "esc":
		m.flow.Cancel()
		m.stage = stagePhone
		m.code = ""
		m.err = nil
		m.status = ""
	case "backspace":
		m.code = editRune(m.code, key)
	default:
		if len(key) == 1 && key[0] >= '0' && key[0] <= '9' && len(m.code) < codeLen {
			m.code += key
		}
	}
	return m, nil
}

func (m loginModel) helpKeys() string {
	if m.stage == stageCode {
		return helpBar("enter", "verify", "ctrl+r", "resend", "esc", "change number", "ctrl+c", "quit")
	}
	return helpBar("enter", "send code", "esc", "quit")
}

func (m loginModel) View() string {
	var b strings.Builder
	b.WriteString("\n  " + sectionHeaderStyle.Render("Log in with your phone number") + "\n\n")
	switch m.stage {
	case stagePhone:
		b.WriteString(renderField("phone", m.phone, "(669) 251-4001", true) + "\n")
	case stageCode:
		b.WriteString("  " + metaStyle.Render("phone ") + dimStyle.Render(m.flow.Phone()) + "\n")
		b.WriteString(renderField("code ", m.code, "6-digit code", true) + "\n")
	}
	b.WriteString("\n")
	switch {
	case m.pending != "":
		b.WriteString("  " + dimStyle.Render(m.pending))
	case m.err != nil:
		b.WriteString("  " + errorLine(m.err))
	case m.status != "":
		b.WriteString("  " + successStyle.Render(m.status))
	}
	return b.String()
}
