package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/walletwizard/wizard/internal/wallet"
	"github.com/walletwizard/wizard/pkg/domain"
)

const nameColWidth = 24

// homeModel lists the user's accounts with their balances.
type homeModel struct {
	svc    *wallet.Service
	user   *domain.User
	cursor int
	height int
}

func newHomeModel(svc *wallet.Service) homeModel {
	return homeModel{svc: svc}
}

func (m homeModel) accounts() []domain.Account {
	if m.user == nil {
		return nil
	}
	return m.user.Accounts
}

func (m *homeModel) clampCursor() {
	n := len(m.accounts())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *homeModel) selectLast() {
	m.cursor = len(m.accounts()) - 1
	m.clampCursor()
}

func (m homeModel) selected() (domain.Account, bool) {
	accts := m.accounts()
	if m.cursor < 0 || m.cursor >= len(accts) {
		return domain.Account{}, false
	}
	return accts[m.cursor], true
}

func (m homeModel) Update(msg tea.Msg) (homeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if m.cursor < len(m.accounts())-1 {
				m.cursor++
			}
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "enter", "l":
			if a, ok := m.selected(); ok {
				return m, navigate(viewAccount, a.ID)
			}
		case "t":
			if a, ok := m.selected(); ok && len(m.accounts()) > 1 {
				return m, navigate(viewTransfer, a.ID)
			}
		case "n":
			return m, navigate(viewOpenAccount, "")
		}
	}
	return m, nil
}

func (m homeModel) View() string {
	var b strings.Builder
	b.WriteString("\n  " + sectionHeaderStyle.Render("Accounts") + "\n\n")

	if m.user == nil {
		b.WriteString("  " + dimStyle.Render("loading accounts…") + "\n")
		return b.String()
	}
	accts := m.accounts()
	if len(accts) == 0 {
		b.WriteString("  " + dimStyle.Render("no accounts yet. press n to open one.") + "\n")
		return b.String()
	}

	start, end := m.window(len(accts))
	for i := start; i < end; i++ {
		a := accts[i]
		prefix := "  "
		name := normalStyle.Render(fmt.Sprintf("%-*s", nameColWidth, truncStr(a.Name, nameColWidth)))
		if i == m.cursor {
			prefix = accentStyle.Render("> ")
			name = selectedStyle.Render(fmt.Sprintf("%-*s", nameColWidth, truncStr(a.Name, nameColWidth)))
		}
		bal := renderBalance(a.Balance)
		line := prefix + name + " " + lipgloss.NewStyle().Width(14).Align(lipgloss.Right).Render(bal)
		if m.svc != nil && m.svc.Busy(a.ID) {
			line += "  " + dimStyle.Render("pending…")
		}
		b.WriteString(line + "\n")
	}

	if end-start < len(accts) {
		b.WriteString("  " + metaStyle.Render(fmt.Sprintf("%d–%d of %d", start+1, end, len(accts))) + "\n")
	}
	b.WriteString("\n  " + metaStyle.Render(fmt.Sprintf("%-*s", nameColWidth, "Total")) + " " +
		lipgloss.NewStyle().Width(14).Align(lipgloss.Right).Render(renderBalance(m.user.TotalBalance())) + "\n")
	return b.String()
}

// window returns the slice of rows that fits the body, keeping the cursor
// visible. Title, blank lines and the total take six rows.
func (m homeModel) window(n int) (start, end int) {
	rows := m.height - 6
	if rows <= 0 || n <= rows {
		return 0, n
	}
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	return start, start + rows
}
