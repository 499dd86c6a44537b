package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Shimmer animation for the header logo.
type shimmerTickMsg time.Time

func shimmerTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return shimmerTickMsg(t)
	})
}

// renderShimmerLogo renders the letters of "WALLETWIZARD" as a slow wave of
// gold light, deep amber (#5a3d0c) to bright gold (#facc15).
func renderShimmerLogo(frame int) string {
	const text = "WALLETWIZARD"
	n := len(text)
	t := float64(frame)

	var b strings.Builder
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)
		phase := t*0.1 - x*3.0 + math.Sin(t*0.023)*2.0

		v := math.Pow(math.Sin(phase)*0.5+0.5, 1.3)
		v = v*0.75 + math.Sin(t*0.035)*0.12 + 0.18
		v = math.Max(0.05, math.Min(1, v))

		r := clampByte(90 + v*(250-90))
		g := clampByte(61 + v*(204-61))
		bl := clampByte(12 + v*(21-12))

		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
		b.WriteString(s.Render(string(text[i])))
		if i == 5 {
			b.WriteString("   ")
		} else if i < n-1 {
			b.WriteString(" ")
		}
	}
	return b.String()
}

func clampByte(v float64) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#facc15"))

	// Balances and results
	positiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ade80"))

	negativeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f87171"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f87171"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ade80"))

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#8890a0")).
				Bold(true)

	inputPromptStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#facc15")).
				Bold(true)

	inputPlaceholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#505868")).
				Italic(true)
)

// balanceStyle colours a balance: green when positive, red when negative.
func balanceStyle(cents int64) lipgloss.Style {
	switch {
	case cents > 0:
		return positiveStyle
	case cents < 0:
		return negativeStyle
	default:
		return dimStyle
	}
}

// helpEntry renders a single "key label" pair for help bars.
func helpEntry(key, label string) string {
	return helpKeyStyle.Render(key) + " " + helpLabelStyle.Render(label)
}

// helpBar joins key/label pairs into a help line.
func helpBar(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, helpEntry(pairs[i], pairs[i+1]))
	}
	return " " + strings.Join(parts, "  ")
}

// helpView renders the help overlay.
func helpView() string {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#facc15")).
		Bold(true).
		Render("W A L L E T   W I Z A R D")

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sectionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)

	commands := []struct{ cmd, desc string }{
		{"wizard", "Open your wallet (interactive TUI)"},
		{"wizard accounts", "List accounts and balances"},
		{"wizard deposit", "Deposit into an account"},
		{"wizard withdraw", "Withdraw from an account"},
		{"wizard transfer", "Move money between accounts"},
		{"wizard logout", "Clear your session"},
		{"wizard version", "Show version"},
	}
	keys := []struct{ key, desc string }{
		{"enter", "open account"},
		{"d / w / t", "deposit, withdraw or transfer"},
		{"n", "open a new account"},
		{"c", "copy account ID"},
		{"s", "settings"},
		{"r", "refresh balances"},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s\n\n", title)
	fmt.Fprintf(&b, "  %s\n", sectionStyle.Render("Commands"))
	for _, c := range commands {
		fmt.Fprintf(&b, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", c.cmd)), descStyle.Render(c.desc))
	}
	fmt.Fprintf(&b, "\n  %s\n", sectionStyle.Render("Keys"))
	for _, k := range keys {
		fmt.Fprintf(&b, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", k.key)), descStyle.Render(k.desc))
	}
	return b.String()
}
