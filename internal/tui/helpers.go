package tui

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/walletwizard/wizard/pkg/domain"
)

// truncStr truncates a string to maxLen runes, appending an ellipsis if needed.
func truncStr(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}

// formatExpiry renders how long a session token has left.
func formatExpiry(exp time.Time, now time.Time) string {
	d := exp.Sub(now)
	switch {
	case d <= 0:
		return "expired"
	case d < time.Hour:
		return fmt.Sprintf("expires in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("expires in %dh", int(d.Hours()))
	default:
		return fmt.Sprintf("expires in %dd", int(d.Hours()/24))
	}
}

// renderBalance formats cents as dollars and colours the result.
func renderBalance(cents int64) string {
	return balanceStyle(cents).Render(domain.FormatCents(cents))
}

// errorLine renders err for display under the control that caused it.
func errorLine(err error) string {
	if err == nil {
		return ""
	}
	return errorStyle.Render(domain.UserMessage(err))
}
