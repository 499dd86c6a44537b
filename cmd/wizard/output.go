package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/walletwizard/wizard/pkg/domain"
)

func printHelp(out io.Writer) {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#facc15")).
		Bold(true).
		Render("W A L L E T   W I Z A R D")

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	usage := []struct{ cmd, desc string }{
		{"wizard", "Open your wallet (interactive TUI, logs you in)"},
		{"wizard whoami", "Show who is logged in"},
		{"wizard accounts", "List accounts and balances"},
		{"wizard deposit <account> <amount>", "Deposit dollars into an account"},
		{"wizard withdraw <account> <amount>", "Withdraw dollars from an account"},
		{"wizard transfer <from> <to> <amount>", "Move dollars between your accounts"},
		{"wizard open-account <name>", "Open a new account"},
		{"wizard close-account <account>", "Close an account"},
		{"wizard rename <name>", "Change your display name"},
		{"wizard logout", "Clear your session"},
		{"wizard version", "Show version"},
		{"wizard help", "You are here"},
	}

	fmt.Fprintf(out, "\n  %s\n\n  Commands:\n", title)
	for _, c := range usage {
		fmt.Fprintf(out, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-38s", c.cmd)), descStyle.Render(c.desc))
	}
	hint := descStyle.Render("Accounts can be given by name or ID. Amounts are dollars, e.g. 12.50.")
	fmt.Fprintf(out, "\n  %s\n\n", hint)
}

func printAccounts(out io.Writer, u *domain.User) {
	if len(u.Accounts) == 0 {
		fmt.Fprintln(out, "No accounts yet. Open one with: wizard open-account <name>")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, a := range u.Accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", a.Name, a.BalanceString(), a.ID)
	}
	fmt.Fprintf(tw, "%s\t%s\t\t\n", "Total", domain.FormatCents(u.TotalBalance()))
	tw.Flush() //nolint:errcheck
}

func printBalance(out io.Writer, u *domain.User, accountID string) error {
	a, ok := u.Account(accountID)
	if !ok {
		return domain.Errorf(domain.KindNotFound, "wizard.printBalance", "account %s is gone", accountID)
	}
	fmt.Fprintf(out, "%s: %s\n", a.Name, a.BalanceString())
	return nil
}
