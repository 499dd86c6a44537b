package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/walletwizard/wizard/pkg/domain"
)

type command struct {
	usage      string
	minArgs    int
	needsLogin bool
	run        func(ctx context.Context, a *app, args []string, out io.Writer) error
}

var commands = map[string]command{
	"logout":        {usage: "logout", run: runLogout},
	"whoami":        {usage: "whoami", needsLogin: true, run: runWhoami},
	"accounts":      {usage: "accounts", needsLogin: true, run: runAccounts},
	"deposit":       {usage: "deposit <account> <amount>", minArgs: 2, needsLogin: true, run: runDeposit},
	"withdraw":      {usage: "withdraw <account> <amount>", minArgs: 2, needsLogin: true, run: runWithdraw},
	"transfer":      {usage: "transfer <from> <to> <amount>", minArgs: 3, needsLogin: true, run: runTransfer},
	"open-account":  {usage: "open-account <name>", minArgs: 1, needsLogin: true, run: runOpenAccount},
	"close-account": {usage: "close-account <account>", minArgs: 1, needsLogin: true, run: runCloseAccount},
	"rename":        {usage: "rename <name>", minArgs: 1, needsLogin: true, run: runRename},
}

func runLogout(_ context.Context, a *app, _ []string, out io.Writer) error {
	if a.store.Token() == "" {
		fmt.Fprintln(out, "Already logged out.")
		return nil
	}
	if err := a.store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Logged out.")
	return nil
}

func runWhoami(ctx context.Context, a *app, _ []string, out io.Writer) error {
	u, err := a.svc.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%s)\n", u.DisplayName(), u.E164PhoneNumber)
	return nil
}

func runAccounts(ctx context.Context, a *app, _ []string, out io.Writer) error {
	u, err := a.svc.Refresh(ctx)
	if err != nil {
		return err
	}
	printAccounts(out, u)
	return nil
}

// resolve refreshes the user and finds the account named or identified by ref.
func resolve(ctx context.Context, a *app, ref string) (domain.Account, error) {
	u, err := a.svc.Refresh(ctx)
	if err != nil {
		return domain.Account{}, err
	}
	acct, ok := u.FindAccount(ref)
	if !ok {
		return domain.Account{}, domain.Errorf(domain.KindNotFound, "wizard.resolve", "no account named %q", ref)
	}
	return acct, nil
}

func runDeposit(ctx context.Context, a *app, args []string, out io.Writer) error {
	acct, err := resolve(ctx, a, args[0])
	if err != nil {
		return err
	}
	u, _, err := a.svc.Deposit(ctx, acct.ID, args[1])
	if err != nil {
		return err
	}
	return printBalance(out, u, acct.ID)
}

func runWithdraw(ctx context.Context, a *app, args []string, out io.Writer) error {
	acct, err := resolve(ctx, a, args[0])
	if err != nil {
		return err
	}
	u, _, err := a.svc.Withdraw(ctx, acct.ID, args[1])
	if err != nil {
		return err
	}
	return printBalance(out, u, acct.ID)
}

func runTransfer(ctx context.Context, a *app, args []string, out io.Writer) error {
	from, err := resolve(ctx, a, args[0])
	if err != nil {
		return err
	}
	to, err := resolve(ctx, a, args[1])
	if err != nil {
		return err
	}
	u, _, err := a.svc.Transfer(ctx, from.ID, to.ID, args[2])
	if err != nil {
		return err
	}
	if err := printBalance(out, u, from.ID); err != nil {
		return err
	}
	return printBalance(out, u, to.ID)
}

func runOpenAccount(ctx context.Context, a *app, args []string, out io.Writer) error {
	name := strings.Join(args, " ")
	u, err := a.svc.CreateAccount(ctx, name)
	if err != nil {
		return err
	}
	printAccounts(out, u)
	return nil
}

func runCloseAccount(ctx context.Context, a *app, args []string, out io.Writer) error {
	acct, err := resolve(ctx, a, strings.Join(args, " "))
	if err != nil {
		return err
	}
	u, err := a.svc.DeleteAccount(ctx, acct.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Closed %s.\n", acct.Name)
	printAccounts(out, u)
	return nil
}

func runRename(ctx context.Context, a *app, args []string, out io.Writer) error {
	u, err := a.svc.Rename(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Name set to %s.\n", u.DisplayName())
	return nil
}
