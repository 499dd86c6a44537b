package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/walletwizard/wizard/internal/auth"
	"github.com/walletwizard/wizard/internal/config"
	"github.com/walletwizard/wizard/internal/logger"
	"github.com/walletwizard/wizard/internal/session"
	"github.com/walletwizard/wizard/internal/tui"
	"github.com/walletwizard/wizard/internal/wallet"
	"github.com/walletwizard/wizard/pkg/client"
	"github.com/walletwizard/wizard/pkg/domain"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app is everything a command needs, built once from the environment.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  *session.Store
	flow   *auth.Flow
	svc    *wallet.Service
}

func setup() (*app, func(), error) {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	lg, closeLog, err := logger.Init(logger.Config{Level: cfg.LogLevel, Dev: cfg.LogDev, Dir: cfg.LogDir()})
	if err != nil {
		return nil, nil, err
	}

	c := client.New(cfg.APIURL, client.WithTimeout(cfg.HTTPTimeout), client.WithLogger(lg))
	store := session.New(session.NewFileStorage(cfg.SessionPath()), c,
		session.WithLogger(lg), session.WithTokenOverride(cfg.Token))
	if _, err := store.Load(); err != nil {
		closeLog()
		return nil, nil, err
	}
	lg.Debug("starting", zap.String("version", version), zap.String("api", cfg.APIURL))

	return &app{
		cfg:    cfg,
		logger: lg,
		store:  store,
		flow:   auth.NewFlow(c, store, cfg.Region, lg),
		svc:    wallet.NewService(c, store, lg),
	}, closeLog, nil
}

func run(args []string, out io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "--version", "version", "-v":
			fmt.Fprintln(out, "wizard "+version)
			return nil
		case "help", "--help", "-h":
			printHelp(out)
			return nil
		}
	}

	a, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	if len(args) == 0 {
		return a.runTUI()
	}

	cmd, ok := commands[args[0]]
	if !ok {
		printHelp(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
	if len(args)-1 < cmd.minArgs {
		return fmt.Errorf("usage: wizard %s", cmd.usage)
	}
	if cmd.needsLogin && !a.store.Snapshot().LoggedIn() {
		return errors.New("not logged in: run wizard to log in")
	}
	err = cmd.run(context.Background(), a, args[1:], out)
	if sessionRejected(err) {
		// Drop the token so the next launch starts at login.
		if clearErr := a.store.Clear(); clearErr != nil {
			a.logger.Warn("clear session failed", zap.Error(clearErr))
		}
		return errors.New("session expired: run wizard to log in again")
	}
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}
	return nil
}

// sessionRejected reports whether the ledger itself refused the token, as
// opposed to a local missing-token check.
func sessionRejected(err error) bool {
	return client.IsStatus(err, http.StatusUnauthorized) || client.IsStatus(err, http.StatusForbidden)
}

func (a *app) runTUI() error {
	p := tea.NewProgram(a.model(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

// model builds the root TUI model. It does no I/O; the first user fetch
// runs from Init, and a rejected token sends the app back to login.
func (a *app) model() tui.App {
	return tui.NewApp(a.flow, a.svc)
}
