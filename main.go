package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/lcalzada-xor/phishguard/internal/browser"
	"github.com/lcalzada-xor/phishguard/internal/checker"
	"github.com/lcalzada-xor/phishguard/internal/classify"
	"github.com/lcalzada-xor/phishguard/internal/config"
	"github.com/lcalzada-xor/phishguard/internal/host"
	"github.com/lcalzada-xor/phishguard/internal/logger"
	"github.com/lcalzada-xor/phishguard/internal/network"
	"github.com/lcalzada-xor/phishguard/internal/output"
	"github.com/lcalzada-xor/phishguard/internal/present"
	"github.com/lcalzada-xor/phishguard/internal/scan"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg, err := config.ParseFlags()
	if err != nil {
		exitWithError(err)
	}

	log := logger.NewConsole(cfg.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := classify.NewFromConfig(cfg, log.With().Str("component", "classify").Logger())
	if err != nil {
		exitWithError(err)
	}

	session, err := browser.NewSession(ctx, browser.Options{
		Remote:         cfg.Remote,
		Headless:       cfg.Headless,
		Insecure:       cfg.Insecure,
		DismissDialogs: cfg.Headless,
		Logger:         log.With().Str("component", "browser").Logger(),
	})
	if err != nil {
		exitWithError(err)
	}
	defer session.Close()

	log.Info().Str("mode", cfg.Mode.String()).Str("endpoint", client.Endpoint()).Msg("phishguard started")

	code := 0
	switch cfg.Mode {
	case config.ModeAuto:
		err = runAuto(ctx, cfg, client, session, log)
	case config.ModeCheck:
		panel := output.NewTerminal(os.Stdout, logger.IsTerminal(os.Stdout))
		code = runCheck(ctx, client, session, panel, log)
	default:
		err = runPopup(ctx, client, session, log)
	}

	if err != nil {
		log.Error().Err(err).Msg("phishguard stopped")
		code = 1
	}

	session.Close()
	stop()
	os.Exit(code)
}

type pageSource interface {
	PageLoads(ctx context.Context) (<-chan host.Page, error)
}

// runAuto scans every page load until ctx is done.
func runAuto(ctx context.Context, cfg config.Config, client host.Classifier, pages pageSource, log zerolog.Logger) error {
	rules, err := network.CompileRules(cfg.Match)
	if err != nil {
		return err
	}

	events, err := pages.PageLoads(ctx)
	if err != nil {
		return err
	}

	scanner := scan.New(client,
		scan.WithRules(rules),
		scan.WithLogger(log.With().Str("component", "auto").Logger()),
	)
	log.Info().Strs("match", rules.Patterns()).Msg("watching page loads")
	scanner.Watch(ctx, events, nil)
	return nil
}

// runCheck performs one manual check and returns the process exit code.
func runCheck(ctx context.Context, client host.Classifier, tabs host.TabQuerier, panel host.Panel, log zerolog.Logger) int {
	c := checker.New(client, tabs, panel, checker.WithLogger(log.With().Str("component", "check").Logger()))
	view, _ := c.Activate(ctx)
	if view.State == present.StateError {
		return 1
	}
	return 0
}

// runPopup opens the popup panel and serves button presses until the popup
// is closed or ctx is done.
func runPopup(ctx context.Context, client host.Classifier, session *browser.Session, log zerolog.Logger) error {
	popup, err := session.OpenPopup(ctx)
	if err != nil {
		return err
	}
	defer popup.Close()

	c := checker.New(client, session, popup, checker.WithLogger(log.With().Str("component", "popup").Logger()))
	if err := c.Bind(popup); err != nil {
		return err
	}

	log.Info().Msg("popup ready")
	select {
	case <-ctx.Done():
	case <-popup.Closed():
		log.Info().Msg("popup closed")
	}
	return nil
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "Usage: %s [Options] use -h for help\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
