package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goliatone/go-accounts/adapters/gologger"
	sqlstore "github.com/goliatone/go-accounts/store/sql"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/spf13/pflag"
)

const databaseURLEnv = "ACCOUNTS_DATABASE_URL"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "accounts-migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var databaseURL string
	var timeout time.Duration
	var debug bool

	flagSet := pflag.NewFlagSet("accounts-migrate", pflag.ContinueOnError)
	flagSet.StringVar(&databaseURL, "database-url", os.Getenv(databaseURLEnv), "database url (defaults to $"+databaseURLEnv+")")
	flagSet.DurationVar(&timeout, "timeout", 2*time.Minute, "upper bound for the whole migration run")
	flagSet.BoolVar(&debug, "debug", false, "log SQL statements and debug output")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}
	if strings.TrimSpace(databaseURL) == "" {
		return fmt.Errorf("%s or --database-url is required", databaseURLEnv)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	_, logger := gologger.Resolve(
		"accounts.migrate",
		gologger.NewSlogProvider(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))),
		nil,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return migrate(ctx, logger, databaseURL, debug)
}

func migrate(ctx context.Context, logger glog.Logger, databaseURL string, debug bool) error {
	cfg := sqlstore.ConfigFromURL(databaseURL)
	cfg.Debug = debug

	startedAt := time.Now()
	client, err := sqlstore.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close database failed", "error", closeErr)
		}
	}()

	logger.Info("applying migrations", "driver", cfg.Driver)
	if err := client.Migrate(ctx); err != nil {
		logger.Error("migrations failed", "driver", cfg.Driver, "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations applied", "driver", cfg.Driver, "duration", time.Since(startedAt))
	return nil
}
