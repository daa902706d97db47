package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/schema-migrator/internal/catalog"
	"github.com/example/schema-migrator/internal/config"
	ledgersqlite "github.com/example/schema-migrator/internal/ledger/sqlite"
	"github.com/example/schema-migrator/internal/migrate"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, os.Args[1:]); err != nil {
		logger.Error("migrator failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("missing command")
	}
	command := args[0]
	target := ""
	if len(args) > 1 {
		target = args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	storeCfg := ledgersqlite.DefaultConfig(cfg.SQLiteDSN)
	storeCfg.BusyTimeout = cfg.BusyTimeout
	storeCfg.JournalMode = cfg.JournalMode

	store, err := ledgersqlite.Open(storeCfg)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close ledger store", "error", cerr)
		}
	}()

	if err := store.EnsureLedger(ctx); err != nil {
		return fmt.Errorf("ensure ledger table: %w", err)
	}

	scripts := catalog.NewDir(store.DB(), cfg.ScriptsDir)
	notifier := migrate.NotifierFunc(func(event migrate.Event) {
		attrs := []any{
			"event", string(event.Kind),
			"run_id", event.RunID,
			"direction", string(event.Direction),
			"executed", event.Executed,
			"duration", event.Duration,
		}
		if event.Err != nil {
			logger.Error("migration event", append(attrs, "error", event.Err)...)
			return
		}
		logger.Info("migration event", attrs...)
	})

	runner := migrate.NewRunnerWithLogger(store, scripts, notifier, nil, logger)
	runner.SetStepTimeout(cfg.StepTimeout)

	switch command {
	case "apply", "up":
		_, err := runner.MigrateTo(ctx, target)
		return err
	case "rollback", "down":
		_, err := runner.RollbackTo(ctx, target)
		return err
	case "status":
		status, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(status)
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printStatus(status migrate.Status) {
	if status.Current == "" {
		fmt.Println("current: (none applied)")
	} else {
		fmt.Printf("current: %s\n", status.Current)
	}
	fmt.Printf("applied: %d\n", len(status.Applied))
	for _, entry := range status.Applied {
		fmt.Printf("  %s (ran at %s)\n", entry.Name, entry.RanAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Printf("pending: %d\n", len(status.Pending))
	for _, name := range status.Pending {
		fmt.Printf("  %s\n", name)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: migrator <command> [target]

commands:
  apply [target]     apply pending migrations up to and including target
  rollback [target]  undo applied migrations down to but excluding target
  status             show applied and pending migrations

configuration is read from MIGRATOR_* environment variables.`)
}
