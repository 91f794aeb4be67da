package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/aleph70/reconcile-backend/internal/application/reconcile"
	"github.com/aleph70/reconcile-backend/internal/cli"
	"github.com/aleph70/reconcile-backend/internal/domain/model"
	"github.com/aleph70/reconcile-backend/internal/infrastructure/config"
	"github.com/aleph70/reconcile-backend/internal/infrastructure/logging"
	"github.com/aleph70/reconcile-backend/internal/infrastructure/storage"
	"github.com/aleph70/reconcile-backend/internal/infrastructure/tolerance"
)

func main() {
	_ = godotenv.Load()

	flags := cli.ParseReconcileFlags()

	cfg := config.LoadOrEnv()
	if flags.ConfigFile != "" {
		cfg = config.LoadOrEnvWithPath(flags.ConfigFile)
	}
	if flags.DBPath != "" {
		cfg.Storage.DatabasePath = flags.DBPath
	}

	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "reconcile")

	opts, err := flags.ToRunOptions(time.Now())
	if err != nil {
		logger.Error("Invalid flags", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage",
			slog.String("db", cfg.Storage.DatabasePath),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	tolerances := tolerance.NewStore(cfg.Tolerance.ConfigPath, logger)
	orchestrator := reconcile.NewOrchestrator(store, tolerances, cli.MatcherConfig(cfg), logger)

	cli.PrintHeader(opts.DryRun)
	cli.PrintConfiguration(opts, tolerances.Get())

	result, err := orchestrator.Run(context.Background(), opts)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			logger.Error("Invalid run window", slog.String("error", err.Error()))
		} else {
			logger.Error("Reconciliation failed", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}

	cli.PrintRunSummary(result, store)
}
