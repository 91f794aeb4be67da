package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/aleph70/reconcile-backend/internal/cli"
	"github.com/aleph70/reconcile-backend/internal/infrastructure/config"
)

func main() {
	_ = godotenv.Load()

	flags := cli.ParseServeFlags()
	cfg := config.LoadOrEnv()

	if err := cli.RunServe(cfg, flags); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
