// Package main is the entry point for the forum server.
//
// main stays minimal:
//  1. Load .env (if present) and read configuration
//  2. Create the logger
//  3. Create and start the server
//
// All actual logic lives in internal/.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sakif/forum/internal/config"
	"github.com/sakif/forum/internal/server"
)

func main() {
	// A missing .env is normal in production; real env vars win over it.
	_ = godotenv.Load()

	cfg, cfgErr := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	if cfgErr != nil {
		logger.Error("invalid configuration", slog.String("error", cfgErr.Error()))
		os.Exit(1)
	}

	// os.MkdirAll creates the data directory if needed (like `mkdir -p`).
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, revoked tokens are kept in memory and lost on restart")
	}
	if !cfg.GitHubEnabled() {
		logger.Info("GitHub sign-in disabled (GITHUB_CLIENT_ID / GITHUB_CLIENT_SECRET not set)")
	}

	srv, err := server.New(cfg, logger, server.Options{})
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
