// Package cli provides common CLI initialization utilities shared by
// cmd/wenxuji, cmd/wenxuji-worker and cmd/wenxuji-export.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"wenxuji/internal/config"
	applog "wenxuji/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at level and installs it as the
// slog default.
func SetupLogger(level slog.Level, component string) *slog.Logger {
	logger := applog.NewWithLevel(level, component).Logger
	slog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads .env and the environment, sets up logging at
// the configured level and runs validate (cfg.Validate when nil). It exits
// the process on failure.
func LoadAndValidateConfig(component string, validate func(*config.Config) error) (*config.Config, *slog.Logger) {
	LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		SetupLogger(slog.LevelInfo, component).Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level, lerr := cfg.SlogLevel()
	logger := SetupLogger(level, component)
	if lerr != nil {
		logger.Warn("Falling back to info log level", "error", lerr)
	}

	if validate == nil {
		validate = (*config.Config).Validate
	}
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Run runs every task in its own goroutine until one fails or ctx ends.
// The first task error cancels the others; context cancellation itself is
// not reported as a failure.
func Run(ctx context.Context, logger *slog.Logger, tasks ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error { return task(gctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		logger.Error("Process stopped with error", "error", err)
	} else {
		logger.Info("Shutdown complete")
	}
	return err
}
