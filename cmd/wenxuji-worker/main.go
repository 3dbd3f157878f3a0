package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"wenxuji/internal/advice"
	"wenxuji/internal/backend"
	"wenxuji/internal/cli"
	"wenxuji/internal/config"
	"wenxuji/internal/core"
	"wenxuji/internal/extract"
	"wenxuji/internal/ledger"
	applog "wenxuji/internal/log"
	"wenxuji/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker, (*config.Config).ValidateWorker)
	ctx, stop := cli.SignalContext()
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Starting wenxuji-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		return err
	}
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}
	if res.Events == nil {
		err := errors.New("AMQP broker unreachable")
		logger.Error("Worker cannot run without events", "error", err)
		return err
	}

	reg := core.DefaultRegistry()
	store, err := ledger.Open(ctx, res.KV, cfg.LedgerKey, reg, ledger.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to load ledger", "error", err, applog.FieldKey, cfg.LedgerKey)
		return err
	}

	gemini, err := extract.NewGemini(ctx, extract.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.AITimeout,
	}, reg, logger)
	if err != nil {
		logger.Error("Failed to initialize Gemini client", "error", err)
		return err
	}

	adviceSvc := advice.NewService(gemini, res.KV, advice.Config{
		MaxTransactions: cfg.AdviceMaxTransactions,
		CacheTTL:        cfg.AdviceCacheTTL,
		SlotKey:         cfg.AdviceKey,
	}, logger)
	w := worker.NewAdviceWorker(store, adviceSvc, logger)

	// A failed startup check is retried by the next event.
	if err := w.StartupCheck(ctx); err != nil {
		logger.Error("Startup advice check failed", "error", err)
	}

	return cli.Run(ctx, logger, func(ctx context.Context) error {
		return res.Events.ConsumeLedgerChanged(ctx, w.HandleLedgerChanged)
	})
}
