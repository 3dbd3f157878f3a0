package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"wenxuji/internal/advice"
	"wenxuji/internal/backend"
	"wenxuji/internal/cli"
	"wenxuji/internal/config"
	"wenxuji/internal/core"
	"wenxuji/internal/extract"
	"wenxuji/internal/format"
	apphttp "wenxuji/internal/http"
	"wenxuji/internal/intake"
	"wenxuji/internal/ledger"
	applog "wenxuji/internal/log"
	"wenxuji/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp, nil)
	ctx, stop := cli.SignalContext()
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		return err
	}
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	reg := core.DefaultRegistry()
	store, err := ledger.Open(ctx, res.KV, cfg.LedgerKey, reg, ledger.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to load ledger", "error", err, applog.FieldKey, cfg.LedgerKey)
		return err
	}

	var publisher services.EventPublisher
	if res.Events != nil {
		publisher = res.Events
	}
	svc := services.NewLedgerService(store, intake.New(reg), publisher, services.WithLogger(logger))

	var (
		extractor extract.Extractor
		advisor   extract.Advisor
	)
	if cfg.AIEnabled() {
		g, err := extract.NewGemini(ctx, extract.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.AITimeout,
		}, reg, logger)
		if err != nil {
			logger.Error("Failed to initialize Gemini client", "error", err)
			return err
		}
		extractor, advisor = g, g
		logger.Info("AI extraction enabled", applog.FieldModel, cfg.GeminiModel)
	} else {
		logger.Warn("GEMINI_API_KEY not set, extraction disabled and advice falls back")
	}

	adviceSvc := advice.NewService(advisor, res.KV, advice.Config{
		MaxTransactions: cfg.AdviceMaxTransactions,
		CacheTTL:        cfg.AdviceCacheTTL,
		SlotKey:         cfg.AdviceKey,
	}, logger)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:             svc,
		Extractor:          extractor,
		Advice:             adviceSvc,
		Formatter:          format.New(cfg.CurrencySymbol),
		Logger:             logger,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", "error", err)
		return err
	}

	logger.Info("Starting wenxuji server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", cfg.EventsEnabled(),
		applog.FieldCount, store.Len())

	return cli.Run(ctx, logger, func(ctx context.Context) error {
		return srv.Run(ctx, shutdownTimeout)
	})
}
