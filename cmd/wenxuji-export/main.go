// Command wenxuji-export overwrites a Google Sheet with the ledger, one row
// per record in list view order. It is a one-way export.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"wenxuji/internal/backend"
	"wenxuji/internal/cli"
	"wenxuji/internal/config"
	"wenxuji/internal/core"
	"wenxuji/internal/ledger"
	applog "wenxuji/internal/log"
	"wenxuji/internal/sheets"
	gsheet "wenxuji/internal/sheets/google"
)

const exportTimeout = 2 * time.Minute

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentSheets, (*config.Config).ValidateExport)
	ctx, stop := cli.SignalContext()
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		return err
	}
	// Export reads the ledger only; events are not needed.
	backendCfg.AMQPURL = ""
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

	reg := core.DefaultRegistry()
	store, err := ledger.Open(ctx, res.KV, cfg.LedgerKey, reg, ledger.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to load ledger", "error", err, applog.FieldKey, cfg.LedgerKey)
		return err
	}

	exporter, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		return err
	}

	rows := sheets.Rows(store.Snapshot(), reg)
	ref, err := exporter.Export(ctx, rows)
	if err != nil {
		logger.Error("Export failed", "error", err, applog.FieldOperation, applog.OpExport)
		return err
	}
	logger.Info("Ledger exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldCount, len(rows),
		"range", ref)
	return nil
}
