// Package worker reacts to ledger events outside the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wenxuji/internal/advice"
	"wenxuji/internal/amqp"
	"wenxuji/internal/core"
	applog "wenxuji/internal/log"
)

// LedgerLoader re-reads the shared ledger slot.
type LedgerLoader interface {
	Load(ctx context.Context) ([]core.Transaction, error)
}

// Precomputer stores advice for a ledger state.
type Precomputer interface {
	Precompute(ctx context.Context, records []core.Transaction) (advice.Precomputed, error)
}

// AdviceWorker keeps the advice slot in step with the ledger so the server
// can answer advice requests without waiting on the model.
type AdviceWorker struct {
	ledger LedgerLoader
	advice Precomputer
	logger *slog.Logger
}

func NewAdviceWorker(ledger LedgerLoader, precomputer Precomputer, logger *slog.Logger) *AdviceWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdviceWorker{
		ledger: ledger,
		advice: precomputer,
		logger: logger.With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// HandleLedgerChanged reloads the ledger and precomputes advice for it.
// Events that describe an older state than the slot holds are skipped since
// a later event will follow. A failing model is logged and acknowledged;
// a failing slot read is returned so the event is redelivered.
func (w *AdviceWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		"op", msg.Op,
		applog.FieldTransactionID, msg.TransactionID,
		applog.FieldCount, msg.Count)

	records, err := w.ledger.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload ledger: %w", err)
	}

	current := advice.Fingerprint(records)
	if want := eventFingerprint(msg); want != current {
		w.logger.DebugContext(ctx, "Skipping stale ledger event",
			"event_fingerprint", want,
			"ledger_fingerprint", current)
		return nil
	}
	return w.precompute(ctx, records)
}

// StartupCheck precomputes advice for the ledger as it is now, covering
// events missed while the worker was down.
func (w *AdviceWorker) StartupCheck(ctx context.Context) error {
	records, err := w.ledger.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload ledger: %w", err)
	}
	w.logger.InfoContext(ctx, "Performing startup advice check", applog.FieldCount, len(records))
	return w.precompute(ctx, records)
}

func (w *AdviceWorker) precompute(ctx context.Context, records []core.Transaction) error {
	p, err := w.advice.Precompute(ctx, records)
	if errors.Is(err, advice.ErrAdviceUnavailable) {
		// the server falls back to a live call
		w.logger.WarnContext(ctx, "Advice unavailable, not precomputed", applog.FieldError, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("precompute advice: %w", err)
	}
	w.logger.InfoContext(ctx, "Advice slot updated",
		"fingerprint", p.Fingerprint,
		applog.FieldOperation, applog.OpAdvise)
	return nil
}

func eventFingerprint(msg *amqp.LedgerChangedMessage) string {
	if msg.Count == 0 {
		return "0"
	}
	return fmt.Sprintf("%d:%s", msg.Count, msg.HeadID)
}
