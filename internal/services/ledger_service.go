package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"wenxuji/internal/amqp"
	"wenxuji/internal/core"
	"wenxuji/internal/intake"
	"wenxuji/internal/ledger"
	applog "wenxuji/internal/log"
)

// EventPublisher announces committed ledger changes.
type EventPublisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// LedgerService is the write path: intake, then the ledger, then an event.
type LedgerService struct {
	store     *ledger.Store
	intake    *intake.Adapter
	publisher EventPublisher
	logger    *slog.Logger
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *LedgerService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewLedgerService wires the write path. publisher may be nil.
func NewLedgerService(store *ledger.Store, adapter *intake.Adapter, publisher EventPublisher, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:     store,
		intake:    adapter,
		publisher: publisher,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(applog.FieldComponent, applog.ComponentAMQP)
	return s
}

// Created is the outcome of a successful create.
type Created struct {
	Transaction core.Transaction
	Duplicates  []intake.DuplicateHint
}

// Create normalizes manual input, appends it and publishes an event.
// Possible duplicates are reported but never block the append.
func (s *LedgerService) Create(ctx context.Context, in intake.ManualInput) (Created, error) {
	draft, err := s.intake.Manual(in)
	if err != nil {
		return Created{}, err
	}
	hints := intake.FindDuplicates(draft, s.store.Snapshot(), intake.DefaultSimilarity)

	tx, err := s.store.Append(ctx, s.intake.Accept(draft))
	if err != nil {
		return Created{}, fmt.Errorf("append transaction: %w", err)
	}

	s.publish(ctx, amqp.OpAppend, tx.ID)
	return Created{Transaction: tx, Duplicates: hints}, nil
}

// Delete removes id. Deleting an unknown id succeeds and publishes nothing.
func (s *LedgerService) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.store.Remove(ctx, id)
	if err != nil {
		return false, fmt.Errorf("remove transaction: %w", err)
	}
	if removed {
		s.publish(ctx, amqp.OpDelete, id)
	}
	return removed, nil
}

func (s *LedgerService) Snapshot() []core.Transaction {
	return s.store.Snapshot()
}

func (s *LedgerService) Registry() *core.Registry {
	return s.store.Registry()
}

func (s *LedgerService) Intake() *intake.Adapter {
	return s.intake
}

func (s *LedgerService) publish(ctx context.Context, op, id string) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "Event publisher not configured, skipping ledger event")
		return
	}
	snap := s.store.Snapshot()
	head := ""
	if len(snap) > 0 {
		head = snap[0].ID
	}
	// The mutation is committed; a client that went away must not stop the event.
	ctx = context.WithoutCancel(ctx)
	if err := s.publisher.PublishLedgerChanged(ctx, amqp.NewLedgerChangedMessage(op, id, len(snap), head)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			applog.FieldOperation, op,
			applog.FieldTransactionID, id,
			applog.FieldError, err)
	}
}

// Close releases the publisher if it holds a connection.
func (s *LedgerService) Close() error {
	var errs []error
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
