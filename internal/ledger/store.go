// Package ledger owns the transaction collection and its persisted form.
//
// The Store keeps records newest first. Every mutation re-serializes the
// whole collection and writes it to the KV slot before it becomes visible;
// a failed write leaves both memory and the slot unchanged.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"wenxuji/internal/core"
	applog "wenxuji/internal/log"
	"wenxuji/internal/storage"
)

// CorruptSuffix is appended to the slot key to back up unparsable data.
const CorruptSuffix = ".corrupt"

type Store struct {
	mu      sync.RWMutex
	kv      storage.KV
	key     string
	reg     *core.Registry
	records []core.Transaction
	logger  *slog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open creates a Store bound to key in kv and loads it. A missing or corrupt
// slot yields an empty ledger; only a failing KV is an error.
func Open(ctx context.Context, kv storage.KV, key string, reg *core.Registry, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, errors.New("ledger: nil kv")
	}
	if reg == nil {
		reg = core.DefaultRegistry()
	}
	s := &Store{kv: kv, key: key, reg: reg, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(applog.FieldComponent, applog.ComponentLedger)
	if _, err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load re-reads the slot and replaces the in-memory collection.
func (s *Store) Load(ctx context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		s.records = nil
		s.logger.InfoContext(ctx, "No persisted ledger, starting empty", applog.FieldKey, s.key)
		return s.copyLocked(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger slot: %w", err)
	}

	res, err := decode(data, s.reg)
	if errors.Is(err, ErrCorrupt) {
		s.logger.WarnContext(ctx, "Persisted ledger is corrupt, starting empty",
			applog.FieldKey, s.key,
			applog.FieldError, err)
		if berr := s.kv.Set(ctx, s.key+CorruptSuffix, data); berr != nil {
			s.logger.ErrorContext(ctx, "Failed to back up corrupt ledger", applog.FieldError, berr)
		}
		s.records = nil
		return s.copyLocked(), nil
	}
	if err != nil {
		return nil, err
	}

	for _, d := range res.Dropped {
		s.logger.WarnContext(ctx, "Dropped unusable ledger record",
			"index", d.Index,
			applog.FieldTransactionID, d.ID,
			"reason", d.Reason)
	}
	if res.Migrated > 0 {
		s.logger.InfoContext(ctx, "Normalized legacy ledger records", applog.FieldCount, res.Migrated)
	}
	s.records = res.Records
	s.logger.InfoContext(ctx, "Ledger loaded", applog.FieldOperation, applog.OpLoad, applog.FieldCount, len(s.records))
	return s.copyLocked(), nil
}

// Append validates t and inserts it at the head. CreatedAt is raised if
// needed so it is strictly greater than the current head's. The committed
// record is returned.
func (s *Store) Append(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(s.reg); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ID == t.ID {
			return core.Transaction{}, &core.ValidationError{Field: "id", Err: core.ErrDuplicateID}
		}
	}
	if len(s.records) > 0 && t.CreatedAt <= s.records[0].CreatedAt {
		t.CreatedAt = s.records[0].CreatedAt + 1
	}

	next := make([]core.Transaction, 0, len(s.records)+1)
	next = append(next, t)
	next = append(next, s.records...)
	if err := s.persistLocked(ctx, next); err != nil {
		return core.Transaction{}, err
	}
	s.records = next

	s.logger.InfoContext(ctx, "Transaction appended",
		applog.NewFields().
			WithTransaction(t.ID, t.Amount.String(), t.CategoryID, t.Type.String()).
			WithOperation(applog.OpAppend).
			ToSlice()...)
	return t, nil
}

// Remove deletes the record with id. An unknown id is a no-op and reports
// false without touching the slot.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, r := range s.records {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	removed := s.records[idx]
	next := make([]core.Transaction, 0, len(s.records)-1)
	next = append(next, s.records[:idx]...)
	next = append(next, s.records[idx+1:]...)
	if err := s.persistLocked(ctx, next); err != nil {
		return false, err
	}
	s.records = next

	s.logger.InfoContext(ctx, "Transaction removed",
		applog.NewFields().
			WithTransaction(removed.ID, removed.Amount.String(), removed.CategoryID, removed.Type.String()).
			WithOperation(applog.OpDelete).
			ToSlice()...)
	return true, nil
}

// Snapshot returns a copy of the records, newest first.
func (s *Store) Snapshot() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Get returns the record with id.
func (s *Store) Get(id string) (core.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return core.Transaction{}, false
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Registry returns the category registry the store validates against.
func (s *Store) Registry() *core.Registry {
	return s.reg
}

func (s *Store) persistLocked(ctx context.Context, records []core.Transaction) error {
	data, err := encode(records)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist ledger", applog.FieldKey, s.key, applog.FieldError, err)
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

func (s *Store) copyLocked() []core.Transaction {
	out := make([]core.Transaction, len(s.records))
	copy(out, s.records)
	return out
}
