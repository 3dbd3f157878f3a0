// Package advice serves the spending commentary shown on the overview.
// It never fails: every problem degrades to a fixed fallback text.
package advice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"wenxuji/internal/cache"
	"wenxuji/internal/core"
	"wenxuji/internal/extract"
	applog "wenxuji/internal/log"
	"wenxuji/internal/storage"
)

const (
	FallbackEmpty  = "暂无建议"
	FallbackError  = "无法获取建议，请稍后再试。"
	FallbackNoData = "暂无足够数据进行分析。"
)

// DefaultMaxTransactions bounds how many recent records the model sees.
const DefaultMaxTransactions = 50

// ErrAdviceUnavailable is returned by Compute when the model call fails.
var ErrAdviceUnavailable = errors.New("advice unavailable")

// Source tells where a Result came from.
type Source string

const (
	SourceModel       Source = "model"
	SourceCache       Source = "cache"
	SourcePrecomputed Source = "precomputed"
	SourceFallback    Source = "fallback"
)

type Result struct {
	Text        string
	Source      Source
	Fingerprint string
}

// Precomputed is the advice slot written by the worker.
type Precomputed struct {
	Fingerprint string    `json:"fingerprint"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type Config struct {
	MaxTransactions int
	CacheTTL        time.Duration
	CacheSize       int
	// SlotKey is the KV key of the precomputed advice. Empty disables it.
	SlotKey string
}

type Service struct {
	advisor extract.Advisor
	kv      storage.KV
	cfg     Config
	cache   *cache.LRUCache[string]
	group   singleflight.Group
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates the advice service. advisor may be nil when no model is
// configured, in which case every request gets FallbackError. kv may be nil.
func NewService(advisor extract.Advisor, kv storage.KV, cfg Config, logger *slog.Logger) *Service {
	if cfg.MaxTransactions <= 0 {
		cfg.MaxTransactions = DefaultMaxTransactions
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		advisor: advisor,
		kv:      kv,
		cfg:     cfg,
		cache:   cache.NewLRUCache[string](cfg.CacheSize, cfg.CacheTTL),
		now:     time.Now,
		logger:  logger.With(applog.FieldComponent, applog.ComponentAdvice),
	}
}

// Cache exposes the result cache so it can be registered for cleanup.
func (s *Service) Cache() *cache.LRUCache[string] {
	return s.cache
}

// Fingerprint identifies a ledger state for caching: the record count and
// the id at the head. Any append or remove changes it.
func Fingerprint(records []core.Transaction) string {
	if len(records) == 0 {
		return "0"
	}
	return fmt.Sprintf("%d:%s", len(records), records[0].ID)
}

// Get returns advice for the snapshot, newest first. Concurrent calls for
// the same ledger state share one model call.
func (s *Service) Get(ctx context.Context, records []core.Transaction) Result {
	if len(records) == 0 {
		return Result{Text: FallbackNoData, Source: SourceFallback, Fingerprint: Fingerprint(records)}
	}
	fp := Fingerprint(records)

	if text, ok := s.cache.Get(fp); ok {
		return Result{Text: text, Source: SourceCache, Fingerprint: fp}
	}
	if text, ok := s.readSlot(ctx, fp); ok {
		s.cache.Set(fp, text)
		return Result{Text: text, Source: SourcePrecomputed, Fingerprint: fp}
	}

	// Detached so one caller leaving does not fail the others sharing the call.
	callCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(fp, func() (any, error) {
		return s.Compute(callCtx, records)
	})
	if err != nil {
		return Result{Text: FallbackError, Source: SourceFallback, Fingerprint: fp}
	}
	text := v.(string)
	s.cache.Set(fp, text)
	return Result{Text: text, Source: SourceModel, Fingerprint: fp}
}

// Compute calls the model for the most recent records. An empty answer
// becomes FallbackEmpty; a failed call is ErrAdviceUnavailable.
func (s *Service) Compute(ctx context.Context, records []core.Transaction) (string, error) {
	if len(records) == 0 {
		return FallbackNoData, nil
	}
	if s.advisor == nil {
		return "", fmt.Errorf("%w: no advisor configured", ErrAdviceUnavailable)
	}
	recent := core.Recent(records, s.cfg.MaxTransactions)
	text, err := s.advisor.SummarizeAdvice(ctx, recent)
	if err != nil {
		s.logger.ErrorContext(ctx, "Advice generation failed",
			applog.FieldOperation, applog.OpAdvise,
			applog.FieldCount, len(recent),
			applog.FieldError, err)
		return "", fmt.Errorf("%w: %v", ErrAdviceUnavailable, err)
	}
	if text == "" {
		return FallbackEmpty, nil
	}
	return text, nil
}

// Precompute generates advice for the snapshot and stores it in the advice
// slot, where Get will find it. An empty ledger clears the slot and the
// cache instead.
func (s *Service) Precompute(ctx context.Context, records []core.Transaction) (Precomputed, error) {
	if s.kv == nil || s.cfg.SlotKey == "" {
		return Precomputed{}, errors.New("advice slot is not configured")
	}
	if len(records) == 0 {
		return s.clear(ctx)
	}
	text, err := s.Compute(ctx, records)
	if err != nil {
		return Precomputed{}, err
	}
	p := Precomputed{Fingerprint: Fingerprint(records), Text: text, GeneratedAt: s.now().UTC()}
	b, err := json.Marshal(p)
	if err != nil {
		return Precomputed{}, fmt.Errorf("encode advice: %w", err)
	}
	if err := s.kv.Set(ctx, s.cfg.SlotKey, b); err != nil {
		return Precomputed{}, fmt.Errorf("store advice: %w", err)
	}
	s.cache.Set(p.Fingerprint, text)
	s.logger.InfoContext(ctx, "Advice precomputed", "fingerprint", p.Fingerprint)
	return p, nil
}

func (s *Service) clear(ctx context.Context) (Precomputed, error) {
	if err := s.kv.Delete(ctx, s.cfg.SlotKey); err != nil {
		return Precomputed{}, fmt.Errorf("clear advice: %w", err)
	}
	s.cache.Purge()
	s.logger.InfoContext(ctx, "Advice slot cleared for empty ledger")
	return Precomputed{Fingerprint: Fingerprint(nil), Text: FallbackNoData, GeneratedAt: s.now().UTC()}, nil
}

func (s *Service) readSlot(ctx context.Context, fp string) (string, bool) {
	if s.kv == nil || s.cfg.SlotKey == "" {
		return "", false
	}
	b, err := s.kv.Get(ctx, s.cfg.SlotKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "Failed to read advice slot", applog.FieldError, err)
		}
		return "", false
	}
	var p Precomputed
	if err := json.Unmarshal(b, &p); err != nil {
		s.logger.WarnContext(ctx, "Ignoring unreadable advice slot", applog.FieldError, err)
		return "", false
	}
	if p.Fingerprint != fp || p.Text == "" {
		return "", false
	}
	return p.Text, true
}
