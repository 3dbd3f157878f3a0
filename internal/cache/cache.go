package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

var _ Cache[string] = (*LRUCache[string])(nil)

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically cleans the registered caches until its context ends.
type Manager struct {
	caches []Cleaner
	logger *slog.Logger
	done   chan struct{}
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Register adds a cache to the manager. Call before Start.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// Start runs cleanup every interval in a goroutine. Wait blocks until it
// has exited after ctx is cancelled.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := m.CleanAll(); n > 0 {
					m.logger.Debug("Expired cache entries removed", "component", "cache", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// CleanAll runs one cleanup pass and returns how many entries were dropped.
func (m *Manager) CleanAll() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

func (m *Manager) Wait() {
	if m.done != nil {
		<-m.done
	}
}
