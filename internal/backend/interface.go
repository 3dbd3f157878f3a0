package backend

import (
	"context"

	"wenxuji/internal/amqp"
	"wenxuji/internal/storage"
)

// CleanupFunc releases what CreateBackend opened.
type CleanupFunc func() error

// Resources bundles the ledger slot with the optional event client.
type Resources struct {
	KV storage.KV
	// Events is nil when events are disabled or the broker was unreachable.
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Factory opens the storage and event resources a binary runs on.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Resources, error)
}

// Config selects where the ledger slot lives and whether ledger-changed
// events are published.
type Config struct {
	Type         BackendType
	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// EventsEnabled reports whether a broker URL was configured.
func (c Config) EventsEnabled() bool { return c.AMQPURL != "" }

// BackendType names a KV implementation.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// Durable reports whether the ledger survives a restart on this backend.
func (bt BackendType) Durable() bool {
	return bt == SQLiteBackend
}

func (bt BackendType) IsValid() bool {
	for _, t := range GetBackendTypes() {
		if bt == t {
			return true
		}
	}
	return false
}
