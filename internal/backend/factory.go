package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wenxuji/internal/amqp"
	applog "wenxuji/internal/log"
	"wenxuji/internal/storage"
	"wenxuji/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(applog.FieldComponent, applog.ComponentBackend),
	}
}

// CreateBackend opens the KV slot for config.Type and, when configured,
// connects the event client. A broker that cannot be reached is logged and
// leaves events disabled.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Resources, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *Resources
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		result = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	if !config.Type.Durable() {
		f.logger.WarnContext(ctx, "Ledger backend is not durable, records are lost on restart", "backend", config.Type)
	}

	f.attachEvents(ctx, config, result)
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Resources, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &Resources{
		KV:      repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *Resources {
	return &Resources{KV: memory.New()}
}

func (f *DefaultFactory) attachEvents(ctx context.Context, config Config, result *Resources) {
	if !config.EventsEnabled() {
		f.logger.InfoContext(ctx, "AMQP not configured, ledger events disabled")
		return
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		return
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	result.Events = client
	kvCleanup := result.Cleanup
	result.Cleanup = func() error {
		var errs []error
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
		if kvCleanup != nil {
			if err := kvCleanup(); err != nil {
				errs = append(errs, fmt.Errorf("storage: %w", err))
			}
		}
		return errors.Join(errs...)
	}
}
