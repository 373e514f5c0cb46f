package backend

import (
	"context"
	"fmt"

	"finbot/internal/amqp"
	"finbot/internal/log"
	"finbot/internal/storage"
	"finbot/internal/storage/jsonfile"
	"finbot/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the store, then the optional AMQP publisher. A broker
// that cannot be reached is logged and skipped: the bot works without
// export.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(config)
	if err != nil {
		return nil, err
	}
	result := &Result{Store: store}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without export",
				log.FieldError, err)
		} else {
			result.Publisher = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.InfoContext(ctx, "Initialized ledger backend",
		log.FieldBackend, config.Type.String(),
		"events_enabled", result.Publisher != nil)
	return result, nil
}

func (f *DefaultFactory) createStore(config Config) (storage.Store, error) {
	switch config.Type {
	case JSONBackend:
		store, err := jsonfile.New(config.DataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize json store: %w", err)
		}
		f.logger.Info("Using json ledger file", "path", store.Path())
		return store, nil
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		if v, dirty, err := storage.SchemaVersion(config.SQLiteDBPath); err == nil {
			f.logger.Info("Using SQLite ledger database", "path", repo.Path(), "schema_version", v, "dirty", dirty)
		}
		return repo, nil
	case MemoryBackend:
		f.logger.Warn("Using in-memory ledger store, data is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
