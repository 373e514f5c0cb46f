package backend

import (
	"context"
	"errors"

	"finbot/internal/services"
	"finbot/internal/storage"
)

// CleanupFunc releases what a factory opened.
type CleanupFunc func() error

// Result is a ready ledger store plus, when AMQP is configured, the event
// publisher. Callers hand both to services.NewLedgerService, which takes
// ownership and closes them.
type Result struct {
	Store     storage.Store
	Publisher services.EventPublisher
}

// Cleanup closes the store and publisher. Use it only when the result is
// not handed to a LedgerService.
func (r *Result) Cleanup() error {
	var errs []error
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	if r.Publisher != nil {
		errs = append(errs, r.Publisher.Close())
	}
	return errors.Join(errs...)
}

// Factory creates the persistence backend selected by configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type BackendType

	// json
	DataFile string
	// sqlite
	SQLiteDBPath string

	// Optional event publishing, independent of the backend type
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	JSONBackend   BackendType = "json"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case JSONBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
