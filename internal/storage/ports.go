// Package storage persists ledger snapshots.
package storage

import (
	"context"
	"errors"

	"finbot/internal/core"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("store closed")

// Store loads and saves the whole ledger at once. Save replaces whatever was
// stored before; a store with nothing saved yet loads an empty snapshot.
type Store interface {
	Load(ctx context.Context) (core.Snapshot, error)
	Save(ctx context.Context, snap core.Snapshot) error
	Close() error
}
