// Package jsonfile keeps the ledger in a single JSON document keyed by user id.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"finbot/internal/core"
	"finbot/internal/storage"
)

// Store reads and writes the ledger file. Categories are not part of the file
// layout, so Load always returns nil categories.
type Store struct {
	mu     sync.Mutex
	path   string
	closed bool
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("data file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{path: path}, nil
}

// Load implements storage.Store. A missing file is an empty ledger.
func (s *Store) Load(ctx context.Context) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.Snapshot{}, storage.ErrClosed
	}

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.InfoContext(ctx, "Data file not found, starting empty", "path", s.path)
		return core.Snapshot{Entries: map[core.UserID][]core.Entry{}}, nil
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("read data file: %w", err)
	}

	entries, err := core.UnmarshalLedger(b)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("load %s: %w", s.path, err)
	}
	return core.Snapshot{Entries: entries}, nil
}

// Save implements storage.Store. The document is written to a temporary file
// in the same directory and renamed over the old one.
func (s *Store) Save(ctx context.Context, snap core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}

	b, err := core.MarshalLedger(snap.Entries)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}

	slog.DebugContext(ctx, "Ledger written", "path", s.path, "users", len(snap.Entries), "bytes", len(b))
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Path() string { return s.path }

var _ storage.Store = (*Store)(nil)
