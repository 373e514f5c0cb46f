// Package memory is a process-local storage.Store for development and tests.
package memory

import (
	"context"
	"sync"

	"finbot/internal/core"
	"finbot/internal/storage"
)

type Store struct {
	mu     sync.Mutex
	snap   core.Snapshot
	saves  int
	closed bool
}

func New() *Store {
	return &Store{snap: core.Snapshot{Entries: map[core.UserID][]core.Entry{}}}
}

func (s *Store) Load(_ context.Context) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.Snapshot{}, storage.ErrClosed
	}
	return cloneSnapshot(s.snap), nil
}

func (s *Store) Save(_ context.Context, snap core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	s.snap = cloneSnapshot(snap)
	s.saves++
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Saves returns how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func cloneSnapshot(in core.Snapshot) core.Snapshot {
	out := core.Snapshot{Entries: make(map[core.UserID][]core.Entry, len(in.Entries))}
	for id, entries := range in.Entries {
		out.Entries[id] = append([]core.Entry(nil), entries...)
	}
	if in.Categories != nil {
		out.Categories = append([]string(nil), in.Categories...)
	}
	return out
}

var _ storage.Store = (*Store)(nil)
