package memory

import (
	"context"
	"sync"

	"finbot/internal/core"
	ports "finbot/internal/sheets"
)

// Exporter keeps exported rows per user in process memory.
type Exporter struct {
	mu   sync.Mutex
	rows map[core.UserID][]core.Entry
}

var _ ports.EntryExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{rows: map[core.UserID][]core.Entry{}}
}

func (s *Exporter) AppendEntry(_ context.Context, user core.UserID, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[user] = append(s.rows[user], e)
	return nil
}

// RemoveEntry drops the first row equal to e; a missing row is ignored.
func (s *Exporter) RemoveEntry(_ context.Context, user core.UserID, e core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[user]
	for i := range rows {
		if core.EqualEntries(rows[i:i+1], []core.Entry{e}) {
			s.rows[user] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Exporter) ClearUser(_ context.Context, user core.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.rows[user])
	delete(s.rows, user)
	return n, nil
}

// Rows returns a copy of the rows exported for user.
func (s *Exporter) Rows(user core.UserID) []core.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Entry(nil), s.rows[user]...)
}
