package core

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Ledger keeps every user's entries in memory. Each user's sequence has its
// own lock so mutations for one user never interleave, while different
// users never contend with each other.
type Ledger struct {
	mu    sync.RWMutex
	users map[UserID]*userLedger
}

type userLedger struct {
	mu      sync.Mutex
	entries []Entry
}

func NewLedger() *Ledger {
	return &Ledger{users: make(map[UserID]*userLedger)}
}

// get returns the user's sequence, creating it when create is set.
func (l *Ledger) get(user UserID, create bool) *userLedger {
	l.mu.RLock()
	ul, ok := l.users[user]
	l.mu.RUnlock()
	if ok || !create {
		return ul
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if ul, ok = l.users[user]; !ok {
		ul = &userLedger{}
		l.users[user] = ul
	}
	return ul
}

// Append adds e at the end of the user's sequence and returns its 1-based
// position.
func (l *Ledger) Append(user UserID, e Entry) int {
	ul := l.get(user, true)
	ul.mu.Lock()
	defer ul.mu.Unlock()
	ul.entries = append(ul.entries, e)
	return len(ul.entries)
}

// RemoveAt deletes the entry at the 1-based position and returns it.
// The ledger is untouched when ErrInvalidIndex is returned.
func (l *Ledger) RemoveAt(user UserID, position int) (Entry, error) {
	ul := l.get(user, false)
	if ul == nil {
		return Entry{}, fmt.Errorf("%w: no entries", ErrInvalidIndex)
	}
	ul.mu.Lock()
	defer ul.mu.Unlock()
	if position < 1 || position > len(ul.entries) {
		return Entry{}, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidIndex, position, len(ul.entries))
	}
	removed := ul.entries[position-1]
	ul.entries = slices.Delete(ul.entries, position-1, position)
	return removed, nil
}

// Clear empties the user's sequence. Clearing an unknown user is a no-op
// that still leaves an empty sequence behind.
func (l *Ledger) Clear(user UserID) int {
	ul := l.get(user, true)
	ul.mu.Lock()
	defer ul.mu.Unlock()
	n := len(ul.entries)
	ul.entries = []Entry{}
	return n
}

// List returns a copy of the user's entries in their current order.
func (l *Ledger) List(user UserID) []Entry {
	ul := l.get(user, false)
	if ul == nil {
		return []Entry{}
	}
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return slices.Clone(ul.entries)
}

// Len returns how many entries the user has.
func (l *Ledger) Len(user UserID) int {
	ul := l.get(user, false)
	if ul == nil {
		return 0
	}
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.entries)
}

// SortByDate stably sorts the user's sequence by ascending date, in place,
// and returns a copy of the sorted result.
func (l *Ledger) SortByDate(user UserID) []Entry {
	ul := l.get(user, false)
	if ul == nil {
		return []Entry{}
	}
	ul.mu.Lock()
	defer ul.mu.Unlock()
	SortEntries(ul.entries)
	return slices.Clone(ul.entries)
}

// Users returns the ids that own a sequence, in ascending order.
func (l *Ledger) Users() []UserID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]UserID, 0, len(l.users))
	for id := range l.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Snapshot copies every user's sequence.
func (l *Ledger) Snapshot() map[UserID][]Entry {
	out := make(map[UserID][]Entry)
	for _, id := range l.Users() {
		out[id] = l.List(id)
	}
	return out
}

// Restore replaces the whole ledger content with data.
func (l *Ledger) Restore(data map[UserID][]Entry) {
	users := make(map[UserID]*userLedger, len(data))
	for id, entries := range data {
		users[id] = &userLedger{entries: slices.Clone(entries)}
	}
	l.mu.Lock()
	l.users = users
	l.mu.Unlock()
}

// SortEntries stably sorts entries by ascending date.
func SortEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return a.Date.Compare(b.Date)
	})
}

// ParsePosition parses a user supplied 1-based position.
func ParsePosition(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIndex, s)
	}
	return n, nil
}
