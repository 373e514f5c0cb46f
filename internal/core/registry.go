package core

import (
	"strings"
	"sync"
)

// DefaultCategories seeds every new registry, in display order.
var DefaultCategories = []string{"food", "transportation", "entertainment", "utilities", "other"}

// CategoryRegistry is the ordered set of known category names. Names are
// stored lower-cased; defaults come first, then discovered names in the
// order they were first used.
type CategoryRegistry struct {
	mu    sync.RWMutex
	names []string
	index map[string]struct{}
}

// NewCategoryRegistry returns a registry seeded with DefaultCategories
// followed by any extra names.
func NewCategoryRegistry(extra ...string) *CategoryRegistry {
	r := &CategoryRegistry{index: make(map[string]struct{})}
	for _, n := range DefaultCategories {
		r.Ensure(n)
	}
	for _, n := range extra {
		r.Ensure(n)
	}
	return r
}

// Ensure registers name if unseen and returns its normalized form.
// Blank names are not registered.
func (r *CategoryRegistry) Ensure(name string) string {
	norm := strings.ToLower(strings.TrimSpace(name))
	if norm == "" {
		return norm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[norm]; !ok {
		r.index[norm] = struct{}{}
		r.names = append(r.names, norm)
	}
	return norm
}

// Contains reports whether name is known, ignoring case.
func (r *CategoryRegistry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// All returns a copy of the known names in registry order.
func (r *CategoryRegistry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

func (r *CategoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
