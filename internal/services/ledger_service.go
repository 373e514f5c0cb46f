package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/core"
	"finbot/internal/log"
	"finbot/internal/storage"

	"github.com/shopspring/decimal"
)

// EventPublisher is the outbound side of the ledger event stream.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.LedgerEvent) error
	Close() error
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithPublisher publishes an event after every mutation.
func WithPublisher(p EventPublisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// WithDeferredFlush leaves saving to Flush calls (see Flusher) instead of
// saving after every mutation.
func WithDeferredFlush() Option {
	return func(s *LedgerService) { s.saveOnWrite = false }
}

// LedgerService owns the in-memory ledger and category registry and keeps
// them in sync with a storage.Store.
type LedgerService struct {
	ledger     *core.Ledger
	categories *core.CategoryRegistry
	store      storage.Store
	publisher  EventPublisher
	now        func() time.Time

	saveOnWrite bool

	// flushMu serializes saves; dirty is set under it.
	flushMu sync.Mutex
	dirty   bool
}

func NewLedgerService(store storage.Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		ledger:      core.NewLedger(),
		categories:  core.NewCategoryRegistry(),
		store:       store,
		now:         time.Now,
		saveOnWrite: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory state with the store's snapshot. Categories of
// loaded entries are registered so category reports cover them even when the
// store does not keep the category list.
func (s *LedgerService) Load(ctx context.Context) error {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	s.ledger.Restore(snap.Entries)
	registry := core.NewCategoryRegistry(snap.Categories...)
	entries := 0
	for _, list := range snap.Entries {
		for _, e := range list {
			registry.Ensure(e.Category)
		}
		entries += len(list)
	}
	s.categories = registry

	s.flushMu.Lock()
	s.dirty = false
	s.flushMu.Unlock()

	slog.InfoContext(ctx, "Ledger loaded",
		"users", len(snap.Entries),
		"entries", entries,
		"categories", registry.Len())
	return nil
}

// Today is the current calendar date according to the service clock.
func (s *LedgerService) Today() core.Date {
	return core.DateOf(s.now())
}

// AddEntry validates and appends an entry, registering its category. A zero
// date means today. It returns the entry and its 1-based position.
func (s *LedgerService) AddEntry(ctx context.Context, user core.UserID, kind core.Kind, category, title string, amount decimal.Decimal, date core.Date) (core.Entry, int, error) {
	if date.IsZero() {
		date = s.Today()
	}
	e, err := core.NewEntry(kind, category, title, amount, date)
	if err != nil {
		return core.Entry{}, 0, err
	}

	s.categories.Ensure(e.Category)
	pos := s.ledger.Append(user, e)
	s.persist(ctx)
	s.publish(ctx, amqp.NewEntryAddedEvent(user, e, pos))

	return e, pos, nil
}

// RemoveEntry removes the entry at the 1-based position of the user's
// current sequence. An empty ledger fails with both ErrInvalidIndex and
// ErrEmptyLedger.
func (s *LedgerService) RemoveEntry(ctx context.Context, user core.UserID, position int) (core.Entry, error) {
	if s.ledger.Len(user) == 0 {
		return core.Entry{}, fmt.Errorf("%w: %w", core.ErrInvalidIndex, core.ErrEmptyLedger)
	}
	e, err := s.ledger.RemoveAt(user, position)
	if err != nil {
		return core.Entry{}, err
	}
	s.persist(ctx)
	s.publish(ctx, amqp.NewEntryRemovedEvent(user, e, position))
	return e, nil
}

// Clear empties the user's ledger and reports how many entries it held.
func (s *LedgerService) Clear(ctx context.Context, user core.UserID) int {
	n := s.ledger.Clear(user)
	s.persist(ctx)
	s.publish(ctx, amqp.NewLedgerClearedEvent(user, n))
	return n
}

// List sorts the user's ledger by date and returns it.
func (s *LedgerService) List(user core.UserID) []core.Entry {
	return s.ledger.SortByDate(user)
}

func (s *LedgerService) sorted(user core.UserID) ([]core.Entry, error) {
	entries := s.ledger.SortByDate(user)
	if len(entries) == 0 {
		return nil, core.ErrEmptyLedger
	}
	return entries, nil
}

// AllTimeStats returns the per-kind listing and the chart series of every
// entry, in date order.
func (s *LedgerService) AllTimeStats(user core.UserID) (core.KindTotals, core.ChartSeries, error) {
	entries, err := s.sorted(user)
	if err != nil {
		return core.KindTotals{}, core.ChartSeries{}, err
	}
	return core.ByKindTotals(entries), core.ToChartSeries(entries), nil
}

// ChartSeries returns the all-time chart series.
func (s *LedgerService) ChartSeries(user core.UserID) (core.ChartSeries, error) {
	entries, err := s.sorted(user)
	if err != nil {
		return core.ChartSeries{}, err
	}
	return core.ToChartSeries(entries), nil
}

// ExpensesIn returns the expenses dated inside period's window. The list is
// empty, not an error, when the user has entries but no expenses there.
func (s *LedgerService) ExpensesIn(user core.UserID, period core.Period) (core.Window, []core.Entry, error) {
	entries, err := s.sorted(user)
	if err != nil {
		return core.Window{}, nil, err
	}
	w, err := core.WindowFor(period, s.Today())
	if err != nil {
		return core.Window{}, nil, err
	}
	return w, core.Filter(entries, w, core.Expense), nil
}

// StatsByPeriod groups the entries of the named period by category.
func (s *LedgerService) StatsByPeriod(user core.UserID, token string) (core.Window, []core.CategoryGroup, error) {
	entries, err := s.sorted(user)
	if err != nil {
		return core.Window{}, nil, err
	}
	w, err := core.ParseWindow(token, s.Today())
	if err != nil {
		return core.Window{}, nil, err
	}
	return w, core.ByCategory(core.Filter(entries, w), s.categories.All()), nil
}

// StatsByRange groups the entries of a custom date range by category.
func (s *LedgerService) StatsByRange(user core.UserID, start, end core.Date) (core.Window, []core.CategoryGroup, error) {
	w, err := core.NewRange(start, end)
	if err != nil {
		return core.Window{}, nil, err
	}
	entries, err := s.sorted(user)
	if err != nil {
		return core.Window{}, nil, err
	}
	return w, core.ByCategory(core.Filter(entries, w), s.categories.All()), nil
}

// Balance totals income and expense. An empty token covers all time and
// returns a zero window.
func (s *LedgerService) Balance(user core.UserID, token string) (core.Window, core.KindTotals, error) {
	entries, err := s.sorted(user)
	if err != nil {
		return core.Window{}, core.KindTotals{}, err
	}
	if token == "" {
		return core.Window{}, core.ByKindTotals(entries), nil
	}
	w, err := core.ParseWindow(token, s.Today())
	if err != nil {
		return core.Window{}, core.KindTotals{}, err
	}
	return w, core.ByKindTotals(core.Filter(entries, w)), nil
}

// Categories returns the known categories in registry order.
func (s *LedgerService) Categories() []string {
	return s.categories.All()
}

// Dirty reports whether there are mutations not yet saved.
func (s *LedgerService) Dirty() bool {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	return s.dirty
}

// Flush saves the ledger if it changed since the last successful save.
func (s *LedgerService) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	if !s.dirty {
		return nil
	}

	snap := core.Snapshot{Entries: s.ledger.Snapshot(), Categories: s.categories.All()}
	if err := s.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	s.dirty = false
	return nil
}

// persist marks the ledger dirty and, when saving on write, saves it. A
// failed save keeps the change in memory and dirty, so the next save retries.
func (s *LedgerService) persist(ctx context.Context) {
	s.flushMu.Lock()
	s.dirty = true
	s.flushMu.Unlock()

	if !s.saveOnWrite {
		return
	}
	if err := s.Flush(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to persist ledger, will retry on next save",
			log.FieldOperation, log.OpFlush,
			log.FieldError, err)
	}
}

// publish sends ev when a publisher is configured. Failures are logged only:
// the mutation already happened locally.
func (s *LedgerService) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldOperation, log.OpPublish,
			log.FieldEventID, ev.ID,
			log.FieldEventType, ev.Type,
			log.FieldError, err)
	}
}

// Close flushes pending changes and releases the store and publisher.
func (s *LedgerService) Close(ctx context.Context) error {
	var errs []error

	if err := s.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && !errors.Is(err, storage.ErrClosed) {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
