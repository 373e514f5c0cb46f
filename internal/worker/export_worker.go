package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/cache"
	"finbot/internal/core"
	"finbot/internal/log"
	"finbot/internal/sheets"
)

// ErrMalformedEvent marks events that can never be applied, so the consumer
// drops them instead of requeueing.
var ErrMalformedEvent = fmt.Errorf("malformed ledger event: %w", amqp.ErrPermanent)

// ExportWorker mirrors ledger events into a spreadsheet.
type ExportWorker struct {
	exporter  sheets.EntryExporter
	processed cache.Cache[struct{}]

	handled atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

// Stats counts events by outcome since the worker started.
type Stats struct {
	Handled int64
	Skipped int64
	Failed  int64
}

// NewExportWorker remembers up to dedupSize event IDs for dedupTTL so
// redelivered events are not exported twice.
func NewExportWorker(exporter sheets.EntryExporter, dedupSize int, dedupTTL time.Duration) *ExportWorker {
	return &ExportWorker{
		exporter:  exporter,
		processed: cache.NewLRUCache[struct{}](dedupSize, dedupTTL),
	}
}

// Cache exposes the dedup cache so it can be registered for cleanup.
func (w *ExportWorker) Cache() cache.Cleaner {
	if c, ok := w.processed.(cache.Cleaner); ok {
		return c
	}
	return nil
}

// HandleEvent applies one event. An event ID already exported is skipped.
// The ID is only remembered after the exporter succeeded, so a failed
// event is retried on redelivery.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if ev == nil {
		w.failed.Add(1)
		return fmt.Errorf("%w: nil event", ErrMalformedEvent)
	}
	if _, seen := w.processed.Get(ev.ID); seen {
		w.skipped.Add(1)
		slog.DebugContext(ctx, "Skipping already exported event",
			log.FieldEventID, ev.ID,
			log.FieldEventType, ev.Type)
		return nil
	}

	if err := w.apply(ctx, ev); err != nil {
		w.failed.Add(1)
		slog.ErrorContext(ctx, "Failed to export ledger event",
			log.FieldEventID, ev.ID,
			log.FieldEventType, ev.Type,
			"user_id", ev.UserID,
			log.FieldError, err)
		return err
	}

	w.processed.Set(ev.ID, struct{}{})
	w.handled.Add(1)
	return nil
}

func (w *ExportWorker) apply(ctx context.Context, ev *amqp.LedgerEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	user := core.UserID(ev.UserID)

	switch ev.Type {
	case amqp.EventLedgerCleared:
		n, err := w.exporter.ClearUser(ctx, user)
		if err != nil {
			return fmt.Errorf("clear exported rows: %w", err)
		}
		slog.InfoContext(ctx, "Exported ledger clear",
			log.FieldEventID, ev.ID,
			"user_id", ev.UserID,
			"rows_deleted", n,
			"entries_removed", ev.Removed)
		return nil
	}

	e, err := ev.Entry.ToEntry()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	switch ev.Type {
	case amqp.EventEntryAdded:
		if err := w.exporter.AppendEntry(ctx, user, e); err != nil {
			return fmt.Errorf("append exported row: %w", err)
		}
	case amqp.EventEntryRemoved:
		if err := w.exporter.RemoveEntry(ctx, user, e); err != nil {
			return fmt.Errorf("remove exported row: %w", err)
		}
	}

	slog.InfoContext(ctx, "Exported ledger event",
		log.FieldEventID, ev.ID,
		log.FieldEventType, ev.Type,
		"user_id", ev.UserID,
		"money_type", ev.Entry.MoneyType,
		"category", e.Category,
		"amount", core.FormatAmount(e.Amount))
	return nil
}

func (w *ExportWorker) Stats() Stats {
	return Stats{
		Handled: w.handled.Load(),
		Skipped: w.skipped.Load(),
		Failed:  w.failed.Load(),
	}
}
