package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finbot/internal/amqp"
	"finbot/internal/cache"
	"finbot/internal/cli"
	"finbot/internal/config"
	"finbot/internal/log"
	"finbot/internal/sheets"
	gsheet "finbot/internal/sheets/google"
	memsheet "finbot/internal/sheets/memory"
	"finbot/internal/worker"
)

const (
	dedupTTL        = 24 * time.Hour
	cleanupInterval = 10 * time.Minute
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentWorker)
	cli.MustValidate(logger, func() error {
		return errors.Join(cfg.Validate(), cfg.ValidateExport())
	})

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("finbot-worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("finbot-worker stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	exporter, err := newExporter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	w := worker.NewExportWorker(exporter, cfg.DedupCacheSize, dedupTTL)
	caches := cache.NewManager()
	caches.Register(w.Cache())
	caches.StartCleanup(cleanupInterval)
	defer caches.Stop()

	logger.Info("Starting finbot-worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeEvents(gctx, w.HandleEvent)
	})

	err = g.Wait()
	stats := w.Stats()
	logger.Info("Export totals",
		"handled", stats.Handled,
		"skipped", stats.Skipped,
		"failed", stats.Failed)
	return err
}

// newExporter uses Google Sheets when a spreadsheet is configured and an
// in-memory exporter otherwise, which keeps the worker useful for local runs.
func newExporter(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.EntryExporter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, exporting to memory only")
		return memsheet.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets exporter initialized", log.FieldSheetsRef, cfg.GoogleSpreadsheetID)
	return client, nil
}
