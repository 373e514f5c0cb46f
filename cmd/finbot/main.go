package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finbot/internal/backend"
	"finbot/internal/bot"
	"finbot/internal/cli"
	"finbot/internal/config"
	apphttp "finbot/internal/http"
	"finbot/internal/log"
	"finbot/internal/services"
)

const (
	shutdownTimeout  = 30 * time.Second
	publishQueueSize = 256
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg)
	cli.MustValidate(logger, cfg.Validate)

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("finbot stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("finbot stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}

	opts := []services.Option{}
	if res.Publisher != nil {
		opts = append(opts, services.WithPublisher(services.NewAsyncPublisher(res.Publisher, publishQueueSize)))
	}
	if cfg.FlushInterval > 0 {
		opts = append(opts, services.WithDeferredFlush())
	}
	svc := services.NewLedgerService(res.Store, opts...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := svc.Close(closeCtx); err != nil {
			logger.Error("Failed to close ledger service", log.FieldError, err)
		}
	}()

	if err := svc.Load(ctx); err != nil {
		return err
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Commands:           bot.NewDispatcher(svc, logger),
		Charts:             svc,
		Logger:             logger,
		WebhookSecret:      cfg.WebhookSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		DedupCacheSize:     cfg.DedupCacheSize,
	})

	logger.Info("Starting finbot",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"flush_interval", cfg.FlushInterval.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.FlushInterval > 0 {
		flusher := services.NewFlusher(svc, services.FlusherConfig{Interval: cfg.FlushInterval})
		g.Go(func() error { return flusher.Run(gctx) })
	}
	return g.Wait()
}
