package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Flushable is anything that can persist pending changes.
type Flushable interface {
	Flush(ctx context.Context) error
}

// FlusherConfig holds configuration for the flusher
type FlusherConfig struct {
	// Interval is how often pending changes are saved (default: 5s)
	Interval time.Duration

	// FinalTimeout bounds the last save performed on Stop (default: 10s)
	FinalTimeout time.Duration
}

// DefaultFlusherConfig returns sensible defaults
func DefaultFlusherConfig() FlusherConfig {
	return FlusherConfig{
		Interval:     5 * time.Second,
		FinalTimeout: 10 * time.Second,
	}
}

// Flusher saves a Flushable periodically and once more when stopped.
type Flusher struct {
	target Flushable
	config FlusherConfig

	// Lifecycle management
	mu      sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce *sync.Once
}

func NewFlusher(target Flushable, config FlusherConfig) *Flusher {
	if config.Interval <= 0 {
		config.Interval = DefaultFlusherConfig().Interval
	}
	if config.FinalTimeout <= 0 {
		config.FinalTimeout = DefaultFlusherConfig().FinalTimeout
	}
	return &Flusher{target: target, config: config}
}

// Start begins the flush loop. Returns an error if already running.
func (f *Flusher) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return fmt.Errorf("flusher is already running")
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	f.stopOnce = &sync.Once{}
	f.mu.Unlock()

	go f.runLoop(ctx)

	slog.InfoContext(ctx, "Flusher started", "interval", f.config.Interval)
	return nil
}

// Stop ends the loop, waits for it and performs a final flush. Concurrent
// calls all wait for the same loop.
func (f *Flusher) Stop(ctx context.Context) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	stopCh, doneCh, once := f.stopCh, f.doneCh, f.stopOnce
	f.mu.Unlock()

	once.Do(func() { close(stopCh) })

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Flusher stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Flusher stop timed out")
		return ctx.Err()
	}

	f.mu.Lock()
	if f.doneCh == doneCh {
		f.running = false
	}
	f.mu.Unlock()

	return nil
}

// IsRunning returns whether the flusher is currently running
func (f *Flusher) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Run starts the flusher and blocks until ctx is cancelled, then stops it.
// It fits an errgroup.
func (f *Flusher) Run(ctx context.Context) error {
	if err := f.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.config.FinalTimeout)
	defer cancel()
	return f.Stop(stopCtx)
}

func (f *Flusher) runLoop(ctx context.Context) {
	defer close(f.doneCh)

	ticker := time.NewTicker(f.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			f.final(ctx)
			return
		case <-ctx.Done():
			f.final(ctx)
			return
		case <-ticker.C:
			if err := f.target.Flush(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic flush failed", "error", err)
			}
		}
	}
}

// final flushes with a fresh deadline since ctx may already be cancelled.
func (f *Flusher) final(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.config.FinalTimeout)
	defer cancel()
	if err := f.target.Flush(flushCtx); err != nil {
		slog.ErrorContext(ctx, "Final flush failed", "error", err)
	}
}
