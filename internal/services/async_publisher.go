package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/log"
)

// ErrPublishQueueFull is returned when the async publisher cannot take more
// events. The event is dropped.
var ErrPublishQueueFull = errors.New("publish queue full")

const defaultDrainTimeout = 15 * time.Second

// AsyncPublisher hands events to a single background goroutine so a slow or
// unreachable broker never holds up a command. Events keep their order.
type AsyncPublisher struct {
	inner        EventPublisher
	queue        chan *amqp.LedgerEvent
	done         chan struct{}
	drainTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewAsyncPublisher starts the background loop. buffer bounds the number of
// events waiting to be published.
func NewAsyncPublisher(inner EventPublisher, buffer int) *AsyncPublisher {
	if buffer < 1 {
		buffer = 1
	}
	p := &AsyncPublisher{
		inner:        inner,
		queue:        make(chan *amqp.LedgerEvent, buffer),
		done:         make(chan struct{}),
		drainTimeout: defaultDrainTimeout,
	}
	go p.run()
	return p
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for ev := range p.queue {
		if err := p.inner.PublishEvent(context.Background(), ev); err != nil {
			slog.Error("Failed to publish ledger event",
				log.FieldOperation, log.OpPublish,
				log.FieldEventID, ev.ID,
				log.FieldEventType, ev.Type,
				log.FieldError, err)
		}
	}
}

// PublishEvent queues ev without blocking.
func (p *AsyncPublisher) PublishEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.New("publisher closed")
	}
	select {
	case p.queue <- ev:
		return nil
	default:
		return ErrPublishQueueFull
	}
}

// Pending reports how many events wait in the queue.
func (p *AsyncPublisher) Pending() int {
	return len(p.queue)
}

// Close stops accepting events, waits for queued ones to be sent and then
// closes the wrapped publisher.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	var drainErr error
	select {
	case <-p.done:
	case <-time.After(p.drainTimeout):
		drainErr = fmt.Errorf("drain publish queue: timed out after %v with %d events queued", p.drainTimeout, len(p.queue))
	}
	return errors.Join(drainErr, p.inner.Close())
}
