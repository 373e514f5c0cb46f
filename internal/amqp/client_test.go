package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"finbot/internal/core"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

func TestExponentialBackoff(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, maxBackoff, maxBackoff}
	for attempt, w := range want {
		if got := exponentialBackoff(attempt); got != w {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", attempt, got, w)
		}
	}
	if got := exponentialBackoff(40); got != maxBackoff {
		t.Errorf("exponentialBackoff(40) = %v, want cap %v", got, maxBackoff)
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"dial tcp 127.0.0.1:5672: connection refused", true},
		{`Exception (504) Reason: "channel/connection is not open"`, true},
		{"unexpected EOF", true},
		{"write: broken pipe", true},
		{"use of closed network connection", true},
		{"invalid ledger event", false},
	}
	for _, tt := range tests {
		if got := isConnectionError(errors.New(tt.msg)); got != tt.want {
			t.Errorf("isConnectionError(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
	if isConnectionError(nil) {
		t.Error("nil is not a connection error")
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "finbot", queueName: "ledger_export"}
	if client.isCircuitOpen() {
		t.Fatal("breaker should start closed")
	}

	for i := 0; i < maxFailures-1; i++ {
		client.recordFailure()
	}
	if client.isCircuitOpen() {
		t.Fatalf("breaker opened after %d failures", maxFailures-1)
	}
	client.recordFailure()
	if !client.isCircuitOpen() {
		t.Fatal("breaker should open at the failure threshold")
	}

	ev := NewLedgerClearedEvent(42, 3)
	if err := client.PublishEvent(context.Background(), ev); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("PublishEvent() with open breaker = %v, want ErrCircuitOpen", err)
	}

	client.failureMu.Lock()
	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	client.failureMu.Unlock()
	if client.isCircuitOpen() || atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Fatalf("breaker should be half-open after %v, state = %d", openTimeout, atomic.LoadInt32(&client.state))
	}

	client.recordSuccess()
	if atomic.LoadInt32(&client.state) != StateClosed || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Error("a success should close the breaker and reset the count")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.PublishEvent(ctx, ev); !errors.Is(err, context.Canceled) {
		t.Errorf("PublishEvent() with cancelled context = %v, want context.Canceled", err)
	}
}

type ackRecorder struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked = true; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

func TestClient_HandleDelivery(t *testing.T) {
	body, err := NewLedgerClearedEvent(7, 2).ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		body        []byte
		handlerErr  error
		wantAck     bool
		wantRequeue bool
	}{
		{"success", body, nil, true, false},
		{"transient failure", body, errors.New("sheets quota exceeded"), false, true},
		{"permanent failure", body, fmt.Errorf("bad entry: %w", ErrPermanent), false, false},
		{"undecodable body", []byte("{"), nil, false, false},
	}

	c := &Client{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &ackRecorder{}
			calls := 0
			c.handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: rec, Body: tt.body},
				func(context.Context, *LedgerEvent) error {
					calls++
					return tt.handlerErr
				})

			if rec.acked != tt.wantAck || rec.nacked == tt.wantAck {
				t.Errorf("acked = %v nacked = %v, want ack %v", rec.acked, rec.nacked, tt.wantAck)
			}
			if rec.requeue != tt.wantRequeue {
				t.Errorf("requeue = %v, want %v", rec.requeue, tt.wantRequeue)
			}
			if strings.HasPrefix(string(tt.body), "{\"") != (calls == 1) {
				t.Errorf("handler called %d times", calls)
			}
		})
	}
}

func TestClient_HalfOpenFailureReopens(t *testing.T) {
	client := &Client{}
	atomic.StoreInt32(&client.state, StateHalfOpen)
	atomic.StoreInt64(&client.failureCount, 1)

	client.recordFailure()

	if atomic.LoadInt32(&client.state) != StateOpen {
		t.Errorf("failed probe should reopen the circuit, state = %d", atomic.LoadInt32(&client.state))
	}
}

func mustEntry(t *testing.T) core.Entry {
	t.Helper()
	e, err := core.NewEntry(core.Expense, "Food", "lunch", decimal.RequireFromString("12.50"), core.NewDate(2024, 1, 3))
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestNewEntryAddedEvent(t *testing.T) {
	e := mustEntry(t)
	ev := NewEntryAddedEvent(42, e, 3)

	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Errorf("event ID %q is not a UUID: %v", ev.ID, err)
	}
	if ev.Type != EventEntryAdded || ev.UserID != 42 || ev.Entry.Position != 3 {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Timestamp.IsZero() || time.Since(ev.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestLedgerEvent_JSON(t *testing.T) {
	e := mustEntry(t)
	msg := NewEntryRemovedEvent(-5, e, 1)

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if !strings.Contains(string(jsonBytes), `"amount":"12.5"`) {
		t.Errorf("amount should travel as a decimal string: %s", jsonBytes)
	}

	parsed, err := LedgerEventFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("LedgerEventFromJSON() error = %v", err)
	}
	if parsed.ID != msg.ID || parsed.Type != EventEntryRemoved || parsed.UserID != -5 {
		t.Errorf("Parsed event = %+v, want %+v", parsed, msg)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}

	back, err := parsed.Entry.ToEntry()
	if err != nil {
		t.Fatalf("ToEntry() error = %v", err)
	}
	if !core.EqualEntries([]core.Entry{back}, []core.Entry{e}) {
		t.Errorf("ToEntry() = %v, want %v", back, e)
	}
}

func TestLedgerEventFromJSON_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":            `{"id": 1`,
		"missing id":          `{"type": "ledger_cleared", "user_id": 1}`,
		"unknown type":        `{"id": "x", "type": "entry_edited", "user_id": 1}`,
		"added without entry": `{"id": "x", "type": "entry_added", "user_id": 1}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LedgerEventFromJSON([]byte(body)); err == nil {
				t.Error("LedgerEventFromJSON() should fail")
			}
		})
	}
}
