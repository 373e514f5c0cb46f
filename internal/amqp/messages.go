package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finbot/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a ledger mutation.
type EventType string

const (
	EventEntryAdded    EventType = "entry_added"
	EventEntryRemoved  EventType = "entry_removed"
	EventLedgerCleared EventType = "ledger_cleared"
)

// EntryPayload is the wire form of an entry. Amount travels as a decimal
// string so consumers see the exact value the user typed.
type EntryPayload struct {
	MoneyType string          `json:"money_type"`
	Category  string          `json:"category"`
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date"`
	// Position is 1-based at the time of the event.
	Position int `json:"position,omitempty"`
}

// LedgerEvent is published after every successful mutation.
type LedgerEvent struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	UserID    int64         `json:"user_id"`
	Entry     *EntryPayload `json:"entry,omitempty"`
	Removed   int           `json:"removed,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func newEvent(t EventType, user core.UserID) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Type:      t,
		UserID:    int64(user),
		Timestamp: time.Now().UTC(),
	}
}

func payloadOf(e core.Entry, position int) *EntryPayload {
	return &EntryPayload{
		MoneyType: e.Kind.String(),
		Category:  e.Category,
		Title:     e.Title,
		Amount:    e.Amount,
		Date:      e.Date.String(),
		Position:  position,
	}
}

// NewEntryAddedEvent describes an append at the given 1-based position.
func NewEntryAddedEvent(user core.UserID, e core.Entry, position int) *LedgerEvent {
	ev := newEvent(EventEntryAdded, user)
	ev.Entry = payloadOf(e, position)
	return ev
}

// NewEntryRemovedEvent describes the removal of the entry that was at position.
func NewEntryRemovedEvent(user core.UserID, e core.Entry, position int) *LedgerEvent {
	ev := newEvent(EventEntryRemoved, user)
	ev.Entry = payloadOf(e, position)
	return ev
}

func NewLedgerClearedEvent(user core.UserID, removed int) *LedgerEvent {
	ev := newEvent(EventLedgerCleared, user)
	ev.Removed = removed
	return ev
}

// ToEntry converts the payload back into a validated entry.
func (p *EntryPayload) ToEntry() (core.Entry, error) {
	kind, err := core.ParseKind(p.MoneyType)
	if err != nil {
		return core.Entry{}, err
	}
	date, err := core.ParseDate(p.Date)
	if err != nil {
		return core.Entry{}, err
	}
	return core.NewEntry(kind, p.Category, p.Title, p.Amount, date)
}

// Validate checks that the event carries what its type requires.
func (m *LedgerEvent) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("event without id")
	}
	switch m.Type {
	case EventEntryAdded, EventEntryRemoved:
		if m.Entry == nil {
			return fmt.Errorf("%s event %s without entry", m.Type, m.ID)
		}
	case EventLedgerCleared:
	default:
		return fmt.Errorf("unknown event type %q", m.Type)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and validates an event.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
