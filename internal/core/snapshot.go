package core

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Snapshot is everything a persistence adapter stores.
type Snapshot struct {
	Entries map[UserID][]Entry
	// Categories is optional; adapters that do not keep categories leave
	// it nil and the registry falls back to its defaults.
	Categories []string
}

// Record is the persisted form of one entry.
type Record struct {
	MoneyType  string  `json:"money_type"`
	Categories string  `json:"categories"`
	Title      string  `json:"title"`
	Value      float64 `json:"value"`
	Date       string  `json:"date"`
}

// ToRecord converts an entry to its persisted form.
func ToRecord(e Entry) Record {
	return Record{
		MoneyType:  e.Kind.String(),
		Categories: e.Category,
		Title:      e.Title,
		Value:      e.Amount.InexactFloat64(),
		Date:       e.Date.String(),
	}
}

// Entry converts a persisted record back, validating it.
func (r Record) Entry() (Entry, error) {
	kind, err := ParseKind(r.MoneyType)
	if err != nil {
		return Entry{}, err
	}
	date, err := ParseDate(r.Date)
	if err != nil {
		return Entry{}, err
	}
	return NewEntry(kind, r.Categories, r.Title, decimal.NewFromFloat(r.Value), date)
}

// MarshalLedger encodes entries keyed by user in the persisted JSON layout.
func MarshalLedger(data map[UserID][]Entry) ([]byte, error) {
	out := make(map[string][]Record, len(data))
	for id, entries := range data {
		recs := make([]Record, len(entries))
		for i, e := range entries {
			recs[i] = ToRecord(e)
		}
		out[id.String()] = recs
	}
	return json.MarshalIndent(out, "", "    ")
}

// UnmarshalLedger decodes the persisted JSON layout.
func UnmarshalLedger(b []byte) (map[UserID][]Entry, error) {
	var raw map[string][]Record
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	out := make(map[UserID][]Entry, len(raw))
	for key, recs := range raw {
		id, err := ParseUserID(key)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(recs))
		for i, r := range recs {
			e, err := r.Entry()
			if err != nil {
				return nil, fmt.Errorf("user %s entry %d: %w", key, i+1, err)
			}
			entries = append(entries, e)
		}
		out[id] = entries
	}
	return out, nil
}

// EqualEntries reports whether two sequences hold the same entries in the
// same order, comparing amounts by value.
func EqualEntries(a, b []Entry) bool {
	return slices.EqualFunc(a, b, func(x, y Entry) bool {
		return x.Kind == y.Kind &&
			x.Category == y.Category &&
			x.Title == y.Title &&
			x.Amount.Equal(y.Amount) &&
			x.Date.Equal(y.Date.Time)
	})
}
