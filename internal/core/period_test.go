package core

import (
	"errors"
	"testing"
	"time"
)

func TestWindowFor(t *testing.T) {
	today := NewDate(2024, time.March, 15) // a Friday
	tests := []struct {
		period Period
		start  string
	}{
		{Day, "2024-03-15"},
		{Week, "2024-03-11"},
		{Month, "2024-03-01"},
		{Year, "2024-01-01"},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			w, err := WindowFor(tt.period, today)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if w.Start.String() != tt.start || w.End.String() != "2024-03-15" {
				t.Errorf("WindowFor(%s) = %s, want start %s", tt.period, w, tt.start)
			}
		})
	}
}

func TestWindowWeekStartsOnMonday(t *testing.T) {
	day := NewDate(2023, time.December, 20)
	for i := 0; i < 60; i++ {
		w, err := WindowFor(Week, day)
		if err != nil {
			t.Fatal(err)
		}
		if w.Start.Weekday() != time.Monday {
			t.Fatalf("%s: week starts on %s", day, w.Start.Weekday())
		}
		if !w.End.Equal(day.Time) {
			t.Fatalf("%s: week ends on %s", day, w.End)
		}
		if span := day.Sub(w.Start.Time); span < 0 || span > 6*24*time.Hour {
			t.Fatalf("%s: week start %s out of range", day, w.Start)
		}

		m, _ := WindowFor(Month, day)
		if m.Start.Day() != 1 || m.Start.Month() != day.Month() || m.Start.Year() != day.Year() {
			t.Fatalf("%s: month starts on %s", day, m.Start)
		}
		day = day.AddDays(1)
	}
}

func TestWindowMondayIsItsOwnStart(t *testing.T) {
	monday := NewDate(2024, time.March, 11)
	w, _ := WindowFor(Week, monday)
	if !w.Start.Equal(monday.Time) {
		t.Fatalf("expected %s, got %s", monday, w.Start)
	}
}

func TestParsePeriod(t *testing.T) {
	if p, err := ParsePeriod(" Week "); err != nil || p != Week {
		t.Fatalf("got %q, %v", p, err)
	}
	_, err := ParsePeriod("fortnight")
	if !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	if _, err := WindowFor(Period("fortnight"), NewDate(2024, 1, 1)); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod from WindowFor, got %v", err)
	}
	if _, err := ParseWindow("fortnight", NewDate(2024, 1, 1)); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod from ParseWindow, got %v", err)
	}
}

func TestNewRange(t *testing.T) {
	a, b := NewDate(2024, 1, 1), NewDate(2024, 1, 31)
	if _, err := NewRange(a, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewRange(b, a); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestFilterIsExactSubsequence(t *testing.T) {
	entries := []Entry{
		mustEntry(t, Expense, "food", "a", "1", "2024-03-10"),
		mustEntry(t, Income, "food", "b", "2", "2024-03-11"),
		mustEntry(t, Expense, "food", "c", "3", "2024-03-15"),
		mustEntry(t, Expense, "food", "d", "4", "2024-03-16"),
		mustEntry(t, Income, "food", "e", "5", "2024-03-13"),
		mustEntry(t, Expense, "food", "f", "6", "2024-03-11"),
	}
	w := Window{Start: NewDate(2024, 3, 11), End: NewDate(2024, 3, 15)}

	tests := []struct {
		name  string
		kinds []Kind
		want  string
	}{
		{"any kind", nil, "bcef"},
		{"expense only", []Kind{Expense}, "cf"},
		{"income only", []Kind{Income}, "be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(entries, w, tt.kinds...)
			titles := ""
			for _, e := range got {
				titles += e.Title
			}
			if titles != tt.want {
				t.Fatalf("got %q, want %q", titles, tt.want)
			}
			for _, e := range entries {
				in := w.Contains(e.Date) && (len(tt.kinds) == 0 || hasKind(tt.kinds, e.Kind))
				found := false
				for _, g := range got {
					if g.Title == e.Title {
						found = true
					}
				}
				if in != found {
					t.Fatalf("entry %s: in range %v, in result %v", e, in, found)
				}
			}
		})
	}
}

func TestFilterEmpty(t *testing.T) {
	got := Filter(nil, Window{Start: NewDate(2024, 1, 1), End: NewDate(2024, 1, 2)})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}
