package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Day   Period = "day"
	Week  Period = "week"
	Month Period = "month"
	Year  Period = "year"
)

type (
	// Period names a calendar window that ends today.
	Period string

	// Window is an inclusive date range.
	Window struct {
		Start Date
		End   Date
	}
)

// Periods lists the recognized period tokens.
var Periods = []Period{Day, Week, Month, Year}

// ParsePeriod validates a period token.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case Day, Week, Month, Year:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q, use one of %s", ErrInvalidPeriod, s, PeriodNames())
	}
}

// PeriodNames returns the recognized tokens joined for display.
func PeriodNames() string {
	names := make([]string, len(Periods))
	for i, p := range Periods {
		names[i] = "'" + string(p) + "'"
	}
	return strings.Join(names, ", ")
}

// WindowFor computes the window of period p anchored at today.
// Weeks start on Monday.
func WindowFor(p Period, today Date) (Window, error) {
	var start Date
	switch p {
	case Day:
		start = today
	case Week:
		// time.Weekday counts from Sunday; shift so Monday is 0.
		offset := (int(today.Weekday()) + 6) % 7
		start = today.AddDays(-offset)
	case Month:
		start = NewDate(today.Year(), today.Month(), 1)
	case Year:
		start = NewDate(today.Year(), time.January, 1)
	default:
		return Window{}, fmt.Errorf("%w: %q, use one of %s", ErrInvalidPeriod, string(p), PeriodNames())
	}
	return Window{Start: start, End: today}, nil
}

// ParseWindow parses the token and computes its window in one step.
func ParseWindow(token string, today Date) (Window, error) {
	p, err := ParsePeriod(token)
	if err != nil {
		return Window{}, err
	}
	return WindowFor(p, today)
}

// NewRange builds a custom window; start must not be after end.
func NewRange(start, end Date) (Window, error) {
	if start.Compare(end) > 0 {
		return Window{}, fmt.Errorf("%w: range start %s is after end %s", ErrInvalidPeriod, start, end)
	}
	return Window{Start: start, End: end}, nil
}

// Contains reports whether d lies inside the window, bounds included.
func (w Window) Contains(d Date) bool {
	return w.Start.Compare(d) <= 0 && d.Compare(w.End) <= 0
}

func (w Window) String() string {
	if w.Start.Equal(w.End.Time) {
		return w.Start.String()
	}
	return w.Start.String() + " to " + w.End.String()
}

// Filter returns, in input order, the entries dated inside w. When kinds
// are given only entries of those kinds are kept.
func Filter(entries []Entry, w Window, kinds ...Kind) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !w.Contains(e.Date) {
			continue
		}
		if len(kinds) > 0 && !hasKind(kinds, e.Kind) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func hasKind(kinds []Kind, k Kind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}
