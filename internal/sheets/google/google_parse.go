package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"finbot/internal/core"

	"github.com/shopspring/decimal"
)

// Column layout of an exported row.
const (
	colUser = iota
	colDate
	colKind
	colCategory
	colTitle
	colAmount
	rowWidth
)

var headerRow = []any{"User", "Date", "Type", "Category", "Title", "Amount"}

// entryRow renders e as a sheet row. The amount carries the entry's sign so
// a SUM over the column is the balance.
func entryRow(user core.UserID, e core.Entry) []any {
	return []any{
		user.String(),
		e.Date.String(),
		e.Kind.String(),
		e.Category,
		e.Title,
		e.Signed().InexactFloat64(),
	}
}

// parseRow reads an exported row back. Rows that are not entries (headers,
// blank lines, hand edits) return an error.
func parseRow(row []any) (core.UserID, core.Entry, error) {
	cols := toStrings(row)
	if len(cols) < rowWidth {
		return 0, core.Entry{}, fmt.Errorf("short row: %d columns", len(cols))
	}
	user, err := core.ParseUserID(cols[colUser])
	if err != nil {
		return 0, core.Entry{}, err
	}
	date, err := core.ParseDate(cols[colDate])
	if err != nil {
		return 0, core.Entry{}, err
	}
	kind, err := core.ParseKind(cols[colKind])
	if err != nil {
		return 0, core.Entry{}, err
	}
	amount, err := parseSignedAmount(cols[colAmount])
	if err != nil {
		return 0, core.Entry{}, err
	}
	e, err := core.NewEntry(kind, cols[colCategory], cols[colTitle], amount.Abs(), date)
	if err != nil {
		return 0, core.Entry{}, err
	}
	return user, e, nil
}

func parseSignedAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "+"))
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", core.ErrInvalidAmount, s)
	}
	return d, nil
}

// matchRow reports whether row holds exactly e for user.
func matchRow(row []any, user core.UserID, e core.Entry) bool {
	u, got, err := parseRow(row)
	if err != nil || u != user {
		return false
	}
	return core.EqualEntries([]core.Entry{got}, []core.Entry{e})
}

// userRows returns the zero-based indexes of rows belonging to user,
// highest first so they can be deleted without shifting the rest.
func userRows(values [][]any, user core.UserID) []int64 {
	var out []int64
	for i := len(values) - 1; i >= 0; i-- {
		cols := toStrings(values[i])
		if len(cols) == 0 {
			continue
		}
		if id, err := core.ParseUserID(cols[colUser]); err == nil && id == user {
			out = append(out, int64(i))
		}
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if _, ok := sheetYear(base, ""); ok {
		return base
	}
	return fmt.Sprintf("%d %s", year, base)
}

// sheetYear extracts the year of a "<year> <base>" title. An empty base
// matches any suffix.
func sheetYear(title, base string) (int, bool) {
	if len(title) < 5 || title[4] != ' ' {
		return 0, false
	}
	y, err := strconv.Atoi(title[0:4])
	if err != nil || y <= 1900 || y >= 3000 {
		return 0, false
	}
	if base != "" && !strings.EqualFold(strings.TrimSpace(title[5:]), strings.TrimSpace(base)) {
		return 0, false
	}
	return y, true
}

func currentYear() int {
	return time.Now().Year()
}
