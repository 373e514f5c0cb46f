package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the only accepted textual date format.
const DateLayout = "2006-01-02"

const (
	Income Kind = iota + 1
	Expense
)

type (
	// Kind tells whether an entry adds to or subtracts from the balance.
	Kind int

	// UserID is the opaque identifier of a ledger owner.
	UserID int64

	// Date is a calendar date without time or zone; always midnight UTC.
	Date struct {
		time.Time
	}

	Entry struct {
		Kind     Kind
		Category string
		Title    string
		Amount   decimal.Decimal // always positive, sign comes from Kind
		Date     Date
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidIndex  = errors.New("invalid index")
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidKind   = errors.New("invalid money type")
	ErrEmptyLedger   = errors.New("no entries")
	ErrEmptyTitle    = errors.New("empty title")
	ErrEmptyCategory = errors.New("empty category")
	ErrInvalidUserID = errors.New("invalid user id")
)

// String returns the persisted name of the kind.
func (k Kind) String() string {
	switch k {
	case Income:
		return "Income"
	case Expense:
		return "Expense"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Sign returns the display sign for amounts of this kind.
func (k Kind) Sign() string {
	switch k {
	case Income:
		return "+"
	case Expense:
		return "-"
	default:
		return ""
	}
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// ParseKind accepts the persisted names case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return Income, nil
	case "expense":
		return Expense, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// ParseUserID parses the decimal form used as persistence key.
func ParseUserID(s string) (UserID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUserID, s)
	}
	return UserID(id), nil
}

func (u UserID) String() string {
	return strconv.FormatInt(int64(u), 10)
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping t's calendar day in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q, use %s", ErrInvalidDate, s, "YYYY-MM-DD")
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Compare returns -1, 0 or +1 ordering d against o by calendar day.
func (d Date) Compare(o Date) int {
	return d.Time.Compare(o.Time)
}

// NewEntry builds a validated entry. Category keeps the spelling the user
// typed; identity comparisons go through SameCategory.
func NewEntry(kind Kind, category, title string, amount decimal.Decimal, date Date) (Entry, error) {
	e := Entry{
		Kind:     kind,
		Category: strings.TrimSpace(category),
		Title:    strings.TrimSpace(title),
		Amount:   amount,
		Date:     date,
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (e Entry) Validate() error {
	if !e.Kind.Valid() {
		return ErrInvalidKind
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// SameCategory reports whether the entry belongs to the named category.
func (e Entry) SameCategory(name string) bool {
	return strings.EqualFold(strings.TrimSpace(e.Category), strings.TrimSpace(name))
}

// Signed returns the amount with the sign implied by the entry kind.
func (e Entry) Signed() decimal.Decimal {
	if e.Kind == Expense {
		return e.Amount.Neg()
	}
	return e.Amount
}

// String renders "{date} {category} {title}: {sign}{amount}".
func (e Entry) String() string {
	return fmt.Sprintf("%s %s %s: %s%s", e.Date, e.Category, e.Title, e.Kind.Sign(), FormatAmount(e.Amount))
}
