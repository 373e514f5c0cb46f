package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Chart tags understood by chart renderers.
const (
	TagPositive = "positive"
	TagNegative = "negative"
)

// Direction markers used in per-category listings.
const (
	MarkerIncome  = "⬆"
	MarkerExpense = "⬇"
)

type (
	// KindTotals splits entries into independently numbered income and
	// expense lines.
	KindTotals struct {
		Income       []string
		Expense      []string
		IncomeTotal  decimal.Decimal
		ExpenseTotal decimal.Decimal
	}

	// CategoryGroup holds the rendered lines of one category.
	CategoryGroup struct {
		Category string
		Lines    []string
	}

	// ChartSeries is the index-aligned input of a bar chart renderer.
	ChartSeries struct {
		Values []float64 `json:"values"`
		Tags   []string  `json:"tags"`
	}
)

// ByKindTotals renders entries as "{n}. {date} {category} {title}: {sign}{amount}",
// numbering incomes and expenses separately. Empty input yields empty lists.
func ByKindTotals(entries []Entry) KindTotals {
	t := KindTotals{
		Income:       []string{},
		Expense:      []string{},
		IncomeTotal:  decimal.Zero,
		ExpenseTotal: decimal.Zero,
	}
	for _, e := range entries {
		switch e.Kind {
		case Income:
			t.Income = append(t.Income, fmt.Sprintf("%d. %s", len(t.Income)+1, e))
			t.IncomeTotal = t.IncomeTotal.Add(e.Amount)
		case Expense:
			t.Expense = append(t.Expense, fmt.Sprintf("%d. %s", len(t.Expense)+1, e))
			t.ExpenseTotal = t.ExpenseTotal.Add(e.Amount)
		}
	}
	return t
}

// Net is income minus expense.
func (t KindTotals) Net() decimal.Decimal {
	return t.IncomeTotal.Sub(t.ExpenseTotal)
}

// Empty reports whether neither list has lines.
func (t KindTotals) Empty() bool {
	return len(t.Income) == 0 && len(t.Expense) == 0
}

// ByCategory groups entries under each known category, in registry order.
// Matching ignores case, entries keep their input order and categories
// without entries are left out.
func ByCategory(entries []Entry, categories []string) []CategoryGroup {
	var groups []CategoryGroup
	for _, c := range categories {
		var lines []string
		for _, e := range entries {
			if !e.SameCategory(c) {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s%s %s %s", marker(e.Kind), e.Date, e.Title, FormatAmount(e.Amount)))
		}
		if len(lines) > 0 {
			groups = append(groups, CategoryGroup{Category: c, Lines: lines})
		}
	}
	return groups
}

func marker(k Kind) string {
	switch k {
	case Income:
		return MarkerIncome
	case Expense:
		return MarkerExpense
	default:
		return ""
	}
}

// Title returns the category name with its first letter upper-cased.
func (g CategoryGroup) Title() string {
	if g.Category == "" {
		return g.Category
	}
	return strings.ToUpper(g.Category[:1]) + g.Category[1:]
}

// ToChartSeries maps entries to signed values and sign tags, one per entry
// in input order. Sort by date first for a timeline.
func ToChartSeries(entries []Entry) ChartSeries {
	s := ChartSeries{
		Values: make([]float64, 0, len(entries)),
		Tags:   make([]string, 0, len(entries)),
	}
	for _, e := range entries {
		switch e.Kind {
		case Income:
			s.Values = append(s.Values, e.Amount.InexactFloat64())
			s.Tags = append(s.Tags, TagPositive)
		case Expense:
			s.Values = append(s.Values, e.Amount.Neg().InexactFloat64())
			s.Tags = append(s.Tags, TagNegative)
		}
	}
	return s
}

func (s ChartSeries) Len() int {
	return len(s.Values)
}
