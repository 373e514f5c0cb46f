package bot

import (
	"fmt"
	"strings"

	"finbot/internal/core"
)

const (
	greetingText = "Hi, %s👋.\n" +
		"I'm FinancialStatisticBot, with me you can keep all income and expenditure statistics.\n" +
		"Use /help for command list."

	helpText = "Functionality list:\n" +
		"/start - Greetings\n" +
		"/help - List of commands\n" +
		"/clear - Clear all your data\n" +
		"/remove [index] - Remove one income/expense by its position (like /remove 1)\n" +
		"/categories - List of categories\n" +
		"/addincome [category] [title] [amount] [date] - Add your income, [date] is optional\n" +
		"/addexpense [category] [title] [amount] [date] - Add your expense, [date] is optional\n" +
		"/moneylist - List of all your incomes/expenses sorted by date\n" +
		"/allstatistics - Chart and list of all your incomes/expenses sorted by date\n" +
		"/statcatper [day/week/month/year] - Your incomes/expenses per category for a period\n" +
		"/statrange [start] [end] - Your incomes/expenses per category between two dates\n" +
		"/balance [day/week/month/year] - Income, expense and net balance, all time by default\n" +
		"/expweek - Your expenses for the week\n" +
		"/expmonth - Your expenses for the month\n"

	unknownText   = "Unknown command. Use /help for command list."
	emptyText     = "You don't have any incomes/expenses..."
	clearedText   = "Successfully cleared all your notes!"
	dateHint      = "Use YYYY-MM-DD format."
	internalError = "Something went wrong, please try again later."
)

// kindBlocks renders the income block followed by the expense block.
func kindBlocks(t core.KindTotals) string {
	var b strings.Builder
	b.WriteString(core.MarkerIncome + "Income:\n")
	for _, line := range t.Income {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + core.MarkerExpense + "Expense:\n")
	for _, line := range t.Expense {
		b.WriteString(line + "\n")
	}
	return b.String()
}

func expenseBlock(period core.Period, entries []core.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expenses for the %s:\n", period)
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s\n", i+1, e)
	}
	return b.String()
}

func categoryBlocks(groups []core.CategoryGroup) string {
	var b strings.Builder
	for _, g := range groups {
		b.WriteString(g.Title() + ":\n")
		for _, line := range g.Lines {
			b.WriteString("\t" + line + "\n")
		}
	}
	return b.String()
}

func balanceText(w core.Window, t core.KindTotals) string {
	scope := "all time"
	if !w.Start.IsZero() {
		scope = w.String()
	}
	return fmt.Sprintf("Balance for %s:\n%sIncome: %s\n%sExpense: %s\nNet: %s",
		scope,
		core.MarkerIncome, core.FormatSigned(t.IncomeTotal),
		core.MarkerExpense, core.FormatSigned(t.ExpenseTotal.Neg()),
		core.FormatSigned(t.Net()))
}

func categoriesText(names []string) string {
	return "List of Categories:\n - " + strings.Join(names, "\n - ")
}
