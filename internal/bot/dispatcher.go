package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finbot/internal/core"
	"finbot/internal/log"

	"github.com/shopspring/decimal"
)

// Ledger is the part of services.LedgerService the commands need.
type Ledger interface {
	AddEntry(ctx context.Context, user core.UserID, kind core.Kind, category, title string, amount decimal.Decimal, date core.Date) (core.Entry, int, error)
	RemoveEntry(ctx context.Context, user core.UserID, position int) (core.Entry, error)
	Clear(ctx context.Context, user core.UserID) int
	List(user core.UserID) []core.Entry
	AllTimeStats(user core.UserID) (core.KindTotals, core.ChartSeries, error)
	ExpensesIn(user core.UserID, period core.Period) (core.Window, []core.Entry, error)
	StatsByPeriod(user core.UserID, token string) (core.Window, []core.CategoryGroup, error)
	StatsByRange(user core.UserID, start, end core.Date) (core.Window, []core.CategoryGroup, error)
	Balance(user core.UserID, token string) (core.Window, core.KindTotals, error)
	Categories() []string
}

// Message is an inbound chat message.
type Message struct {
	UserID    core.UserID
	ChatID    int64
	FirstName string
	Text      string
}

// Reply is what the transport sends back. Chart is set by chart-producing
// commands, in which case Text is its caption.
type Reply struct {
	Text  string
	Chart *core.ChartSeries
}

var (
	errUnknownCommand = errors.New("unknown command")
	errRangeOrder     = errors.New("range start after end")
)

type handlerFunc func(ctx context.Context, msg Message, args []string) (Reply, error)

type Dispatcher struct {
	ledger   Ledger
	log      *log.StructuredLogger
	handlers map[string]handlerFunc
}

func NewDispatcher(ledger Ledger, logger *log.Logger) *Dispatcher {
	d := &Dispatcher{
		ledger: ledger,
		log:    log.NewStructuredLogger(logger.WithComponent(log.ComponentBot)),
	}
	d.handlers = map[string]handlerFunc{
		"start":         d.start,
		"help":          d.help,
		"addincome":     d.addEntry(core.Income),
		"addexpense":    d.addEntry(core.Expense),
		"moneylist":     d.moneyList,
		"remove":        d.remove,
		"clear":         d.clear,
		"allstatistics": d.allStatistics,
		"expweek":       d.expensesIn(core.Week),
		"expmonth":      d.expensesIn(core.Month),
		"statcatper":    d.statsByPeriod,
		"statrange":     d.statsByRange,
		"balance":       d.balance,
		"categories":    d.categories,
	}
	return d
}

// Handle runs the command in msg.Text. It never fails: errors become the
// reply text.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) Reply {
	cmd, ok := ParseCommand(msg.Text)
	if !ok {
		return Reply{Text: unknownText}
	}
	h, ok := d.handlers[cmd.Name]
	if !ok {
		d.log.LogCommand(ctx, int64(msg.UserID), cmd.Name, errUnknownCommand)
		return Reply{Text: unknownText}
	}

	reply, err := h(ctx, msg, cmd.Args)
	d.log.LogCommand(ctx, int64(msg.UserID), cmd.Name, err)
	if err != nil {
		return Reply{Text: errorText(err)}
	}
	return reply
}

// errorText maps command failures to the message shown to the user.
func errorText(err error) string {
	switch {
	case errors.Is(err, ErrUsage):
		return "Usage: " + strings.TrimPrefix(err.Error(), ErrUsage.Error()+": ")
	case errors.Is(err, core.ErrEmptyLedger):
		return emptyText
	case errors.Is(err, core.ErrInvalidAmount):
		return "Your amount is invalid... Use a positive number like 12.50."
	case errors.Is(err, core.ErrInvalidDate):
		return "Your date is invalid... " + dateHint
	case errors.Is(err, core.ErrInvalidIndex):
		return "You entered an invalid index."
	case errors.Is(err, errRangeOrder):
		return "The range start must not be after its end."
	case errors.Is(err, core.ErrInvalidPeriod):
		return "You entered an invalid period.\nUse " + core.PeriodNames() + "."
	case errors.Is(err, core.ErrEmptyTitle):
		return "The title must not be empty."
	case errors.Is(err, core.ErrEmptyCategory):
		return "The category must not be empty."
	default:
		return internalError
	}
}

func (d *Dispatcher) start(_ context.Context, msg Message, _ []string) (Reply, error) {
	name := msg.FirstName
	if name == "" {
		name = "there"
	}
	return Reply{Text: fmt.Sprintf(greetingText, name)}, nil
}

func (d *Dispatcher) help(context.Context, Message, []string) (Reply, error) {
	return Reply{Text: helpText}, nil
}

func (d *Dispatcher) addEntry(kind core.Kind) handlerFunc {
	command := "add" + strings.ToLower(kind.String())
	return func(ctx context.Context, msg Message, args []string) (Reply, error) {
		a, err := parseEntryArgs(command, args)
		if err != nil {
			return Reply{}, err
		}
		e, pos, err := d.ledger.AddEntry(ctx, msg.UserID, kind, a.category, a.title, a.amount, a.date)
		if err != nil {
			return Reply{}, err
		}
		d.log.LogEntryAdded(ctx, int64(msg.UserID), kind.String(), e.Category, core.FormatAmount(e.Amount), e.Date.String(), pos)
		return Reply{Text: fmt.Sprintf("%s: %s was successfully added.", kind, e)}, nil
	}
}

func (d *Dispatcher) moneyList(_ context.Context, msg Message, _ []string) (Reply, error) {
	entries := d.ledger.List(msg.UserID)
	if len(entries) == 0 {
		return Reply{}, core.ErrEmptyLedger
	}
	return Reply{Text: kindBlocks(core.ByKindTotals(entries))}, nil
}

func (d *Dispatcher) remove(ctx context.Context, msg Message, args []string) (Reply, error) {
	if len(args) != 1 {
		return Reply{}, fmt.Errorf("%w: /remove [index]", ErrUsage)
	}
	pos, err := core.ParsePosition(args[0])
	if err != nil {
		return Reply{}, err
	}
	e, err := d.ledger.RemoveEntry(ctx, msg.UserID, pos)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("%s named: %s, was removed!", e.Kind, e)}, nil
}

func (d *Dispatcher) clear(ctx context.Context, msg Message, _ []string) (Reply, error) {
	d.ledger.Clear(ctx, msg.UserID)
	return Reply{Text: clearedText}, nil
}

func (d *Dispatcher) allStatistics(_ context.Context, msg Message, _ []string) (Reply, error) {
	totals, series, err := d.ledger.AllTimeStats(msg.UserID)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: kindBlocks(totals), Chart: &series}, nil
}

func (d *Dispatcher) expensesIn(period core.Period) handlerFunc {
	return func(_ context.Context, msg Message, _ []string) (Reply, error) {
		_, entries, err := d.ledger.ExpensesIn(msg.UserID, period)
		if err != nil {
			return Reply{}, err
		}
		if len(entries) == 0 {
			return Reply{Text: fmt.Sprintf("You don't have any expenses for the %s...", period)}, nil
		}
		return Reply{Text: expenseBlock(period, entries)}, nil
	}
}

func (d *Dispatcher) statsByPeriod(_ context.Context, msg Message, args []string) (Reply, error) {
	if len(args) != 1 {
		return Reply{}, fmt.Errorf("%w: /statcatper [day/week/month/year]", ErrUsage)
	}
	_, groups, err := d.ledger.StatsByPeriod(msg.UserID, args[0])
	if err != nil {
		return Reply{}, err
	}
	if len(groups) == 0 {
		return Reply{Text: fmt.Sprintf("You have no incomes/expenses for the %s.", strings.ToLower(args[0]))}, nil
	}
	return Reply{Text: categoryBlocks(groups)}, nil
}

func (d *Dispatcher) statsByRange(_ context.Context, msg Message, args []string) (Reply, error) {
	start, end, err := parseRangeArgs(args)
	if err != nil {
		return Reply{}, err
	}
	if start.Compare(end) > 0 {
		return Reply{}, fmt.Errorf("%w: %w", errRangeOrder, core.ErrInvalidPeriod)
	}
	w, groups, err := d.ledger.StatsByRange(msg.UserID, start, end)
	if err != nil {
		return Reply{}, err
	}
	if len(groups) == 0 {
		return Reply{Text: fmt.Sprintf("You have no incomes/expenses for %s.", w)}, nil
	}
	return Reply{Text: categoryBlocks(groups)}, nil
}

func (d *Dispatcher) balance(_ context.Context, msg Message, args []string) (Reply, error) {
	if len(args) > 1 {
		return Reply{}, fmt.Errorf("%w: /balance [day/week/month/year]", ErrUsage)
	}
	token := ""
	if len(args) == 1 {
		token = args[0]
	}
	w, totals, err := d.ledger.Balance(msg.UserID, token)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: balanceText(w, totals)}, nil
}

func (d *Dispatcher) categories(context.Context, Message, []string) (Reply, error) {
	return Reply{Text: categoriesText(d.ledger.Categories())}, nil
}
