// Package bot turns chat commands into ledger operations and renders the
// results as reply text.
package bot

import (
	"errors"
	"fmt"
	"strings"

	"finbot/internal/core"

	"github.com/shopspring/decimal"
)

// ErrUsage reports missing or surplus command arguments.
var ErrUsage = errors.New("usage")

// Command is a tokenized "/name arg..." message.
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits text into a command and its arguments. The name is
// lower-cased and any "@botname" suffix is dropped. ok is false for text
// that is not a command.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: fields[1:]}, true
}

// entryArgs are the parsed arguments of /addincome and /addexpense.
type entryArgs struct {
	category string
	title    string
	amount   decimal.Decimal
	date     core.Date
}

const entryUsage = "/%s [category] [title] [amount] [YYYY-MM-DD]"

// parseEntryArgs reads "category title... amount [date]". With at least
// two tokens before it, a trailing token that looks like a date attempt is
// parsed as the date, so a malformed date is reported as such rather than
// being taken as the amount.
func parseEntryArgs(command string, args []string) (entryArgs, error) {
	if len(args) < 3 {
		return entryArgs{}, fmt.Errorf("%w: "+entryUsage, ErrUsage, command)
	}

	var out entryArgs
	out.category = args[0]
	rest := args[1:]

	if last := rest[len(rest)-1]; len(rest) >= 3 && looksLikeDate(last) {
		d, err := core.ParseDate(last)
		if err != nil {
			return entryArgs{}, fmt.Errorf("%w: %q", err, last)
		}
		out.date = d
		rest = rest[:len(rest)-1]
	}

	amount, err := core.ParseAmount(rest[len(rest)-1])
	if err != nil {
		return entryArgs{}, fmt.Errorf("%w: %q", err, rest[len(rest)-1])
	}
	out.amount = amount
	out.title = strings.Join(rest[:len(rest)-1], " ")
	return out, nil
}

// looksLikeDate reports whether tok is meant as a date: it has an inner
// separator, is eight digits like 20240105, or is not an amount at all.
func looksLikeDate(tok string) bool {
	if strings.IndexAny(tok, "-/") > 0 {
		return true
	}
	if len(tok) == 8 && strings.Trim(tok, "0123456789") == "" {
		return true
	}
	_, err := core.ParseAmount(tok)
	return err != nil
}

// parseRangeArgs reads the two dates of /statrange.
func parseRangeArgs(args []string) (core.Date, core.Date, error) {
	if len(args) != 2 {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: /statrange [YYYY-MM-DD] [YYYY-MM-DD]", ErrUsage)
	}
	start, err := core.ParseDate(args[0])
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	end, err := core.ParseDate(args[1])
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	return start, end, nil
}
