package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for amounts that are not positive numbers.
var ErrInvalidAmount = errors.New("amount must be a positive number")

// ParseAmount parses user input such as "12.50" into a positive amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, d)
	}
	return nil
}

// FormatAmount renders the absolute value of an amount in the given currency,
// rounded to the currency's minor unit (e.g. "$10.00").
// This is the only place where amounts are rounded.
func FormatAmount(amount decimal.Decimal, currency string) string {
	// to get a never nil currency I need to call the Money constructor
	cur := money.New(0, currency).Currency()
	minor := amount.Abs().Shift(int32(cur.Fraction)).Round(0).IntPart()
	return cur.Formatter().Format(minor)
}

// Status summarizes a balance from its member's point of view.
type Status int

const (
	StatusSettled Status = iota
	StatusOwed
	StatusOwes
)

func (s Status) String() string {
	switch s {
	case StatusOwed:
		return "owed"
	case StatusOwes:
		return "owes"
	default:
		return "settled"
	}
}

// StatusOf classifies a balance, ignoring differences below one cent.
func StatusOf(balance decimal.Decimal) Status {
	switch {
	case balance.GreaterThan(noise):
		return StatusOwed
	case balance.LessThan(noise.Neg()):
		return StatusOwes
	default:
		return StatusSettled
	}
}
