// Package money converts between decimal amounts and the integer minor units
// (cents) that are persisted.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits an amount may carry.
const Scale = 2

// maxIntegerDigits is the number of digits before the point in MaxAmount.
const maxIntegerDigits = 12

// MaxAmount is the largest single amount accepted.
var MaxAmount = decimal.RequireFromString("999999999999.99")

var (
	ErrNotPositive = errors.New("amount must be greater than zero")
	ErrTooPrecise  = errors.New("amount must have at most 2 decimal places")
	ErrTooLarge    = errors.New("amount exceeds the maximum allowed value")
	ErrMalformed   = errors.New("amount is not a valid decimal number")
)

// Parse reads a decimal amount from its string form.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrMalformed
	}
	return d, nil
}

// ToMinorUnits validates d as a positive amount with at most two fractional
// digits and returns it in minor units. Amounts are never rounded.
func ToMinorUnits(d decimal.Decimal) (int64, error) {
	if !d.IsPositive() {
		return 0, ErrNotPositive
	}
	// Bound the exponent before any rescaling: coefficient digits plus
	// exponent is the integer part's width, and a coefficient cannot carry
	// more trailing zeros than it has digits.
	digits, exp := d.NumDigits(), int(d.Exponent())
	if digits+exp > maxIntegerDigits {
		return 0, ErrTooLarge
	}
	if -exp-Scale >= digits {
		return 0, ErrTooPrecise
	}
	if !d.Equal(d.Truncate(Scale)) {
		return 0, ErrTooPrecise
	}
	if d.GreaterThan(MaxAmount) {
		return 0, ErrTooLarge
	}
	return d.Shift(Scale).IntPart(), nil
}

// FromMinorUnits converts minor units back into a decimal amount.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -Scale)
}

// Format renders minor units as a fixed two-digit decimal string, e.g. "100.00".
func Format(v int64) string {
	return FromMinorUnits(v).StringFixed(Scale)
}
