// Package core provides money parsing and handling utilities.
//
// Money is stored as integer cents. Conversions to and from the decimal
// representation used on the wire go through shopspring/decimal so that no
// amount ever passes through binary floating point.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxCents is the largest amount accepted, 99,999,999.99.
const MaxCents int64 = 9_999_999_999

// Bounds on the raw text and its decimal exponent. Rescaling a decimal costs
// 10^|exponent|, so both are checked before any arithmetic.
const (
	maxAmountLen = 32
	maxExponent  = 10
	minExponent  = -20
)

type Money struct {
	Cents int64
}

var hundred = decimal.NewFromInt(100)

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Unlike a
// rounding parser it rejects values with more than two significant fractional
// digits, so what the caller typed is exactly what gets stored. Negative values
// are rejected; zero is allowed and callers that need a positive amount check
// Validate.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234, nil
//	ParseMoney("12,30")  -> 1230, nil
//	ParseMoney("12.340") -> 1234, nil
//	ParseMoney("12.345") -> 0, ErrTooManyDecimals
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if len(s) > maxAmountLen {
		return Money{}, ErrAmountTooLarge
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return moneyFromDecimal(d)
}

// moneyFromDecimal converts d to Money, rejecting negative, oversized or
// sub-cent values.
func moneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	if d.IsZero() {
		return Money{}, nil
	}
	if d.Exponent() > maxExponent {
		return Money{}, ErrAmountTooLarge
	}
	if d.Exponent() < minExponent {
		return Money{}, ErrTooManyDecimals
	}
	if !d.Equal(d.Truncate(2)) {
		return Money{}, ErrTooManyDecimals
	}
	cents := d.Mul(hundred)
	if cents.GreaterThan(decimal.NewFromInt(MaxCents)) {
		return Money{}, ErrAmountTooLarge
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Validate requires a strictly positive amount.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes money as a quoted decimal string, e.g. "12.30".
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON numbers and decimal strings. The raw
// token is parsed directly, never through float64.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		return errors.New("amount is required")
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Percentage returns part/whole*100 rounded to two decimal places. A whole
// that is zero or negative yields zero.
func Percentage(part, whole Money) decimal.Decimal {
	if whole.Cents <= 0 {
		return decimal.Zero
	}
	return part.Decimal().Div(whole.Decimal()).Mul(hundred).Round(2)
}

// Average returns the arithmetic mean of amounts rounded to the cent, or zero
// for an empty slice.
func Average(amounts []Money) Money {
	if len(amounts) == 0 {
		return Money{}
	}
	var sum int64
	for _, a := range amounts {
		sum += a.Cents
	}
	avg := decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(amounts)))).Round(0)
	return Money{Cents: avg.IntPart()}
}
