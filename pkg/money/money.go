// Package money converts decimal major-unit amounts into the integer minor
// units used on the provider wire.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	tenThous = decimal.NewFromInt(10000)
)

// ToMinor returns round(amount * 100). Halves round away from zero so that
// ToMinor(-a) == -ToMinor(a).
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinor converts minor units back to a major-unit decimal.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// TaxRateBasisPoints returns round(rate * 10000), e.g. 0.25 -> 2500.
func TaxRateBasisPoints(rate decimal.Decimal) int64 {
	return rate.Mul(tenThous).Round(0).IntPart()
}

// UnitPrice divides an already-rounded line total by quantity and rounds to
// the nearest minor unit. A non-positive quantity yields the total.
func UnitPrice(totalMinor int64, quantity int) int64 {
	if quantity <= 0 {
		return totalMinor
	}
	return decimal.NewFromInt(totalMinor).
		Div(decimal.NewFromInt(int64(quantity))).
		Round(0).
		IntPart()
}

// Parse reads a major-unit amount such as "19.99".
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}
