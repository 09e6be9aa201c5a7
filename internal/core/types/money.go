// Package types holds the numeric value types of the inventory domain.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount in the lot's purchase currency.
type Money = decimal.Decimal

// Zero returns a zero amount.
func Zero() Money { return decimal.Zero }

// ParseMoney reads a decimal amount. Negative amounts are rejected: unit
// costs are never credits.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero(), fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return Zero(), fmt.Errorf("amount %s is negative", s)
	}
	return d, nil
}

// MustMoney is ParseMoney for fixtures.
func MustMoney(s string) Money {
	d, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Cost prices qty at unitCost without rounding.
func Cost(unitCost Money, qty Quantity) Money {
	return unitCost.Mul(qty.Decimal())
}
