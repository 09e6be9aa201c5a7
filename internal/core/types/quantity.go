package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity counts material in ten-thousandths of its unit of measure, so
// 1.5 kg is 15000. It is stored as BIGINT and sums without rounding.
type Quantity int64

// QuantityScale is the number of Quantity steps per whole unit.
const QuantityScale int64 = 10_000

const quantityExp = 4

var (
	maxQuantity = decimal.NewFromInt(math.MaxInt64)
	minQuantity = decimal.NewFromInt(math.MinInt64)
)

// NewQuantity builds a whole-unit quantity.
func NewQuantity(units int64) Quantity { return Quantity(units * QuantityScale) }

// QuantityFromDecimal truncates d to four fractional digits.
func QuantityFromDecimal(d decimal.Decimal) (Quantity, error) {
	scaled := d.Shift(quantityExp).Truncate(0)
	if scaled.GreaterThan(maxQuantity) || scaled.LessThan(minQuantity) {
		return 0, fmt.Errorf("quantity %s out of range", d)
	}
	return Quantity(scaled.IntPart()), nil
}

// ParseQuantity reads "12.5", ".25" or "1e2". Digits beyond the fourth
// fractional place are truncated.
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty quantity")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return QuantityFromDecimal(d)
}

// Decimal converts q exactly.
func (q Quantity) Decimal() decimal.Decimal { return decimal.New(int64(q), -quantityExp) }

// Float64 is for metrics and CEL rules only.
func (q Quantity) Float64() float64 { return float64(q) / float64(QuantityScale) }

func (q Quantity) IsZero() bool     { return q == 0 }
func (q Quantity) IsPositive() bool { return q > 0 }
func (q Quantity) IsNegative() bool { return q < 0 }

// MinQuantity returns the smaller of a and b.
func MinQuantity(a, b Quantity) Quantity {
	return min(a, b)
}

// String always prints four fractional digits.
func (q Quantity) String() string {
	return q.Decimal().StringFixed(quantityExp)
}

// MarshalJSON writes a bare number such as 3.0000.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts a number or a numeric string. null leaves zero.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	parsed, err := ParseQuantity(s)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
