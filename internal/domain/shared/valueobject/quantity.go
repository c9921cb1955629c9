package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// QuantityPlaces is the precision line quantities are stored with
const QuantityPlaces int32 = 4

// Quantity is a non-negative decimal quantity. Items sold by weight or
// volume carry fractional values.
type Quantity struct {
	value decimal.Decimal
}

// NewQuantity rejects negative values
func NewQuantity(value decimal.Decimal) (Quantity, error) {
	if value.IsNegative() {
		return Quantity{}, errors.New("quantity cannot be negative")
	}
	return Quantity{value: value.Round(QuantityPlaces)}, nil
}

// NewQuantityFromString parses a decimal string
func NewQuantityFromString(value string) (Quantity, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Quantity{}, fmt.Errorf("invalid quantity string: %w", err)
	}
	return NewQuantity(d)
}

// MustNewQuantityFromInt panics on negative input
func MustNewQuantityFromInt(value int64) Quantity {
	q, err := NewQuantity(decimal.NewFromInt(value))
	if err != nil {
		panic(err)
	}
	return q
}

func (q Quantity) Amount() decimal.Decimal { return q.value }

func (q Quantity) IsZero() bool { return q.value.IsZero() }

func (q Quantity) IsPositive() bool { return q.value.IsPositive() }

func (q Quantity) Add(other Quantity) Quantity {
	return Quantity{value: q.value.Add(other.value)}
}

// Remaining returns q - other floored at zero
func (q Quantity) Remaining(other Quantity) Quantity {
	return Quantity{value: NonNegative(q.value.Sub(other.value))}
}

// Covers reports whether q is at least required
func (q Quantity) Covers(required Quantity) bool {
	return q.value.GreaterThanOrEqual(required.value)
}

func (q Quantity) String() string {
	return q.value.String()
}

// RoundQuantity rounds a raw decimal to quantity precision
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}
