package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the precision every document-level amount is rounded to
const CurrencyPlaces int32 = 2

// Money is an immutable single-currency amount. Arithmetic stays in decimal;
// rounding to currency precision happens only through Round.
type Money struct {
	amount decimal.Decimal
}

// NewMoney wraps a decimal amount
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// NewMoneyFromString parses a decimal string
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return Money{amount: d}, nil
}

// NewMoneyFromInt creates Money from a whole amount
func NewMoneyFromInt(amount int64) Money {
	return Money{amount: decimal.NewFromInt(amount)}
}

// ZeroMoney returns a zero amount
func ZeroMoney() Money {
	return Money{amount: decimal.Zero}
}

// Amount returns the raw decimal
func (m Money) Amount() decimal.Decimal { return m.amount }

func (m Money) IsZero() bool { return m.amount.IsZero() }

func (m Money) IsPositive() bool { return m.amount.IsPositive() }

func (m Money) IsNegative() bool { return m.amount.IsNegative() }

func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

func (m Money) Subtract(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor)}
}

// Divide returns an error for a zero divisor
func (m Money) Divide(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Money{}, errors.New("cannot divide by zero")
	}
	return Money{amount: m.amount.Div(divisor)}, nil
}

// Round rounds half away from zero to currency precision
func (m Money) Round() Money {
	return Money{amount: m.amount.Round(CurrencyPlaces)}
}

// FloorZero clamps negative amounts to zero
func (m Money) FloorZero() Money {
	if m.amount.IsNegative() {
		return ZeroMoney()
	}
	return m
}

// Min returns the smaller of two amounts
func (m Money) Min(other Money) Money {
	if other.amount.LessThan(m.amount) {
		return other
	}
	return m
}

// Percent returns pct percent of m
func (m Money) Percent(pct decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(pct).Div(decimal.NewFromInt(100))}
}

func (m Money) Equals(other Money) bool { return m.amount.Equal(other.amount) }

func (m Money) LessThan(other Money) bool { return m.amount.LessThan(other.amount) }

func (m Money) GreaterThan(other Money) bool { return m.amount.GreaterThan(other.amount) }

func (m Money) LessThanOrEqual(other Money) bool { return m.amount.LessThanOrEqual(other.amount) }

func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.amount.GreaterThanOrEqual(other.amount)
}

// String formats at currency precision
func (m Money) String() string {
	return m.amount.StringFixed(CurrencyPlaces)
}

// SumMoney adds amounts without intermediate rounding
func SumMoney(amounts ...Money) Money {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.amount)
	}
	return Money{amount: total}
}

// RoundCurrency rounds a raw decimal to currency precision
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// NonNegative clamps a raw decimal at zero
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MarshalJSON encodes the amount as a JSON string to keep precision
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.amount.String())
}

// UnmarshalJSON accepts both quoted strings and bare numbers
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	m.amount = d
	return nil
}

// Value implements driver.Valuer
func (m Money) Value() (driver.Value, error) {
	return m.amount.String(), nil
}

// Scan implements sql.Scanner
func (m *Money) Scan(value any) error {
	if value == nil {
		m.amount = decimal.Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("cannot scan %T into Money: %w", value, err)
	}
	m.amount = d
	return nil
}
