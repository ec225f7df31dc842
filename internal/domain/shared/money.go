package shared

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an exact monetary amount in a named currency.
// All price arithmetic in the engine goes through decimal; float64 is
// reserved for score math only.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney builds a Money from a decimal amount and currency code
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// MoneyFromFloat builds a Money from a float input at the command boundary
func MoneyFromFloat(amount float64, currency string) Money {
	return Money{Amount: decimal.NewFromFloat(amount), Currency: currency}
}

// IsPositive reports whether the amount is strictly greater than zero
func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// Mul multiplies the amount by a decimal factor
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(factor), Currency: m.Currency}
}

// Cmp compares two amounts; currencies must match, caller guarantees it
func (m Money) Cmp(other Money) int {
	return m.Amount.Cmp(other.Amount)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.String(), m.Currency)
}

// Quantity is an exact commodity quantity in the order's unit
type Quantity struct {
	Value decimal.Decimal
}

// NewQuantity builds a Quantity from a decimal value
func NewQuantity(value decimal.Decimal) Quantity {
	return Quantity{Value: value}
}

// QuantityFromFloat builds a Quantity from a float input at the boundary
func QuantityFromFloat(value float64) Quantity {
	return Quantity{Value: decimal.NewFromFloat(value)}
}

// ZeroQuantity is the additive identity
func ZeroQuantity() Quantity {
	return Quantity{Value: decimal.Zero}
}

// Add returns q + other
func (q Quantity) Add(other Quantity) Quantity {
	return Quantity{Value: q.Value.Add(other.Value)}
}

// Sub returns q - other
func (q Quantity) Sub(other Quantity) Quantity {
	return Quantity{Value: q.Value.Sub(other.Value)}
}

// Min returns the smaller of q and other
func (q Quantity) Min(other Quantity) Quantity {
	if q.Value.Cmp(other.Value) <= 0 {
		return q
	}
	return other
}

// IsZero reports whether the quantity is exactly zero
func (q Quantity) IsZero() bool {
	return q.Value.IsZero()
}

// IsPositive reports whether the quantity is strictly positive
func (q Quantity) IsPositive() bool {
	return q.Value.IsPositive()
}

// IsNegative reports whether the quantity is below zero
func (q Quantity) IsNegative() bool {
	return q.Value.IsNegative()
}

// Cmp compares two quantities
func (q Quantity) Cmp(other Quantity) int {
	return q.Value.Cmp(other.Value)
}

func (q Quantity) String() string {
	return q.Value.String()
}
