package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a purse or bid amount. Auctions run in a single
// currency, so Money carries only the decimal amount; the currency code
// lives in the auction configuration.
type Money struct {
	amount decimal.Decimal
}

// NewMoney creates Money from a decimal amount.
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// NewMoneyFromInt creates Money from whole currency units.
func NewMoneyFromInt(units int64) Money {
	return Money{amount: decimal.NewFromInt(units)}
}

// NewMoneyFromString parses a decimal string into Money.
func NewMoneyFromString(s string) (Money, error) {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{amount: dec}, nil
}

// MustMoneyFromString parses a decimal string and panics on error (tests).
func MustMoneyFromString(s string) Money {
	m, err := NewMoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero is the zero amount.
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// Amount returns the underlying decimal.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

func (m Money) String() string {
	return m.amount.StringFixed(2)
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

// Compare returns -1, 0, or 1.
func (m Money) Compare(other Money) int {
	return m.amount.Cmp(other.amount)
}

func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// MulInt multiplies by an integer factor, used for min-squad headroom
// (basePrice x remaining mandatory slots).
func (m Money) MulInt(factor int64) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(factor))}
}

// Neg returns the negated amount.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg()}
}

// Abs returns the absolute amount.
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs()}
}

// ToFloat64 converts to float64 for display payloads only.
func (m Money) ToFloat64() float64 {
	f, _ := m.amount.Float64()
	return f
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.amount.String())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dec, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	m.amount = dec
	return nil
}

// Scan implements sql.Scanner; amounts are stored as NUMERIC.
func (m *Money) Scan(value interface{}) error {
	if value == nil {
		*m = Money{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return m.scanString(string(v))
	case string:
		return m.scanString(v)
	case float64:
		m.amount = decimal.NewFromFloat(v)
		return nil
	case int64:
		m.amount = decimal.NewFromInt(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.amount.String(), nil
}

func (m *Money) scanString(s string) error {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid money format: %w", err)
	}
	m.amount = dec
	return nil
}
