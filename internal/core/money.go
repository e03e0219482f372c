// Package core holds the domain types shared by the bot, the API and storage.
//
// Amounts are fixed-point values with two fractional digits backed by
// shopspring/decimal; storage persists them as integer cents.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for every amount.
const MoneyScale = 2

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrTooManyDecimals = errors.New("amount has more than 2 decimal places")
	ErrAmountTooLarge  = errors.New("amount too large")
)

// maxAmount is the largest value a NUMERIC(10,2) column can hold.
var maxAmount = decimal.New(9999999999, -MoneyScale)

// Money is a fixed-point amount with two decimal places.
type Money struct {
	dec decimal.Decimal
}

// NewMoney quantises d to two decimal places.
func NewMoney(d decimal.Decimal) Money {
	return Money{dec: d.Round(MoneyScale)}
}

// MoneyFromCents builds an amount from integer minor units.
func MoneyFromCents(cents int64) Money {
	return Money{dec: decimal.New(cents, -MoneyScale)}
}

// ParseMoney parses s as an exact decimal number.
//
// No separator normalisation or rounding is performed: values with more than
// two fractional digits, negative values and values outside the column range
// are rejected.
//
//	ParseMoney("300")    -> 300.00
//	ParseMoney("12.5")   -> 12.50
//	ParseMoney("12,5")   -> ErrInvalidAmount
//	ParseMoney("-1")     -> ErrNegativeAmount
//	ParseMoney("1.005")  -> ErrTooManyDecimals
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w %q: %v", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	if !d.Equal(d.Round(MoneyScale)) {
		return Money{}, ErrTooManyDecimals
	}
	m := Money{dec: d.Round(MoneyScale)}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

func (m Money) Validate() error {
	if m.dec.IsNegative() {
		return ErrNegativeAmount
	}
	if m.dec.GreaterThan(maxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

// Cents returns the amount in integer minor units.
func (m Money) Cents() int64 {
	return m.dec.Shift(MoneyScale).IntPart()
}

func (m Money) Decimal() decimal.Decimal {
	return m.dec
}

func (m Money) Add(o Money) Money {
	return Money{dec: m.dec.Add(o.dec)}
}

func (m Money) Equal(o Money) bool {
	return m.dec.Equal(o.dec)
}

func (m Money) IsZero() bool {
	return m.dec.IsZero()
}

// String formats the amount with exactly two decimals ("450.00").
func (m Money) String() string {
	return m.dec.StringFixed(MoneyScale)
}

// Short formats the amount with at least one fractional digit ("300.0", "12.5").
func (m Money) Short() string {
	s := m.dec.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// MarshalJSON encodes the amount as a two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return ErrInvalidAmount
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidAmount
		}
		raw = s
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
