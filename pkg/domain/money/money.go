// Package money provides the Money value object used for every amount the
// ledger touches.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/finwire/backoffice/pkg/currency"
)

var (
	// ErrInvalidCurrencyCode is returned when a currency code is malformed or unregistered.
	ErrInvalidCurrencyCode = errors.New("invalid currency code")
	// ErrCurrencyMismatch is returned when arithmetic mixes currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrTooManyDecimals is returned when an amount carries more precision than the currency allows.
	ErrTooManyDecimals = errors.New("amount has more decimal places than the currency allows")
)

// Amount is a monetary amount as an integer in the smallest currency unit
// (cents for EUR, satoshi for BTC).
type Amount = int64

// Money represents a monetary value in a specific currency.
// Invariants:
//   - Amount is always stored in the smallest currency unit.
//   - Currency code must be registered.
//   - All arithmetic requires matching currencies.
type Money struct {
	amount   Amount
	currency currency.Code
}

// New creates Money from a main-unit amount (e.g. 10.50 EUR).
func New(amount float64, code currency.Code) (Money, error) {
	if code == "" {
		code = currency.DefaultCurrency
	}
	if !currency.IsValidFormat(code) {
		return Money{}, ErrInvalidCurrencyCode
	}
	meta, err := currency.Get(code)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidCurrencyCode, code)
	}
	factor := math.Pow10(meta.Decimals)
	scaled := amount * factor
	rounded := math.Round(scaled)
	if math.Abs(scaled-rounded) > 1e-6 {
		return Money{}, ErrTooManyDecimals
	}
	if rounded > math.MaxInt64 || rounded < math.MinInt64 {
		return Money{}, errors.New("amount exceeds maximum safe integer value")
	}
	return Money{amount: Amount(rounded), currency: code}, nil
}

// NewFromMinor creates Money from an amount already in the smallest currency unit.
func NewFromMinor(amount int64, code currency.Code) (Money, error) {
	if code == "" {
		code = currency.DefaultCurrency
	}
	if !currency.IsValidFormat(code) {
		return Money{}, ErrInvalidCurrencyCode
	}
	return Money{amount: amount, currency: code}, nil
}

// MustFromMinor is NewFromMinor for static amounts; panics on a bad code.
// Intended for tests and fixtures.
func MustFromMinor(amount int64, code currency.Code) Money {
	m, err := NewFromMinor(amount, code)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency.
func Zero(code currency.Code) Money {
	return Money{amount: 0, currency: code}
}

// Amount returns the amount in the smallest currency unit.
func (m Money) Amount() Amount { return m.amount }

// AmountFloat returns the amount in main currency units.
func (m Money) AmountFloat() float64 {
	meta, err := currency.Get(m.currency)
	if err != nil {
		return float64(m.amount) / math.Pow10(currency.DefaultDecimals)
	}
	return float64(m.amount) / math.Pow10(meta.Decimals)
}

// Currency returns the currency code.
func (m Money) Currency() currency.Code { return m.currency }

// Add returns m + other; currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

// Subtract returns m - other; currencies must match.
func (m Money) Subtract(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{amount: m.amount - other.amount, currency: m.currency}, nil
}

// Negate returns -m.
func (m Money) Negate() Money {
	return Money{amount: -m.amount, currency: m.currency}
}

// SameCurrency reports whether both values share a currency.
func (m Money) SameCurrency(other Money) bool { return m.currency == other.currency }

// Equals reports whether both amount and currency match.
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount == other.amount
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.amount < 0 }

// IsPositive reports whether the amount is above zero.
func (m Money) IsPositive() bool { return m.amount > 0 }

// GreaterThan reports m > other; false when currencies differ.
func (m Money) GreaterThan(other Money) bool {
	return m.SameCurrency(other) && m.amount > other.amount
}

// LessThan reports m < other; false when currencies differ.
func (m Money) LessThan(other Money) bool {
	return m.SameCurrency(other) && m.amount < other.amount
}

// String renders the amount with its currency code.
func (m Money) String() string {
	return fmt.Sprintf("%.8g %s", m.AmountFloat(), m.currency)
}
