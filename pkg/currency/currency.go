// Package currency provides the currency registry used across the ledger:
// ISO-style codes, minor-unit precision and the fiat/crypto classification
// that drives fee-split reporting.
package currency

import (
	"fmt"
	"sync"
)

const (
	// DefaultCurrency is the fallback currency code (EUR, the reporting currency).
	DefaultCurrency Code = "EUR"
	// DefaultDecimals is the default number of decimal places for currencies.
	DefaultDecimals = 2
)

// Code is a currency code (ISO 4217 for fiat, ticker symbol for crypto).
type Code string

func (c Code) String() string { return string(c) }

// Kind classifies a currency for fee-split reporting.
type Kind string

const (
	// KindFiat marks government-issued currencies.
	KindFiat Kind = "fiat"
	// KindCrypto marks crypto assets.
	KindCrypto Kind = "crypto"
)

// Meta holds currency-specific metadata.
type Meta struct {
	Decimals int
	Kind     Kind
	Symbol   string
}

var (
	mu       sync.RWMutex
	registry = map[Code]Meta{
		"EUR":  {Decimals: 2, Kind: KindFiat, Symbol: "€"},
		"USD":  {Decimals: 2, Kind: KindFiat, Symbol: "$"},
		"GBP":  {Decimals: 2, Kind: KindFiat, Symbol: "£"},
		"CHF":  {Decimals: 2, Kind: KindFiat, Symbol: "CHF"},
		"BTC":  {Decimals: 8, Kind: KindCrypto, Symbol: "₿"},
		"ETH":  {Decimals: 8, Kind: KindCrypto, Symbol: "Ξ"},
		"USDT": {Decimals: 6, Kind: KindCrypto, Symbol: "₮"},
	}
)

// Register adds or updates a currency in the registry.
func Register(code Code, meta Meta) {
	mu.Lock()
	defer mu.Unlock()
	registry[code] = meta
}

// Get returns currency metadata for the given code.
func Get(code Code) (Meta, error) {
	mu.RLock()
	defer mu.RUnlock()
	meta, ok := registry[code]
	if !ok {
		return Meta{}, fmt.Errorf("unsupported currency: %s", code)
	}
	return meta, nil
}

// IsSupported reports whether the code is registered.
func IsSupported(code Code) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registry[code]
	return ok
}

// IsValidFormat reports whether the code looks like a currency code:
// 3-5 uppercase ASCII letters.
func IsValidFormat(code Code) bool {
	if len(code) < 3 || len(code) > 5 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// IsCrypto reports whether the code is a registered crypto asset.
func IsCrypto(code Code) bool {
	meta, err := Get(code)
	return err == nil && meta.Kind == KindCrypto
}

// IsFiat reports whether the code is a registered fiat currency.
func IsFiat(code Code) bool {
	meta, err := Get(code)
	return err == nil && meta.Kind == KindFiat
}
