package currency_test

import (
	"testing"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_KnownCurrencies(t *testing.T) {
	eur, err := currency.Get("EUR")
	require.NoError(t, err)
	assert.Equal(t, 2, eur.Decimals)
	assert.Equal(t, currency.KindFiat, eur.Kind)

	btc, err := currency.Get("BTC")
	require.NoError(t, err)
	assert.Equal(t, 8, btc.Decimals)
	assert.Equal(t, currency.KindCrypto, btc.Kind)
}

func TestGet_Unknown(t *testing.T) {
	_, err := currency.Get("XXX")
	require.Error(t, err)
	assert.False(t, currency.IsSupported("XXX"))
}

func TestRegister(t *testing.T) {
	currency.Register("DOGE", currency.Meta{Decimals: 8, Kind: currency.KindCrypto})
	assert.True(t, currency.IsSupported("DOGE"))
	assert.True(t, currency.IsCrypto("DOGE"))
}

func TestIsValidFormat(t *testing.T) {
	cases := []struct {
		code currency.Code
		want bool
	}{
		{"EUR", true},
		{"USDT", true},
		{"ABCDE", true},
		{"eu", false},
		{"eur", false},
		{"E", false},
		{"TOOLONG", false},
		{"EU1", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, currency.IsValidFormat(tc.code), "code %q", tc.code)
	}
}

func TestKindClassification(t *testing.T) {
	assert.True(t, currency.IsFiat("EUR"))
	assert.False(t, currency.IsCrypto("EUR"))
	assert.True(t, currency.IsCrypto("USDT"))
	assert.False(t, currency.IsFiat("USDT"))
	// Unregistered codes are neither.
	assert.False(t, currency.IsFiat("ZZZ"))
	assert.False(t, currency.IsCrypto("ZZZ"))
}
