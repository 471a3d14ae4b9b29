package money_test

import (
	"testing"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ConvertsToMinorUnits(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
		code   currency.Code
		want   int64
	}{
		{"whole euros", 10, "EUR", 1_000},
		{"euro cents", 10.50, "EUR", 1_050},
		{"negative", -3.25, "EUR", -325},
		{"btc satoshi", 0.00000001, "BTC", 1},
		{"one btc", 1, "BTC", 100_000_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := money.New(tc.amount, tc.code)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Amount())
			assert.Equal(t, tc.code, got.Currency())
		})
	}
}

func TestNew_RejectsExcessPrecision(t *testing.T) {
	_, err := money.New(10.505, "EUR")
	require.ErrorIs(t, err, money.ErrTooManyDecimals)
}

func TestNew_RejectsBadCode(t *testing.T) {
	_, err := money.New(10, "eur")
	require.ErrorIs(t, err, money.ErrInvalidCurrencyCode)

	_, err = money.NewFromMinor(100, "E")
	require.ErrorIs(t, err, money.ErrInvalidCurrencyCode)
}

func TestNew_EmptyCodeDefaults(t *testing.T) {
	m, err := money.New(5, "")
	require.NoError(t, err)
	assert.Equal(t, currency.DefaultCurrency, m.Currency())
}

func TestArithmetic(t *testing.T) {
	a := money.MustFromMinor(1_000, "EUR")
	b := money.MustFromMinor(300, "EUR")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1_300), sum.Amount())

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.Equal(t, int64(700), diff.Amount())

	assert.Equal(t, int64(-1_000), a.Negate().Amount())
}

func TestArithmetic_CurrencyMismatch(t *testing.T) {
	eur := money.MustFromMinor(100, "EUR")
	btc := money.MustFromMinor(100, "BTC")

	_, err := eur.Add(btc)
	require.ErrorIs(t, err, money.ErrCurrencyMismatch)
	_, err = eur.Subtract(btc)
	require.ErrorIs(t, err, money.ErrCurrencyMismatch)
}

func TestComparisons(t *testing.T) {
	small := money.MustFromMinor(100, "EUR")
	big := money.MustFromMinor(200, "EUR")
	other := money.MustFromMinor(200, "USD")

	assert.True(t, big.GreaterThan(small))
	assert.True(t, small.LessThan(big))
	assert.False(t, big.GreaterThan(other), "cross-currency compares are always false")
	assert.True(t, big.Equals(money.MustFromMinor(200, "EUR")))
	assert.False(t, big.Equals(other))

	assert.True(t, money.Zero("EUR").IsZero())
	assert.True(t, small.IsPositive())
	assert.True(t, small.Negate().IsNegative())
}

func TestAmountFloat(t *testing.T) {
	assert.InDelta(t, 10.50, money.MustFromMinor(1_050, "EUR").AmountFloat(), 1e-9)
	assert.InDelta(t, 0.00000001, money.MustFromMinor(1, "BTC").AmountFloat(), 1e-12)
}
