package commission_test

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/finwire/backoffice/pkg/commission"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestCalculate(t *testing.T) {
	cases := []struct {
		name string
		rule ledger.Commission
		base int64
		want int64
	}{
		{
			name: "percent only",
			rule: ledger.Commission{Percent: 2.0},
			base: 100_000,
			want: 2_000,
		},
		{
			name: "fixed only",
			rule: ledger.Commission{Fixed: 150},
			base: 100_000,
			want: 150,
		},
		{
			name: "percent plus fixed",
			rule: ledger.Commission{Percent: 1.5, Fixed: 100},
			base: 10_000,
			want: 250,
		},
		{
			name: "rounds half up",
			rule: ledger.Commission{Percent: 0.5},
			base: 101, // 0.505 rounds to 1
			want: 1,
		},
		{
			name: "min raises",
			rule: ledger.Commission{Percent: 1.0, Min: ptr(500)},
			base: 10_000, // 100 < min
			want: 500,
		},
		{
			name: "max caps",
			rule: ledger.Commission{Percent: 10.0, Max: ptr(300)},
			base: 10_000, // 1000 > max
			want: 300,
		},
		{
			name: "max wins over min when both match",
			rule: ledger.Commission{Fixed: 400, Min: ptr(500), Max: ptr(400)},
			base: 10_000, // fee == max == 400, also <= min
			want: 400,
		},
		{
			name: "clamp bounds are inclusive",
			rule: ledger.Commission{Fixed: 500, Min: ptr(500)},
			base: 10_000,
			want: 500,
		},
		{
			name: "zero rule",
			rule: ledger.Commission{},
			base: 100_000,
			want: 0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := money.MustFromMinor(tc.base, "EUR")
			got := commission.Calculate(&tc.rule, base, false)
			assert.Equal(t, tc.want, got.Amount())
			assert.Equal(t, base.Currency(), got.Currency())
		})
	}
}

func TestCalculate_RefundVariant(t *testing.T) {
	rule := ledger.Commission{
		Percent: 5.0, Fixed: 1_000, Max: ptr(10),
		RefundPercent: 1.0, RefundFixed: 200, RefundMin: ptr(300),
	}
	base := money.MustFromMinor(50_000, "EUR")

	// Refunds price off the refund fields and ignore the max cap.
	got := commission.Calculate(&rule, base, true)
	assert.Equal(t, int64(700), got.Amount()) // 1% of 50000 + 200

	small := commission.Calculate(&rule, money.MustFromMinor(1_000, "EUR"), true)
	assert.Equal(t, int64(300), small.Amount()) // 10 + 200 raised to refund min
}

func TestResolve_SupersededRuleIsInactive(t *testing.T) {
	ctx := context.Background()
	uow := testutils.NewMemUoW()
	repo, err := uow.CommissionRepository()
	require.NoError(t, err)
	accountID := uuid.New()

	_, err = commission.Resolve(ctx, repo, ledger.ScopeAccount(accountID),
		ledger.CommissionIncoming, ledger.ContextWire, "EUR")
	require.ErrorIs(t, err, ledger.ErrCommissionMissing)

	uow.SeedCommission(&ledger.Commission{
		ID: uuid.New(), AccountID: &accountID, Active: true,
		Type: ledger.CommissionIncoming, Context: ledger.ContextWire,
		Currency: "EUR", Percent: 2.0, CreatedAt: time.Now(),
	})
	rule, err := commission.Resolve(ctx, repo, ledger.ScopeAccount(accountID),
		ledger.CommissionIncoming, ledger.ContextWire, "EUR")
	require.NoError(t, err)
	assert.Equal(t, 2.0, rule.Percent)

	// A replacement deactivates the old rule; only one version is ever active.
	require.NoError(t, repo.Supersede(ctx, &ledger.Commission{
		ID: uuid.New(), AccountID: &accountID,
		Type: ledger.CommissionIncoming, Context: ledger.ContextWire,
		Currency: "EUR", Percent: 3.5, CreatedAt: time.Now(),
	}))
	rule, err = commission.Resolve(ctx, repo, ledger.ScopeAccount(accountID),
		ledger.CommissionIncoming, ledger.ContextWire, "EUR")
	require.NoError(t, err)
	assert.Equal(t, 3.5, rule.Percent)
}

// TestCalculate_Bounds fuzzes random rules and checks the clamp invariants
// hold for every combination.
func TestCalculate_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1_000; i++ {
		rule := ledger.Commission{
			Percent: rng.Float64() * 10,
			Fixed:   rng.Int63n(1_000),
		}
		if rng.Intn(2) == 0 {
			rule.Min = ptr(rng.Int63n(2_000))
		}
		if rng.Intn(2) == 0 {
			rule.Max = ptr(rng.Int63n(5_000))
		}
		base := money.MustFromMinor(rng.Int63n(1_000_000), "EUR")

		fee := commission.Calculate(&rule, base, false).Amount()
		raw := int64(math.Round(float64(base.Amount())*rule.Percent/100)) + rule.Fixed

		switch {
		case rule.Max != nil && raw >= *rule.Max:
			assert.Equal(t, *rule.Max, fee)
		case rule.Min != nil && raw <= *rule.Min:
			assert.Equal(t, *rule.Min, fee)
		default:
			assert.Equal(t, raw, fee)
		}
	}
}
