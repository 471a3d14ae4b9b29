// Package commission resolves fee rules and computes fee amounts from them.
// Calculation is pure; resolution goes through the commission repository.
package commission

import (
	"context"
	"math"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/repository"
)

// Resolve returns the single active commission for the scope, or
// ledger.ErrCommissionMissing. Absence is a hard stop for the step: no
// transaction may be produced without a rule for both endpoints.
func Resolve(
	ctx context.Context,
	repo repository.CommissionRepository,
	scope ledger.CommissionScope,
	commissionType ledger.CommissionType,
	commissionContext ledger.CommissionContext,
	code currency.Code,
) (*ledger.Commission, error) {
	return repo.Active(ctx, scope, commissionType, commissionContext, code)
}

// Calculate computes the fee for a base amount under the given rule:
//
//	fee = base * percent/100 + fixed
//
// then clamps, max before min: if max is set and fee >= max, the fee is max;
// else if min is set and fee <= min, the fee is min. The refund variant
// substitutes the refund-specific percent/fixed/min fields (refunds carry no
// max cap).
func Calculate(c *ledger.Commission, base money.Money, refund bool) money.Money {
	percent, fixed := c.Percent, c.Fixed
	min, max := c.Min, c.Max
	if refund {
		percent, fixed = c.RefundPercent, c.RefundFixed
		min, max = c.RefundMin, nil
	}

	fee := int64(math.Round(float64(base.Amount())*percent/100)) + fixed
	if max != nil && fee >= *max {
		fee = *max
	} else if min != nil && fee <= *min {
		fee = *min
	}
	return money.MustFromMinor(fee, base.Currency())
}
