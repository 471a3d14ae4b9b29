package operation

import (
	"context"
	"errors"
	"fmt"

	"github.com/finwire/backoffice/pkg/commission"
	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/domain/ledger"
)

// Precondition resolution shared by every transition handler. Each failure is
// a structured, recoverable error: the step aborts before any posting and the
// operation stays where it is for correction and retry.

// systemAccount resolves the platform's own account for (currency, rail).
func (sc *stepContext) systemAccount(
	ctx context.Context,
	code currency.Code,
	accountType ledger.AccountType,
) (*ledger.Account, error) {
	accRepo, err := sc.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	acc, err := accRepo.SystemAccount(ctx, code, accountType)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ledger.ErrSystemAccountMissing, code, accountType)
		}
		return nil, err
	}
	return acc, nil
}

// providerAccount resolves the provider account serving a role in a currency.
func (sc *stepContext) providerAccount(
	ctx context.Context,
	code currency.Code,
	role ledger.ProviderRole,
) (*ledger.Account, error) {
	accRepo, err := sc.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	acc, err := accRepo.ProviderAccount(ctx, code, role)
	if err != nil {
		return nil, fmt.Errorf("provider %s/%s: %w", role, code, err)
	}
	return acc, nil
}

// feeChild resolves a provider's fee sub-account; its absence blocks the step.
func (sc *stepContext) feeChild(
	ctx context.Context,
	providerAcc *ledger.Account,
) (*ledger.Account, error) {
	accRepo, err := sc.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	fee, err := accRepo.FeeChild(ctx, providerAcc.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: provider %s", ledger.ErrFeeAccountMissing, providerAcc.ID)
		}
		return nil, err
	}
	return fee, nil
}

// commissionFor resolves the single active commission for an account scope.
func (sc *stepContext) commissionFor(
	ctx context.Context,
	scope ledger.CommissionScope,
	commissionType ledger.CommissionType,
	commissionContext ledger.CommissionContext,
	code currency.Code,
) (*ledger.Commission, error) {
	commRepo, err := sc.uow.CommissionRepository()
	if err != nil {
		return nil, err
	}
	c, err := commission.Resolve(ctx, commRepo, scope, commissionType, commissionContext, code)
	if err != nil {
		if errors.Is(err, ledger.ErrCommissionMissing) {
			return nil, fmt.Errorf("%w: %s/%s %s",
				ledger.ErrCommissionMissing, commissionType, commissionContext, code)
		}
		return nil, err
	}
	return c, nil
}
