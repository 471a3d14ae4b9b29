// Package fees derives the client/provider/system fee split for an operation
// and the amount still recoverable by a refund. It is a read-side projection:
// nothing in this package ever posts.
package fees

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/repository"
	"github.com/google/uuid"
)

// Compute derives the fee split from an operation's transactions. Returns
// false when the operation has no transactions yet.
//
// client: system-fee postings landing in the system account, split by the
// fiat/crypto role of their currency. provider: postings landing in
// provider-owned fee sub-accounts. system: client minus provider, the
// platform's net margin.
func Compute(
	op *ledger.Operation,
	txs []*ledger.Transaction,
	accounts map[uuid.UUID]*ledger.Account,
) (*ledger.OperationFee, bool) {
	if len(txs) == 0 {
		return nil, false
	}
	fee := &ledger.OperationFee{OperationID: op.ID, UpdatedAt: time.Now()}
	for _, tx := range txs {
		to := accounts[tx.ToAccountID]
		if to == nil {
			continue
		}
		credited := tx.CreditedAmount()
		crypto := currency.IsCrypto(credited.Currency())
		switch {
		case tx.Type == ledger.TransactionSystemFee && to.OwnerType == ledger.OwnerSystem:
			if crypto {
				fee.ClientCrypto += credited.Amount()
			} else {
				fee.ClientFiat += credited.Amount()
			}
		case to.IsProviderFee():
			if crypto {
				fee.ProviderCrypto += credited.Amount()
			} else {
				fee.ProviderFiat += credited.Amount()
			}
		}
	}
	fee.SystemFiat = fee.ClientFiat - fee.ProviderFiat
	fee.SystemCrypto = fee.ClientCrypto - fee.ProviderCrypto
	return fee, true
}

// RefundAvailable returns the amount still recoverable from the provider leg:
// the settled amount minus every system-fee posting that did not land in the
// system account.
func RefundAvailable(
	op *ledger.Operation,
	txs []*ledger.Transaction,
	accounts map[uuid.UUID]*ledger.Account,
) money.Money {
	base := op.SettledAmount()
	for _, tx := range txs {
		if tx.Type != ledger.TransactionSystemFee {
			continue
		}
		to := accounts[tx.ToAccountID]
		if to != nil && to.OwnerType == ledger.OwnerSystem {
			continue
		}
		if tx.Amount.Currency() == base.Currency() {
			reduced, err := base.Subtract(tx.Amount)
			if err == nil {
				base = reduced
			}
		}
	}
	return base
}

// Service recomputes and stores the projection from persisted state.
type Service struct {
	uow    repository.UnitOfWork
	logger *slog.Logger
}

// New creates a fee projection service.
func New(uow repository.UnitOfWork, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{uow: uow, logger: logger}
}

// Recompute upserts the fee projection for an operation. A no-op when the
// operation has no transactions yet.
func (s *Service) Recompute(ctx context.Context, operationID uuid.UUID) error {
	return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		_, err := RecomputeIn(ctx, uow, operationID)
		return err
	})
}

// RecomputeIn runs the recompute inside an existing unit of work, so the
// orchestrator can refresh the projection atomically with a step.
func RecomputeIn(
	ctx context.Context,
	uow repository.UnitOfWork,
	operationID uuid.UUID,
) (*ledger.OperationFee, error) {
	opRepo, err := uow.OperationRepository()
	if err != nil {
		return nil, err
	}
	txRepo, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	accRepo, err := uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	feeRepo, err := uow.OperationFeeRepository()
	if err != nil {
		return nil, err
	}

	op, err := opRepo.Get(ctx, operationID)
	if err != nil {
		return nil, err
	}
	txs, err := txRepo.ListByOperation(ctx, operationID)
	if err != nil {
		return nil, err
	}
	accounts, err := loadAccounts(ctx, accRepo, txs)
	if err != nil {
		return nil, err
	}

	fee, ok := Compute(op, txs, accounts)
	if !ok {
		return nil, nil
	}
	if err := feeRepo.Upsert(ctx, fee); err != nil {
		return nil, fmt.Errorf("upsert operation fee: %w", err)
	}
	return fee, nil
}

func loadAccounts(
	ctx context.Context,
	accRepo repository.AccountRepository,
	txs []*ledger.Transaction,
) (map[uuid.UUID]*ledger.Account, error) {
	accounts := make(map[uuid.UUID]*ledger.Account)
	for _, tx := range txs {
		for _, id := range []uuid.UUID{tx.FromAccountID, tx.ToAccountID} {
			if _, ok := accounts[id]; ok {
				continue
			}
			acc, err := accRepo.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			accounts[id] = acc
		}
	}
	return accounts, nil
}
