package operation

import (
	"context"
	"errors"
	"fmt"

	"github.com/finwire/backoffice/pkg/commission"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/repository"
	"github.com/finwire/backoffice/pkg/service/fees"
	ledgersvc "github.com/finwire/backoffice/pkg/service/ledger"
	"github.com/google/uuid"
)

// Refund runs the compensating transition for a top-up still at step 1. It is
// operator-driven, never automatic: a failed step further down the chain does
// not reverse prior postings by itself.
func (s *Service) Refund(ctx context.Context, operationID uuid.UUID) error {
	return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		opRepo, err := uow.OperationRepository()
		if err != nil {
			return err
		}
		op, err := opRepo.GetForUpdate(ctx, operationID)
		if err != nil {
			return err
		}
		if !op.IsPending() {
			return ledger.ErrOperationNotPending
		}
		if op.Step != 1 && op.Step != 2 {
			return fmt.Errorf("%w: step %d", ledger.ErrRefundUnavailable, op.Step)
		}
		handler, ok := s.transitions[transitionKey{op.Type, ledger.RefundStep}]
		if !ok {
			return fmt.Errorf("%w: refund for %s", ledger.ErrUnknownTransition, op.Type)
		}
		return handler.commit(ctx, &stepContext{uow: uow, op: op, svc: s})
	})
}

// refundStep posts the three-way reversal: the system returns the recoverable
// amount to the provider, the provider pays the client net of the refund fee,
// and the provider pays its refund fee to the system. The operation ends
// RETURNED at the distinct refund step.
func refundStep(ctx context.Context, sc *stepContext) error {
	op := sc.op
	code := op.Amount.Currency()

	client, err := sc.account(ctx, op.FromAccountID)
	if err != nil {
		return err
	}
	system, err := sc.systemAccount(ctx, code, client.AccountType)
	if err != nil {
		return err
	}
	role := ledger.RoleAcquirer
	if op.Type == ledger.OperationCardTopUp {
		role = ledger.RoleCardProcessor
	}
	providerAcc, err := sc.providerAccount(ctx, code, role)
	if err != nil {
		return err
	}
	refundComm, err := sc.commissionFor(ctx, ledger.ScopeAccount(providerAcc.ID),
		ledger.CommissionRefund, ledger.ContextFor(client.AccountType), code)
	if err != nil {
		return err
	}

	txRepo, err := sc.uow.TransactionRepository()
	if err != nil {
		return err
	}
	txs, err := txRepo.ListByOperation(ctx, op.ID)
	if err != nil {
		return err
	}
	accounts, err := sc.loadEndpointAccounts(ctx, txs)
	if err != nil {
		return err
	}
	available := fees.RefundAvailable(op, txs, accounts)
	if !available.IsPositive() {
		return errors.New("nothing left to refund")
	}

	refundFee := commission.Calculate(refundComm, available, true)
	net, err := available.Subtract(refundFee)
	if err != nil {
		return err
	}

	step := ledger.RefundStep
	principal, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
		Type:        ledger.TransactionRefund,
		Amount:      available,
		FromAccount: system,
		ToAccount:   providerAcc,
		Status:      ledger.TransactionSuccessful,
		Operation:   op,
		Step:        &step,
	})
	if err != nil {
		return err
	}
	if _, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
		Type:           ledger.TransactionRefund,
		Amount:         net,
		FromAccount:    providerAcc,
		ToAccount:      client,
		Status:         ledger.TransactionSuccessful,
		Operation:      op,
		FromCommission: refundComm,
		Parent:         principal,
	}); err != nil {
		return err
	}
	if refundFee.IsPositive() {
		if _, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
			Type:           ledger.TransactionSystemFee,
			Amount:         refundFee,
			FromAccount:    providerAcc,
			ToAccount:      system,
			Status:         ledger.TransactionSuccessful,
			Operation:      op,
			FromCommission: refundComm,
			Parent:         principal,
		}); err != nil {
			return err
		}
	}
	if _, err := fees.RecomputeIn(ctx, sc.uow, op.ID); err != nil {
		return err
	}
	return sc.settle(ctx, ledger.OperationReturned)
}

// loadEndpointAccounts collects the accounts referenced by a transaction set.
func (sc *stepContext) loadEndpointAccounts(
	ctx context.Context,
	txs []*ledger.Transaction,
) (map[uuid.UUID]*ledger.Account, error) {
	accRepo, err := sc.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
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
