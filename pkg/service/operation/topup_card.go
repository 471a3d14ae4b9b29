package operation

import (
	"context"
	"fmt"
	"time"

	"github.com/finwire/backoffice/pkg/commission"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/provider"
	"github.com/finwire/backoffice/pkg/repository"
	"github.com/finwire/backoffice/pkg/service/fees"
	ledgersvc "github.com/finwire/backoffice/pkg/service/ledger"
)

// HandleGatewayResult consumes a verified card-gateway capture. Step 1 of a
// card top-up is the implicit gateway capture: on success the operation
// records the settled amount and moves to step 2. A settlement that differs
// from the requested amount or currency is a reconciliation mismatch, routed
// to manual review rather than auto-corrected.
func (s *Service) HandleGatewayResult(ctx context.Context, res *provider.GatewayResult) error {
	log := s.logger.With("operation_id", res.OperationID, "reference", res.Reference)

	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		opRepo, err := uow.OperationRepository()
		if err != nil {
			return err
		}
		op, err := opRepo.GetForUpdate(ctx, res.OperationID)
		if err != nil {
			return err
		}
		if op.Type != ledger.OperationCardTopUp {
			return fmt.Errorf("gateway result for non-card operation %s", op.ID)
		}
		if !op.IsPending() || op.Step != 1 {
			log.Info("gateway result replayed, operation already past capture",
				"step", op.Step, "status", op.Status)
			return nil
		}

		if !res.Success {
			log.Warn("gateway declined capture", "decline_code", res.DeclineCode)
			op.Status = ledger.OperationDeclined
			op.UpdatedAt = time.Now()
			return opRepo.Update(ctx, op)
		}

		if res.Currency != op.Amount.Currency() || res.CapturedAmount != op.Amount.Amount() {
			log.Error("gateway settlement mismatch",
				"requested", op.Amount,
				"captured", res.CapturedAmount,
				"captured_currency", res.Currency,
			)
			return fmt.Errorf("%w: captured %d %s, requested %s",
				ErrReconciliationMismatch, res.CapturedAmount, res.Currency, op.Amount)
		}

		captured, err := money.NewFromMinor(res.CapturedAmount, res.Currency)
		if err != nil {
			return err
		}
		op.ReceivedAmount = &captured
		op.Step = 2
		op.UpdatedAt = time.Now()
		return opRepo.Update(ctx, op)
	})
	if err != nil {
		return err
	}
	// Drive the funded chain forward synchronously; the final delivery step
	// will park on its asynchronous wallet confirmation.
	return s.Drive(ctx, res.OperationID)
}

// cardTopUpStep2 books the captured funds from the card processor into the
// system account and pays the processor its share.
func cardTopUpStep2(ctx context.Context, sc *stepContext) error {
	op := sc.op
	code := op.Amount.Currency()

	system, err := sc.systemAccount(ctx, code, ledger.AccountCard)
	if err != nil {
		return err
	}
	processor, err := sc.providerAccount(ctx, code, ledger.RoleCardProcessor)
	if err != nil {
		return err
	}
	processorFee, err := sc.feeChild(ctx, processor)
	if err != nil {
		return err
	}
	processorComm, err := sc.commissionFor(ctx, ledger.ScopeAccount(processor.ID),
		ledger.CommissionIncoming, ledger.ContextCard, code)
	if err != nil {
		return err
	}

	amount := op.SettledAmount()
	next := 3
	principal, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
		Type:        ledger.TransactionCard,
		Amount:      amount,
		FromAccount: processor,
		ToAccount:   system,
		Status:      ledger.TransactionSuccessful,
		Operation:   op,
		Step:        &next,
	})
	if err != nil {
		return err
	}

	share := commission.Calculate(processorComm, amount, false)
	if share.IsPositive() {
		if _, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
			Type:         ledger.TransactionSystemFee,
			Amount:       share,
			FromAccount:  system,
			ToAccount:    processorFee,
			Status:       ledger.TransactionSuccessful,
			Operation:    op,
			ToCommission: processorComm,
			Parent:       principal,
		}); err != nil {
			return err
		}
	}

	_, err = fees.RecomputeIn(ctx, sc.uow, op.ID)
	return err
}

// cardTopUpStep4 moves the bought crypto from the exchange provider onto the
// corporate wallet provider ahead of client delivery.
func cardTopUpStep4(ctx context.Context, sc *stepContext) error {
	op := sc.op
	dest, err := sc.account(ctx, op.ToAccountID)
	if err != nil {
		return err
	}
	exchangeAcc, err := sc.providerAccount(ctx, dest.Currency, ledger.RoleExchange)
	if err != nil {
		return err
	}
	corporate, err := sc.providerAccount(ctx, dest.Currency, ledger.RoleWallet)
	if err != nil {
		return err
	}
	cryptoAmount, err := sc.svc.exchangeCreditedIn(ctx, sc.uow, op.ID)
	if err != nil {
		return err
	}

	next := 5
	_, err = sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
		Type:        ledger.TransactionCrypto,
		Amount:      cryptoAmount,
		FromAccount: exchangeAcc,
		ToAccount:   corporate,
		Status:      ledger.TransactionSuccessful,
		Operation:   op,
		Step:        &next,
	})
	return err
}
