package operation

import (
	"context"
	"errors"
	"fmt"

	"github.com/finwire/backoffice/pkg/commission"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/provider"
	"github.com/finwire/backoffice/pkg/repository"
	"github.com/finwire/backoffice/pkg/service/fees"
	ledgersvc "github.com/finwire/backoffice/pkg/service/ledger"
	"github.com/google/uuid"
)

// HandleWalletTransfer ingests an inbound custody transfer: it reconciles the
// transfer's input addresses against known accounts (provisioning a client
// crypto account for a first-seen address), creates the crypto top-up
// operation with its pending posting, and settles it when custody has already
// approved. Replays of a known txid fall through to the idempotent Approve.
func (s *Service) HandleWalletTransfer(ctx context.Context, t provider.Transfer) error {
	if t.Type != "receive" {
		return nil
	}
	log := s.logger.With("txid", t.TxID)

	var transactionID uuid.UUID
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		txRepo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		existing, err := txRepo.ByTxID(ctx, t.TxID)
		if err != nil && !errors.Is(err, ledger.ErrTransactionNotFound) {
			return err
		}
		if existing != nil {
			transactionID = existing.ID
			return nil
		}

		accRepo, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		client, err := s.reconcileClient(ctx, accRepo, t)
		if err != nil {
			return err
		}
		corporate, err := accRepo.ProviderAccount(ctx, client.Currency, ledger.RoleWallet)
		if err != nil {
			return err
		}

		amount, err := money.NewFromMinor(t.Value, client.Currency)
		if err != nil {
			return err
		}
		op := ledger.NewOperation(ledger.OperationCryptoTopUp,
			corporate.ID, client.ID, amount, money.Zero(ledger.ReportingCurrency), client.ID)
		opRepo, err := uow.OperationRepository()
		if err != nil {
			return err
		}
		if err := opRepo.Create(ctx, op); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.OperationsCreated.WithLabelValues(string(op.Type)).Inc()
		}

		txid := t.TxID
		tx, err := s.ledger.Post(ctx, uow, ledgersvc.PostParams{
			Type:        ledger.TransactionCrypto,
			Amount:      amount,
			FromAccount: corporate,
			ToAccount:   client,
			Status:      ledger.TransactionPending,
			Operation:   op,
			TxID:        &txid,
		})
		if err != nil {
			return err
		}
		transactionID = tx.ID
		log.Info("inbound wallet transfer booked",
			"operation_id", op.ID, "client_account", client.ID, "amount", amount)
		return nil
	})
	if err != nil {
		return err
	}

	approved, err := s.wallet.IsApproved(ctx, t)
	if err != nil {
		return fmt.Errorf("wallet approval check %s: %w", t.TxID, err)
	}
	if !approved {
		return nil
	}
	return s.Approve(ctx, transactionID)
}

// reconcileClient maps a transfer's input addresses to a client account,
// provisioning one for the first address when none is known.
func (s *Service) reconcileClient(
	ctx context.Context,
	accRepo repository.AccountRepository,
	t provider.Transfer,
) (*ledger.Account, error) {
	for _, addr := range t.Inputs {
		acc, err := accRepo.ByExternalAddress(ctx, addr)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, err
		}
	}
	if len(t.Inputs) == 0 {
		return nil, fmt.Errorf("transfer %s has no input addresses", t.TxID)
	}
	acc, err := ledger.NewAccount().
		WithOwner(ledger.OwnerClient).
		WithType(ledger.AccountCrypto).
		WithCurrency("BTC").
		WithExternalAddress(t.Inputs[0]).
		Build()
	if err != nil {
		return nil, err
	}
	if err := accRepo.Create(ctx, acc); err != nil {
		return nil, err
	}
	s.logger.Info("provisioned client account for unknown wallet address",
		"account_id", acc.ID, "address", t.Inputs[0])
	return acc, nil
}

// cryptoTopUpConfirm settles the single externally confirmed step of a
// crypto top-up. A refund-typed posting returns the operation instead.
func cryptoTopUpConfirm(ctx context.Context, sc *stepContext) error {
	if sc.confirm == nil {
		return errors.New("crypto top-up advances only by external confirmation")
	}
	tx, err := sc.svc.ledger.MarkSuccessful(ctx, sc.uow, sc.confirm.ID)
	if err != nil {
		return err
	}
	if _, err := fees.RecomputeIn(ctx, sc.uow, sc.op.ID); err != nil {
		return err
	}
	if tx.Type == ledger.TransactionRefund {
		return sc.settle(ctx, ledger.OperationReturned)
	}
	return sc.settle(ctx, ledger.OperationSuccessful)
}

// prepareCryptoWithdrawal initiates the custody transfer to the client's
// external wallet before the ledger transition is locked.
func prepareCryptoWithdrawal(ctx context.Context, s *Service, op *ledger.Operation) (*prep, error) {
	if existing, err := s.pendingDelivery(ctx, op.ID); err != nil {
		return nil, err
	} else if existing != nil {
		return &prep{walletTxID: *existing.TxID}, nil
	}
	dest, err := s.readAccount(ctx, op.ToAccountID)
	if err != nil {
		return nil, err
	}
	txid, err := s.wallet.Send(ctx, s.cfg.CorporateWalletID, dest.ExternalAddress,
		op.Amount.Amount(), op.ID.String())
	if err != nil {
		return nil, fmt.Errorf("wallet send: %w", err)
	}
	return &prep{walletTxID: txid}, nil
}

// cryptoWithdrawalStep posts the client's outbound crypto with its fee pair;
// the principal stays pending until custody confirms, then the confirmation
// invocation settles transaction and operation.
func cryptoWithdrawalStep(ctx context.Context, sc *stepContext) error {
	op := sc.op
	if sc.confirm != nil {
		if _, err := sc.svc.ledger.MarkSuccessful(ctx, sc.uow, sc.confirm.ID); err != nil {
			return err
		}
		if _, err := fees.RecomputeIn(ctx, sc.uow, op.ID); err != nil {
			return err
		}
		return sc.settle(ctx, ledger.OperationSuccessful)
	}
	if sc.prep == nil || sc.prep.walletTxID == "" {
		return errors.New("crypto withdrawal requires an initiated transfer")
	}
	if existing, err := sc.svc.pendingDeliveryIn(ctx, sc.uow, op.ID); err != nil {
		return err
	} else if existing != nil {
		return nil
	}

	client, err := sc.account(ctx, op.FromAccountID)
	if err != nil {
		return err
	}
	dest, err := sc.account(ctx, op.ToAccountID)
	if err != nil {
		return err
	}
	code := op.Amount.Currency()
	system, err := sc.systemAccount(ctx, code, ledger.AccountCrypto)
	if err != nil {
		return err
	}
	clientComm, err := sc.commissionFor(ctx, ledger.ScopeAccount(client.ID),
		ledger.CommissionOutgoing, ledger.ContextCrypto, code)
	if err != nil {
		return err
	}

	txid := sc.prep.walletTxID
	principal, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
		Type:        ledger.TransactionCrypto,
		Amount:      op.Amount,
		FromAccount: client,
		ToAccount:   dest,
		Status:      ledger.TransactionPending,
		Operation:   op,
		TxID:        &txid,
	})
	if err != nil {
		return err
	}
	fee := commission.Calculate(clientComm, op.Amount, false)
	if fee.IsPositive() {
		if _, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
			Type:           ledger.TransactionSystemFee,
			Amount:         fee,
			FromAccount:    client,
			ToAccount:      system,
			Status:         ledger.TransactionSuccessful,
			Operation:      op,
			FromCommission: clientComm,
			Parent:         principal,
		}); err != nil {
			return err
		}
	}
	_, err = fees.RecomputeIn(ctx, sc.uow, op.ID)
	return err
}

// wireWithdrawalStep posts the single synchronously confirmed wire payout
// with its fee pair and settles the operation.
func wireWithdrawalStep(ctx context.Context, sc *stepContext) error {
	op := sc.op
	client, err := sc.account(ctx, op.FromAccountID)
	if err != nil {
		return err
	}
	code := op.Amount.Currency()

	system, err := sc.systemAccount(ctx, code, client.AccountType)
	if err != nil {
		return err
	}
	acquirer, err := sc.providerAccount(ctx, code, ledger.RoleAcquirer)
	if err != nil {
		return err
	}
	acquirerFee, err := sc.feeChild(ctx, acquirer)
	if err != nil {
		return err
	}
	clientComm, err := sc.commissionFor(ctx, ledger.ScopeAccount(client.ID),
		ledger.CommissionOutgoing, ledger.ContextWire, code)
	if err != nil {
		return err
	}
	acquirerComm, err := sc.commissionFor(ctx, ledger.ScopeAccount(acquirer.ID),
		ledger.CommissionOutgoing, ledger.ContextWire, code)
	if err != nil {
		return err
	}

	principal, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
		Type:        ledger.TransactionBank,
		Amount:      op.Amount,
		FromAccount: client,
		ToAccount:   acquirer,
		Status:      ledger.TransactionSuccessful,
		Operation:   op,
	})
	if err != nil {
		return err
	}
	fee := commission.Calculate(clientComm, op.Amount, false)
	if fee.IsPositive() {
		if _, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
			Type:           ledger.TransactionSystemFee,
			Amount:         fee,
			FromAccount:    client,
			ToAccount:      system,
			Status:         ledger.TransactionSuccessful,
			Operation:      op,
			FromCommission: clientComm,
			Parent:         principal,
		}); err != nil {
			return err
		}
	}
	share := commission.Calculate(acquirerComm, op.Amount, false)
	if share.IsPositive() {
		if _, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
			Type:         ledger.TransactionSystemFee,
			Amount:       share,
			FromAccount:  system,
			ToAccount:    acquirerFee,
			Status:       ledger.TransactionSuccessful,
			Operation:    op,
			ToCommission: acquirerComm,
			Parent:       principal,
		}); err != nil {
			return err
		}
	}
	if _, err := fees.RecomputeIn(ctx, sc.uow, op.ID); err != nil {
		return err
	}
	return sc.settle(ctx, ledger.OperationSuccessful)
}
