package operation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finwire/backoffice/pkg/commission"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/service/fees"
	ledgersvc "github.com/finwire/backoffice/pkg/service/ledger"
)

// fundingHop is one fiat hop of a top-up chain: principal into a provider
// account plus the system-fee pair derived from it.
type fundingHop struct {
	from *ledger.Account
	// to is the provider account receiving the principal.
	to *ledger.Account
	// toFee is to's fee sub-account.
	toFee  *ledger.Account
	system *ledger.Account
	amount money.Money
	// feeComm prices the fee paid into the system account.
	feeComm *ledger.Commission
	// shareComm prices the provider's share paid out of the system account.
	shareComm *ledger.Commission
	nextStep  int
}

// postHop posts the hop's principal and its two fee postings in the current
// unit of work and advances the operation. All-or-nothing: the caller's
// transaction boundary rolls every posting back on failure.
func (sc *stepContext) postHop(ctx context.Context, hop fundingHop) error {
	principal, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
		Type:        ledger.TransactionBank,
		Amount:      hop.amount,
		FromAccount: hop.from,
		ToAccount:   hop.to,
		Status:      ledger.TransactionSuccessful,
		Operation:   sc.op,
		Step:        &hop.nextStep,
	})
	if err != nil {
		return err
	}

	fee := commission.Calculate(hop.feeComm, hop.amount, false)
	if fee.IsPositive() {
		if _, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
			Type:           ledger.TransactionSystemFee,
			Amount:         fee,
			FromAccount:    hop.to,
			ToAccount:      hop.system,
			Status:         ledger.TransactionSuccessful,
			Operation:      sc.op,
			FromCommission: hop.feeComm,
			Parent:         principal,
		}); err != nil {
			return err
		}
	}

	share := commission.Calculate(hop.shareComm, hop.amount, false)
	if share.IsPositive() {
		if _, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
			Type:         ledger.TransactionSystemFee,
			Amount:       share,
			FromAccount:  hop.system,
			ToAccount:    hop.toFee,
			Status:       ledger.TransactionSuccessful,
			Operation:    sc.op,
			ToCommission: hop.shareComm,
			Parent:       principal,
		}); err != nil {
			return err
		}
	}

	_, err = fees.RecomputeIn(ctx, sc.uow, sc.op.ID)
	return err
}

// wireTopUpStep1 moves the client's wire deposit into the acquiring provider
// and posts the system fee pair.
func wireTopUpStep1(ctx context.Context, sc *stepContext) error {
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
		ledger.CommissionIncoming, ledger.ContextWire, code)
	if err != nil {
		return err
	}
	acquirerComm, err := sc.commissionFor(ctx, ledger.ScopeAccount(acquirer.ID),
		ledger.CommissionIncoming, ledger.ContextWire, code)
	if err != nil {
		return err
	}

	return sc.postHop(ctx, fundingHop{
		from:      client,
		to:        acquirer,
		toFee:     acquirerFee,
		system:    system,
		amount:    op.SettledAmount(),
		feeComm:   clientComm,
		shareComm: acquirerComm,
		nextStep:  2,
	})
}

// wireTopUpStep2 moves the funds from the acquirer to the liquidity provider.
func wireTopUpStep2(ctx context.Context, sc *stepContext) error {
	op := sc.op
	code := op.Amount.Currency()

	system, err := sc.systemAccount(ctx, code, ledger.AccountWireSEPA)
	if err != nil {
		return err
	}
	acquirer, err := sc.providerAccount(ctx, code, ledger.RoleAcquirer)
	if err != nil {
		return err
	}
	liquidity, err := sc.providerAccount(ctx, code, ledger.RoleLiquidity)
	if err != nil {
		return err
	}
	liquidityFee, err := sc.feeChild(ctx, liquidity)
	if err != nil {
		return err
	}
	hopComm, err := sc.commissionFor(ctx, ledger.ScopeAccount(liquidity.ID),
		ledger.CommissionInternal, ledger.ContextWire, code)
	if err != nil {
		return err
	}

	return sc.postHop(ctx, fundingHop{
		from:      acquirer,
		to:        liquidity,
		toFee:     liquidityFee,
		system:    system,
		amount:    op.SettledAmount(),
		feeComm:   hopComm,
		shareComm: hopComm,
		nextStep:  3,
	})
}

// prepareExchangeBuy submits the fiat-to-crypto order and polls its result
// with bounded retries. Runs before the operation lock is taken.
func prepareExchangeBuy(ctx context.Context, s *Service, op *ledger.Operation) (*prep, error) {
	dest, err := s.readAccount(ctx, op.ToAccountID)
	if err != nil {
		return nil, err
	}
	fiat := op.Amount.Currency()
	crypto := dest.Currency

	orderRef, err := s.exchange.Buy(ctx, fiat, crypto, op.SettledAmount().Amount())
	if err != nil {
		return nil, fmt.Errorf("exchange buy %s->%s: %w", fiat, crypto, err)
	}
	for attempt := 0; attempt < s.cfg.OrderPollAttempts; attempt++ {
		result, err := s.exchange.OrderResult(ctx, orderRef)
		if err != nil {
			return nil, fmt.Errorf("exchange order result %s: %w", orderRef, err)
		}
		if result.Done {
			return &prep{orderRef: orderRef, order: result}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.OrderPollInterval):
		}
	}
	return nil, fmt.Errorf("exchange order %s not settled after %d polls", orderRef, s.cfg.OrderPollAttempts)
}

// exchangeStep posts the fiat-to-crypto conversion leg: the fiat holding
// account pays the exchange provider's crypto account, with the settled
// crypto amount as the recipient amount.
func exchangeStep(ctx context.Context, sc *stepContext) error {
	if sc.prep == nil || sc.prep.order == nil {
		return errors.New("exchange step requires a settled order")
	}
	op := sc.op
	order := sc.prep.order
	fiatCode := op.Amount.Currency()

	// The fiat source differs per flow: wire top-ups convert out of the
	// liquidity provider, card top-ups out of the system account.
	var source *ledger.Account
	var err error
	if op.Type == ledger.OperationCardTopUp {
		source, err = sc.systemAccount(ctx, fiatCode, ledger.AccountCard)
	} else {
		source, err = sc.providerAccount(ctx, fiatCode, ledger.RoleLiquidity)
	}
	if err != nil {
		return err
	}

	exchangeAcc, err := sc.providerAccount(ctx, order.CryptoCurrency, ledger.RoleExchange)
	if err != nil {
		return err
	}

	fiatAmount, err := money.NewFromMinor(order.SettledFiatAmount, fiatCode)
	if err != nil {
		return err
	}
	cryptoAmount, err := money.NewFromMinor(order.SettledCryptoAmount, order.CryptoCurrency)
	if err != nil {
		return err
	}

	next := op.Step + 1
	rate := order.Rate
	if _, err := sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
		Type:            ledger.TransactionExchange,
		Amount:          fiatAmount,
		RecipientAmount: &cryptoAmount,
		FromAccount:     source,
		ToAccount:       exchangeAcc,
		Status:          ledger.TransactionSuccessful,
		Operation:       op,
		Step:            &next,
		ExchangeRate:    &rate,
	}); err != nil {
		return err
	}
	_, err = fees.RecomputeIn(ctx, sc.uow, op.ID)
	return err
}

// prepareWalletSend withdraws the bought crypto to the corporate wallet and
// initiates the custody transfer to the client's wallet.
func prepareWalletSend(ctx context.Context, s *Service, op *ledger.Operation) (*prep, error) {
	// Initiation must be idempotent: if a pending delivery already exists the
	// step is waiting on confirmation, not on another send.
	if existing, err := s.pendingDelivery(ctx, op.ID); err != nil {
		return nil, err
	} else if existing != nil {
		return &prep{walletTxID: *existing.TxID}, nil
	}

	dest, err := s.readAccount(ctx, op.ToAccountID)
	if err != nil {
		return nil, err
	}
	cryptoAmount, err := s.exchangeCredited(ctx, op.ID)
	if err != nil {
		return nil, err
	}

	withdrawRef, err := s.exchange.Withdraw(ctx, dest.Currency, s.cfg.CorporateWalletID, cryptoAmount.Amount())
	if err != nil {
		return nil, fmt.Errorf("exchange withdraw to corporate wallet: %w", err)
	}
	txid, err := s.wallet.Send(ctx, s.cfg.CorporateWalletID, dest.ExternalAddress,
		cryptoAmount.Amount(), op.ID.String())
	if err != nil {
		return nil, fmt.Errorf("wallet send: %w", err)
	}
	return &prep{walletTxID: txid, withdrawRef: withdrawRef}, nil
}

// walletDeliveryStep is the final, asynchronously confirmed step of a top-up:
// first invocation posts the pending corporate-wallet to client-wallet
// transfer; the confirmation invocation settles it and the operation.
func walletDeliveryStep(ctx context.Context, sc *stepContext) error {
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
		return errors.New("wallet delivery requires an initiated transfer")
	}
	// Replayed initiation with the delivery already posted is a no-op.
	if existing, err := sc.svc.pendingDeliveryIn(ctx, sc.uow, op.ID); err != nil {
		return err
	} else if existing != nil {
		return nil
	}

	dest, err := sc.account(ctx, op.ToAccountID)
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

	txid := sc.prep.walletTxID
	_, err = sc.svc.ledger.Post(ctx, sc.uow, ledgersvc.PostParams{
		Type:        ledger.TransactionCrypto,
		Amount:      cryptoAmount,
		FromAccount: corporate,
		ToAccount:   dest,
		Status:      ledger.TransactionPending,
		Operation:   op,
		TxID:        &txid,
	})
	return err
}
