package ledger_test

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"testing"

	"github.com/finwire/backoffice/pkg/domain/events"
	domledger "github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/eventbus"
	"github.com/finwire/backoffice/pkg/metrics"
	"github.com/finwire/backoffice/pkg/repository"
	ledgersvc "github.com/finwire/backoffice/pkg/service/ledger"
	"github.com/finwire/backoffice/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain runs before any tests and applies globally for all tests in the package.
func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type postFixture struct {
	uow    *testutils.MemUoW
	bus    *eventbus.Memory
	svc    *ledgersvc.Service
	from   *domledger.Account
	to     *domledger.Account
	toBTC  *domledger.Account
	op     *domledger.Operation
	posted []events.TransactionPosted
}

func newPostFixture(t *testing.T) *postFixture {
	t.Helper()
	f := &postFixture{uow: testutils.NewMemUoW(), bus: eventbus.NewMemory()}
	f.svc = ledgersvc.New(f.bus, metrics.NewNop(), slog.Default())

	f.bus.Subscribe("ledger.TransactionPosted", func(_ context.Context, e events.Event) {
		if tp, ok := e.(events.TransactionPosted); ok {
			f.posted = append(f.posted, tp)
		}
	})

	build := func(b *domledger.Builder) *domledger.Account {
		acc, err := b.Build()
		require.NoError(t, err)
		f.uow.SeedAccount(acc)
		return acc
	}
	f.from = build(domledger.NewAccount().WithOwner(domledger.OwnerClient).WithCurrency("EUR"))
	f.to = build(domledger.NewAccount().WithOwner(domledger.OwnerProvider).
		WithCurrency("EUR").WithRole(domledger.RoleAcquirer))
	f.toBTC = build(domledger.NewAccount().WithOwner(domledger.OwnerProvider).
		WithType(domledger.AccountCrypto).WithCurrency("BTC").WithRole(domledger.RoleExchange))

	amount := money.MustFromMinor(10_000, "EUR")
	f.op = domledger.NewOperation(domledger.OperationWireTopUp,
		f.from.ID, f.to.ID, amount, amount, f.from.ID)
	require.NoError(t, f.uow.Do(context.Background(), func(uow repository.UnitOfWork) error {
		opRepo, err := uow.OperationRepository()
		if err != nil {
			return err
		}
		return opRepo.Create(context.Background(), f.op)
	}))
	return f
}

func (f *postFixture) post(t *testing.T, p ledgersvc.PostParams) *domledger.Transaction {
	t.Helper()
	tx, err := f.svc.Post(context.Background(), f.uow, p)
	require.NoError(t, err)
	return tx
}

func TestPost_MovesBalances(t *testing.T) {
	f := newPostFixture(t)
	f.post(t, ledgersvc.PostParams{
		Type:        domledger.TransactionBank,
		Amount:      money.MustFromMinor(10_000, "EUR"),
		FromAccount: f.from,
		ToAccount:   f.to,
		Status:      domledger.TransactionSuccessful,
		Operation:   f.op,
	})

	from, _ := f.uow.Account(f.from.ID)
	to, _ := f.uow.Account(f.to.ID)
	assert.Equal(t, int64(-10_000), from.Balance.Amount())
	assert.Equal(t, int64(10_000), to.Balance.Amount())

	require.Len(t, f.posted, 1)
	assert.Equal(t, f.op.ID, f.posted[0].OperationID)
	assert.Equal(t, domledger.OwnerClient, f.posted[0].FromOwner)
}

func TestPost_PendingDoesNotMoveBalances(t *testing.T) {
	f := newPostFixture(t)
	txid := "ext-1"
	f.post(t, ledgersvc.PostParams{
		Type:        domledger.TransactionBank,
		Amount:      money.MustFromMinor(10_000, "EUR"),
		FromAccount: f.from,
		ToAccount:   f.to,
		Status:      domledger.TransactionPending,
		Operation:   f.op,
		TxID:        &txid,
	})

	to, _ := f.uow.Account(f.to.ID)
	assert.Zero(t, to.Balance.Amount())
}

func TestPost_CurrencyMismatch(t *testing.T) {
	f := newPostFixture(t)
	_, err := f.svc.Post(context.Background(), f.uow, ledgersvc.PostParams{
		Type:        domledger.TransactionBank,
		Amount:      money.MustFromMinor(10_000, "EUR"),
		FromAccount: f.from,
		ToAccount:   f.toBTC,
		Status:      domledger.TransactionSuccessful,
		Operation:   f.op,
	})
	require.ErrorIs(t, err, domledger.ErrCurrencyMismatch)
	assert.Empty(t, f.uow.Transactions(f.op.ID))
}

func TestPost_RecipientAmountBridgesCurrencies(t *testing.T) {
	f := newPostFixture(t)
	crypto := money.MustFromMinor(50_000, "BTC")
	rate := 5.0
	tx := f.post(t, ledgersvc.PostParams{
		Type:            domledger.TransactionExchange,
		Amount:          money.MustFromMinor(10_000, "EUR"),
		RecipientAmount: &crypto,
		FromAccount:     f.from,
		ToAccount:       f.toBTC,
		Status:          domledger.TransactionSuccessful,
		Operation:       f.op,
		ExchangeRate:    &rate,
	})
	assert.Equal(t, int64(50_000), tx.CreditedAmount().Amount())

	// The credited side moves in the recipient currency.
	to, _ := f.uow.Account(f.toBTC.ID)
	assert.Equal(t, int64(50_000), to.Balance.Amount())
	from, _ := f.uow.Account(f.from.ID)
	assert.Equal(t, int64(-10_000), from.Balance.Amount())

	op, _ := f.uow.Operation(f.op.ID)
	require.NotNil(t, op.ExchangeRate)
	assert.Equal(t, 5.0, *op.ExchangeRate)
}

func TestPost_DuplicateExternalReference(t *testing.T) {
	f := newPostFixture(t)
	txid := "ext-dup"
	f.post(t, ledgersvc.PostParams{
		Type:        domledger.TransactionCrypto,
		Amount:      money.MustFromMinor(1_000, "EUR"),
		FromAccount: f.from,
		ToAccount:   f.to,
		Status:      domledger.TransactionPending,
		Operation:   f.op,
		TxID:        &txid,
	})
	_, err := f.svc.Post(context.Background(), f.uow, ledgersvc.PostParams{
		Type:        domledger.TransactionCrypto,
		Amount:      money.MustFromMinor(1_000, "EUR"),
		FromAccount: f.from,
		ToAccount:   f.to,
		Status:      domledger.TransactionPending,
		Operation:   f.op,
		TxID:        &txid,
	})
	require.ErrorIs(t, err, domledger.ErrDuplicateReference)
	assert.Len(t, f.uow.Transactions(f.op.ID), 1)
}

func TestPost_StepAdvancesOperation(t *testing.T) {
	f := newPostFixture(t)
	var advanced []events.OperationAdvanced
	f.bus.Subscribe("operation.Advanced", func(_ context.Context, e events.Event) {
		if oa, ok := e.(events.OperationAdvanced); ok {
			advanced = append(advanced, oa)
		}
	})

	next := 2
	f.post(t, ledgersvc.PostParams{
		Type:        domledger.TransactionBank,
		Amount:      money.MustFromMinor(10_000, "EUR"),
		FromAccount: f.from,
		ToAccount:   f.to,
		Status:      domledger.TransactionSuccessful,
		Operation:   f.op,
		Step:        &next,
	})

	op, _ := f.uow.Operation(f.op.ID)
	assert.Equal(t, 2, op.Step)
	require.Len(t, advanced, 1)
	assert.Equal(t, 1, advanced[0].FromStep)
	assert.Equal(t, 2, advanced[0].ToStep)
}

func TestMarkSuccessful(t *testing.T) {
	f := newPostFixture(t)
	txid := "ext-settle"
	tx := f.post(t, ledgersvc.PostParams{
		Type:        domledger.TransactionBank,
		Amount:      money.MustFromMinor(10_000, "EUR"),
		FromAccount: f.from,
		ToAccount:   f.to,
		Status:      domledger.TransactionPending,
		Operation:   f.op,
		TxID:        &txid,
	})

	settled, err := f.svc.MarkSuccessful(context.Background(), f.uow, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domledger.TransactionSuccessful, settled.Status)
	to, _ := f.uow.Account(f.to.ID)
	assert.Equal(t, int64(10_000), to.Balance.Amount())

	// Settling twice must not double-apply the balance.
	_, err = f.svc.MarkSuccessful(context.Background(), f.uow, tx.ID)
	require.NoError(t, err)
	toAgain, _ := f.uow.Account(f.to.ID)
	assert.Equal(t, int64(10_000), toAgain.Balance.Amount())
}

func TestMarkSuccessful_DeclinedIsFinal(t *testing.T) {
	f := newPostFixture(t)
	tx := f.post(t, ledgersvc.PostParams{
		Type:        domledger.TransactionBank,
		Amount:      money.MustFromMinor(10_000, "EUR"),
		FromAccount: f.from,
		ToAccount:   f.to,
		Status:      domledger.TransactionPending,
		Operation:   f.op,
	})
	require.NoError(t, f.uow.Do(context.Background(), func(uow repository.UnitOfWork) error {
		txRepo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		return txRepo.UpdateStatus(context.Background(), tx.ID, domledger.TransactionDeclined)
	}))

	_, err := f.svc.MarkSuccessful(context.Background(), f.uow, tx.ID)
	require.Error(t, err)
}
