package fees_test

import (
	"testing"

	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/service/fees"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type graph struct {
	op       *ledger.Operation
	txs      []*ledger.Transaction
	accounts map[uuid.UUID]*ledger.Account

	client      *ledger.Account
	provider    *ledger.Account
	providerFee *ledger.Account
	system      *ledger.Account
	systemBTC   *ledger.Account
}

func newGraph(t *testing.T, amountEUR int64) *graph {
	t.Helper()
	g := &graph{accounts: make(map[uuid.UUID]*ledger.Account)}
	build := func(b *ledger.Builder) *ledger.Account {
		acc, err := b.Build()
		require.NoError(t, err)
		g.accounts[acc.ID] = acc
		return acc
	}
	g.client = build(ledger.NewAccount().WithOwner(ledger.OwnerClient).WithCurrency("EUR"))
	g.provider = build(ledger.NewAccount().WithOwner(ledger.OwnerProvider).
		WithCurrency("EUR").WithRole(ledger.RoleAcquirer))
	g.providerFee = build(ledger.NewAccount().WithOwner(ledger.OwnerProvider).
		WithCurrency("EUR").WithRole(ledger.RoleAcquirer).WithParent(g.provider.ID))
	g.system = build(ledger.NewAccount().WithOwner(ledger.OwnerSystem).WithCurrency("EUR"))
	g.systemBTC = build(ledger.NewAccount().WithOwner(ledger.OwnerSystem).
		WithType(ledger.AccountCrypto).WithCurrency("BTC"))

	amount := money.MustFromMinor(amountEUR, "EUR")
	g.op = ledger.NewOperation(ledger.OperationWireTopUp,
		g.client.ID, g.client.ID, amount, amount, uuid.New())
	return g
}

func (g *graph) post(txType ledger.TransactionType, from, to *ledger.Account, amount int64) {
	g.txs = append(g.txs, &ledger.Transaction{
		ID:            uuid.New(),
		Type:          txType,
		OperationID:   g.op.ID,
		Amount:        money.MustFromMinor(amount, from.Currency),
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Status:        ledger.TransactionSuccessful,
	})
}

func TestCompute_SplitsClientProviderSystem(t *testing.T) {
	g := newGraph(t, 100_000)
	g.post(ledger.TransactionBank, g.client, g.provider, 100_000)
	g.post(ledger.TransactionSystemFee, g.provider, g.system, 2_000)
	g.post(ledger.TransactionSystemFee, g.system, g.providerFee, 500)

	fee, ok := fees.Compute(g.op, g.txs, g.accounts)
	require.True(t, ok)
	assert.Equal(t, int64(2_000), fee.ClientFiat)
	assert.Equal(t, int64(500), fee.ProviderFiat)
	assert.Equal(t, int64(1_500), fee.SystemFiat)
	assert.Zero(t, fee.ClientCrypto)
	assert.Zero(t, fee.ProviderCrypto)
}

func TestCompute_CryptoFeesSplitByCurrencyKind(t *testing.T) {
	g := newGraph(t, 100_000)
	clientBTC, err := ledger.NewAccount().WithOwner(ledger.OwnerClient).
		WithType(ledger.AccountCrypto).WithCurrency("BTC").Build()
	require.NoError(t, err)
	g.accounts[clientBTC.ID] = clientBTC

	g.post(ledger.TransactionSystemFee, g.provider, g.system, 1_000)
	g.post(ledger.TransactionSystemFee, clientBTC, g.systemBTC, 2_500)

	fee, ok := fees.Compute(g.op, g.txs, g.accounts)
	require.True(t, ok)
	assert.Equal(t, int64(1_000), fee.ClientFiat)
	assert.Equal(t, int64(2_500), fee.ClientCrypto)
	assert.Equal(t, int64(2_500), fee.SystemCrypto)
}

func TestCompute_NoTransactions(t *testing.T) {
	g := newGraph(t, 100_000)
	_, ok := fees.Compute(g.op, nil, g.accounts)
	assert.False(t, ok)
}

func TestCompute_IgnoresPrincipalPostings(t *testing.T) {
	g := newGraph(t, 100_000)
	// Principal into a provider principal account is neither a client nor a
	// provider fee.
	g.post(ledger.TransactionBank, g.client, g.provider, 100_000)

	fee, ok := fees.Compute(g.op, g.txs, g.accounts)
	require.True(t, ok)
	assert.Zero(t, fee.ClientFiat)
	assert.Zero(t, fee.ProviderFiat)
	assert.Zero(t, fee.SystemFiat)
}

func TestRefundAvailable(t *testing.T) {
	g := newGraph(t, 100_000)
	g.post(ledger.TransactionBank, g.client, g.provider, 100_000)
	g.post(ledger.TransactionSystemFee, g.provider, g.system, 2_000)
	g.post(ledger.TransactionSystemFee, g.system, g.providerFee, 500)

	// Fees paid into the system account stay recoverable; fees paid out to
	// provider sub-accounts are gone.
	got := fees.RefundAvailable(g.op, g.txs, g.accounts)
	assert.Equal(t, int64(99_500), got.Amount())
}

func TestRefundAvailable_NoPostings(t *testing.T) {
	g := newGraph(t, 50_000)
	got := fees.RefundAvailable(g.op, nil, g.accounts)
	assert.Equal(t, int64(50_000), got.Amount())
	assert.Equal(t, g.op.Amount.Currency(), got.Currency())
}

func TestRefundAvailable_UsesReceivedAmount(t *testing.T) {
	g := newGraph(t, 100_000)
	received := money.MustFromMinor(90_000, "EUR")
	g.op.ReceivedAmount = &received

	got := fees.RefundAvailable(g.op, nil, g.accounts)
	assert.Equal(t, int64(90_000), got.Amount())
}
