package webapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	infraprovider "github.com/finwire/backoffice/infra/provider"
	"github.com/finwire/backoffice/infra/provider/gateway"
	"github.com/finwire/backoffice/infra/provider/mockexchange"
	"github.com/finwire/backoffice/infra/provider/mockwallet"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/eventbus"
	"github.com/finwire/backoffice/pkg/metrics"
	"github.com/finwire/backoffice/pkg/service/confirmqueue"
	ledgersvc "github.com/finwire/backoffice/pkg/service/ledger"
	"github.com/finwire/backoffice/pkg/service/operation"
	"github.com/finwire/backoffice/pkg/testutils"
	"github.com/finwire/backoffice/webapi"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
)

// TestMain runs before any tests and applies globally for all tests in the package.
func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type APITestSuite struct {
	suite.Suite

	uow      *testutils.MemUoW
	exchange *mockexchange.Exchange
	wallet   *mockwallet.Wallet
	gw       *gateway.Gateway
	app      *fiber.App

	rateTemplateID uuid.UUID
	clientEUR      *ledger.Account
	clientCard     *ledger.Account
	clientBTC      *ledger.Account
	acquirer       *ledger.Account
	processor      *ledger.Account
	liquidity      *ledger.Account
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) SetupTest() {
	s.uow = testutils.NewMemUoW()
	s.exchange = mockexchange.New()
	s.wallet = mockwallet.New()
	s.gw = gateway.New("test-secret")
	s.rateTemplateID = uuid.New()
	s.exchange.SetRate("EUR", "BTC", 20)

	build := func(b *ledger.Builder) *ledger.Account {
		acc, err := b.Build()
		s.Require().NoError(err)
		s.uow.SeedAccount(acc)
		return acc
	}
	s.clientEUR = build(ledger.NewAccount().
		WithOwner(ledger.OwnerClient).WithType(ledger.AccountWireSEPA).WithCurrency("EUR"))
	s.clientCard = build(ledger.NewAccount().
		WithOwner(ledger.OwnerClient).WithType(ledger.AccountCard).WithCurrency("EUR"))
	s.clientBTC = build(ledger.NewAccount().
		WithOwner(ledger.OwnerClient).WithType(ledger.AccountCrypto).WithCurrency("BTC").
		WithExternalAddress("client-addr"))
	build(ledger.NewAccount().
		WithOwner(ledger.OwnerSystem).WithType(ledger.AccountWireSEPA).WithCurrency("EUR"))
	build(ledger.NewAccount().
		WithOwner(ledger.OwnerSystem).WithType(ledger.AccountCard).WithCurrency("EUR"))
	build(ledger.NewAccount().
		WithOwner(ledger.OwnerSystem).WithType(ledger.AccountCrypto).WithCurrency("BTC"))
	s.acquirer = build(ledger.NewAccount().
		WithOwner(ledger.OwnerProvider).WithType(ledger.AccountWireSEPA).WithCurrency("EUR").
		WithRole(ledger.RoleAcquirer))
	build(ledger.NewAccount().
		WithOwner(ledger.OwnerProvider).WithType(ledger.AccountWireSEPA).WithCurrency("EUR").
		WithRole(ledger.RoleAcquirer).WithParent(s.acquirer.ID))
	s.processor = build(ledger.NewAccount().
		WithOwner(ledger.OwnerProvider).WithType(ledger.AccountCard).WithCurrency("EUR").
		WithRole(ledger.RoleCardProcessor))
	build(ledger.NewAccount().
		WithOwner(ledger.OwnerProvider).WithType(ledger.AccountCard).WithCurrency("EUR").
		WithRole(ledger.RoleCardProcessor).WithParent(s.processor.ID))
	s.liquidity = build(ledger.NewAccount().
		WithOwner(ledger.OwnerProvider).WithType(ledger.AccountWireSEPA).WithCurrency("EUR").
		WithRole(ledger.RoleLiquidity))
	build(ledger.NewAccount().
		WithOwner(ledger.OwnerProvider).WithType(ledger.AccountWireSEPA).WithCurrency("EUR").
		WithRole(ledger.RoleLiquidity).WithParent(s.liquidity.ID))
	build(ledger.NewAccount().
		WithOwner(ledger.OwnerProvider).WithType(ledger.AccountCrypto).WithCurrency("BTC").
		WithRole(ledger.RoleExchange))
	build(ledger.NewAccount().
		WithOwner(ledger.OwnerProvider).WithType(ledger.AccountCrypto).WithCurrency("BTC").
		WithRole(ledger.RoleWallet).WithExternalAddress("corp-wallet"))

	s.uow.SeedLimit(&ledger.Limit{
		ID:                   uuid.New(),
		RateTemplateID:       s.rateTemplateID,
		ComplianceLevel:      1,
		TransactionAmountMax: 500_000,
		MonthlyAmountMax:     1_000_000,
	})

	bus := eventbus.NewMemory()
	svc := operation.New(
		s.uow,
		ledgersvc.New(bus, metrics.NewNop(), slog.Default()),
		s.exchange,
		s.wallet,
		infraprovider.NewStaticCompliance(1, 0),
		bus,
		metrics.NewNop(),
		operation.Config{
			RateTemplateID:    s.rateTemplateID,
			CorporateWalletID: "corp-wallet",
			OrderPollAttempts: 3,
			OrderPollInterval: time.Millisecond,
		},
		slog.Default(),
	)
	s.app = webapi.NewApp(webapi.Deps{
		Operations: svc,
		Confirm:    confirmqueue.New(s.uow, svc, metrics.NewNop(), slog.Default()),
		Gateway:    s.gw,
		Uow:        s.uow,
		Registry:   prometheus.NewRegistry(),
	})
}

func (s *APITestSuite) seedCommission(c ledger.Commission) {
	c.ID = uuid.New()
	c.Active = true
	c.CreatedAt = time.Now()
	s.uow.SeedCommission(&c)
}

func (s *APITestSuite) seedWireCommissions() {
	s.seedCommission(ledger.Commission{
		AccountID: &s.clientEUR.ID,
		Type:      ledger.CommissionIncoming, Context: ledger.ContextWire,
		Currency: "EUR", Percent: 2.0,
	})
	s.seedCommission(ledger.Commission{
		AccountID: &s.acquirer.ID,
		Type:      ledger.CommissionIncoming, Context: ledger.ContextWire,
		Currency: "EUR", Percent: 0.5,
	})
	s.seedCommission(ledger.Commission{
		AccountID: &s.liquidity.ID,
		Type:      ledger.CommissionInternal, Context: ledger.ContextWire,
		Currency: "EUR", Percent: 0.2,
	})
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *APITestSuite) request(method, target string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	return resp
}

func (s *APITestSuite) decode(resp *http.Response, data any) envelope {
	defer resp.Body.Close()
	var env envelope
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&env))
	if data != nil && env.Data != nil {
		s.Require().NoError(json.Unmarshal(env.Data, data))
	}
	return env
}

func (s *APITestSuite) createBody(opType string, from, to uuid.UUID, amount float64) map[string]any {
	return map[string]any{
		"type":            opType,
		"from_account_id": from.String(),
		"to_account_id":   to.String(),
		"amount":          amount,
		"currency":        "EUR",
		"amount_eur":      amount,
		"profile_id":      uuid.NewString(),
	}
}

func (s *APITestSuite) TestHealth() {
	resp := s.request(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	env := s.decode(resp, nil)
	s.Equal("OK", env.Message)
}

func (s *APITestSuite) TestCreateWireTopUpRunsToDelivery() {
	s.seedWireCommissions()

	resp := s.request(http.MethodPost, "/operation",
		s.createBody("wire_topup", s.clientEUR.ID, s.clientBTC.ID, 1000.00))
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var op webapi.OperationDTO
	s.decode(resp, &op)
	s.Equal("PENDING", op.Status)
	s.Equal(4, op.Step)
	s.Equal("wire_topup", op.Type)
	s.Equal(1000.00, op.Amount)

	// The funded chain is parked on the wallet delivery, with the fee
	// projection already covering the fiat hops.
	resp = s.request(http.MethodGet, "/operation/"+op.ID, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var detail struct {
		Operation *webapi.OperationDTO    `json:"operation"`
		Fees      *webapi.OperationFeeDTO `json:"fees"`
	}
	s.decode(resp, &detail)
	s.Require().NotNil(detail.Fees)
	s.Equal(int64(2200), detail.Fees.ClientFiat)
	s.Equal(int64(700), detail.Fees.ProviderFiat)
	s.Equal(int64(1500), detail.Fees.SystemFiat)

	resp = s.request(http.MethodGet, "/operation/"+op.ID+"/transactions", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var txs []*webapi.TransactionDTO
	s.decode(resp, &txs)
	s.Len(txs, 8)
	pending := 0
	for _, tx := range txs {
		if tx.Status == "PENDING" {
			pending++
		}
	}
	s.Equal(1, pending)
}

func (s *APITestSuite) TestCreateValidationFailure() {
	resp := s.request(http.MethodPost, "/operation", map[string]any{
		"type":   "wire_topup",
		"amount": -3,
	})
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("application/problem+json", resp.Header.Get("Content-Type"))
	defer resp.Body.Close()
	var pd webapi.ProblemDetails
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&pd))
	s.Equal("Validation failed", pd.Title)
}

func (s *APITestSuite) TestCreateParksWithoutCommissionThenAdvances() {
	resp := s.request(http.MethodPost, "/operation",
		s.createBody("wire_topup", s.clientEUR.ID, s.clientBTC.ID, 250.00))
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)
	var op webapi.OperationDTO
	env := s.decode(resp, &op)
	s.Equal("Operation created, transition pending", env.Message)
	s.Equal(1, op.Step)
	s.Equal("PENDING", op.Status)

	// Commission configuration landed; a manual advance resumes the chain.
	s.seedWireCommissions()
	resp = s.request(http.MethodPost, "/operation/"+op.ID+"/advance", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decode(resp, &op)
	s.Equal(4, op.Step)
	s.Equal("PENDING", op.Status)
}

func (s *APITestSuite) TestRefundReturnsParkedTopUp() {
	s.seedCommission(ledger.Commission{
		AccountID: &s.acquirer.ID,
		Type:      ledger.CommissionRefund, Context: ledger.ContextWire,
		Currency: "EUR", RefundFixed: 1000,
	})

	resp := s.request(http.MethodPost, "/operation",
		s.createBody("wire_topup", s.clientEUR.ID, s.clientBTC.ID, 500.00))
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)
	var op webapi.OperationDTO
	s.decode(resp, &op)
	s.Equal(1, op.Step)

	resp = s.request(http.MethodPost, "/operation/"+op.ID+"/refund", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decode(resp, &op)
	s.Equal("RETURNED", op.Status)

	// A settled operation cannot be refunded again.
	resp = s.request(http.MethodPost, "/operation/"+op.ID+"/refund", nil)
	s.Equal(http.StatusConflict, resp.StatusCode)
}

func (s *APITestSuite) TestBadOperationID() {
	resp := s.request(http.MethodGet, "/operation/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.request(http.MethodGet, "/operation/"+uuid.NewString(), nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *APITestSuite) TestGatewayWebhookDrivesCardTopUp() {
	s.seedCommission(ledger.Commission{
		AccountID: &s.processor.ID,
		Type:      ledger.CommissionIncoming, Context: ledger.ContextCard,
		Currency: "EUR", Percent: 1.0,
	})

	resp := s.request(http.MethodPost, "/operation",
		s.createBody("card_topup", s.clientCard.ID, s.clientBTC.ID, 1000.00))
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)
	var op webapi.OperationDTO
	s.decode(resp, &op)
	s.Equal(1, op.Step)

	payload, err := json.Marshal(map[string]any{
		"status":          "captured",
		"captured_amount": 100_000,
		"currency":        "EUR",
		"reference":       "cap-1",
		"operation_id":    op.ID,
	})
	s.Require().NoError(err)

	// An unsigned notification is rejected before it touches the operation.
	req := httptest.NewRequest(http.MethodPost, "/webhook/gateway", bytes.NewReader(payload))
	resp, err = s.app.Test(req, -1)
	s.Require().NoError(err)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/webhook/gateway", bytes.NewReader(payload))
	req.Header.Set("X-Signature", s.gw.Sign(payload))
	resp, err = s.app.Test(req, -1)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp = s.request(http.MethodGet, "/operation/"+op.ID, nil)
	var detail struct {
		Operation *webapi.OperationDTO `json:"operation"`
	}
	s.decode(resp, &detail)
	s.Equal(5, detail.Operation.Step)
	s.Equal("PENDING", detail.Operation.Status)
	s.Require().NotNil(detail.Operation.ReceivedAmount)
	s.Equal(1000.00, *detail.Operation.ReceivedAmount)
}

func (s *APITestSuite) TestWalletWebhookQueuesPendingTransfer() {
	resp := s.request(http.MethodPost, "/webhook/wallet", map[string]any{
		"txid":   "chain-tx-9",
		"type":   "receive",
		"state":  "pending",
		"value":  1_000_000,
		"inputs": []string{"client-addr"},
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	// Custody has not approved yet: the top-up stays pending and the
	// confirmation worker owns the retry.
	ops := s.uow.AllOperations()
	s.Require().Len(ops, 1)
	s.Equal(ledger.OperationPending, ops[0].Status)
	jobs := s.uow.Jobs()
	s.Require().Len(jobs, 1)
	s.Equal("chain-tx-9", jobs[0].TxID)

	resp = s.request(http.MethodPost, "/webhook/wallet", map[string]any{
		"txid":  "chain-tx-9",
		"type":  "receive",
		"state": "bogus",
		"value": 1_000_000,
	})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}
