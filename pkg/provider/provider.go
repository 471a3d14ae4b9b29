// Package provider defines the narrow interfaces to the external
// collaborators the orchestrator consumes: exchange trading, wallet custody,
// the card payment gateway and compliance.
package provider

import (
	"context"
	"time"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/google/uuid"
)

// OrderResult carries the settled figures of an exchange order.
type OrderResult struct {
	Fee                 float64
	Rate                float64
	SettledFiatAmount   int64
	SettledCryptoAmount int64
	FiatCurrency        currency.Code
	CryptoCurrency      currency.Code
	Done                bool
}

// Exchange is the trading collaborator: buy/sell crypto against fiat and
// withdraw bought crypto to a wallet.
type Exchange interface {
	// Buy places a market buy of toCurrency funded by amount of fromCurrency
	// (minor units) and returns an order reference.
	Buy(ctx context.Context, fromCurrency, toCurrency currency.Code, amount int64) (orderRef string, err error)
	// Sell places a market sell of amount of fromCurrency into toCurrency.
	Sell(ctx context.Context, fromCurrency, toCurrency currency.Code, amount int64) (orderRef string, err error)
	// OrderResult reports fee, rate and settled amounts of an order. Polled
	// with bounded retries until Done.
	OrderResult(ctx context.Context, orderRef string) (*OrderResult, error)
	// Withdraw moves bought crypto off the exchange to the destination wallet.
	Withdraw(ctx context.Context, code currency.Code, destinationKey string, amount int64) (referenceID string, err error)
	// WithdrawStatus lists recent withdrawals for correlation by reference id.
	WithdrawStatus(ctx context.Context, code currency.Code) ([]WithdrawInfo, error)
}

// WithdrawInfo is one exchange withdrawal as reported by WithdrawStatus.
type WithdrawInfo struct {
	ReferenceID string
	Amount      int64
	Completed   bool
}

// TransferState is the custody-side state of a wallet transfer.
type TransferState string

const (
	TransferPending  TransferState = "pending"
	TransferApproved TransferState = "approved"
	TransferFailed   TransferState = "failed"
)

// Transfer is one wallet-custody transfer.
type Transfer struct {
	TxID      string
	Type      string // "send" or "receive"
	State     TransferState
	Value     int64
	Inputs    []string // source addresses, used to reconcile inbound transfers
	CreatedAt time.Time
}

// WalletCustody is the crypto custody collaborator.
type WalletCustody interface {
	// Send initiates a transfer between custody wallets and returns its txid.
	Send(ctx context.Context, fromWallet, toWallet string, amount int64, memo string) (txid string, err error)
	// ListTransfers returns recent transfers on a wallet.
	ListTransfers(ctx context.Context, code currency.Code, walletID string) ([]Transfer, error)
	// IsApproved reports whether custody has approved the transfer.
	IsApproved(ctx context.Context, t Transfer) (bool, error)
}

// GatewayResult is the normalized card-payment outcome produced by a gateway
// adapter after webhook signature verification.
type GatewayResult struct {
	Success        bool
	CapturedAmount int64
	Currency       currency.Code
	Reference      string
	DeclineCode    string
	OperationID    uuid.UUID
}

// PaymentGateway verifies and normalizes card gateway webhooks.
type PaymentGateway interface {
	// VerifyWebhook checks the payload signature and returns the normalized
	// capture result. Unverifiable payloads are rejected.
	VerifyWebhook(ctx context.Context, payload []byte, signature string) (*GatewayResult, error)
}

// Compliance gates whether an operation may start for a profile.
type Compliance interface {
	IsWithinLimits(ctx context.Context, profileID uuid.UUID, amountEUR int64) (bool, error)
	ComplianceLevel(ctx context.Context, profileID uuid.UUID) (int, error)
}
