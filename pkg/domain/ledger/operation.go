package ledger

import (
	"time"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/google/uuid"
)

// OperationType is the kind of money movement an operation drives.
type OperationType string

const (
	OperationWireTopUp        OperationType = "wire_topup"
	OperationCardTopUp        OperationType = "card_topup"
	OperationCryptoTopUp      OperationType = "crypto_topup"
	OperationCryptoWithdrawal OperationType = "crypto_withdrawal"
	OperationWireWithdrawal   OperationType = "wire_withdrawal"
)

// OperationStatus is the lifecycle state of an operation.
type OperationStatus string

const (
	OperationPending    OperationStatus = "PENDING"
	OperationSuccessful OperationStatus = "SUCCESSFUL"
	OperationDeclined   OperationStatus = "DECLINED"
	OperationReturned   OperationStatus = "RETURNED"
)

// RefundStep is the distinct step value taken by the compensating refund
// transition. It never appears in a happy-path sequence.
const RefundStep = 100

// Operation is a top-level financial intent driven through an ordered
// sequence of ledger postings.
//
// Invariants:
//   - Step only advances after the current step's transactions exist and, for
//     externally confirmed steps, the external system has confirmed.
//   - Step is monotonically increasing, except for the single refund
//     transition from step 1.
//   - Status is terminal once it leaves PENDING; a step-1 PENDING operation
//     may still transition to RETURNED via refund.
type Operation struct {
	ID            uuid.UUID
	Type          OperationType
	Status        OperationStatus
	Step          int
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        money.Money
	// AmountEUR is the intent normalized to the reporting currency.
	AmountEUR money.Money
	// ReceivedAmount is the actually settled amount; nil until settlement differs
	// or is confirmed.
	ReceivedAmount *money.Money
	ExchangeRate   *float64
	ProfileID      uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SettledAmount returns the received amount when present, else the requested amount.
func (o *Operation) SettledAmount() money.Money {
	if o.ReceivedAmount != nil {
		return *o.ReceivedAmount
	}
	return o.Amount
}

// IsPending reports whether the operation can still transition.
func (o *Operation) IsPending() bool { return o.Status == OperationPending }

// FinalStep returns the last happy-path step for the operation type.
func (o *Operation) FinalStep() int {
	switch o.Type {
	case OperationWireTopUp:
		return 4
	case OperationCardTopUp:
		return 5
	default:
		return 1
	}
}

// NewOperation constructs a pending operation at step 1.
func NewOperation(
	opType OperationType,
	from, to uuid.UUID,
	amount money.Money,
	amountEUR money.Money,
	profileID uuid.UUID,
) *Operation {
	now := time.Now()
	return &Operation{
		ID:            uuid.New(),
		Type:          opType,
		Status:        OperationPending,
		Step:          1,
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        amount,
		AmountEUR:     amountEUR,
		ProfileID:     profileID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ContextFor maps an account type to the commission rail context used when
// resolving fee rules for postings touching that account.
func ContextFor(t AccountType) CommissionContext {
	switch t {
	case AccountCard:
		return ContextCard
	case AccountCrypto:
		return ContextCrypto
	default:
		return ContextWire
	}
}

// ReportingCurrency is the currency operations are normalized to.
const ReportingCurrency = currency.DefaultCurrency
