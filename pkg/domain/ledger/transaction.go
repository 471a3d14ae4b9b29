package ledger

import (
	"time"

	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/google/uuid"
)

// TransactionType is the kind of posting a transaction represents.
type TransactionType string

const (
	TransactionBank      TransactionType = "bank"
	TransactionCrypto    TransactionType = "crypto"
	TransactionCard      TransactionType = "card"
	TransactionSystemFee TransactionType = "system_fee"
	TransactionExchange  TransactionType = "exchange"
	TransactionRefund    TransactionType = "refund"
)

// TransactionStatus is the settlement state of a posting.
type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "PENDING"
	TransactionSuccessful TransactionStatus = "SUCCESSFUL"
	TransactionDeclined   TransactionStatus = "DECLINED"
)

// Transaction is one ledger posting between two accounts, the atomic unit of
// balance movement.
//
// Invariants:
//   - From/To accounts must be currency-compatible with the amount.
//   - Status only moves PENDING -> SUCCESSFUL | DECLINED, at most once;
//     corrections are new transactions, never edits.
type Transaction struct {
	ID          uuid.UUID
	Type        TransactionType
	OperationID uuid.UUID
	Amount      money.Money
	// RecipientAmount is the amount actually credited when it differs from
	// Amount (currency conversion legs).
	RecipientAmount *money.Money
	FromAccountID   uuid.UUID
	ToAccountID     uuid.UUID
	Status          TransactionStatus
	// ParentID links fee postings to the principal posting they derive from.
	ParentID         *uuid.UUID
	FromCommissionID *uuid.UUID
	ToCommissionID   *uuid.UUID
	// TxID is the external transaction/reference id used for idempotent
	// reconciliation with external systems. Unique where set.
	TxID      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreditedAmount returns the recipient amount when present, else Amount.
func (t *Transaction) CreditedAmount() money.Money {
	if t.RecipientAmount != nil {
		return *t.RecipientAmount
	}
	return t.Amount
}

// IsSettled reports whether the transaction left PENDING.
func (t *Transaction) IsSettled() bool { return t.Status != TransactionPending }

// OperationFee is the derived client/provider/system fee split for an
// operation, in minor units of the respective fiat/crypto currencies.
// Recomputed (upserted) whenever the operation has transactions; a pure
// read-side projection that never posts.
type OperationFee struct {
	OperationID    uuid.UUID
	ClientFiat     int64
	ClientCrypto   int64
	ProviderFiat   int64
	ProviderCrypto int64
	SystemFiat     int64
	SystemCrypto   int64
	UpdatedAt      time.Time
}
