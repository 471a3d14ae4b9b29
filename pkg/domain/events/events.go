// Package events defines the audit events the engine publishes as postings
// happen. Consumers are read-only; handlers never post back into the ledger.
package events

import (
	"time"

	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/google/uuid"
)

// Event is implemented by everything published on the bus.
type Event interface {
	Type() string
}

// TransactionPosted is emitted for every persisted ledger posting, capturing
// both endpoints for traceability.
type TransactionPosted struct {
	TransactionID   uuid.UUID
	OperationID     uuid.UUID
	TransactionType ledger.TransactionType
	Amount          money.Money
	FromAccountID   uuid.UUID
	FromOwner       ledger.OwnerType
	ToAccountID     uuid.UUID
	ToOwner         ledger.OwnerType
	Status          ledger.TransactionStatus
	Timestamp       time.Time
}

// OperationAdvanced is emitted when an operation's step counter moves.
type OperationAdvanced struct {
	OperationID   uuid.UUID
	OperationType ledger.OperationType
	FromStep      int
	ToStep        int
	Timestamp     time.Time
}

// OperationSettled is emitted when an operation reaches a terminal status.
type OperationSettled struct {
	OperationID   uuid.UUID
	OperationType ledger.OperationType
	Status        ledger.OperationStatus
	Timestamp     time.Time
}

func (e TransactionPosted) Type() string { return "ledger.TransactionPosted" }
func (e OperationAdvanced) Type() string { return "operation.Advanced" }
func (e OperationSettled) Type() string  { return "operation.Settled" }
