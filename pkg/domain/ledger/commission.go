package ledger

import (
	"time"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/google/uuid"
)

// CommissionType is the direction a commission rule applies to.
type CommissionType string

const (
	CommissionIncoming   CommissionType = "incoming"
	CommissionOutgoing   CommissionType = "outgoing"
	CommissionInternal   CommissionType = "internal"
	CommissionRefund     CommissionType = "refund"
	CommissionChargeback CommissionType = "chargeback"
)

// CommissionContext is the rail context a commission rule applies to.
type CommissionContext string

const (
	ContextWire     CommissionContext = "wire"
	ContextCard     CommissionContext = "card"
	ContextCrypto   CommissionContext = "crypto"
	ContextExchange CommissionContext = "exchange"
)

// Commission is an immutable fee rule attached to an account or a rate
// template. Fixed, Min and Max are in minor units of Currency; Percent is a
// percentage (2.0 means 2%). Edits supersede: a new row is inserted and the
// previous one deactivated, never mutated.
//
// Invariant: at most one active Commission exists per
// (account-or-template, type, context, currency).
type Commission struct {
	ID uuid.UUID
	// Exactly one of AccountID / RateTemplateID is set.
	AccountID      *uuid.UUID
	RateTemplateID *uuid.UUID
	Type           CommissionType
	Context        CommissionContext
	Currency       currency.Code
	Percent        float64
	Fixed          int64
	Min            *int64
	Max            *int64
	// Refund variant fields, consulted when calculating a refund fee.
	RefundPercent float64
	RefundFixed   int64
	RefundMin     *int64
	Active        bool
	CreatedAt     time.Time
}

// Scope returns the resolution scope the rule is attached to.
func (c *Commission) Scope() CommissionScope {
	return CommissionScope{AccountID: c.AccountID, RateTemplateID: c.RateTemplateID}
}

// CommissionScope identifies the owner of a commission rule for resolution.
type CommissionScope struct {
	AccountID      *uuid.UUID
	RateTemplateID *uuid.UUID
}

// ScopeAccount builds a scope for an account-attached rule.
func ScopeAccount(id uuid.UUID) CommissionScope {
	return CommissionScope{AccountID: &id}
}

// ScopeTemplate builds a scope for a rate-template rule.
func ScopeTemplate(id uuid.UUID) CommissionScope {
	return CommissionScope{RateTemplateID: &id}
}

// Limit caps what an operation may move for a compliance level.
// Invariant: exactly one Limit per (rate template, compliance level).
type Limit struct {
	ID                   uuid.UUID
	RateTemplateID       uuid.UUID
	ComplianceLevel      int
	TransactionAmountMax int64
	MonthlyAmountMax     int64
}
