// Package repository provides the gorm-backed implementations of the data
// access contracts in pkg/repository, with persistence models separate from
// the domain entities.
package repository

import (
	"time"

	"github.com/google/uuid"
)

// Account is an account record in the database.
type Account struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key"`
	OwnerType       string     `gorm:"type:varchar(16);not null;index"`
	AccountType     string     `gorm:"type:varchar(16);not null"`
	Currency        string     `gorm:"type:varchar(8);not null"`
	Balance         int64      `gorm:"not null;default:0"`
	Role            string     `gorm:"type:varchar(16);index"`
	ParentID        *uuid.UUID `gorm:"type:uuid;index"`
	ExternalAddress string     `gorm:"type:varchar(128);index"`
	Active          bool       `gorm:"not null;default:true"`
	RiskScore       *float64
	VerifiedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName specifies the table name for the Account model.
func (Account) TableName() string { return "accounts" }

// Commission is a fee rule record. Rows are superseded, never updated.
type Commission struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key"`
	AccountID      *uuid.UUID `gorm:"type:uuid;index:idx_commission_scope"`
	RateTemplateID *uuid.UUID `gorm:"type:uuid;index:idx_commission_scope"`
	Type           string     `gorm:"type:varchar(16);not null"`
	Context        string     `gorm:"type:varchar(16);not null"`
	Currency       string     `gorm:"type:varchar(8);not null"`
	Percent        float64    `gorm:"not null;default:0"`
	Fixed          int64      `gorm:"not null;default:0"`
	Min            *int64
	Max            *int64
	RefundPercent  float64 `gorm:"not null;default:0"`
	RefundFixed    int64   `gorm:"not null;default:0"`
	RefundMin      *int64
	Active         bool `gorm:"not null;default:true;index"`
	CreatedAt      time.Time
}

// TableName specifies the table name for the Commission model.
func (Commission) TableName() string { return "commissions" }

// Limit is a compliance-level cap record.
type Limit struct {
	ID                   uuid.UUID `gorm:"type:uuid;primary_key"`
	RateTemplateID       uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_limit_level"`
	ComplianceLevel      int       `gorm:"uniqueIndex:idx_limit_level"`
	TransactionAmountMax int64
	MonthlyAmountMax     int64
}

// TableName specifies the table name for the Limit model.
func (Limit) TableName() string { return "limits" }

// Operation is an operation record.
type Operation struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key"`
	Type             string    `gorm:"type:varchar(24);not null;index"`
	Status           string    `gorm:"type:varchar(16);not null;index"`
	Step             int       `gorm:"not null;default:1"`
	FromAccountID    uuid.UUID `gorm:"type:uuid;not null"`
	ToAccountID      uuid.UUID `gorm:"type:uuid;not null"`
	Amount           int64     `gorm:"not null"`
	Currency         string    `gorm:"type:varchar(8);not null"`
	AmountEUR        int64     `gorm:"column:amount_eur;not null;default:0"`
	ReceivedAmount   *int64
	ReceivedCurrency *string `gorm:"type:varchar(8)"`
	ExchangeRate     *float64
	ProfileID        uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName specifies the table name for the Operation model.
func (Operation) TableName() string { return "operations" }

// Transaction is a ledger posting record.
type Transaction struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key"`
	Type              string    `gorm:"type:varchar(16);not null"`
	OperationID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Amount            int64     `gorm:"not null"`
	Currency          string    `gorm:"type:varchar(8);not null"`
	RecipientAmount   *int64
	RecipientCurrency *string    `gorm:"type:varchar(8)"`
	FromAccountID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	ToAccountID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	Status            string     `gorm:"type:varchar(16);not null;index"`
	ParentID          *uuid.UUID `gorm:"type:uuid;index"`
	FromCommissionID  *uuid.UUID `gorm:"type:uuid"`
	ToCommissionID    *uuid.UUID `gorm:"type:uuid"`
	// TxID carries the external reference id; the unique index is the
	// database-level replay guard.
	TxID      *string `gorm:"type:varchar(128);uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string { return "transactions" }

// OperationFee is the fee projection record, one row per operation.
type OperationFee struct {
	OperationID    uuid.UUID `gorm:"type:uuid;primary_key"`
	ClientFiat     int64
	ClientCrypto   int64
	ProviderFiat   int64
	ProviderCrypto int64
	SystemFiat     int64
	SystemCrypto   int64
	UpdatedAt      time.Time
}

// TableName specifies the table name for the OperationFee model.
func (OperationFee) TableName() string { return "operation_fees" }

// ConfirmJob is a queued external confirmation record.
type ConfirmJob struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	TransactionID uuid.UUID `gorm:"type:uuid"`
	TxID          string    `gorm:"type:varchar(128);not null;index"`
	Attempts      int       `gorm:"not null;default:0"`
	Status        string    `gorm:"type:varchar(16);not null;index"`
	NextRunAt     time.Time `gorm:"index"`
	LastError     string    `gorm:"type:text"`
	CreatedAt     time.Time
}

// TableName specifies the table name for the ConfirmJob model.
func (ConfirmJob) TableName() string { return "confirm_jobs" }
