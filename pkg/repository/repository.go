// Package repository defines the data access contracts the engine depends on.
// Implementations live in infra/repository.
package repository

import (
	"context"
	"time"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/google/uuid"
)

// AccountSums carries the credit/debit totals a balance recompute is derived from.
type AccountSums struct {
	Credits int64
	Debits  int64
}

// AccountRepository defines account data access.
type AccountRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*ledger.Account, error)
	Create(ctx context.Context, account *ledger.Account) error
	// UpdateBalance overwrites the cached balance in minor units.
	UpdateBalance(ctx context.Context, id uuid.UUID, balance int64) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	// SystemAccount returns the active system-owned account for the pair.
	SystemAccount(ctx context.Context, code currency.Code, accountType ledger.AccountType) (*ledger.Account, error)
	// FeeChild returns the fee sub-account of a provider account.
	FeeChild(ctx context.Context, parentID uuid.UUID) (*ledger.Account, error)
	// ProviderAccount returns the active provider account serving the role in
	// the given currency.
	ProviderAccount(ctx context.Context, code currency.Code, role ledger.ProviderRole) (*ledger.Account, error)
	// ByExternalAddress resolves an account by its on-chain address or IBAN.
	ByExternalAddress(ctx context.Context, addr string) (*ledger.Account, error)
}

// CommissionRepository defines commission rule access with append-only versioning.
type CommissionRepository interface {
	// Active returns the single active rule for the scope, or ledger.ErrCommissionMissing.
	Active(
		ctx context.Context,
		scope ledger.CommissionScope,
		commissionType ledger.CommissionType,
		commissionContext ledger.CommissionContext,
		code currency.Code,
	) (*ledger.Commission, error)
	Create(ctx context.Context, c *ledger.Commission) error
	// Supersede deactivates the active rule matching replacement's scope/type/
	// context/currency and inserts replacement, in one atomic unit.
	Supersede(ctx context.Context, replacement *ledger.Commission) error
}

// LimitRepository defines compliance limit access.
type LimitRepository interface {
	Get(ctx context.Context, rateTemplateID uuid.UUID, complianceLevel int) (*ledger.Limit, error)
	Create(ctx context.Context, l *ledger.Limit) error
}

// OperationRepository defines operation access, including the row lock that
// guards step transitions.
type OperationRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*ledger.Operation, error)
	// GetForUpdate loads the operation holding a row lock for the duration of
	// the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Operation, error)
	Create(ctx context.Context, op *ledger.Operation) error
	Update(ctx context.Context, op *ledger.Operation) error
	// MonthlySum returns the normalized EUR minor-unit total of a profile's
	// operations since the given time.
	MonthlySum(ctx context.Context, profileID uuid.UUID, since time.Time) (int64, error)
}

// TransactionRepository defines transaction access.
type TransactionRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)
	Create(ctx context.Context, tx *ledger.Transaction) error
	// UpdateStatus moves a transaction out of PENDING.
	UpdateStatus(ctx context.Context, id uuid.UUID, status ledger.TransactionStatus) error
	ListByOperation(ctx context.Context, operationID uuid.UUID) ([]*ledger.Transaction, error)
	// ByTxID returns the transaction holding the external reference id, or
	// ledger.ErrTransactionNotFound.
	ByTxID(ctx context.Context, txID string) (*ledger.Transaction, error)
	// SumsForAccount totals successful credits and debits for an account.
	// Credits use the recipient amount when one is set.
	SumsForAccount(ctx context.Context, accountID uuid.UUID) (AccountSums, error)
}

// OperationFeeRepository persists the derived fee projection.
type OperationFeeRepository interface {
	Get(ctx context.Context, operationID uuid.UUID) (*ledger.OperationFee, error)
	Upsert(ctx context.Context, fee *ledger.OperationFee) error
}

// ConfirmJobRepository backs the webhook confirmation retry queue.
type ConfirmJobRepository interface {
	Enqueue(ctx context.Context, job *ConfirmJob) error
	// Due returns pending jobs whose next run time has passed, oldest first.
	Due(ctx context.Context, now time.Time, limit int) ([]*ConfirmJob, error)
	Update(ctx context.Context, job *ConfirmJob) error
}

// ConfirmJobStatus is the queue state of a confirmation job.
type ConfirmJobStatus string

const (
	ConfirmJobPending   ConfirmJobStatus = "PENDING"
	ConfirmJobCompleted ConfirmJobStatus = "COMPLETED"
	ConfirmJobFailed    ConfirmJobStatus = "FAILED"
)

// ConfirmJob is one queued external confirmation awaiting (re)processing.
type ConfirmJob struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	TxID          string
	Attempts      int
	Status        ConfirmJobStatus
	NextRunAt     time.Time
	LastError     string
	CreatedAt     time.Time
}
