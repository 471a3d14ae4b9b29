// Package testutils provides an in-memory UnitOfWork used by service tests.
// Repositories return copies, so state only changes through repository writes,
// matching how the database-backed implementations behave.
package testutils

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/repository"
	"github.com/google/uuid"
)

// MemUoW is an in-memory UnitOfWork. Do runs the function directly; there is
// no rollback, which is fine for tests asserting committed outcomes.
type MemUoW struct {
	mu           sync.Mutex
	accounts     map[uuid.UUID]ledger.Account
	commissions  map[uuid.UUID]ledger.Commission
	limits       map[uuid.UUID]ledger.Limit
	operations   map[uuid.UUID]ledger.Operation
	transactions map[uuid.UUID]ledger.Transaction
	fees         map[uuid.UUID]ledger.OperationFee
	jobs         map[uuid.UUID]repository.ConfirmJob
}

// NewMemUoW creates an empty in-memory unit of work.
func NewMemUoW() *MemUoW {
	return &MemUoW{
		accounts:     make(map[uuid.UUID]ledger.Account),
		commissions:  make(map[uuid.UUID]ledger.Commission),
		limits:       make(map[uuid.UUID]ledger.Limit),
		operations:   make(map[uuid.UUID]ledger.Operation),
		transactions: make(map[uuid.UUID]ledger.Transaction),
		fees:         make(map[uuid.UUID]ledger.OperationFee),
		jobs:         make(map[uuid.UUID]repository.ConfirmJob),
	}
}

func (u *MemUoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	return fn(u)
}

func (u *MemUoW) AccountRepository() (repository.AccountRepository, error) {
	return &memAccounts{u}, nil
}

func (u *MemUoW) CommissionRepository() (repository.CommissionRepository, error) {
	return &memCommissions{u}, nil
}

func (u *MemUoW) LimitRepository() (repository.LimitRepository, error) {
	return &memLimits{u}, nil
}

func (u *MemUoW) OperationRepository() (repository.OperationRepository, error) {
	return &memOperations{u}, nil
}

func (u *MemUoW) TransactionRepository() (repository.TransactionRepository, error) {
	return &memTransactions{u}, nil
}

func (u *MemUoW) OperationFeeRepository() (repository.OperationFeeRepository, error) {
	return &memFees{u}, nil
}

func (u *MemUoW) ConfirmJobRepository() (repository.ConfirmJobRepository, error) {
	return &memJobs{u}, nil
}

// SeedAccount stores an account directly.
func (u *MemUoW) SeedAccount(a *ledger.Account) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.accounts[a.ID] = *a
}

// SeedCommission stores a commission rule directly.
func (u *MemUoW) SeedCommission(c *ledger.Commission) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.commissions[c.ID] = *c
}

// SeedLimit stores a limit directly.
func (u *MemUoW) SeedLimit(l *ledger.Limit) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.limits[l.ID] = *l
}

// Account returns the stored account state.
func (u *MemUoW) Account(id uuid.UUID) (ledger.Account, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	a, ok := u.accounts[id]
	return a, ok
}

// Operation returns the stored operation state.
func (u *MemUoW) Operation(id uuid.UUID) (ledger.Operation, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	op, ok := u.operations[id]
	return op, ok
}

// AllOperations returns every stored operation.
func (u *MemUoW) AllOperations() []ledger.Operation {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []ledger.Operation
	for _, op := range u.operations {
		out = append(out, op)
	}
	return out
}

// Transactions returns every stored transaction for an operation, oldest first.
func (u *MemUoW) Transactions(operationID uuid.UUID) []ledger.Transaction {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []ledger.Transaction
	for _, tx := range u.transactions {
		if tx.OperationID == operationID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Fee returns the stored fee projection.
func (u *MemUoW) Fee(operationID uuid.UUID) (ledger.OperationFee, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	f, ok := u.fees[operationID]
	return f, ok
}

// Jobs returns every stored confirmation job.
func (u *MemUoW) Jobs() []repository.ConfirmJob {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []repository.ConfirmJob
	for _, j := range u.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type memAccounts struct{ u *MemUoW }

func (r *memAccounts) Get(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	a, ok := r.u.accounts[id]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return &a, nil
}

func (r *memAccounts) Create(ctx context.Context, account *ledger.Account) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.accounts[account.ID] = *account
	return nil
}

func (r *memAccounts) UpdateBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	a, ok := r.u.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	updated, err := money.NewFromMinor(balance, a.Currency)
	if err != nil {
		return err
	}
	a.Balance = updated
	r.u.accounts[id] = a
	return nil
}

func (r *memAccounts) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	a, ok := r.u.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	a.Active = false
	r.u.accounts[id] = a
	return nil
}

func (r *memAccounts) SystemAccount(
	ctx context.Context,
	code currency.Code,
	accountType ledger.AccountType,
) (*ledger.Account, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	for _, a := range r.u.accounts {
		if a.OwnerType == ledger.OwnerSystem && a.AccountType == accountType &&
			a.Currency == code && a.Active {
			found := a
			return &found, nil
		}
	}
	return nil, ledger.ErrSystemAccountMissing
}

func (r *memAccounts) FeeChild(ctx context.Context, parentID uuid.UUID) (*ledger.Account, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	for _, a := range r.u.accounts {
		if a.ParentID != nil && *a.ParentID == parentID && a.Active {
			found := a
			return &found, nil
		}
	}
	return nil, ledger.ErrFeeAccountMissing
}

func (r *memAccounts) ProviderAccount(
	ctx context.Context,
	code currency.Code,
	role ledger.ProviderRole,
) (*ledger.Account, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	for _, a := range r.u.accounts {
		if a.OwnerType == ledger.OwnerProvider && a.Role == role &&
			a.Currency == code && a.ParentID == nil && a.Active {
			found := a
			return &found, nil
		}
	}
	return nil, ledger.ErrAccountNotFound
}

func (r *memAccounts) ByExternalAddress(ctx context.Context, addr string) (*ledger.Account, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	for _, a := range r.u.accounts {
		if a.ExternalAddress == addr && a.Active {
			found := a
			return &found, nil
		}
	}
	return nil, ledger.ErrAccountNotFound
}

type memCommissions struct{ u *MemUoW }

func (r *memCommissions) Active(
	ctx context.Context,
	scope ledger.CommissionScope,
	commissionType ledger.CommissionType,
	commissionContext ledger.CommissionContext,
	code currency.Code,
) (*ledger.Commission, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	for _, c := range r.u.commissions {
		if !c.Active || c.Type != commissionType || c.Context != commissionContext ||
			c.Currency != code {
			continue
		}
		if scope.AccountID != nil && c.AccountID != nil && *c.AccountID == *scope.AccountID {
			found := c
			return &found, nil
		}
		if scope.RateTemplateID != nil && c.RateTemplateID != nil &&
			*c.RateTemplateID == *scope.RateTemplateID {
			found := c
			return &found, nil
		}
	}
	return nil, ledger.ErrCommissionMissing
}

func (r *memCommissions) Create(ctx context.Context, c *ledger.Commission) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.commissions[c.ID] = *c
	return nil
}

func (r *memCommissions) Supersede(ctx context.Context, replacement *ledger.Commission) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	for id, c := range r.u.commissions {
		if !c.Active || c.Type != replacement.Type || c.Context != replacement.Context ||
			c.Currency != replacement.Currency {
			continue
		}
		sameAccount := c.AccountID != nil && replacement.AccountID != nil &&
			*c.AccountID == *replacement.AccountID
		sameTemplate := c.RateTemplateID != nil && replacement.RateTemplateID != nil &&
			*c.RateTemplateID == *replacement.RateTemplateID
		if sameAccount || sameTemplate {
			c.Active = false
			r.u.commissions[id] = c
		}
	}
	replacement.Active = true
	r.u.commissions[replacement.ID] = *replacement
	return nil
}

type memLimits struct{ u *MemUoW }

func (r *memLimits) Get(
	ctx context.Context,
	rateTemplateID uuid.UUID,
	complianceLevel int,
) (*ledger.Limit, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	for _, l := range r.u.limits {
		if l.RateTemplateID == rateTemplateID && l.ComplianceLevel == complianceLevel {
			found := l
			return &found, nil
		}
	}
	return nil, ledger.ErrLimitExceeded
}

func (r *memLimits) Create(ctx context.Context, l *ledger.Limit) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.limits[l.ID] = *l
	return nil
}

type memOperations struct{ u *MemUoW }

func (r *memOperations) Get(ctx context.Context, id uuid.UUID) (*ledger.Operation, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	op, ok := r.u.operations[id]
	if !ok {
		return nil, ledger.ErrOperationNotFound
	}
	return &op, nil
}

func (r *memOperations) GetForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Operation, error) {
	return r.Get(ctx, id)
}

func (r *memOperations) Create(ctx context.Context, op *ledger.Operation) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.operations[op.ID] = *op
	return nil
}

func (r *memOperations) Update(ctx context.Context, op *ledger.Operation) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if _, ok := r.u.operations[op.ID]; !ok {
		return ledger.ErrOperationNotFound
	}
	r.u.operations[op.ID] = *op
	return nil
}

func (r *memOperations) MonthlySum(
	ctx context.Context,
	profileID uuid.UUID,
	since time.Time,
) (int64, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	var total int64
	for _, op := range r.u.operations {
		if op.ProfileID == profileID && !op.CreatedAt.Before(since) &&
			op.Status != ledger.OperationDeclined {
			total += op.AmountEUR.Amount()
		}
	}
	return total, nil
}

type memTransactions struct{ u *MemUoW }

func (r *memTransactions) Get(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	tx, ok := r.u.transactions[id]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	return &tx, nil
}

func (r *memTransactions) Create(ctx context.Context, tx *ledger.Transaction) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if tx.TxID != nil {
		for _, existing := range r.u.transactions {
			if existing.TxID != nil && *existing.TxID == *tx.TxID {
				return ledger.ErrDuplicateReference
			}
		}
	}
	r.u.transactions[tx.ID] = *tx
	return nil
}

func (r *memTransactions) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status ledger.TransactionStatus,
) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	tx, ok := r.u.transactions[id]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	tx.Status = status
	tx.UpdatedAt = time.Now()
	r.u.transactions[id] = tx
	return nil
}

func (r *memTransactions) ListByOperation(
	ctx context.Context,
	operationID uuid.UUID,
) ([]*ledger.Transaction, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	var out []*ledger.Transaction
	for _, tx := range r.u.transactions {
		if tx.OperationID == operationID {
			found := tx
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memTransactions) ByTxID(ctx context.Context, txID string) (*ledger.Transaction, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	for _, tx := range r.u.transactions {
		if tx.TxID != nil && *tx.TxID == txID {
			found := tx
			return &found, nil
		}
	}
	return nil, ledger.ErrTransactionNotFound
}

func (r *memTransactions) SumsForAccount(
	ctx context.Context,
	accountID uuid.UUID,
) (repository.AccountSums, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	var sums repository.AccountSums
	for _, tx := range r.u.transactions {
		if tx.Status != ledger.TransactionSuccessful {
			continue
		}
		if tx.ToAccountID == accountID {
			sums.Credits += tx.CreditedAmount().Amount()
		}
		if tx.FromAccountID == accountID {
			sums.Debits += tx.Amount.Amount()
		}
	}
	return sums, nil
}

type memFees struct{ u *MemUoW }

func (r *memFees) Get(ctx context.Context, operationID uuid.UUID) (*ledger.OperationFee, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	f, ok := r.u.fees[operationID]
	if !ok {
		return nil, ledger.ErrOperationNotFound
	}
	return &f, nil
}

func (r *memFees) Upsert(ctx context.Context, fee *ledger.OperationFee) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.fees[fee.OperationID] = *fee
	return nil
}

type memJobs struct{ u *MemUoW }

func (r *memJobs) Enqueue(ctx context.Context, job *repository.ConfirmJob) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.jobs[job.ID] = *job
	return nil
}

func (r *memJobs) Due(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*repository.ConfirmJob, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	var out []*repository.ConfirmJob
	for _, j := range r.u.jobs {
		if j.Status == repository.ConfirmJobPending && !j.NextRunAt.After(now) {
			found := j
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(out[j].NextRunAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memJobs) Update(ctx context.Context, job *repository.ConfirmJob) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if _, ok := r.u.jobs[job.ID]; !ok {
		return ledger.ErrTransactionNotFound
	}
	r.u.jobs[job.ID] = *job
	return nil
}
