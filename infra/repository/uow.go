package repository

import (
	"context"

	repo "github.com/finwire/backoffice/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides transaction boundary and repository access in one abstraction.
// All repositories handed out by one UoW share the same DB session, so a
// step's postings commit or roll back together.
type UoW struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{db: db}
}

// session returns the transaction when inside Do, else the base connection.
func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// Do runs fn inside a database transaction, providing a UoW whose
// repositories are bound to that transaction. Nested calls reuse the
// already-open transaction instead of starting a new one.
func (u *UoW) Do(ctx context.Context, fn func(uow repo.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UoW{db: u.db, tx: tx})
	})
}

func (u *UoW) AccountRepository() (repo.AccountRepository, error) {
	return NewAccountRepository(u.session()), nil
}

func (u *UoW) CommissionRepository() (repo.CommissionRepository, error) {
	return NewCommissionRepository(u.session()), nil
}

func (u *UoW) LimitRepository() (repo.LimitRepository, error) {
	return NewLimitRepository(u.session()), nil
}

func (u *UoW) OperationRepository() (repo.OperationRepository, error) {
	return NewOperationRepository(u.session()), nil
}

func (u *UoW) TransactionRepository() (repo.TransactionRepository, error) {
	return NewTransactionRepository(u.session()), nil
}

func (u *UoW) OperationFeeRepository() (repo.OperationFeeRepository, error) {
	return NewOperationFeeRepository(u.session()), nil
}

func (u *UoW) ConfirmJobRepository() (repo.ConfirmJobRepository, error) {
	return NewConfirmJobRepository(u.session()), nil
}
