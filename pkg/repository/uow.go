package repository

import "context"

// UnitOfWork defines the contract for transactional work and repository
// access. All repositories obtained from one UnitOfWork share the same DB
// session, so a step's postings commit or roll back together.
type UnitOfWork interface {
	// Do executes fn within a transaction boundary. The provided UnitOfWork
	// hands out repositories bound to that transaction. If fn returns an
	// error the transaction is rolled back.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	AccountRepository() (AccountRepository, error)
	CommissionRepository() (CommissionRepository, error)
	LimitRepository() (LimitRepository, error)
	OperationRepository() (OperationRepository, error)
	TransactionRepository() (TransactionRepository, error)
	OperationFeeRepository() (OperationFeeRepository, error)
	ConfirmJobRepository() (ConfirmJobRepository, error)
}
