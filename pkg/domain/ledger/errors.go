package ledger

import "errors"

var (
	// ErrAccountNotFound is returned when an account cannot be found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrOperationNotFound is returned when an operation cannot be found.
	ErrOperationNotFound = errors.New("operation not found")
	// ErrTransactionNotFound is returned when a transaction cannot be found.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrSystemAccountMissing is returned when no system account exists for a
	// (currency, account type) pair required by a step.
	ErrSystemAccountMissing = errors.New("system account missing")
	// ErrCommissionMissing is returned when no active commission rule covers an
	// endpoint of a posting. The step must not produce a transaction.
	ErrCommissionMissing = errors.New("commission missing")
	// ErrFeeAccountMissing is returned when a provider account has no fee sub-account.
	ErrFeeAccountMissing = errors.New("provider fee account missing")
	// ErrCurrencyMismatch is returned when a posting pairs currency-incompatible accounts.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrLimitExceeded is returned when an operation would breach the compliance limits.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrOperationNotPending is returned when a transition is attempted on a settled operation.
	ErrOperationNotPending = errors.New("operation is not pending")
	// ErrRefundUnavailable is returned when an operation is past the refundable step.
	ErrRefundUnavailable = errors.New("refund unavailable at current step")
	// ErrUnknownTransition is returned when no handler covers (operation type, step).
	ErrUnknownTransition = errors.New("no transition for operation type and step")
	// ErrDuplicateReference is returned when a transaction with the same external
	// reference id already exists.
	ErrDuplicateReference = errors.New("duplicate external reference")
)
