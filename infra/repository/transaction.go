package repository

import (
	"context"
	"errors"
	"time"

	"github.com/finwire/backoffice/pkg/domain/ledger"
	repo "github.com/finwire/backoffice/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a transaction repository bound to the given session.
func NewTransactionRepository(db *gorm.DB) repo.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Get(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	var m Transaction
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, err
	}
	return toDomainTransaction(&m)
}

func (r *transactionRepository) Create(ctx context.Context, tx *ledger.Transaction) error {
	err := r.db.WithContext(ctx).Create(fromDomainTransaction(tx)).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ledger.ErrDuplicateReference
	}
	return err
}

func (r *transactionRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status ledger.TransactionStatus,
) error {
	res := r.db.WithContext(ctx).Model(&Transaction{}).Where("id = ?", id).Updates(map[string]any{
		"status":     string(status),
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func (r *transactionRepository) ListByOperation(
	ctx context.Context,
	operationID uuid.UUID,
) ([]*ledger.Transaction, error) {
	var models []Transaction
	err := r.db.WithContext(ctx).
		Where("operation_id = ?", operationID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	txs := make([]*ledger.Transaction, 0, len(models))
	for i := range models {
		tx, err := toDomainTransaction(&models[i])
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (r *transactionRepository) ByTxID(ctx context.Context, txID string) (*ledger.Transaction, error) {
	var m Transaction
	if err := r.db.WithContext(ctx).First(&m, "tx_id = ?", txID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, err
	}
	return toDomainTransaction(&m)
}

// SumsForAccount totals successful postings touching the account. Credits use
// the recipient amount when the leg converted currencies on the way in.
func (r *transactionRepository) SumsForAccount(
	ctx context.Context,
	accountID uuid.UUID,
) (repo.AccountSums, error) {
	var sums repo.AccountSums
	err := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Select("COALESCE(SUM(COALESCE(recipient_amount, amount)), 0)").
		Where("to_account_id = ? AND status = ?", accountID, string(ledger.TransactionSuccessful)).
		Scan(&sums.Credits).Error
	if err != nil {
		return repo.AccountSums{}, err
	}
	err = r.db.WithContext(ctx).
		Model(&Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("from_account_id = ? AND status = ?", accountID, string(ledger.TransactionSuccessful)).
		Scan(&sums.Debits).Error
	if err != nil {
		return repo.AccountSums{}, err
	}
	return sums, nil
}
