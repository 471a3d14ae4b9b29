package repository

import (
	"context"
	"errors"
	"time"

	"github.com/finwire/backoffice/pkg/domain/ledger"
	repo "github.com/finwire/backoffice/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type operationRepository struct {
	db *gorm.DB
}

// NewOperationRepository creates an operation repository bound to the given session.
func NewOperationRepository(db *gorm.DB) repo.OperationRepository {
	return &operationRepository{db: db}
}

func (r *operationRepository) Get(ctx context.Context, id uuid.UUID) (*ledger.Operation, error) {
	var m Operation
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrOperationNotFound
		}
		return nil, err
	}
	return toDomainOperation(&m)
}

// GetForUpdate takes a row lock held for the remainder of the surrounding
// transaction, serializing concurrent step transitions on one operation.
func (r *operationRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Operation, error) {
	var m Operation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrOperationNotFound
		}
		return nil, err
	}
	return toDomainOperation(&m)
}

func (r *operationRepository) Create(ctx context.Context, op *ledger.Operation) error {
	return r.db.WithContext(ctx).Create(fromDomainOperation(op)).Error
}

func (r *operationRepository) Update(ctx context.Context, op *ledger.Operation) error {
	op.UpdatedAt = time.Now()
	m := fromDomainOperation(op)
	res := r.db.WithContext(ctx).Model(&Operation{}).Where("id = ?", m.ID).Updates(map[string]any{
		"status":            m.Status,
		"step":              m.Step,
		"received_amount":   m.ReceivedAmount,
		"received_currency": m.ReceivedCurrency,
		"exchange_rate":     m.ExchangeRate,
		"updated_at":        m.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrOperationNotFound
	}
	return nil
}

func (r *operationRepository) MonthlySum(
	ctx context.Context,
	profileID uuid.UUID,
	since time.Time,
) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&Operation{}).
		Select("COALESCE(SUM(amount_eur), 0)").
		Where("profile_id = ? AND created_at >= ? AND status <> ?",
			profileID, since, string(ledger.OperationDeclined)).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
