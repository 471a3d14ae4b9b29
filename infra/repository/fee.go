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

type operationFeeRepository struct {
	db *gorm.DB
}

// NewOperationFeeRepository creates a fee projection repository bound to the given session.
func NewOperationFeeRepository(db *gorm.DB) repo.OperationFeeRepository {
	return &operationFeeRepository{db: db}
}

func (r *operationFeeRepository) Get(ctx context.Context, operationID uuid.UUID) (*ledger.OperationFee, error) {
	var m OperationFee
	if err := r.db.WithContext(ctx).First(&m, "operation_id = ?", operationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrOperationNotFound
		}
		return nil, err
	}
	return &ledger.OperationFee{
		OperationID:    m.OperationID,
		ClientFiat:     m.ClientFiat,
		ClientCrypto:   m.ClientCrypto,
		ProviderFiat:   m.ProviderFiat,
		ProviderCrypto: m.ProviderCrypto,
		SystemFiat:     m.SystemFiat,
		SystemCrypto:   m.SystemCrypto,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

// Upsert replaces the projection row for the operation. The projection is
// always recomputed from the full transaction list, so last write wins.
func (r *operationFeeRepository) Upsert(ctx context.Context, fee *ledger.OperationFee) error {
	m := OperationFee{
		OperationID:    fee.OperationID,
		ClientFiat:     fee.ClientFiat,
		ClientCrypto:   fee.ClientCrypto,
		ProviderFiat:   fee.ProviderFiat,
		ProviderCrypto: fee.ProviderCrypto,
		SystemFiat:     fee.SystemFiat,
		SystemCrypto:   fee.SystemCrypto,
		UpdatedAt:      time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operation_id"}},
		UpdateAll: true,
	}).Create(&m).Error
}
