package repository

import (
	"context"
	"errors"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	repo "github.com/finwire/backoffice/pkg/repository"
	"gorm.io/gorm"
)

type commissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository creates a commission repository bound to the given session.
func NewCommissionRepository(db *gorm.DB) repo.CommissionRepository {
	return &commissionRepository{db: db}
}

func scopedQuery(db *gorm.DB, scope ledger.CommissionScope) *gorm.DB {
	if scope.AccountID != nil {
		return db.Where("account_id = ?", *scope.AccountID)
	}
	return db.Where("rate_template_id = ?", *scope.RateTemplateID)
}

func (r *commissionRepository) Active(
	ctx context.Context,
	scope ledger.CommissionScope,
	commissionType ledger.CommissionType,
	commissionContext ledger.CommissionContext,
	code currency.Code,
) (*ledger.Commission, error) {
	var m Commission
	q := scopedQuery(r.db.WithContext(ctx), scope).
		Where("type = ? AND context = ? AND currency = ? AND active = ?",
			string(commissionType), string(commissionContext), string(code), true)
	if err := q.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrCommissionMissing
		}
		return nil, err
	}
	return toDomainCommission(&m), nil
}

func (r *commissionRepository) Create(ctx context.Context, c *ledger.Commission) error {
	return r.db.WithContext(ctx).Create(fromDomainCommission(c)).Error
}

// Supersede deactivates the active rule sharing the replacement's scope, type,
// context and currency, then inserts the replacement. Runs in its own
// transaction when the session is not already transactional.
func (r *commissionRepository) Supersede(ctx context.Context, replacement *ledger.Commission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := scopedQuery(tx.Model(&Commission{}), replacement.Scope()).
			Where("type = ? AND context = ? AND currency = ? AND active = ?",
				string(replacement.Type), string(replacement.Context),
				string(replacement.Currency), true)
		if err := q.Update("active", false).Error; err != nil {
			return err
		}
		replacement.Active = true
		return tx.Create(fromDomainCommission(replacement)).Error
	})
}
