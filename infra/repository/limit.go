package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/finwire/backoffice/pkg/domain/ledger"
	repo "github.com/finwire/backoffice/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type limitRepository struct {
	db *gorm.DB
}

// NewLimitRepository creates a limit repository bound to the given session.
func NewLimitRepository(db *gorm.DB) repo.LimitRepository {
	return &limitRepository{db: db}
}

func (r *limitRepository) Get(
	ctx context.Context,
	rateTemplateID uuid.UUID,
	complianceLevel int,
) (*ledger.Limit, error) {
	var m Limit
	err := r.db.WithContext(ctx).
		Where("rate_template_id = ? AND compliance_level = ?", rateTemplateID, complianceLevel).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no limit for compliance level %d: %w", complianceLevel, err)
		}
		return nil, err
	}
	return toDomainLimit(&m), nil
}

func (r *limitRepository) Create(ctx context.Context, l *ledger.Limit) error {
	m := Limit{
		ID:                   l.ID,
		RateTemplateID:       l.RateTemplateID,
		ComplianceLevel:      l.ComplianceLevel,
		TransactionAmountMax: l.TransactionAmountMax,
		MonthlyAmountMax:     l.MonthlyAmountMax,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}
