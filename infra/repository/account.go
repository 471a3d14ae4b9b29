package repository

import (
	"context"
	"errors"
	"time"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	repo "github.com/finwire/backoffice/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates an account repository bound to the given session.
func NewAccountRepository(db *gorm.DB) repo.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	var m Account
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, err
	}
	return toDomainAccount(&m)
}

func (r *accountRepository) Create(ctx context.Context, account *ledger.Account) error {
	m := fromDomainAccount(account)
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *accountRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	res := r.db.WithContext(ctx).Model(&Account{}).Where("id = ?", id).Updates(map[string]any{
		"balance":    balance,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&Account{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) SystemAccount(
	ctx context.Context,
	code currency.Code,
	accountType ledger.AccountType,
) (*ledger.Account, error) {
	var m Account
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND account_type = ? AND currency = ? AND active = ?",
			string(ledger.OwnerSystem), string(accountType), string(code), true).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrSystemAccountMissing
		}
		return nil, err
	}
	return toDomainAccount(&m)
}

func (r *accountRepository) FeeChild(ctx context.Context, parentID uuid.UUID) (*ledger.Account, error) {
	var m Account
	err := r.db.WithContext(ctx).
		Where("parent_id = ? AND active = ?", parentID, true).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrFeeAccountMissing
		}
		return nil, err
	}
	return toDomainAccount(&m)
}

func (r *accountRepository) ProviderAccount(
	ctx context.Context,
	code currency.Code,
	role ledger.ProviderRole,
) (*ledger.Account, error) {
	var m Account
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND role = ? AND currency = ? AND parent_id IS NULL AND active = ?",
			string(ledger.OwnerProvider), string(role), string(code), true).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, err
	}
	return toDomainAccount(&m)
}

func (r *accountRepository) ByExternalAddress(ctx context.Context, addr string) (*ledger.Account, error) {
	var m Account
	err := r.db.WithContext(ctx).
		Where("external_address = ? AND active = ?", addr, true).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, err
	}
	return toDomainAccount(&m)
}
