// Package ledger holds the core ledger entities: accounts, commissions,
// limits, operations, transactions and the derived operation fee projection.
package ledger

import (
	"time"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/google/uuid"
)

// OwnerType identifies who an account belongs to.
type OwnerType string

const (
	OwnerClient   OwnerType = "client"
	OwnerProvider OwnerType = "provider"
	OwnerSystem   OwnerType = "system"
)

// AccountType identifies the rail an account settles over.
type AccountType string

const (
	AccountWireSEPA  AccountType = "wire_sepa"
	AccountWireSWIFT AccountType = "wire_swift"
	AccountCard      AccountType = "card"
	AccountCrypto    AccountType = "crypto"
)

// ProviderRole identifies which hop of an operation chain a provider account
// serves. Empty for client and system accounts.
type ProviderRole string

const (
	RoleAcquirer      ProviderRole = "acquirer"
	RoleCardProcessor ProviderRole = "card_processor"
	RoleLiquidity     ProviderRole = "liquidity"
	RoleExchange      ProviderRole = "exchange"
	RoleWallet        ProviderRole = "wallet"
)

// Account is a ledger node: a client wallet, a provider account, a system
// account or a provider-fee sub-account.
//
// Invariants:
//   - Balance is derived from successful transactions; it is a cache, never
//     the source of truth.
//   - A provider account used in a step must have a fee sub-account (ParentID
//     pointing back at it) before that step's commission can be posted.
//   - Accounts are never deleted, only deactivated.
type Account struct {
	ID          uuid.UUID
	OwnerType   OwnerType
	AccountType AccountType
	Currency    currency.Code
	Balance     money.Money
	// Role is set on provider accounts only.
	Role ProviderRole
	// ParentID links a provider-fee sub-account to its principal account.
	ParentID *uuid.UUID
	// ExternalAddress is the on-chain address or IBAN the account maps to, when any.
	ExternalAddress string
	Active          bool
	RiskScore       *float64
	VerifiedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsProviderFee reports whether the account is a provider fee sub-account.
func (a *Account) IsProviderFee() bool {
	return a.OwnerType == OwnerProvider && a.ParentID != nil
}

// Builder provides a fluent API for constructing Account instances.
type Builder struct {
	id          uuid.UUID
	ownerType   OwnerType
	accountType AccountType
	currency    currency.Code
	balance     int64
	role        ProviderRole
	parentID    *uuid.UUID
	external    string
	createdAt   time.Time
}

// NewAccount creates a Builder with a fresh id and the default currency.
func NewAccount() *Builder {
	return &Builder{
		id:        uuid.New(),
		ownerType: OwnerClient,
		currency:  currency.DefaultCurrency,
		createdAt: time.Now(),
	}
}

// WithID sets the id for the account being built.
func (b *Builder) WithID(id uuid.UUID) *Builder {
	b.id = id
	return b
}

// WithOwner sets the owner type.
func (b *Builder) WithOwner(t OwnerType) *Builder {
	b.ownerType = t
	return b
}

// WithType sets the account type.
func (b *Builder) WithType(t AccountType) *Builder {
	b.accountType = t
	return b
}

// WithCurrency sets the account currency.
func (b *Builder) WithCurrency(code currency.Code) *Builder {
	b.currency = code
	return b
}

// WithBalance sets the cached balance in minor units. Used for hydration and tests.
func (b *Builder) WithBalance(balance int64) *Builder {
	b.balance = balance
	return b
}

// WithRole sets the provider role.
func (b *Builder) WithRole(role ProviderRole) *Builder {
	b.role = role
	return b
}

// WithParent marks the account as a fee sub-account of the given principal.
func (b *Builder) WithParent(parentID uuid.UUID) *Builder {
	b.parentID = &parentID
	return b
}

// WithExternalAddress sets the external address the account reconciles against.
func (b *Builder) WithExternalAddress(addr string) *Builder {
	b.external = addr
	return b
}

// Build validates invariants and returns the Account.
func (b *Builder) Build() (*Account, error) {
	if !currency.IsValidFormat(b.currency) {
		return nil, money.ErrInvalidCurrencyCode
	}
	balance, err := money.NewFromMinor(b.balance, b.currency)
	if err != nil {
		return nil, err
	}
	if b.accountType == "" {
		b.accountType = AccountWireSEPA
	}
	return &Account{
		ID:              b.id,
		OwnerType:       b.ownerType,
		AccountType:     b.accountType,
		Currency:        b.currency,
		Balance:         balance,
		Role:            b.role,
		ParentID:        b.parentID,
		ExternalAddress: b.external,
		Active:          true,
		CreatedAt:       b.createdAt,
		UpdatedAt:       b.createdAt,
	}, nil
}
