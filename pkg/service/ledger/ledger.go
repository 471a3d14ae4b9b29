// Package ledger implements transaction posting and balance propagation: the
// only code path that creates ledger postings or moves cached balances.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finwire/backoffice/pkg/domain/events"
	domledger "github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/eventbus"
	"github.com/finwire/backoffice/pkg/metrics"
	"github.com/finwire/backoffice/pkg/repository"
	"github.com/google/uuid"
)

// Service posts transactions and propagates balances. It never decides what
// to post; that is the orchestrator's job.
type Service struct {
	bus     eventbus.Bus
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a posting service.
func New(bus eventbus.Bus, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{bus: bus, metrics: m, logger: logger}
}

// PostParams describes one posting. FromAccount/ToAccount are the resolved
// endpoint accounts; commissions, parent and step are optional.
type PostParams struct {
	Type           domledger.TransactionType
	Amount         money.Money
	FromAccount    *domledger.Account
	ToAccount      *domledger.Account
	Status         domledger.TransactionStatus
	Operation      *domledger.Operation
	FromCommission *domledger.Commission
	ToCommission   *domledger.Commission
	// Step, when set, advances the operation to that step after the posting.
	Step            *int
	RecipientAmount *money.Money
	Parent          *domledger.Transaction
	// TxID is the external reference id; postings reconciled with external
	// systems must carry one so replays are rejected.
	TxID         *string
	ExchangeRate *float64
}

func (p *PostParams) validate() error {
	if p.FromAccount == nil || p.ToAccount == nil {
		return domledger.ErrAccountNotFound
	}
	if p.Operation == nil {
		return domledger.ErrOperationNotFound
	}
	// The debited account must match the amount's currency; the credited
	// account must match the credited amount's currency.
	if p.FromAccount.Currency != p.Amount.Currency() {
		return domledger.ErrCurrencyMismatch
	}
	credited := p.Amount
	if p.RecipientAmount != nil {
		credited = *p.RecipientAmount
	}
	if p.ToAccount.Currency != credited.Currency() {
		return domledger.ErrCurrencyMismatch
	}
	return nil
}

// Post persists one transaction inside the caller's unit of work, advances the
// operation step when requested, and recomputes both endpoint balances when
// the posting is already successful. A currency-incompatible pair is an
// invariant violation and aborts the whole request.
func (s *Service) Post(
	ctx context.Context,
	uow repository.UnitOfWork,
	p PostParams,
) (*domledger.Transaction, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	txRepo, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}

	// Idempotent reconciliation: an external reference id may enter the
	// ledger at most once.
	if p.TxID != nil {
		existing, err := txRepo.ByTxID(ctx, *p.TxID)
		if err != nil && !errors.Is(err, domledger.ErrTransactionNotFound) {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: %s", domledger.ErrDuplicateReference, *p.TxID)
		}
	}

	now := time.Now()
	tx := &domledger.Transaction{
		ID:              uuid.New(),
		Type:            p.Type,
		OperationID:     p.Operation.ID,
		Amount:          p.Amount,
		RecipientAmount: p.RecipientAmount,
		FromAccountID:   p.FromAccount.ID,
		ToAccountID:     p.ToAccount.ID,
		Status:          p.Status,
		TxID:            p.TxID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if p.Parent != nil {
		tx.ParentID = &p.Parent.ID
	}
	if p.FromCommission != nil {
		tx.FromCommissionID = &p.FromCommission.ID
	}
	if p.ToCommission != nil {
		tx.ToCommissionID = &p.ToCommission.ID
	}
	if err := txRepo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	if p.Step != nil || p.ExchangeRate != nil {
		opRepo, err := uow.OperationRepository()
		if err != nil {
			return nil, err
		}
		if p.ExchangeRate != nil {
			p.Operation.ExchangeRate = p.ExchangeRate
		}
		if p.Step != nil && *p.Step != p.Operation.Step {
			from := p.Operation.Step
			p.Operation.Step = *p.Step
			s.bus.Publish(ctx, events.OperationAdvanced{
				OperationID:   p.Operation.ID,
				OperationType: p.Operation.Type,
				FromStep:      from,
				ToStep:        *p.Step,
				Timestamp:     now,
			})
		}
		if err := opRepo.Update(ctx, p.Operation); err != nil {
			return nil, fmt.Errorf("advance operation: %w", err)
		}
	}

	if p.Status == domledger.TransactionSuccessful {
		if err := s.recomputeBalances(ctx, uow, p.FromAccount.ID, p.ToAccount.ID); err != nil {
			return nil, err
		}
	}

	if s.metrics != nil {
		s.metrics.TransactionsPosted.WithLabelValues(string(p.Type)).Inc()
	}
	s.bus.Publish(ctx, events.TransactionPosted{
		TransactionID:   tx.ID,
		OperationID:     p.Operation.ID,
		TransactionType: p.Type,
		Amount:          p.Amount,
		FromAccountID:   p.FromAccount.ID,
		FromOwner:       p.FromAccount.OwnerType,
		ToAccountID:     p.ToAccount.ID,
		ToOwner:         p.ToAccount.OwnerType,
		Status:          p.Status,
		Timestamp:       now,
	})
	return tx, nil
}

// MarkSuccessful settles a pending transaction and propagates balances.
// Calling it on an already-successful transaction is a no-op: balances are
// never double-applied. The caller holds the per-operation row lock.
func (s *Service) MarkSuccessful(
	ctx context.Context,
	uow repository.UnitOfWork,
	transactionID uuid.UUID,
) (*domledger.Transaction, error) {
	txRepo, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	tx, err := txRepo.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status == domledger.TransactionSuccessful {
		s.logger.Info("transaction already successful, skipping",
			"transaction_id", transactionID)
		return tx, nil
	}
	if tx.Status == domledger.TransactionDeclined {
		return nil, fmt.Errorf("transaction %s already declined", transactionID)
	}
	if err := txRepo.UpdateStatus(ctx, transactionID, domledger.TransactionSuccessful); err != nil {
		return nil, fmt.Errorf("settle transaction: %w", err)
	}
	tx.Status = domledger.TransactionSuccessful
	if err := s.recomputeBalances(ctx, uow, tx.FromAccountID, tx.ToAccountID); err != nil {
		return nil, err
	}
	return tx, nil
}

// recomputeBalances rebuilds both endpoint balances from successful
// transaction history instead of incrementing in place, so replays and
// partial failures cannot drift the cache.
func (s *Service) recomputeBalances(
	ctx context.Context,
	uow repository.UnitOfWork,
	accountIDs ...uuid.UUID,
) error {
	accRepo, err := uow.AccountRepository()
	if err != nil {
		return err
	}
	txRepo, err := uow.TransactionRepository()
	if err != nil {
		return err
	}
	for _, id := range accountIDs {
		sums, err := txRepo.SumsForAccount(ctx, id)
		if err != nil {
			return fmt.Errorf("sum transactions for %s: %w", id, err)
		}
		if err := accRepo.UpdateBalance(ctx, id, sums.Credits-sums.Debits); err != nil {
			return fmt.Errorf("update balance for %s: %w", id, err)
		}
	}
	return nil
}
