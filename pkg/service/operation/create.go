package operation

import (
	"context"
	"fmt"
	"time"

	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/repository"
	"github.com/google/uuid"
)

// CreateParams describes a new operation.
type CreateParams struct {
	Type          ledger.OperationType
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        money.Money
	// AmountEUR is the intent normalized to the reporting currency for limit
	// checks and reporting.
	AmountEUR money.Money
	ProfileID uuid.UUID
}

// Create starts a new operation after the compliance and limit gates pass.
// The operation begins PENDING at step 1; Drive advances it.
func (s *Service) Create(ctx context.Context, p CreateParams) (*ledger.Operation, error) {
	log := s.logger.With("profile_id", p.ProfileID, "type", p.Type)

	ok, err := s.compliance.IsWithinLimits(ctx, p.ProfileID, p.AmountEUR.Amount())
	if err != nil {
		return nil, fmt.Errorf("compliance check: %w", err)
	}
	if !ok {
		return nil, ledger.ErrLimitExceeded
	}

	var op *ledger.Operation
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if err := s.checkLimits(ctx, uow, p); err != nil {
			return err
		}
		op = ledger.NewOperation(p.Type, p.FromAccountID, p.ToAccountID,
			p.Amount, p.AmountEUR, p.ProfileID)
		opRepo, err := uow.OperationRepository()
		if err != nil {
			return err
		}
		return opRepo.Create(ctx, op)
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.OperationsCreated.WithLabelValues(string(p.Type)).Inc()
	}
	log.Info("operation created", "operation_id", op.ID, "amount", p.Amount)
	return op, nil
}

// checkLimits enforces the per-transaction and monthly caps for the profile's
// compliance level.
func (s *Service) checkLimits(ctx context.Context, uow repository.UnitOfWork, p CreateParams) error {
	level, err := s.compliance.ComplianceLevel(ctx, p.ProfileID)
	if err != nil {
		return fmt.Errorf("compliance level: %w", err)
	}
	limitRepo, err := uow.LimitRepository()
	if err != nil {
		return err
	}
	limit, err := limitRepo.Get(ctx, s.cfg.RateTemplateID, level)
	if err != nil {
		return fmt.Errorf("limit lookup: %w", err)
	}
	if p.AmountEUR.Amount() > limit.TransactionAmountMax {
		return fmt.Errorf("%w: transaction cap", ledger.ErrLimitExceeded)
	}
	opRepo, err := uow.OperationRepository()
	if err != nil {
		return err
	}
	monthStart := time.Now().AddDate(0, -1, 0)
	spent, err := opRepo.MonthlySum(ctx, p.ProfileID, monthStart)
	if err != nil {
		return fmt.Errorf("monthly sum: %w", err)
	}
	if spent+p.AmountEUR.Amount() > limit.MonthlyAmountMax {
		return fmt.Errorf("%w: monthly cap", ledger.ErrLimitExceeded)
	}
	return nil
}

// Drive advances an operation through consecutive synchronous steps until it
// settles, parks on an asynchronous confirmation, or fails. A step that
// neither advances the counter nor settles the operation is parked; driving
// stops there.
func (s *Service) Drive(ctx context.Context, operationID uuid.UUID) error {
	for {
		before, err := s.readOperation(ctx, operationID)
		if err != nil {
			return err
		}
		if !before.IsPending() {
			return nil
		}
		if err := s.Advance(ctx, operationID); err != nil {
			return err
		}
		after, err := s.readOperation(ctx, operationID)
		if err != nil {
			return err
		}
		if !after.IsPending() || after.Step == before.Step {
			return nil
		}
	}
}
