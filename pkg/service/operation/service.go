// Package operation implements the saga-style state machine that drives an
// operation through its ordered sequence of ledger postings. Transitions are
// data: a table mapping (operation type, step) to a handler. Each handler
// splits into a prepare phase (external collaborator I/O, no lock held) and a
// commit phase (ledger postings under the per-operation row lock).
package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finwire/backoffice/pkg/domain/events"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/eventbus"
	"github.com/finwire/backoffice/pkg/metrics"
	"github.com/finwire/backoffice/pkg/provider"
	"github.com/finwire/backoffice/pkg/repository"
	ledgersvc "github.com/finwire/backoffice/pkg/service/ledger"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Config carries the ambient parameters every orchestrator call needs.
type Config struct {
	// RateTemplateID selects the limit/commission template applied to
	// profiles without a bespoke one.
	RateTemplateID uuid.UUID
	// CorporateWalletID is the custody wallet crypto settles through.
	CorporateWalletID string
	// OrderPollAttempts bounds exchange order-result polling.
	OrderPollAttempts int
	// OrderPollInterval spaces the polls.
	OrderPollInterval time.Duration
}

// Service orchestrates operations: creation, step transitions, asynchronous
// confirmation and refunds.
type Service struct {
	uow        repository.UnitOfWork
	ledger     *ledgersvc.Service
	exchange   provider.Exchange
	wallet     provider.WalletCustody
	compliance provider.Compliance
	bus        eventbus.Bus
	metrics    *metrics.Metrics
	cfg        Config
	logger     *slog.Logger

	transitions map[transitionKey]stepHandler
	inflight    singleflight.Group
}

// New creates the orchestrator.
func New(
	uow repository.UnitOfWork,
	ledgerSvc *ledgersvc.Service,
	exchange provider.Exchange,
	wallet provider.WalletCustody,
	compliance provider.Compliance,
	bus eventbus.Bus,
	m *metrics.Metrics,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OrderPollAttempts == 0 {
		cfg.OrderPollAttempts = 10
	}
	if cfg.OrderPollInterval == 0 {
		cfg.OrderPollInterval = 500 * time.Millisecond
	}
	s := &Service{
		uow:        uow,
		ledger:     ledgerSvc,
		exchange:   exchange,
		wallet:     wallet,
		compliance: compliance,
		bus:        bus,
		metrics:    m,
		cfg:        cfg,
		logger:     logger,
	}
	s.transitions = newTransitionTable()
	return s
}

// transitionKey selects a handler in the transition table.
type transitionKey struct {
	Type ledger.OperationType
	Step int
}

// prep carries what a prepare phase produced for its commit phase.
type prep struct {
	orderRef    string
	order       *provider.OrderResult
	walletTxID  string
	withdrawRef string
}

// stepContext is what a commit phase works with: the transaction-bound unit
// of work, the locked operation, and any confirming transaction when the
// transition was resumed from an external confirmation.
type stepContext struct {
	uow     repository.UnitOfWork
	op      *ledger.Operation
	prep    *prep
	confirm *ledger.Transaction
	svc     *Service
}

// stepHandler is one transition. Prepare runs external collaborator calls
// without holding the operation lock and may be nil. Commit posts under the
// lock; any precondition failure aborts before the first posting.
type stepHandler struct {
	prepare func(ctx context.Context, s *Service, op *ledger.Operation) (*prep, error)
	commit  func(ctx context.Context, sc *stepContext) error
}

// newTransitionTable wires every (operation type, step) the engine knows.
func newTransitionTable() map[transitionKey]stepHandler {
	return map[transitionKey]stepHandler{
		{ledger.OperationWireTopUp, 1}: {commit: wireTopUpStep1},
		{ledger.OperationWireTopUp, 2}: {commit: wireTopUpStep2},
		{ledger.OperationWireTopUp, 3}: {prepare: prepareExchangeBuy, commit: exchangeStep},
		{ledger.OperationWireTopUp, 4}: {prepare: prepareWalletSend, commit: walletDeliveryStep},

		{ledger.OperationCardTopUp, 2}: {commit: cardTopUpStep2},
		{ledger.OperationCardTopUp, 3}: {prepare: prepareExchangeBuy, commit: exchangeStep},
		{ledger.OperationCardTopUp, 4}: {commit: cardTopUpStep4},
		{ledger.OperationCardTopUp, 5}: {prepare: prepareWalletSend, commit: walletDeliveryStep},

		{ledger.OperationCryptoTopUp, 1}: {commit: cryptoTopUpConfirm},

		{ledger.OperationCryptoWithdrawal, 1}: {prepare: prepareCryptoWithdrawal, commit: cryptoWithdrawalStep},
		{ledger.OperationWireWithdrawal, 1}:   {commit: wireWithdrawalStep},

		{ledger.OperationWireTopUp, ledger.RefundStep}: {commit: refundStep},
		{ledger.OperationCardTopUp, ledger.RefundStep}: {commit: refundStep},
	}
}

// Advance runs the transition for the operation's current step: prepare phase
// first (external I/O, no lock), then the locked commit. The operation must
// still be pending and at the step the prepare phase saw; a lost race leaves
// the ledger untouched.
func (s *Service) Advance(ctx context.Context, operationID uuid.UUID) error {
	op, err := s.readOperation(ctx, operationID)
	if err != nil {
		return err
	}
	if !op.IsPending() {
		return ledger.ErrOperationNotPending
	}
	handler, ok := s.transitions[transitionKey{op.Type, op.Step}]
	if !ok {
		return fmt.Errorf("%w: %s step %d", ledger.ErrUnknownTransition, op.Type, op.Step)
	}

	var p *prep
	if handler.prepare != nil {
		p, err = handler.prepare(ctx, s, op)
		if err != nil {
			s.logger.Error("step prepare failed",
				"operation_id", op.ID, "type", op.Type, "step", op.Step, "error", err)
			return err
		}
	}

	started := time.Now()
	expectedStep := op.Step
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		opRepo, err := uow.OperationRepository()
		if err != nil {
			return err
		}
		locked, err := opRepo.GetForUpdate(ctx, operationID)
		if err != nil {
			return err
		}
		if !locked.IsPending() {
			return ledger.ErrOperationNotPending
		}
		if locked.Step != expectedStep {
			// A concurrent invocation already advanced the step.
			s.logger.Warn("step changed under prepare, skipping",
				"operation_id", operationID, "expected", expectedStep, "actual", locked.Step)
			return nil
		}
		return handler.commit(ctx, &stepContext{uow: uow, op: locked, prep: p, svc: s})
	})
	if s.metrics != nil {
		s.metrics.StepDuration.WithLabelValues(string(op.Type)).Observe(time.Since(started).Seconds())
	}
	return err
}

// Approve resumes the state machine for a pending transaction, either right
// after a step completed or from an external confirmation (webhook or poll).
// Re-entrant and idempotent: an already-successful transaction is a no-op.
func (s *Service) Approve(ctx context.Context, transactionID uuid.UUID) error {
	_, err, _ := s.inflight.Do(transactionID.String(), func() (any, error) {
		return nil, s.approve(ctx, transactionID)
	})
	return err
}

func (s *Service) approve(ctx context.Context, transactionID uuid.UUID) error {
	return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		txRepo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		tx, err := txRepo.Get(ctx, transactionID)
		if err != nil {
			return err
		}
		opRepo, err := uow.OperationRepository()
		if err != nil {
			return err
		}
		op, err := opRepo.GetForUpdate(ctx, tx.OperationID)
		if err != nil {
			return err
		}
		if tx.Status == ledger.TransactionSuccessful {
			s.logger.Info("confirmation replayed on settled transaction, skipping",
				"transaction_id", transactionID, "operation_id", op.ID)
			return nil
		}
		handler, ok := s.transitions[transitionKey{op.Type, op.Step}]
		if !ok {
			return fmt.Errorf("%w: %s step %d", ledger.ErrUnknownTransition, op.Type, op.Step)
		}
		return handler.commit(ctx, &stepContext{uow: uow, op: op, confirm: tx, svc: s})
	})
}

// ApproveByTxID resumes the state machine from an external reference id, the
// form webhooks arrive in. Unknown references return ErrTransactionNotFound.
func (s *Service) ApproveByTxID(ctx context.Context, txID string) error {
	var transactionID uuid.UUID
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		txRepo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		tx, err := txRepo.ByTxID(ctx, txID)
		if err != nil {
			return err
		}
		transactionID = tx.ID
		return nil
	})
	if err != nil {
		return err
	}
	return s.Approve(ctx, transactionID)
}

func (s *Service) readOperation(ctx context.Context, id uuid.UUID) (*ledger.Operation, error) {
	var op *ledger.Operation
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		opRepo, err := uow.OperationRepository()
		if err != nil {
			return err
		}
		op, err = opRepo.Get(ctx, id)
		return err
	})
	return op, err
}

// settle moves the operation to a terminal status inside the current unit of
// work and publishes the settlement event.
func (sc *stepContext) settle(ctx context.Context, status ledger.OperationStatus) error {
	opRepo, err := sc.uow.OperationRepository()
	if err != nil {
		return err
	}
	sc.op.Status = status
	sc.op.UpdatedAt = time.Now()
	if err := opRepo.Update(ctx, sc.op); err != nil {
		return fmt.Errorf("settle operation: %w", err)
	}
	if sc.svc.metrics != nil {
		sc.svc.metrics.OperationsSettled.
			WithLabelValues(string(sc.op.Type), string(status)).Inc()
	}
	sc.svc.bus.Publish(ctx, events.OperationSettled{
		OperationID:   sc.op.ID,
		OperationType: sc.op.Type,
		Status:        status,
		Timestamp:     time.Now(),
	})
	return nil
}

// account loads an account inside the step's unit of work.
func (sc *stepContext) account(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	accRepo, err := sc.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	return accRepo.Get(ctx, id)
}

// ErrReconciliationMismatch is surfaced when an external settlement differs
// from the requested amount or currency; routed to manual review, never
// auto-corrected.
var ErrReconciliationMismatch = errors.New("settled amount does not match requested amount")
