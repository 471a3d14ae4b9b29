// Package confirmqueue processes external confirmations through a persistent
// retry queue: a confirmation that fails to ingest is retried with backoff
// instead of inline, and permanent failures are surfaced to operators rather
// than dropped.
package confirmqueue

import (
	"context"
	"log/slog"
	"time"

	"github.com/finwire/backoffice/pkg/metrics"
	"github.com/finwire/backoffice/pkg/repository"
	"github.com/google/uuid"
)

const (
	// MaxAttempts is how many times a confirmation is retried before it is
	// parked for an operator.
	MaxAttempts = 5
	// RetrySpacing is the minimum gap between attempts.
	RetrySpacing = 5 * time.Minute
)

// Approver resumes the state machine for an external reference id.
type Approver interface {
	ApproveByTxID(ctx context.Context, txID string) error
}

// Service owns the confirmation queue.
type Service struct {
	uow      repository.UnitOfWork
	approver Approver
	metrics  *metrics.Metrics
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// New creates the queue service. Poll interval defaults to 5 seconds.
func New(
	uow repository.UnitOfWork,
	approver Approver,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		uow:      uow,
		approver: approver,
		metrics:  m,
		logger:   logger,
		interval: 5 * time.Second,
		batch:    50,
	}
}

// Enqueue records an external confirmation for processing.
func (s *Service) Enqueue(ctx context.Context, txID string) error {
	return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		jobRepo, err := uow.ConfirmJobRepository()
		if err != nil {
			return err
		}
		return jobRepo.Enqueue(ctx, &repository.ConfirmJob{
			ID:        uuid.New(),
			TxID:      txID,
			Status:    repository.ConfirmJobPending,
			NextRunAt: time.Now(),
			CreatedAt: time.Now(),
		})
	})
}

// SetInterval overrides the poll interval. Call before Run.
func (s *Service) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// SetBatchSize overrides how many due jobs one pass picks up.
func (s *Service) SetBatchSize(n int) {
	if n > 0 {
		s.batch = n
	}
}

// Run polls for due jobs until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("confirmation worker started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("confirmation worker stopped")
			return
		case <-ticker.C:
			if err := s.ProcessDue(ctx); err != nil {
				s.logger.Error("confirmation batch failed", "error", err)
			}
		}
	}
}

// ProcessDue handles every job whose retry time has passed.
func (s *Service) ProcessDue(ctx context.Context) error {
	var jobs []*repository.ConfirmJob
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		jobRepo, err := uow.ConfirmJobRepository()
		if err != nil {
			return err
		}
		jobs, err = jobRepo.Due(ctx, time.Now(), s.batch)
		return err
	})
	if err != nil {
		return err
	}
	for _, job := range jobs {
		s.process(ctx, job)
	}
	return nil
}

func (s *Service) process(ctx context.Context, job *repository.ConfirmJob) {
	log := s.logger.With("job_id", job.ID, "txid", job.TxID, "attempts", job.Attempts)

	err := s.approver.ApproveByTxID(ctx, job.TxID)
	if err == nil {
		job.Status = repository.ConfirmJobCompleted
		s.update(ctx, job)
		log.Info("confirmation processed")
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	if s.metrics != nil {
		s.metrics.ConfirmRetries.Inc()
	}
	if job.Attempts >= MaxAttempts {
		// Parked for an operator; never silently dropped.
		job.Status = repository.ConfirmJobFailed
		if s.metrics != nil {
			s.metrics.ConfirmFailures.Inc()
		}
		log.Error("confirmation exhausted, needs operator review", "error", err)
	} else {
		job.NextRunAt = time.Now().Add(RetrySpacing)
		log.Warn("confirmation failed, retry scheduled",
			"error", err, "next_run_at", job.NextRunAt)
	}
	s.update(ctx, job)
}

func (s *Service) update(ctx context.Context, job *repository.ConfirmJob) {
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		jobRepo, err := uow.ConfirmJobRepository()
		if err != nil {
			return err
		}
		return jobRepo.Update(ctx, job)
	})
	if err != nil {
		s.logger.Error("confirm job update failed", "job_id", job.ID, "error", err)
	}
}
