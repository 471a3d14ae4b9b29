package repository

import (
	"context"
	"time"

	repo "github.com/finwire/backoffice/pkg/repository"
	"gorm.io/gorm"
)

type confirmJobRepository struct {
	db *gorm.DB
}

// NewConfirmJobRepository creates a confirmation queue repository bound to the given session.
func NewConfirmJobRepository(db *gorm.DB) repo.ConfirmJobRepository {
	return &confirmJobRepository{db: db}
}

func (r *confirmJobRepository) Enqueue(ctx context.Context, job *repo.ConfirmJob) error {
	m := fromDomainConfirmJob(job)
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *confirmJobRepository) Due(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*repo.ConfirmJob, error) {
	var models []ConfirmJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_run_at <= ?", string(repo.ConfirmJobPending), now).
		Order("next_run_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	jobs := make([]*repo.ConfirmJob, 0, len(models))
	for i := range models {
		jobs = append(jobs, toDomainConfirmJob(&models[i]))
	}
	return jobs, nil
}

func (r *confirmJobRepository) Update(ctx context.Context, job *repo.ConfirmJob) error {
	m := fromDomainConfirmJob(job)
	return r.db.WithContext(ctx).Model(&ConfirmJob{}).Where("id = ?", m.ID).Updates(map[string]any{
		"attempts":    m.Attempts,
		"status":      m.Status,
		"next_run_at": m.NextRunAt,
		"last_error":  m.LastError,
	}).Error
}

func toDomainConfirmJob(m *ConfirmJob) *repo.ConfirmJob {
	return &repo.ConfirmJob{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		TxID:          m.TxID,
		Attempts:      m.Attempts,
		Status:        repo.ConfirmJobStatus(m.Status),
		NextRunAt:     m.NextRunAt,
		LastError:     m.LastError,
		CreatedAt:     m.CreatedAt,
	}
}

func fromDomainConfirmJob(j *repo.ConfirmJob) *ConfirmJob {
	return &ConfirmJob{
		ID:            j.ID,
		TransactionID: j.TransactionID,
		TxID:          j.TxID,
		Attempts:      j.Attempts,
		Status:        string(j.Status),
		NextRunAt:     j.NextRunAt,
		LastError:     j.LastError,
		CreatedAt:     j.CreatedAt,
	}
}
