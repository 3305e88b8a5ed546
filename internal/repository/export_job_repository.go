package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/synapsedt/synapsedt-api/internal/models"
)

// ExportJobRepository persists background export job state.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository constructs the repository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// Create inserts a queued job record.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO export_jobs (id, params, status, progress, result_url, created_by, created_at, finished_at, error_message)
	VALUES (:id, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// GetByID fetches a job by identifier.
func (r *ExportJobRepository) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	const query = `SELECT id, params, status, progress, result_url, created_by, created_at, finished_at, error_message FROM export_jobs WHERE id = $1 LIMIT 1`
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateProgress records progress for a running job.
func (r *ExportJobRepository) UpdateProgress(ctx context.Context, id string, status models.ExportStatus, progress int) error {
	const query = `UPDATE export_jobs SET status = $2, progress = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, progress)
	if err != nil {
		return fmt.Errorf("update export job progress: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check export job rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkFinished records job completion with the signed result URL.
func (r *ExportJobRepository) MarkFinished(ctx context.Context, id, resultURL string) error {
	const query = `UPDATE export_jobs SET status = $2, progress = 100, result_url = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ExportStatusFinished, resultURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("finish export job: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure.
func (r *ExportJobRepository) MarkFailed(ctx context.Context, id, message string) error {
	const query = `UPDATE export_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ExportStatusFailed, message, time.Now().UTC()); err != nil {
		return fmt.Errorf("fail export job: %w", err)
	}
	return nil
}

// DeleteFinishedBefore removes finished and failed jobs older than the cutoff,
// returning how many rows were purged.
func (r *ExportJobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM export_jobs WHERE status IN ($1, $2) AND created_at < $3`
	result, err := r.db.ExecContext(ctx, query, models.ExportStatusFinished, models.ExportStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge export jobs: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check purge rows: %w", err)
	}
	return rows, nil
}
