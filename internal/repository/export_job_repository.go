package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hillcrest-arts/lessons-api/internal/models"
)

const exportJobColumns = `id, trimester, format, status, file_path, created_by, created_at, finished_at, error_message`

// ExportJobRepository handles persistence for roster export jobs.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository constructs the repository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// Create persists a new export job.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO export_jobs (` + exportJobColumns + `)
		VALUES (:id, :trimester, :format, :status, :file_path, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// FindByID loads an export job by identifier.
func (r *ExportJobRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	const query = `SELECT ` + exportJobColumns + ` FROM export_jobs WHERE id = $1`
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateExportJobParams carries the mutable job fields.
type UpdateExportJobParams struct {
	Status       *models.ExportStatus
	FilePath     *string
	FinishedAt   *time.Time
	ErrorMessage *string
}

// Update applies the provided fields to a job row.
func (r *ExportJobRepository) Update(ctx context.Context, id string, params UpdateExportJobParams) error {
	const query = `UPDATE export_jobs SET
		status = COALESCE($2, status),
		file_path = COALESCE($3, file_path),
		finished_at = COALESCE($4, finished_at),
		error_message = COALESCE($5, error_message)
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, params.Status, params.FilePath, params.FinishedAt, params.ErrorMessage); err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	return nil
}
