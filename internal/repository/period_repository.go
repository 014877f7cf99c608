package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hillcrest-arts/lessons-api/internal/models"
)

const periodColumns = `id, trimester, phase, is_current, start_date, created_at, updated_at`

// PeriodRepository handles persistence for enrollment periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository constructs the repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// List returns all periods in canonical trimester and start-date order.
func (r *PeriodRepository) List(ctx context.Context) ([]models.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM periods
		ORDER BY ` + trimesterScanOrder + `, start_date`
	var periods []models.Period
	if err := r.db.SelectContext(ctx, &periods, query); err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// FindCurrent returns the single row flagged as current.
func (r *PeriodRepository) FindCurrent(ctx context.Context) (*models.Period, error) {
	const query = `SELECT ` + periodColumns + ` FROM periods WHERE is_current = TRUE LIMIT 1`
	var period models.Period
	if err := r.db.GetContext(ctx, &period, query); err != nil {
		return nil, err
	}
	return &period, nil
}

// Create persists a new period row.
func (r *PeriodRepository) Create(ctx context.Context, period *models.Period) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	period.CreatedAt = now
	period.UpdatedAt = now
	const query = `INSERT INTO periods (` + periodColumns + `)
		VALUES (:id, :trimester, :phase, :is_current, :start_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create period: %w", err)
	}
	return nil
}

// SetCurrent flags one period as current and clears the flag everywhere else
// in the same transaction, so the one-current-row invariant cannot be broken
// through this API.
func (r *PeriodRepository) SetCurrent(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set current period: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `UPDATE periods SET is_current = FALSE, updated_at = $1 WHERE is_current = TRUE`, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear current period: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE periods SET is_current = TRUE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set current period: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set current period: %w", err)
	}
	return nil
}
