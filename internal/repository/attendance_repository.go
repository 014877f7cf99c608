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

const attendanceColumns = `id, registration_id, date, status, notes, recorded_by, created_at`

// AttendanceRepository handles persistence for lesson attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ExistsForDate reports whether a record already exists for the
// registration+date pair.
func (r *AttendanceRepository) ExistsForDate(ctx context.Context, registrationID string, date time.Time) (bool, error) {
	const query = `SELECT 1 FROM attendance WHERE registration_id = $1 AND date = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, registrationID, date); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return true, nil
}

// Create persists a new attendance record.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance (` + attendanceColumns + `)
		VALUES (:id, :registration_id, :date, :status, :notes, :recorded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// ListByRegistration returns attendance records for one registration.
func (r *AttendanceRepository) ListByRegistration(ctx context.Context, registrationID string) ([]models.Attendance, error) {
	const query = `SELECT ` + attendanceColumns + ` FROM attendance WHERE registration_id = $1 ORDER BY date`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, registrationID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// Summary aggregates counts by status for one registration.
func (r *AttendanceRepository) Summary(ctx context.Context, registrationID string) (*models.AttendanceSummary, error) {
	const query = `SELECT $1 AS registration_id,
		COUNT(*) FILTER (WHERE status = 'PRESENT') AS present,
		COUNT(*) FILTER (WHERE status = 'ABSENT') AS absent,
		COUNT(*) FILTER (WHERE status = 'EXCUSED') AS excused,
		COUNT(*) AS total
		FROM attendance WHERE registration_id = $1`
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, registrationID); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	return &summary, nil
}
