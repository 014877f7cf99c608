package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hillcrest-arts/lessons-api/internal/models"
	appErrors "github.com/hillcrest-arts/lessons-api/pkg/errors"
)

const registrationColumns = `id, student_id, instructor_id, trimester, day, start_time, length,
	registration_type, room_id, instrument, transportation_type, notes, class_id, class_title,
	expected_start_date, created_at, created_by, reenrollment_intent, intent_submitted_at,
	intent_submitted_by, linked_previous_registration_id`

// Registrations for all trimesters live in one table; the fixed ordinal keeps
// the legacy fall-then-winter-then-spring scan order observable, so a
// duplicated ID always resolves to its fall row.
const trimesterScanOrder = `CASE trimester WHEN 'fall' THEN 0 WHEN 'winter' THEN 1 ELSE 2 END`

// RegistrationRepository handles registration persistence and trimester routing.
// Every mutation writes its audit trail row in the same transaction.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create persists a registration into the explicitly named trimester.
// A valid trimester and a non-empty CreatedBy are hard preconditions: no
// anonymous writes, no ambient "current trimester".
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration, trimester models.Trimester) error {
	if !trimester.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid target trimester %q", trimester))
	}
	if reg.CreatedBy == "" {
		return appErrors.Clone(appErrors.ErrValidation, "createdBy is required for registration writes")
	}
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now().UTC()
	}
	reg.Trimester = trimester

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create registration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO registrations (` + registrationColumns + `)
		VALUES (:id, :student_id, :instructor_id, :trimester, :day, :start_time, :length,
			:registration_type, :room_id, :instrument, :transportation_type, :notes, :class_id, :class_title,
			:expected_start_date, :created_at, :created_by, :reenrollment_intent, :intent_submitted_at,
			:intent_submitted_by, :linked_previous_registration_id)`
	if _, err := tx.NamedExecContext(ctx, query, reg); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}

	if err := insertAudit(ctx, tx, auditEntry(reg.CreatedBy, models.AuditActionRegistrationCreate, reg.ID, reg)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create registration: %w", err)
	}
	return nil
}

// FindByID scans trimesters fall-first and returns the first match.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1
		ORDER BY ` + trimesterScanOrder + ` LIMIT 1`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// ListByStudent returns all of a student's registrations ordered fall-first.
func (r *RegistrationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE student_id = $1
		ORDER BY ` + trimesterScanOrder + `, day, start_time`
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, studentID); err != nil {
		return nil, fmt.Errorf("list registrations by student: %w", err)
	}
	return regs, nil
}

// ListByInstructor returns all of an instructor's registrations ordered fall-first.
func (r *RegistrationRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE instructor_id = $1
		ORDER BY ` + trimesterScanOrder + `, day, start_time`
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, instructorID); err != nil {
		return nil, fmt.Errorf("list registrations by instructor: %w", err)
	}
	return regs, nil
}

// ListByTrimester returns every registration in one trimester.
func (r *RegistrationRepository) ListByTrimester(ctx context.Context, trimester models.Trimester) ([]models.Registration, error) {
	if !trimester.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid trimester %q", trimester))
	}
	const query = `SELECT ` + registrationColumns + ` FROM registrations WHERE trimester = $1
		ORDER BY day, start_time, created_at`
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, trimester); err != nil {
		return nil, fmt.Errorf("list registrations by trimester: %w", err)
	}
	return regs, nil
}

// ListByInstructorAndTrimester returns an instructor's registrations for
// conflict checking within one trimester.
func (r *RegistrationRepository) ListByInstructorAndTrimester(ctx context.Context, instructorID string, trimester models.Trimester) ([]models.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM registrations
		WHERE instructor_id = $1 AND trimester = $2 ORDER BY day, start_time`
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, instructorID, trimester); err != nil {
		return nil, fmt.Errorf("list instructor registrations: %w", err)
	}
	return regs, nil
}

// ListByStudentAndTrimester returns a student's registrations within one trimester.
func (r *RegistrationRepository) ListByStudentAndTrimester(ctx context.Context, studentID string, trimester models.Trimester) ([]models.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM registrations
		WHERE student_id = $1 AND trimester = $2 ORDER BY day, start_time`
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, studentID, trimester); err != nil {
		return nil, fmt.Errorf("list student registrations: %w", err)
	}
	return regs, nil
}

// CountInClass counts group enrollments for a class within one trimester.
func (r *RegistrationRepository) CountInClass(ctx context.Context, classID string, trimester models.Trimester) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE class_id = $1 AND trimester = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID, trimester); err != nil {
		return 0, fmt.Errorf("count class registrations: %w", err)
	}
	return count, nil
}

// Update replaces the whole registration row. There are no partial-field
// updates at the storage layer.
func (r *RegistrationRepository) Update(ctx context.Context, reg *models.Registration, actorID, action string) error {
	if actorID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "actor identity is required for registration updates")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update registration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE registrations SET
		student_id = :student_id, instructor_id = :instructor_id, trimester = :trimester,
		day = :day, start_time = :start_time, length = :length, registration_type = :registration_type,
		room_id = :room_id, instrument = :instrument, transportation_type = :transportation_type,
		notes = :notes, class_id = :class_id, class_title = :class_title,
		expected_start_date = :expected_start_date, reenrollment_intent = :reenrollment_intent,
		intent_submitted_at = :intent_submitted_at, intent_submitted_by = :intent_submitted_by,
		linked_previous_registration_id = :linked_previous_registration_id
		WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, query, reg)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	if err := insertAudit(ctx, tx, auditEntry(actorID, action, reg.ID, reg)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update registration: %w", err)
	}
	return nil
}

// Delete removes a registration from the explicitly named trimester, writing
// the audit row in the same transaction. The actor is required; the action
// distinguishes an admin delete from a policy cancellation.
func (r *RegistrationRepository) Delete(ctx context.Context, id string, trimester models.Trimester, actorID, action string) error {
	if actorID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "actor identity is required for registration deletes")
	}
	if !trimester.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid trimester %q", trimester))
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete registration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1 AND trimester = $2`, id, trimester)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	if action == "" {
		action = models.AuditActionRegistrationDelete
	}
	if err := insertAudit(ctx, tx, auditEntry(actorID, action, id, nil)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete registration: %w", err)
	}
	return nil
}

func auditEntry(actorID, action, resourceID string, payload interface{}) *models.AuditLog {
	var detail []byte
	if payload != nil {
		detail, _ = json.Marshal(payload)
	}
	rid := resourceID
	return &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		Resource:   "registration",
		ResourceID: &rid,
		Detail:     detail,
	}
}

func insertAudit(ctx context.Context, tx *sqlx.Tx, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, actor_id, action, resource, resource_id, detail, ip_address, user_agent, created_at)
		VALUES (:id, :actor_id, :action, :resource, :resource_id, :detail, :ip_address, :user_agent, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}
