package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hillcrest-arts/lessons-api/internal/models"
	appErrors "github.com/hillcrest-arts/lessons-api/pkg/errors"
)

type attendanceRepository interface {
	ExistsForDate(ctx context.Context, registrationID string, date time.Time) (bool, error)
	Create(ctx context.Context, record *models.Attendance) error
	ListByRegistration(ctx context.Context, registrationID string) ([]models.Attendance, error)
	Summary(ctx context.Context, registrationID string) (*models.AttendanceSummary, error)
}

type registrationReader interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
}

// RecordAttendanceRequest marks one lesson occurrence.
type RecordAttendanceRequest struct {
	RegistrationID string `json:"registration_id" validate:"required"`
	Date           string `json:"date" validate:"required"`
	Status         string `json:"status" validate:"required,oneof=PRESENT ABSENT EXCUSED"`
	Notes          string `json:"notes"`
}

// AttendanceService records and summarises per-lesson attendance.
type AttendanceService struct {
	repo          attendanceRepository
	registrations registrationReader
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, registrations registrationReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, registrations: registrations, validator: validate, logger: logger}
}

// Record writes one attendance mark. A registration may carry at most one
// record per date.
func (s *AttendanceService) Record(ctx context.Context, req RecordAttendanceRequest, actor Actor) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid attendance payload")
	}
	if actor.ActorID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor identity is required")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	if _, err := s.registrations.FindByID(ctx, req.RegistrationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load registration")
	}

	exists, err := s.repo.ExistsForDate(ctx, req.RegistrationID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to check existing attendance")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already recorded for this date")
	}

	record := &models.Attendance{
		ID:             uuid.NewString(),
		RegistrationID: req.RegistrationID,
		Date:           date,
		Status:         models.AttendanceStatus(req.Status),
		Notes:          req.Notes,
		RecordedBy:     actor.ActorID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to record attendance")
	}
	return record, nil
}

// List returns all attendance records for a registration.
func (s *AttendanceService) List(ctx context.Context, registrationID string) ([]models.Attendance, error) {
	records, err := s.repo.ListByRegistration(ctx, registrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to list attendance")
	}
	return records, nil
}

// Summarize aggregates attendance counts for a registration.
func (s *AttendanceService) Summarize(ctx context.Context, registrationID string) (*models.AttendanceSummary, error) {
	if _, err := s.registrations.FindByID(ctx, registrationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load registration")
	}
	summary, err := s.repo.Summary(ctx, registrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to summarise attendance")
	}
	return summary, nil
}
