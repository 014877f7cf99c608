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

type periodRepository interface {
	List(ctx context.Context) ([]models.Period, error)
	FindCurrent(ctx context.Context) (*models.Period, error)
	Create(ctx context.Context, period *models.Period) error
	SetCurrent(ctx context.Context, id string) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreatePeriodRequest describes a new period toggle row.
type CreatePeriodRequest struct {
	Trimester string `json:"trimester" validate:"required"`
	Phase     string `json:"phase" validate:"required,oneof=intent priorityEnrollment openEnrollment registration"`
	StartDate string `json:"start_date" validate:"required"`
}

// PeriodService resolves the current enrollment period and manages the toggle
// rows admins flip to advance the year.
type PeriodService struct {
	repo      periodRepository
	audits    auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPeriodService constructs PeriodService.
func NewPeriodService(repo periodRepository, audits auditRecorder, validate *validator.Validate, logger *zap.Logger) *PeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{repo: repo, audits: audits, validator: validate, logger: logger}
}

// Resolve loads the current period and derives the full period context:
// the next step in the phase sequence and the trimesters visible to writes.
func (s *PeriodService) Resolve(ctx context.Context) (*models.PeriodContext, error) {
	current, err := s.repo.FindCurrent(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current enrollment period is set")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to resolve current period")
	}

	nextTrimester, nextPhase := models.NextStep(current.Trimester, current.Phase)
	return &models.PeriodContext{
		Current:          *current,
		NextTrimester:    nextTrimester,
		NextPhase:        nextPhase,
		Visible:          models.VisibleTrimesters(current.Trimester, current.Phase),
		CurrentTrimester: current.Trimester,
	}, nil
}

// List returns all period rows in canonical trimester order.
func (s *PeriodService) List(ctx context.Context) ([]models.Period, error) {
	periods, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to list periods")
	}
	return periods, nil
}

// Create adds a period row. New rows never start current; flipping the toggle
// is a separate, audited operation.
func (s *PeriodService) Create(ctx context.Context, req CreatePeriodRequest) (*models.Period, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid period payload")
	}
	trimester, err := models.ParseTrimester(req.Trimester)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
	}

	period := &models.Period{
		ID:        uuid.NewString(),
		Trimester: trimester,
		Phase:     models.PeriodPhase(req.Phase),
		IsCurrent: false,
		StartDate: startDate,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to create period")
	}
	return period, nil
}

// Advance moves the program to the next step in the canonical phase sequence.
// An existing row for the next trimester and phase is reused; otherwise one is
// created starting today.
func (s *PeriodService) Advance(ctx context.Context, actorID string) (*models.PeriodContext, error) {
	pctx, err := s.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	next, err := s.findOrCreate(ctx, pctx.NextTrimester, pctx.NextPhase)
	if err != nil {
		return nil, err
	}
	return s.SetCurrent(ctx, next.ID, actorID)
}

func (s *PeriodService) findOrCreate(ctx context.Context, trimester models.Trimester, phase models.PeriodPhase) (*models.Period, error) {
	periods, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to list periods")
	}
	for i := range periods {
		if periods[i].Trimester == trimester && periods[i].Phase == phase {
			return &periods[i], nil
		}
	}

	period := &models.Period{
		ID:        uuid.NewString(),
		Trimester: trimester,
		Phase:     phase,
		StartDate: time.Now().UTC(),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to create period")
	}
	return period, nil
}

// SetCurrent makes the given period the single current one and records who
// flipped the toggle.
func (s *PeriodService) SetCurrent(ctx context.Context, id, actorID string) (*models.PeriodContext, error) {
	if actorID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor identity is required")
	}
	if err := s.repo.SetCurrent(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to set current period")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     models.AuditActionPeriodChange,
		Resource:   "period",
		ResourceID: &id,
		Detail:     []byte(`{"is_current":true}`),
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record period change audit log", zap.Error(err))
	}

	return s.Resolve(ctx)
}
