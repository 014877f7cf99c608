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

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
}

type instructorReader interface {
	FindByID(ctx context.Context, id string) (*models.Instructor, error)
}

// CreateClassRequest describes a new group class template.
type CreateClassRequest struct {
	Title        string `json:"title" validate:"required"`
	InstructorID string `json:"instructor_id" validate:"required"`
	Day          string `json:"day" validate:"required"`
	StartTime    string `json:"start_time" validate:"required"`
	Length       int    `json:"length" validate:"required,gt=0"`
	Instrument   string `json:"instrument"`
	MinimumGrade string `json:"minimum_grade"`
	MaximumGrade string `json:"maximum_grade"`
	Capacity     int    `json:"capacity" validate:"gte=0"`
	Waitlist     bool   `json:"waitlist"`
}

// ClassService manages group class templates.
type ClassService struct {
	repo        classRepository
	instructors instructorReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, instructors instructorReader, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, instructors: instructors, validator: validate, logger: logger}
}

// List returns classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to list classes")
	}
	return classes, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get loads one class.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load class")
	}
	return class, nil
}

// Create registers a new class template after checking the schedule fields
// and the grade range.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid class payload")
	}
	if !models.ValidLessonDay(req.Day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day must be a weekday name, Monday through Friday")
	}
	if req.MinimumGrade != "" {
		if _, ok := models.GradeOrdinal(req.MinimumGrade); !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "minimum_grade must be Pre-K, K or 1 through 12")
		}
	}
	if req.MaximumGrade != "" {
		if _, ok := models.GradeOrdinal(req.MaximumGrade); !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "maximum_grade must be Pre-K, K or 1 through 12")
		}
	}
	if _, err := s.instructors.FindByID(ctx, req.InstructorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load instructor")
	}

	class := &models.Class{
		ID:           uuid.NewString(),
		Title:        req.Title,
		InstructorID: req.InstructorID,
		Day:          req.Day,
		StartTime:    req.StartTime,
		Length:       req.Length,
		Instrument:   req.Instrument,
		MinimumGrade: req.MinimumGrade,
		MaximumGrade: req.MaximumGrade,
		Capacity:     req.Capacity,
		Waitlist:     req.Waitlist,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to create class")
	}
	return class, nil
}
