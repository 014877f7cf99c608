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

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

// CreateStudentRequest describes a new student record.
type CreateStudentRequest struct {
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	Nickname  string  `json:"nickname"`
	Grade     string  `json:"grade" validate:"required"`
	School    string  `json:"school"`
	Parent1ID *string `json:"parent1_id"`
	Parent2ID *string `json:"parent2_id"`
}

// UpdateStudentRequest carries partial student updates.
type UpdateStudentRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Nickname  *string `json:"nickname"`
	Grade     *string `json:"grade"`
	School    *string `json:"school"`
	Parent1ID *string `json:"parent1_id"`
	Parent2ID *string `json:"parent2_id"`
	Active    *bool   `json:"active"`
}

// StudentService manages student records.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students with pagination metadata. Parents are implicitly
// scoped to their own children.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter, actor Actor) ([]models.Student, *models.Pagination, error) {
	if actor.Role == models.RoleParent {
		filter.ParentID = actor.UserID
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to list students")
	}
	return students, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get loads one student, honoring parent scoping.
func (s *StudentService) Get(ctx context.Context, id string, actor Actor) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load student")
	}
	if actor.Role == models.RoleParent && !student.HasParent(actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid student payload")
	}
	if _, ok := models.GradeOrdinal(req.Grade); !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade must be Pre-K, K or 1 through 12")
	}

	student := &models.Student{
		ID:        uuid.NewString(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Nickname:  req.Nickname,
		Grade:     req.Grade,
		School:    req.School,
		Parent1ID: req.Parent1ID,
		Parent2ID: req.Parent2ID,
		Active:    true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to create student")
	}
	return student, nil
}

// Update applies partial changes to a student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load student")
	}

	if req.FirstName != nil {
		student.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		student.LastName = *req.LastName
	}
	if req.Nickname != nil {
		student.Nickname = *req.Nickname
	}
	if req.Grade != nil {
		if _, ok := models.GradeOrdinal(*req.Grade); !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "grade must be Pre-K, K or 1 through 12")
		}
		student.Grade = *req.Grade
	}
	if req.School != nil {
		student.School = *req.School
	}
	if req.Parent1ID != nil {
		student.Parent1ID = req.Parent1ID
	}
	if req.Parent2ID != nil {
		student.Parent2ID = req.Parent2ID
	}
	if req.Active != nil {
		student.Active = *req.Active
	}
	student.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to update student")
	}
	return student, nil
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
