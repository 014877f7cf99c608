package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hillcrest-arts/lessons-api/internal/models"
	appErrors "github.com/hillcrest-arts/lessons-api/pkg/errors"
)

// Cancellation policy: within a day of the expected start an admin override
// is required, a week or more out no fee applies, anything in between pays
// the flat fee.
const (
	CancellationFeeDollars  = 25
	cancellationOverrideCut = 24 * time.Hour
	cancellationFreeCut     = 7 * 24 * time.Hour
)

type registrationStore interface {
	Create(ctx context.Context, reg *models.Registration, trimester models.Trimester) error
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Registration, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.Registration, error)
	ListByTrimester(ctx context.Context, trimester models.Trimester) ([]models.Registration, error)
	ListByInstructorAndTrimester(ctx context.Context, instructorID string, trimester models.Trimester) ([]models.Registration, error)
	ListByStudentAndTrimester(ctx context.Context, studentID string, trimester models.Trimester) ([]models.Registration, error)
	CountInClass(ctx context.Context, classID string, trimester models.Trimester) (int, error)
	Update(ctx context.Context, reg *models.Registration, actorID, action string) error
	Delete(ctx context.Context, id string, trimester models.Trimester, actorID, action string) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type periodResolver interface {
	Resolve(ctx context.Context) (*models.PeriodContext, error)
}

// RegistrationCache caches trimester registration lists. Exported so callers
// can pass a nil interface when caching is disabled.
type RegistrationCache interface {
	GetRegistrationList(ctx context.Context, trimester models.Trimester) ([]models.Registration, error)
	SetRegistrationList(ctx context.Context, trimester models.Trimester, regs []models.Registration, ttl time.Duration) error
	InvalidateTrimester(ctx context.Context, trimester models.Trimester)
}

// Actor identifies the authenticated party performing an operation. ActorID
// is the opaque identity written to the audit trail.
type Actor struct {
	UserID  string
	ActorID string
	Role    models.UserRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// CreateRegistrationRequest carries the payload for a new registration. The
// target trimester is always explicit; it is never inferred from the period.
type CreateRegistrationRequest struct {
	Trimester                    string     `json:"trimester" validate:"required"`
	StudentID                    string     `json:"student_id"`
	InstructorID                 string     `json:"instructor_id"`
	Day                          string     `json:"day"`
	StartTime                    string     `json:"start_time"`
	Length                       *int       `json:"length"`
	RegistrationType             string     `json:"registration_type"`
	RoomID                       string     `json:"room_id"`
	Instrument                   string     `json:"instrument"`
	TransportationType           string     `json:"transportation_type"`
	Notes                        string     `json:"notes"`
	ClassID                      string     `json:"class_id"`
	ExpectedStartDate            *time.Time `json:"expected_start_date"`
	LinkedPreviousRegistrationID string     `json:"linked_previous_registration_id"`
}

// ValidationResult is the outcome of a dry-run registration check.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Demoted bool     `json:"demoted"`
	Issues  []string `json:"issues,omitempty"`
}

// CancelRegistrationRequest carries cancellation options.
type CancelRegistrationRequest struct {
	Override bool   `json:"override"`
	Reason   string `json:"reason"`
}

// CancellationResult reports the fee assessed for a completed cancellation.
type CancellationResult struct {
	RegistrationID string `json:"registration_id"`
	FeeDollars     int    `json:"fee_dollars"`
	Overridden     bool   `json:"overridden"`
}

// UpdateIntentRequest carries a reenrollment intent submission.
type UpdateIntentRequest struct {
	Intent string `json:"intent" validate:"required"`
}

// RegistrationService orchestrates the registration lifecycle: creation with
// schedule conflict and class eligibility checks, cancellation under the fee
// policy, intent collection and trimester-scoped listing.
type registrationMetrics interface {
	RecordRegistrationCreated(trimester, regType string)
	RecordCancellation(feeDollars int)
	RecordIntent(intent string)
	RecordCacheLookup(hit bool)
}

type RegistrationService struct {
	repo      registrationStore
	students  studentReader
	classes   classReader
	periods   periodResolver
	cache     RegistrationCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	metrics   registrationMetrics
}

// NewRegistrationService constructs RegistrationService. A nil cache disables
// list caching.
func NewRegistrationService(repo registrationStore, students studentReader, classes classReader, periods periodResolver, cache RegistrationCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &RegistrationService{
		repo: repo, students: students, classes: classes, periods: periods,
		cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger,
	}
}

// SetMetrics attaches an optional metrics recorder.
func (s *RegistrationService) SetMetrics(metrics registrationMetrics) {
	s.metrics = metrics
}

// Create registers a student after running the full eligibility and conflict
// checks for the explicitly named trimester.
func (s *RegistrationService) Create(ctx context.Context, req CreateRegistrationRequest, actor Actor) (*models.Registration, error) {
	reg, trimester, _, err := s.prepare(ctx, req, actor)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, reg, trimester); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to create registration")
	}
	if s.cache != nil {
		s.cache.InvalidateTrimester(ctx, trimester)
	}
	if s.metrics != nil {
		s.metrics.RecordRegistrationCreated(string(trimester), string(reg.RegistrationType))
	}
	return reg, nil
}

// Validate runs the registration checks without persisting anything. All
// problems are collected rather than stopping at the first.
func (s *RegistrationService) Validate(ctx context.Context, req CreateRegistrationRequest, actor Actor) (*ValidationResult, error) {
	_, _, result, err := s.prepare(ctx, req, actor)
	if err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Type == appErrors.TypeInternal {
			return nil, err
		}
		if result == nil {
			result = &ValidationResult{}
		}
		result.Valid = false
		if len(result.Issues) == 0 {
			result.Issues = append(result.Issues, appErr.Message)
		}
		return result, nil
	}
	result.Valid = len(result.Issues) == 0
	return result, nil
}

// prepare resolves the period, applies class eligibility, constructs the
// registration and checks schedule conflicts. Used by Create and Validate.
func (s *RegistrationService) prepare(ctx context.Context, req CreateRegistrationRequest, actor Actor) (*models.Registration, models.Trimester, *ValidationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, "", nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid registration payload")
	}
	if actor.ActorID == "" {
		return nil, "", nil, appErrors.Clone(appErrors.ErrValidation, "actor identity is required")
	}

	trimester, err := models.ParseTrimester(req.Trimester)
	if err != nil {
		return nil, "", nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	pctx, err := s.periods.Resolve(ctx)
	if err != nil {
		return nil, "", nil, err
	}
	if !pctx.Allows(trimester) {
		return nil, "", nil, appErrors.Clone(appErrors.ErrForbidden,
			fmt.Sprintf("trimester %s is not open during the current %s phase", trimester, pctx.Current.Phase))
	}

	result := &ValidationResult{}
	input := models.NewRegistrationInput{
		StudentID:                    req.StudentID,
		InstructorID:                 req.InstructorID,
		Day:                          req.Day,
		StartTime:                    req.StartTime,
		Length:                       req.Length,
		RegistrationType:             req.RegistrationType,
		RoomID:                       req.RoomID,
		Instrument:                   req.Instrument,
		TransportationType:           req.TransportationType,
		Notes:                        req.Notes,
		ClassID:                      req.ClassID,
		ExpectedStartDate:            req.ExpectedStartDate,
		CreatedBy:                    actor.ActorID,
		LinkedPreviousRegistrationID: req.LinkedPreviousRegistrationID,
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", result, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, "", nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load student")
	}
	if !student.Active {
		return nil, "", result, appErrors.Clone(appErrors.ErrValidation, "student is inactive")
	}

	requestedType := models.NormalizeRegistrationType(req.RegistrationType)
	ineligible := false
	if requestedType == models.RegistrationTypeGroup && req.ClassID != "" {
		class, err := s.classes.FindByID(ctx, req.ClassID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, "", result, appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return nil, "", nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load class")
		}

		// Schedule fields come from the class template.
		input.InstructorID = class.InstructorID
		input.Day = class.Day
		input.StartTime = class.StartTime
		input.ClassTitle = class.Title
		input.WaitlistClass = class.Waitlist
		if class.Instrument != "" {
			input.Instrument = class.Instrument
		}
		if !class.Waitlist {
			length := class.Length
			input.Length = &length
		}

		if !class.AllowsGrade(student.Grade) {
			ineligible = true
			result.Issues = append(result.Issues,
				fmt.Sprintf("grade %s is outside the class range %s to %s", student.Grade, class.MinimumGrade, class.MaximumGrade))
		}
		if class.Capacity > 0 && !class.Waitlist {
			enrolled, err := s.repo.CountInClass(ctx, class.ID, trimester)
			if err != nil {
				return nil, "", nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to count class enrollment")
			}
			if enrolled >= class.Capacity {
				result.Issues = append(result.Issues, fmt.Sprintf("class %s is full", class.Title))
			}
		}
	}

	reg, err := models.NewRegistration(input)
	if err != nil {
		return nil, "", result, err
	}
	reg.Trimester = trimester

	if requestedType == models.RegistrationTypeGroup && reg.IsPrivateLesson() {
		result.Demoted = true
		s.logger.Warn("group registration demoted to private, no class reference",
			zap.String("student_id", reg.StudentID))
	}

	conflicts, err := s.findConflicts(ctx, reg, trimester)
	if err != nil {
		return nil, "", nil, err
	}
	result.Issues = append(result.Issues, conflicts...)

	if len(result.Issues) > 0 {
		// Grade ineligibility is a bad request, not a scheduling conflict.
		// It only reads as a conflict when capacity or schedule issues exist too.
		template := appErrors.ErrConflict
		if ineligible && len(result.Issues) == 1 {
			template = appErrors.ErrValidation
		}
		return nil, "", result, appErrors.Clone(template, result.Issues[0])
	}
	return reg, trimester, result, nil
}

func (s *RegistrationService) findConflicts(ctx context.Context, reg *models.Registration, trimester models.Trimester) ([]string, error) {
	var issues []string

	existing, err := s.repo.ListByStudentAndTrimester(ctx, reg.StudentID, trimester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load student registrations")
	}
	for i := range existing {
		if reg.ConflictsWith(&existing[i]) {
			if reg.IsGroupClass() && existing[i].ClassID == reg.ClassID {
				issues = append(issues, "student is already enrolled in this class")
			} else {
				issues = append(issues, fmt.Sprintf("student already has a lesson on %s at %s", existing[i].Day, existing[i].StartTime))
			}
		}
	}

	booked, err := s.repo.ListByInstructorAndTrimester(ctx, reg.InstructorID, trimester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load instructor schedule")
	}
	for i := range booked {
		if booked[i].StudentID == reg.StudentID {
			continue
		}
		// Group classmates share the slot on purpose.
		if reg.IsGroupClass() && booked[i].ClassID == reg.ClassID {
			continue
		}
		if reg.ConflictsWith(&booked[i]) {
			issues = append(issues, fmt.Sprintf("instructor is booked on %s at %s", booked[i].Day, booked[i].StartTime))
		}
	}
	return issues, nil
}

// Get loads one registration by ID. Duplicate IDs across trimesters resolve
// to the fall row.
func (s *RegistrationService) Get(ctx context.Context, id string) (*models.Registration, error) {
	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load registration")
	}
	return reg, nil
}

// ListByTrimester returns all registrations for one trimester, served from
// cache when possible.
func (s *RegistrationService) ListByTrimester(ctx context.Context, trimester models.Trimester) ([]models.Registration, error) {
	if !trimester.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid trimester %q", trimester))
	}
	if s.cache != nil {
		if regs, err := s.cache.GetRegistrationList(ctx, trimester); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheLookup(true)
			}
			return regs, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(false)
		}
	}

	regs, err := s.repo.ListByTrimester(ctx, trimester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to list registrations")
	}
	if s.cache != nil {
		if err := s.cache.SetRegistrationList(ctx, trimester, regs, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache registration list", zap.Error(err))
		}
	}
	return regs, nil
}

// ListByStudent returns all of a student's registrations across trimesters.
func (s *RegistrationService) ListByStudent(ctx context.Context, studentID string) ([]models.Registration, error) {
	regs, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to list student registrations")
	}
	return regs, nil
}

// ListByInstructor returns an instructor's schedule across trimesters.
func (s *RegistrationService) ListByInstructor(ctx context.Context, instructorID string) ([]models.Registration, error) {
	regs, err := s.repo.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to list instructor registrations")
	}
	return regs, nil
}

// Cancel removes a registration under the cancellation policy and reports the
// assessed fee.
func (s *RegistrationService) Cancel(ctx context.Context, id string, req CancelRegistrationRequest, actor Actor) (*CancellationResult, error) {
	reg, err := s.accessibleRegistration(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	fee := 0
	overridden := false
	if reg.ExpectedStartDate != nil {
		until := reg.ExpectedStartDate.Sub(now)
		if until < cancellationOverrideCut {
			if !req.Override || !actor.IsAdmin() {
				return nil, appErrors.Clone(appErrors.ErrConflict, "cancellation within 24 hours of the start date requires an admin override")
			}
			overridden = true
		}
		if until < cancellationFreeCut {
			fee = CancellationFeeDollars
		}
	}

	if err := s.repo.Delete(ctx, reg.ID, reg.Trimester, actor.ActorID, models.AuditActionRegistrationCancel); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to cancel registration")
	}
	if s.cache != nil {
		s.cache.InvalidateTrimester(ctx, reg.Trimester)
	}

	if s.metrics != nil {
		s.metrics.RecordCancellation(fee)
	}

	s.logger.Info("registration cancelled",
		zap.String("registration_id", reg.ID),
		zap.Int("fee_dollars", fee),
		zap.Bool("overridden", overridden))
	return &CancellationResult{RegistrationID: reg.ID, FeeDollars: fee, Overridden: overridden}, nil
}

// Delete removes a registration outright. Admin only; the row's own trimester
// scopes the delete.
func (s *RegistrationService) Delete(ctx context.Context, id string, actor Actor) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may delete registrations")
	}
	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal, "failed to load registration")
	}

	if err := s.repo.Delete(ctx, reg.ID, reg.Trimester, actor.ActorID, models.AuditActionRegistrationDelete); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal, "failed to delete registration")
	}
	if s.cache != nil {
		s.cache.InvalidateTrimester(ctx, reg.Trimester)
	}
	return nil
}

// UpdateIntent records a reenrollment intent on a registration the actor may
// access. A registration outside the actor's reach reads as not found rather
// than forbidden.
func (s *RegistrationService) UpdateIntent(ctx context.Context, id string, req UpdateIntentRequest, actor Actor) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid intent payload")
	}
	intent, err := models.ParseIntent(req.Intent)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	reg, err := s.accessibleRegistration(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	pctx, err := s.periods.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if !pctx.Allows(reg.Trimester) {
		return nil, appErrors.Clone(appErrors.ErrForbidden,
			fmt.Sprintf("trimester %s is not open during the current %s phase", reg.Trimester, pctx.Current.Phase))
	}

	reg.UpdateIntent(intent, actor.ActorID)
	if err := s.repo.Update(ctx, reg, actor.ActorID, models.AuditActionIntentUpdate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to record reenrollment intent")
	}
	if s.cache != nil {
		s.cache.InvalidateTrimester(ctx, reg.Trimester)
	}
	if s.metrics != nil {
		s.metrics.RecordIntent(string(intent))
	}
	return reg, nil
}

// accessibleRegistration loads a registration and enforces per-role reach:
// admins see everything, parents only registrations of their own students.
// Anything out of reach is reported as not found.
func (s *RegistrationService) accessibleRegistration(ctx context.Context, id string, actor Actor) (*models.Registration, error) {
	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load registration")
	}

	switch actor.Role {
	case models.RoleAdmin:
		return reg, nil
	case models.RoleInstructor:
		if reg.InstructorID == actor.UserID {
			return reg, nil
		}
	case models.RoleParent:
		student, err := s.students.FindByID(ctx, reg.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load student")
		}
		if student.HasParent(actor.UserID) {
			return reg, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
}
