package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillcrest-arts/lessons-api/internal/models"
	appErrors "github.com/hillcrest-arts/lessons-api/pkg/errors"
)

type mockRegistrationStore struct {
	registrations map[string]models.Registration
	created       *models.Registration
	deleted       []string
	deleteActions []string
	updated       *models.Registration
	updateAction  string
	classCounts   map[string]int
}

func (m *mockRegistrationStore) Create(ctx context.Context, reg *models.Registration, trimester models.Trimester) error {
	if m.registrations == nil {
		m.registrations = make(map[string]models.Registration)
	}
	reg.Trimester = trimester
	m.registrations[reg.ID] = *reg
	m.created = reg
	return nil
}

func (m *mockRegistrationStore) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	if r, ok := m.registrations[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationStore) ListByStudent(ctx context.Context, studentID string) ([]models.Registration, error) {
	var out []models.Registration
	for _, r := range m.registrations {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRegistrationStore) ListByInstructor(ctx context.Context, instructorID string) ([]models.Registration, error) {
	var out []models.Registration
	for _, r := range m.registrations {
		if r.InstructorID == instructorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRegistrationStore) ListByTrimester(ctx context.Context, trimester models.Trimester) ([]models.Registration, error) {
	var out []models.Registration
	for _, r := range m.registrations {
		if r.Trimester == trimester {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRegistrationStore) ListByInstructorAndTrimester(ctx context.Context, instructorID string, trimester models.Trimester) ([]models.Registration, error) {
	var out []models.Registration
	for _, r := range m.registrations {
		if r.InstructorID == instructorID && r.Trimester == trimester {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRegistrationStore) ListByStudentAndTrimester(ctx context.Context, studentID string, trimester models.Trimester) ([]models.Registration, error) {
	var out []models.Registration
	for _, r := range m.registrations {
		if r.StudentID == studentID && r.Trimester == trimester {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRegistrationStore) CountInClass(ctx context.Context, classID string, trimester models.Trimester) (int, error) {
	return m.classCounts[classID], nil
}

func (m *mockRegistrationStore) Update(ctx context.Context, reg *models.Registration, actorID, action string) error {
	if _, ok := m.registrations[reg.ID]; !ok {
		return sql.ErrNoRows
	}
	m.registrations[reg.ID] = *reg
	m.updated = reg
	m.updateAction = action
	return nil
}

func (m *mockRegistrationStore) Delete(ctx context.Context, id string, trimester models.Trimester, actorID, action string) error {
	r, ok := m.registrations[id]
	if !ok || r.Trimester != trimester {
		return sql.ErrNoRows
	}
	delete(m.registrations, id)
	m.deleted = append(m.deleted, id)
	m.deleteActions = append(m.deleteActions, action)
	return nil
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockClassReader struct {
	classes map[string]*models.Class
}

func (m *mockClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type mockPeriodResolver struct {
	pctx *models.PeriodContext
	err  error
}

func (m *mockPeriodResolver) Resolve(ctx context.Context) (*models.PeriodContext, error) {
	return m.pctx, m.err
}

type mockCache struct {
	lists       map[models.Trimester][]models.Registration
	invalidated []models.Trimester
	sets        int
}

func (m *mockCache) GetRegistrationList(ctx context.Context, trimester models.Trimester) ([]models.Registration, error) {
	if regs, ok := m.lists[trimester]; ok {
		return regs, nil
	}
	return nil, appErrors.ErrCacheMiss
}

func (m *mockCache) SetRegistrationList(ctx context.Context, trimester models.Trimester, regs []models.Registration, ttl time.Duration) error {
	if m.lists == nil {
		m.lists = make(map[models.Trimester][]models.Registration)
	}
	m.lists[trimester] = regs
	m.sets++
	return nil
}

func (m *mockCache) InvalidateTrimester(ctx context.Context, trimester models.Trimester) {
	delete(m.lists, trimester)
	m.invalidated = append(m.invalidated, trimester)
}

func winterOpenContext() *models.PeriodContext {
	return &models.PeriodContext{
		Current:          models.Period{Trimester: models.TrimesterWinter, Phase: models.PhaseOpenEnrollment},
		Visible:          []models.Trimester{models.TrimesterWinter, models.TrimesterSpring},
		CurrentTrimester: models.TrimesterWinter,
	}
}

func newTestRegistrationService(store *mockRegistrationStore, students *mockStudentReader, classes *mockClassReader, periods *mockPeriodResolver, cache *mockCache) *RegistrationService {
	var c RegistrationCache
	if cache != nil {
		c = cache
	}
	return NewRegistrationService(store, students, classes, periods, c, time.Minute, nil, nil)
}

func adminActor() Actor {
	return Actor{UserID: "u-admin", ActorID: "actor-admin", Role: models.RoleAdmin}
}

func minutes(n int) *int { return &n }

func TestRegistrationCreatePrivateLesson(t *testing.T) {
	store := &mockRegistrationStore{}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", FirstName: "Ada", Grade: "4", Active: true},
	}}
	cache := &mockCache{}
	svc := newTestRegistrationService(store, students, &mockClassReader{}, &mockPeriodResolver{pctx: winterOpenContext()}, cache)

	reg, err := svc.Create(context.Background(), CreateRegistrationRequest{
		Trimester:        "winter",
		StudentID:        "stu-1",
		InstructorID:     "ins-1",
		Day:              "Tuesday",
		StartTime:        "15:00",
		Length:           minutes(30),
		RegistrationType: "private",
	}, adminActor())

	require.NoError(t, err)
	assert.Equal(t, models.TrimesterWinter, reg.Trimester)
	assert.Equal(t, "actor-admin", reg.CreatedBy)
	assert.Equal(t, []models.Trimester{models.TrimesterWinter}, cache.invalidated)
}

func TestRegistrationCreateRejectsClosedTrimester(t *testing.T) {
	svc := newTestRegistrationService(&mockRegistrationStore{}, &mockStudentReader{}, &mockClassReader{}, &mockPeriodResolver{pctx: winterOpenContext()}, nil)

	_, err := svc.Create(context.Background(), CreateRegistrationRequest{
		Trimester:        "fall",
		StudentID:        "stu-1",
		InstructorID:     "ins-1",
		Day:              "Tuesday",
		StartTime:        "15:00",
		Length:           minutes(30),
		RegistrationType: "private",
	}, adminActor())

	require.Error(t, err)
	assert.Equal(t, appErrors.TypeForbidden, appErrors.FromError(err).Type)
}

func TestRegistrationCreateInstructorConflict(t *testing.T) {
	store := &mockRegistrationStore{registrations: map[string]models.Registration{
		"existing": {
			ID: "existing", StudentID: "stu-2", InstructorID: "ins-1",
			Trimester: models.TrimesterWinter, Day: "Tuesday",
			StartTime: "15:00", Length: minutes(30),
			RegistrationType: models.RegistrationTypePrivate,
		},
	}}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Grade: "4", Active: true},
	}}
	svc := newTestRegistrationService(store, students, &mockClassReader{}, &mockPeriodResolver{pctx: winterOpenContext()}, nil)

	_, err := svc.Create(context.Background(), CreateRegistrationRequest{
		Trimester:        "winter",
		StudentID:        "stu-1",
		InstructorID:     "ins-1",
		Day:              "Tuesday",
		StartTime:        "15:15",
		Length:           minutes(30),
		RegistrationType: "private",
	}, adminActor())

	require.Error(t, err)
	assert.Equal(t, appErrors.TypeConflict, appErrors.FromError(err).Type)
}

func TestRegistrationCreateBackToBackIsNotConflict(t *testing.T) {
	store := &mockRegistrationStore{registrations: map[string]models.Registration{
		"existing": {
			ID: "existing", StudentID: "stu-2", InstructorID: "ins-1",
			Trimester: models.TrimesterWinter, Day: "Tuesday",
			StartTime: "15:00", Length: minutes(30),
			RegistrationType: models.RegistrationTypePrivate,
		},
	}}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Grade: "4", Active: true},
	}}
	svc := newTestRegistrationService(store, students, &mockClassReader{}, &mockPeriodResolver{pctx: winterOpenContext()}, nil)

	_, err := svc.Create(context.Background(), CreateRegistrationRequest{
		Trimester:        "winter",
		StudentID:        "stu-1",
		InstructorID:     "ins-1",
		Day:              "Tuesday",
		StartTime:        "15:30",
		Length:           minutes(30),
		RegistrationType: "private",
	}, adminActor())

	require.NoError(t, err)
}

func TestRegistrationCreateGroupFillsScheduleFromClass(t *testing.T) {
	store := &mockRegistrationStore{}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Grade: "4", Active: true},
	}}
	classes := &mockClassReader{classes: map[string]*models.Class{
		"cls-1": {
			ID: "cls-1", Title: "Beginning Strings", InstructorID: "ins-9",
			Day: "Thursday", StartTime: "16:00", Length: 45,
			MinimumGrade: "3", MaximumGrade: "6", Capacity: 10,
		},
	}}
	svc := newTestRegistrationService(store, students, classes, &mockPeriodResolver{pctx: winterOpenContext()}, nil)

	reg, err := svc.Create(context.Background(), CreateRegistrationRequest{
		Trimester:        "winter",
		StudentID:        "stu-1",
		RegistrationType: "group",
		ClassID:          "cls-1",
	}, adminActor())

	require.NoError(t, err)
	assert.Equal(t, "ins-9", reg.InstructorID)
	assert.Equal(t, "Thursday", reg.Day)
	assert.Equal(t, "16:00", reg.StartTime)
	assert.Equal(t, "Beginning Strings", reg.ClassTitle)
	require.NotNil(t, reg.Length)
	assert.Equal(t, 45, *reg.Length)
}

func TestRegistrationCreateGroupGradeOutOfRange(t *testing.T) {
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Grade: "Pre-K", Active: true},
	}}
	classes := &mockClassReader{classes: map[string]*models.Class{
		"cls-1": {ID: "cls-1", Title: "Beginning Strings", InstructorID: "ins-9",
			Day: "Thursday", StartTime: "16:00", Length: 45,
			MinimumGrade: "3", MaximumGrade: "6", Capacity: 10},
	}}
	svc := newTestRegistrationService(&mockRegistrationStore{}, students, classes, &mockPeriodResolver{pctx: winterOpenContext()}, nil)

	_, err := svc.Create(context.Background(), CreateRegistrationRequest{
		Trimester: "winter", StudentID: "stu-1", RegistrationType: "group", ClassID: "cls-1",
	}, adminActor())

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.TypeValidation, appErr.Type)
	assert.Contains(t, appErr.Message, "outside the class range")
}

func TestRegistrationCreateClassFull(t *testing.T) {
	store := &mockRegistrationStore{classCounts: map[string]int{"cls-1": 10}}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Grade: "4", Active: true},
	}}
	classes := &mockClassReader{classes: map[string]*models.Class{
		"cls-1": {ID: "cls-1", Title: "Full Class", InstructorID: "ins-9",
			Day: "Thursday", StartTime: "16:00", Length: 45, Capacity: 10},
	}}
	svc := newTestRegistrationService(store, students, classes, &mockPeriodResolver{pctx: winterOpenContext()}, nil)

	_, err := svc.Create(context.Background(), CreateRegistrationRequest{
		Trimester: "winter", StudentID: "stu-1", RegistrationType: "group", ClassID: "cls-1",
	}, adminActor())

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.TypeConflict, appErr.Type)
	assert.Contains(t, appErr.Message, "full")
}

func TestRegistrationCreateGradeAndCapacityIssuesStayConflict(t *testing.T) {
	store := &mockRegistrationStore{classCounts: map[string]int{"cls-1": 10}}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Grade: "Pre-K", Active: true},
	}}
	classes := &mockClassReader{classes: map[string]*models.Class{
		"cls-1": {ID: "cls-1", Title: "Beginning Strings", InstructorID: "ins-9",
			Day: "Thursday", StartTime: "16:00", Length: 45,
			MinimumGrade: "3", MaximumGrade: "6", Capacity: 10},
	}}
	svc := newTestRegistrationService(store, students, classes, &mockPeriodResolver{pctx: winterOpenContext()}, nil)

	_, err := svc.Create(context.Background(), CreateRegistrationRequest{
		Trimester: "winter", StudentID: "stu-1", RegistrationType: "group", ClassID: "cls-1",
	}, adminActor())

	require.Error(t, err)
	assert.Equal(t, appErrors.TypeConflict, appErrors.FromError(err).Type)
}

func TestRegistrationCreateWaitlistClassIgnoresCapacityAndLength(t *testing.T) {
	store := &mockRegistrationStore{classCounts: map[string]int{"cls-w": 50}}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Grade: "4", Active: true},
	}}
	classes := &mockClassReader{classes: map[string]*models.Class{
		"cls-w": {ID: "cls-w", Title: "Waitlist", InstructorID: "ins-9",
			Day: "Thursday", StartTime: "16:00", Capacity: 10, Waitlist: true},
	}}
	svc := newTestRegistrationService(store, students, classes, &mockPeriodResolver{pctx: winterOpenContext()}, nil)

	reg, err := svc.Create(context.Background(), CreateRegistrationRequest{
		Trimester: "winter", StudentID: "stu-1", RegistrationType: "group", ClassID: "cls-w",
	}, adminActor())

	require.NoError(t, err)
	assert.Nil(t, reg.Length)
}

func TestRegistrationValidateReportsDemotion(t *testing.T) {
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Grade: "4", Active: true},
	}}
	svc := newTestRegistrationService(&mockRegistrationStore{}, students, &mockClassReader{}, &mockPeriodResolver{pctx: winterOpenContext()}, nil)

	result, err := svc.Validate(context.Background(), CreateRegistrationRequest{
		Trimester:        "winter",
		StudentID:        "stu-1",
		InstructorID:     "ins-1",
		Day:              "Tuesday",
		StartTime:        "15:00",
		Length:           minutes(30),
		RegistrationType: "group",
	}, adminActor())

	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.True(t, result.Demoted)
}

func TestRegistrationValidateDoesNotPersist(t *testing.T) {
	store := &mockRegistrationStore{}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Grade: "4", Active: true},
	}}
	svc := newTestRegistrationService(store, students, &mockClassReader{}, &mockPeriodResolver{pctx: winterOpenContext()}, nil)

	_, err := svc.Validate(context.Background(), CreateRegistrationRequest{
		Trimester: "winter", StudentID: "stu-1", InstructorID: "ins-1",
		Day: "Tuesday", StartTime: "15:00", Length: minutes(30), RegistrationType: "private",
	}, adminActor())

	require.NoError(t, err)
	assert.Nil(t, store.created)
}

func cancelFixture(start time.Time) (*mockRegistrationStore, *RegistrationService) {
	store := &mockRegistrationStore{registrations: map[string]models.Registration{
		"reg-1": {
			ID: "reg-1", StudentID: "stu-1", InstructorID: "ins-1",
			Trimester: models.TrimesterWinter, Day: "Tuesday",
			StartTime: "15:00", Length: minutes(30),
			RegistrationType: models.RegistrationTypePrivate, ExpectedStartDate: &start,
		},
	}}
	svc := newTestRegistrationService(store, &mockStudentReader{}, &mockClassReader{}, &mockPeriodResolver{pctx: winterOpenContext()}, nil)
	return store, svc
}

func TestRegistrationCancelFeeFreeBeyondSevenDays(t *testing.T) {
	start := time.Now().UTC().Add(10 * 24 * time.Hour)
	store, svc := cancelFixture(start)

	result, err := svc.Cancel(context.Background(), "reg-1", CancelRegistrationRequest{}, adminActor())
	require.NoError(t, err)
	assert.Equal(t, 0, result.FeeDollars)
	assert.Equal(t, []string{models.AuditActionRegistrationCancel}, store.deleteActions)
}

func TestRegistrationCancelFlatFeeInsideSevenDays(t *testing.T) {
	start := time.Now().UTC().Add(3 * 24 * time.Hour)
	_, svc := cancelFixture(start)

	result, err := svc.Cancel(context.Background(), "reg-1", CancelRegistrationRequest{}, adminActor())
	require.NoError(t, err)
	assert.Equal(t, CancellationFeeDollars, result.FeeDollars)
}

func TestRegistrationCancelWithin24HoursNeedsOverride(t *testing.T) {
	start := time.Now().UTC().Add(6 * time.Hour)
	_, svc := cancelFixture(start)

	_, err := svc.Cancel(context.Background(), "reg-1", CancelRegistrationRequest{}, adminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.TypeConflict, appErrors.FromError(err).Type)
}

func TestRegistrationCancelOverrideAdminOnly(t *testing.T) {
	start := time.Now().UTC().Add(6 * time.Hour)
	_, svc := cancelFixture(start)

	parent := Actor{UserID: "u-p", ActorID: "actor-p", Role: models.RoleParent}
	_, err := svc.Cancel(context.Background(), "reg-1", CancelRegistrationRequest{Override: true}, parent)
	require.Error(t, err)
}

func TestRegistrationCancelWithOverride(t *testing.T) {
	start := time.Now().UTC().Add(6 * time.Hour)
	_, svc := cancelFixture(start)

	result, err := svc.Cancel(context.Background(), "reg-1", CancelRegistrationRequest{Override: true}, adminActor())
	require.NoError(t, err)
	assert.True(t, result.Overridden)
	assert.Equal(t, CancellationFeeDollars, result.FeeDollars)
}

func TestRegistrationUpdateIntentParentOwnStudentOnly(t *testing.T) {
	parent1 := "u-parent1"
	store := &mockRegistrationStore{registrations: map[string]models.Registration{
		"reg-1": {
			ID: "reg-1", StudentID: "stu-1", InstructorID: "ins-1",
			Trimester: models.TrimesterWinter, Day: "Tuesday",
			StartTime: "15:00", Length: minutes(30),
			RegistrationType: models.RegistrationTypePrivate,
		},
	}}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Grade: "4", Active: true, Parent1ID: &parent1},
	}}
	svc := newTestRegistrationService(store, students, &mockClassReader{}, &mockPeriodResolver{pctx: winterOpenContext()}, nil)

	stranger := Actor{UserID: "u-other", ActorID: "actor-other", Role: models.RoleParent}
	_, err := svc.UpdateIntent(context.Background(), "reg-1", UpdateIntentRequest{Intent: "keep"}, stranger)
	require.Error(t, err)
	assert.Equal(t, appErrors.TypeNotFound, appErrors.FromError(err).Type)

	owner := Actor{UserID: parent1, ActorID: "actor-parent1", Role: models.RoleParent}
	reg, err := svc.UpdateIntent(context.Background(), "reg-1", UpdateIntentRequest{Intent: "keep"}, owner)
	require.NoError(t, err)
	assert.Equal(t, models.IntentKeep, reg.ReenrollmentIntent)
	assert.Equal(t, "actor-parent1", reg.IntentSubmittedBy)
	assert.NotNil(t, reg.IntentSubmittedAt)
	assert.Equal(t, models.AuditActionIntentUpdate, store.updateAction)
}

func TestRegistrationDeleteAdminOnly(t *testing.T) {
	store := &mockRegistrationStore{registrations: map[string]models.Registration{
		"reg-1": {ID: "reg-1", Trimester: models.TrimesterSpring},
	}}
	svc := newTestRegistrationService(store, &mockStudentReader{}, &mockClassReader{}, &mockPeriodResolver{pctx: winterOpenContext()}, nil)

	parent := Actor{UserID: "u-p", ActorID: "actor-p", Role: models.RoleParent}
	err := svc.Delete(context.Background(), "reg-1", parent)
	require.Error(t, err)
	assert.Equal(t, appErrors.TypeForbidden, appErrors.FromError(err).Type)

	require.NoError(t, svc.Delete(context.Background(), "reg-1", adminActor()))
	assert.Equal(t, []string{"reg-1"}, store.deleted)
}

func TestRegistrationDeleteMissing(t *testing.T) {
	svc := newTestRegistrationService(&mockRegistrationStore{}, &mockStudentReader{}, &mockClassReader{}, &mockPeriodResolver{pctx: winterOpenContext()}, nil)

	err := svc.Delete(context.Background(), "nope", adminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.TypeNotFound, appErrors.FromError(err).Type)
}

func TestRegistrationListByTrimesterUsesCache(t *testing.T) {
	cached := []models.Registration{{ID: "cached"}}
	cache := &mockCache{lists: map[models.Trimester][]models.Registration{models.TrimesterFall: cached}}
	store := &mockRegistrationStore{registrations: map[string]models.Registration{
		"reg-db": {ID: "reg-db", Trimester: models.TrimesterFall},
	}}
	svc := newTestRegistrationService(store, &mockStudentReader{}, &mockClassReader{}, &mockPeriodResolver{pctx: winterOpenContext()}, cache)

	regs, err := svc.ListByTrimester(context.Background(), models.TrimesterFall)
	require.NoError(t, err)
	assert.Equal(t, cached, regs)

	// A miss falls through to the store and repopulates the cache.
	regs, err = svc.ListByTrimester(context.Background(), models.TrimesterWinter)
	require.NoError(t, err)
	assert.Empty(t, regs)
	assert.Equal(t, 1, cache.sets)
}
