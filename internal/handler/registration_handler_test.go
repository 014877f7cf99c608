package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillcrest-arts/lessons-api/internal/middleware"
	"github.com/hillcrest-arts/lessons-api/internal/models"
	"github.com/hillcrest-arts/lessons-api/internal/service"
	appErrors "github.com/hillcrest-arts/lessons-api/pkg/errors"
)

type registrationServiceMock struct {
	createResp    *models.Registration
	createErr     error
	validateResp  *service.ValidationResult
	listResp      []models.Registration
	listErr       error
	cancelResp    *service.CancellationResult
	cancelErr     error
	intentResp    *models.Registration
	intentErr     error
	deleteErr     error
	lastActor     service.Actor
	lastTrimester models.Trimester
	lastStudentID string
	lastCancelReq service.CancelRegistrationRequest
	createCalled  bool
	cancelCalled  bool
	deleteCalled  bool
	intentCalled  bool
}

func (m *registrationServiceMock) Create(ctx context.Context, req service.CreateRegistrationRequest, actor service.Actor) (*models.Registration, error) {
	m.createCalled = true
	m.lastActor = actor
	return m.createResp, m.createErr
}

func (m *registrationServiceMock) Validate(ctx context.Context, req service.CreateRegistrationRequest, actor service.Actor) (*service.ValidationResult, error) {
	return m.validateResp, nil
}

func (m *registrationServiceMock) Get(ctx context.Context, id string) (*models.Registration, error) {
	if m.createResp != nil && m.createResp.ID == id {
		return m.createResp, nil
	}
	return nil, appErrors.ErrNotFound
}

func (m *registrationServiceMock) ListByTrimester(ctx context.Context, trimester models.Trimester) ([]models.Registration, error) {
	m.lastTrimester = trimester
	return m.listResp, m.listErr
}

func (m *registrationServiceMock) ListByStudent(ctx context.Context, studentID string) ([]models.Registration, error) {
	m.lastStudentID = studentID
	return m.listResp, m.listErr
}

func (m *registrationServiceMock) ListByInstructor(ctx context.Context, instructorID string) ([]models.Registration, error) {
	return m.listResp, m.listErr
}

func (m *registrationServiceMock) Cancel(ctx context.Context, id string, req service.CancelRegistrationRequest, actor service.Actor) (*service.CancellationResult, error) {
	m.cancelCalled = true
	m.lastCancelReq = req
	return m.cancelResp, m.cancelErr
}

func (m *registrationServiceMock) Delete(ctx context.Context, id string, actor service.Actor) error {
	m.deleteCalled = true
	m.lastActor = actor
	return m.deleteErr
}

func (m *registrationServiceMock) UpdateIntent(ctx context.Context, id string, req service.UpdateIntentRequest, actor service.Actor) (*models.Registration, error) {
	m.intentCalled = true
	m.lastActor = actor
	return m.intentResp, m.intentErr
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-admin", ActorID: "actor-admin", Role: models.RoleAdmin}
}

func TestRegistrationHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registrationServiceMock{
		createResp: &models.Registration{ID: "reg-1", Trimester: models.TrimesterWinter},
	}
	handler := NewRegistrationHandler(mockSvc)

	payload, _ := json.Marshal(service.CreateRegistrationRequest{
		Trimester:        "winter",
		StudentID:        "student-1",
		RegistrationType: string(models.RegistrationTypePrivate),
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registrations", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.createCalled)
	assert.Equal(t, "actor-admin", mockSvc.lastActor.ActorID)
}

func TestRegistrationHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRegistrationHandler(&registrationServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString(`{"trimester":"winter"`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandlerCreateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registrationServiceMock{
		createErr: appErrors.Clone(appErrors.ErrConflict, "instructor already booked at that time"),
	}
	handler := NewRegistrationHandler(mockSvc)

	payload, _ := json.Marshal(service.CreateRegistrationRequest{Trimester: "winter", StudentID: "student-1"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registrations", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestRegistrationHandlerListByTrimester(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registrationServiceMock{
		listResp: []models.Registration{{ID: "reg-1"}, {ID: "reg-2"}},
	}
	handler := NewRegistrationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/registrations?trimester=spring", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TrimesterSpring, mockSvc.lastTrimester)
}

func TestRegistrationHandlerListByStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registrationServiceMock{listResp: []models.Registration{{ID: "reg-1"}}}
	handler := NewRegistrationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/registrations?studentId=student-7", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-7", mockSvc.lastStudentID)
}

func TestRegistrationHandlerListMissingFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRegistrationHandler(&registrationServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/registrations", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandlerCancelWithoutBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registrationServiceMock{
		cancelResp: &service.CancellationResult{RegistrationID: "reg-1", FeeDollars: 0},
	}
	handler := NewRegistrationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registrations/reg-1/cancel", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "reg-1"}}
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.cancelCalled)
	assert.False(t, mockSvc.lastCancelReq.Override)
}

func TestRegistrationHandlerCancelWithOverride(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registrationServiceMock{
		cancelResp: &service.CancellationResult{RegistrationID: "reg-1", FeeDollars: 25, Overridden: true},
	}
	handler := NewRegistrationHandler(mockSvc)

	payload, _ := json.Marshal(service.CancelRegistrationRequest{Override: true, Reason: "family emergency"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registrations/reg-1/cancel", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "reg-1"}}
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.lastCancelReq.Override)
	assert.Equal(t, "family emergency", mockSvc.lastCancelReq.Reason)
}

func TestRegistrationHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registrationServiceMock{}
	handler := NewRegistrationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/registrations/reg-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "reg-1"}}
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.deleteCalled)
}

func TestRegistrationHandlerDeleteForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registrationServiceMock{deleteErr: appErrors.ErrForbidden}
	handler := NewRegistrationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/registrations/reg-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "reg-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-parent", ActorID: "actor-parent", Role: models.RoleParent})

	handler.Delete(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegistrationHandlerUpdateIntent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registrationServiceMock{
		intentResp: &models.Registration{ID: "reg-1"},
	}
	handler := NewRegistrationHandler(mockSvc)

	payload, _ := json.Marshal(service.UpdateIntentRequest{Intent: string(models.IntentKeep)})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/registrations/reg-1/intent", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "reg-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-parent", ActorID: "actor-parent", Role: models.RoleParent})

	handler.UpdateIntent(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.intentCalled)
	assert.Equal(t, "actor-parent", mockSvc.lastActor.ActorID)
}

func TestRegistrationHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRegistrationHandler(&registrationServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/registrations/missing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
