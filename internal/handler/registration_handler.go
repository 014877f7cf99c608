package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hillcrest-arts/lessons-api/internal/models"
	"github.com/hillcrest-arts/lessons-api/internal/service"
	appErrors "github.com/hillcrest-arts/lessons-api/pkg/errors"
	"github.com/hillcrest-arts/lessons-api/pkg/response"
)

type registrationService interface {
	Create(ctx context.Context, req service.CreateRegistrationRequest, actor service.Actor) (*models.Registration, error)
	Validate(ctx context.Context, req service.CreateRegistrationRequest, actor service.Actor) (*service.ValidationResult, error)
	Get(ctx context.Context, id string) (*models.Registration, error)
	ListByTrimester(ctx context.Context, trimester models.Trimester) ([]models.Registration, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Registration, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.Registration, error)
	Cancel(ctx context.Context, id string, req service.CancelRegistrationRequest, actor service.Actor) (*service.CancellationResult, error)
	Delete(ctx context.Context, id string, actor service.Actor) error
	UpdateIntent(ctx context.Context, id string, req service.UpdateIntentRequest, actor service.Actor) (*models.Registration, error)
}

// RegistrationHandler exposes registration lifecycle endpoints.
type RegistrationHandler struct {
	registrations registrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations registrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// Create godoc
// @Summary Create a registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.CreateRegistrationRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	var req service.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload"))
		return
	}
	reg, err := h.registrations.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}

// Validate godoc
// @Summary Dry-run a registration without saving
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.CreateRegistrationRequest true "Registration payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/validate [post]
func (h *RegistrationHandler) Validate(c *gin.Context) {
	var req service.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload"))
		return
	}
	result, err := h.registrations.Validate(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Load one registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	reg, err := h.registrations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

// List godoc
// @Summary List registrations for a trimester, student or instructor
// @Tags Registrations
// @Produce json
// @Param trimester query string false "Trimester (fall, winter, spring)"
// @Param studentId query string false "Filter by student"
// @Param instructorId query string false "Filter by instructor"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	if studentID := c.Query("studentId"); studentID != "" {
		regs, err := h.registrations.ListByStudent(ctx, studentID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, regs, nil)
		return
	}
	if instructorID := c.Query("instructorId"); instructorID != "" {
		regs, err := h.registrations.ListByInstructor(ctx, instructorID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, regs, nil)
		return
	}

	trimester, err := models.ParseTrimester(c.Query("trimester"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "trimester, studentId or instructorId is required"))
		return
	}
	regs, err := h.registrations.ListByTrimester(ctx, trimester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}

// Cancel godoc
// @Summary Cancel a registration under the cancellation policy
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body service.CancelRegistrationRequest false "Cancellation options"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/{id}/cancel [post]
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	var req service.CancelRegistrationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload"))
			return
		}
	}
	result, err := h.registrations.Cancel(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete a registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /registrations/{id} [delete]
func (h *RegistrationHandler) Delete(c *gin.Context) {
	if err := h.registrations.Delete(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateIntent godoc
// @Summary Record a reenrollment intent
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body service.UpdateIntentRequest true "Intent payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/{id}/intent [put]
func (h *RegistrationHandler) UpdateIntent(c *gin.Context) {
	var req service.UpdateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload"))
		return
	}
	reg, err := h.registrations.UpdateIntent(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}
