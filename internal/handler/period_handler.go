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

type periodService interface {
	Resolve(ctx context.Context) (*models.PeriodContext, error)
	List(ctx context.Context) ([]models.Period, error)
	Create(ctx context.Context, req service.CreatePeriodRequest) (*models.Period, error)
	SetCurrent(ctx context.Context, id, actorID string) (*models.PeriodContext, error)
	Advance(ctx context.Context, actorID string) (*models.PeriodContext, error)
}

// PeriodHandler exposes enrollment period endpoints.
type PeriodHandler struct {
	periods periodService
}

// NewPeriodHandler constructs PeriodHandler.
func NewPeriodHandler(periods periodService) *PeriodHandler {
	return &PeriodHandler{periods: periods}
}

// Current godoc
// @Summary Resolve the current enrollment period context
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /periods/current [get]
func (h *PeriodHandler) Current(c *gin.Context) {
	pctx, err := h.periods.Resolve(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pctx, nil)
}

// List godoc
// @Summary List enrollment periods
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /periods [get]
func (h *PeriodHandler) List(c *gin.Context) {
	periods, err := h.periods.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// Create godoc
// @Summary Create an enrollment period
// @Tags Periods
// @Accept json
// @Produce json
// @Param payload body service.CreatePeriodRequest true "Period payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /periods [post]
func (h *PeriodHandler) Create(c *gin.Context) {
	var req service.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload"))
		return
	}
	period, err := h.periods.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// Advance godoc
// @Summary Advance to the next phase in the enrollment sequence
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /periods/advance [post]
func (h *PeriodHandler) Advance(c *gin.Context) {
	actor := actorFromContext(c)
	pctx, err := h.periods.Advance(c.Request.Context(), actor.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pctx, nil)
}

// SetCurrent godoc
// @Summary Make a period the current one
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /periods/{id}/current [put]
func (h *PeriodHandler) SetCurrent(c *gin.Context) {
	actor := actorFromContext(c)
	pctx, err := h.periods.SetCurrent(c.Request.Context(), c.Param("id"), actor.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pctx, nil)
}
