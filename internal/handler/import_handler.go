package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hillcrest-arts/lessons-api/internal/service"
	appErrors "github.com/hillcrest-arts/lessons-api/pkg/errors"
	"github.com/hillcrest-arts/lessons-api/pkg/response"
)

// ImportHandler exposes legacy sheet import and export endpoints.
type ImportHandler struct {
	imports *service.ImportService
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imports *service.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Import godoc
// @Summary Import a legacy sheet CSV into a trimester
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param trimester query string true "Trimester (fall, winter, spring)"
// @Param file formData file true "Sheet CSV"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /imports/sheet [post]
func (h *ImportHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a csv file upload is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal, "failed to open upload"))
		return
	}
	defer file.Close()

	result, err := h.imports.Import(c.Request.Context(), c.Query("trimester"), file, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportSheet godoc
// @Summary Download a trimester's registrations in the legacy sheet layout
// @Tags Imports
// @Produce text/csv
// @Param trimester query string true "Trimester (fall, winter, spring)"
// @Success 200
// @Security BearerAuth
// @Router /imports/sheet/export [get]
func (h *ImportHandler) ExportSheet(c *gin.Context) {
	trimester := c.Query("trimester")
	data, err := h.imports.ExportSheet(c.Request.Context(), trimester)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("registrations-%s.csv", trimester)))
	c.Data(http.StatusOK, "text/csv", data)
}
