package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hillcrest-arts/lessons-api/internal/models"
	appErrors "github.com/hillcrest-arts/lessons-api/pkg/errors"
	"github.com/hillcrest-arts/lessons-api/pkg/export"
)

// ImportResult summarises a legacy sheet import.
type ImportResult struct {
	Trimester models.Trimester `json:"trimester"`
	Created   int              `json:"created"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Errors    []string         `json:"errors,omitempty"`
}

// ImportService moves registrations between the database and the legacy
// 20-column spreadsheet layout.
type ImportService struct {
	repo    registrationStore
	audits  auditRecorder
	cache   RegistrationCache
	maxSize int64
	logger  *zap.Logger
}

// NewImportService constructs ImportService.
func NewImportService(repo registrationStore, audits auditRecorder, cache RegistrationCache, maxSize int64, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = 10 << 20
	}
	return &ImportService{repo: repo, audits: audits, cache: cache, maxSize: maxSize, logger: logger}
}

// Import reads a legacy sheet CSV and creates a registration per usable row
// in the explicitly named trimester. Header rows, blank rows and rows without
// a UUID identifier are skipped, not errors.
func (s *ImportService) Import(ctx context.Context, trimesterRaw string, r io.Reader, actor Actor) (*ImportResult, error) {
	trimester, err := models.ParseTrimester(trimesterRaw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if actor.ActorID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor identity is required")
	}

	reader := csv.NewReader(io.LimitReader(r, s.maxSize))
	reader.FieldsPerRecord = -1

	result := &ImportResult{Trimester: trimester}
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("malformed csv at line %d: %v", line, err))
		}

		reg := models.RegistrationFromSheetRow(row)
		if reg == nil {
			result.Skipped++
			continue
		}
		if reg.CreatedBy == "" {
			reg.CreatedBy = actor.ActorID
		}

		if err := s.repo.Create(ctx, reg, trimester); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d (%s): %v", line, reg.ID, err))
			continue
		}
		result.Created++
	}

	if s.cache != nil && result.Created > 0 {
		s.cache.InvalidateTrimester(ctx, trimester)
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		ID:        uuid.NewString(),
		ActorID:   actor.ActorID,
		Action:    models.AuditActionImport,
		Resource:  "registration",
		Detail:    []byte(fmt.Sprintf(`{"trimester":%q,"created":%d,"skipped":%d,"failed":%d}`, trimester, result.Created, result.Skipped, result.Failed)),
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record import audit log", zap.Error(err))
	}

	s.logger.Info("sheet import finished",
		zap.String("trimester", string(trimester)),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// ExportSheet renders a trimester's registrations in the legacy 20-column
// layout, header row included. Rows written this way re-import unchanged.
func (s *ImportService) ExportSheet(ctx context.Context, trimesterRaw string) ([]byte, error) {
	trimester, err := models.ParseTrimester(trimesterRaw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	regs, err := s.repo.ListByTrimester(ctx, trimester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to list registrations")
	}

	dataset := export.Dataset{Headers: models.SheetHeader}
	for i := range regs {
		dataset.Rows = append(dataset.Rows, regs[i].SheetRow())
	}

	data, err := export.NewCSVExporter().Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to render sheet csv")
	}
	return data, nil
}
