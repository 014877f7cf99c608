package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hillcrest-arts/lessons-api/internal/models"
	"github.com/hillcrest-arts/lessons-api/internal/repository"
	appErrors "github.com/hillcrest-arts/lessons-api/pkg/errors"
	"github.com/hillcrest-arts/lessons-api/pkg/export"
)

type exportJobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
}

type rosterSource interface {
	ListByTrimester(ctx context.Context, trimester models.Trimester) ([]models.Registration, error)
}

type studentLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type instructorLister interface {
	List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (io.ReadCloser, error)
}

type downloadSigner interface {
	Generate(jobID string) string
	Parse(token string) (string, error)
}

type jobEnqueuer interface {
	Enqueue(jobID string) bool
}

type exportMetrics interface {
	RecordExport(format, outcome string)
}

// RosterExportService generates trimester roster files in the background.
// Requests create a job row, a worker renders and stores the file, and the
// finished job exposes a signed download link.
type RosterExportService struct {
	jobs        exportJobRepository
	rosters     rosterSource
	students    studentLister
	instructors instructorLister
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	storage     fileStorage
	signer      downloadSigner
	queue       jobEnqueuer
	audits      auditRecorder
	metrics     exportMetrics
	logger      *zap.Logger
}

// NewRosterExportService constructs RosterExportService. The queue is set
// after construction because the queue handler is this service's Process.
func NewRosterExportService(jobs exportJobRepository, rosters rosterSource, students studentLister, instructors instructorLister, storage fileStorage, signer downloadSigner, audits auditRecorder, logger *zap.Logger) *RosterExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterExportService{
		jobs: jobs, rosters: rosters, students: students, instructors: instructors,
		csv: export.NewCSVExporter(), pdf: export.NewPDFExporter(),
		storage: storage, signer: signer, audits: audits, logger: logger,
	}
}

// SetQueue wires the worker queue used for background processing.
func (s *RosterExportService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// SetMetrics attaches an optional metrics recorder.
func (s *RosterExportService) SetMetrics(metrics exportMetrics) {
	s.metrics = metrics
}

// Request queues a roster export for a trimester.
func (s *RosterExportService) Request(ctx context.Context, trimesterRaw, formatRaw string, actor Actor) (*models.ExportJob, error) {
	trimester, err := models.ParseTrimester(trimesterRaw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	format := models.ExportFormat(formatRaw)
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if actor.ActorID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor identity is required")
	}

	job := &models.ExportJob{
		ID:        uuid.NewString(),
		Trimester: trimester,
		Format:    format,
		Status:    models.ExportStatusQueued,
		CreatedBy: actor.ActorID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to create export job")
	}

	if s.queue == nil || !s.queue.Enqueue(job.ID) {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue is unavailable")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		ID:         uuid.NewString(),
		ActorID:    actor.ActorID,
		Action:     models.AuditActionExport,
		Resource:   "export",
		ResourceID: &job.ID,
		Detail:     []byte(fmt.Sprintf(`{"trimester":%q,"format":%q}`, trimester, format)),
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record export audit log", zap.Error(err))
	}
	return job, nil
}

// Process is the queue handler: it renders the roster and stores the file.
func (s *RosterExportService) Process(ctx context.Context, jobID string) error {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}

	processing := models.ExportStatusProcessing
	if err := s.jobs.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		return fmt.Errorf("mark export job processing: %w", err)
	}

	data, err := s.render(ctx, job)
	if err != nil {
		s.markFailed(ctx, job, err)
		return err
	}

	filename := fmt.Sprintf("roster-%s-%s.%s", job.Trimester, job.ID, job.Format)
	path, err := s.storage.Save(filename, data)
	if err != nil {
		s.markFailed(ctx, job, err)
		return err
	}

	finished := models.ExportStatusFinished
	now := time.Now().UTC()
	if err := s.jobs.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:     &finished,
		FilePath:   &path,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("mark export job finished: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordExport(string(job.Format), "finished")
	}

	s.logger.Info("roster export finished",
		zap.String("job_id", job.ID),
		zap.String("trimester", string(job.Trimester)),
		zap.String("format", string(job.Format)))
	return nil
}

func (s *RosterExportService) markFailed(ctx context.Context, job *models.ExportJob, cause error) {
	failed := models.ExportStatusFailed
	msg := cause.Error()
	now := time.Now().UTC()
	if err := s.jobs.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &failed,
		FinishedAt:   &now,
		ErrorMessage: &msg,
	}); err != nil {
		s.logger.Error("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordExport(string(job.Format), "failed")
	}
}

func (s *RosterExportService) render(ctx context.Context, job *models.ExportJob) ([]byte, error) {
	regs, err := s.rosters.ListByTrimester(ctx, job.Trimester)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	studentNames, err := s.studentNames(ctx)
	if err != nil {
		return nil, err
	}
	instructorNames, err := s.instructorNames(ctx)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Instructor", "Day", "Start", "Length", "Type", "Class", "Instrument", "Room"},
	}
	for i := range regs {
		reg := &regs[i]
		length := ""
		if reg.Length != nil {
			length = strconv.Itoa(*reg.Length)
		}
		dataset.Rows = append(dataset.Rows, []string{
			nameOr(studentNames[reg.StudentID], reg.StudentID),
			nameOr(instructorNames[reg.InstructorID], reg.InstructorID),
			reg.Day,
			reg.StartTime,
			length,
			string(reg.RegistrationType),
			reg.ClassTitle,
			reg.Instrument,
			reg.RoomID,
		})
	}

	title := fmt.Sprintf("Lesson Roster, %s trimester", job.Trimester)
	if job.Format == models.ExportFormatPDF {
		return s.pdf.Render(dataset, title)
	}
	return s.csv.Render(dataset)
}

func (s *RosterExportService) studentNames(ctx context.Context) (map[string]string, error) {
	students, _, err := s.students.List(ctx, models.StudentFilter{PageSize: 10000})
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	names := make(map[string]string, len(students))
	for i := range students {
		names[students[i].ID] = students[i].DisplayName()
	}
	return names, nil
}

func (s *RosterExportService) instructorNames(ctx context.Context) (map[string]string, error) {
	instructors, _, err := s.instructors.List(ctx, models.InstructorFilter{PageSize: 10000})
	if err != nil {
		return nil, fmt.Errorf("load instructors: %w", err)
	}
	names := make(map[string]string, len(instructors))
	for i := range instructors {
		names[instructors[i].ID] = instructors[i].DisplayName()
	}
	return names, nil
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

// Status loads an export job and attaches a signed download link when the
// file is ready.
func (s *RosterExportService) Status(ctx context.Context, jobID string) (*models.ExportJob, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load export job")
	}
	if job.Status == models.ExportStatusFinished && job.FilePath != nil {
		url := fmt.Sprintf("/exports/download/%s", s.signer.Generate(job.ID))
		job.DownloadURL = &url
	}
	return job, nil
}

// Download resolves a signed token to the export file contents.
func (s *RosterExportService) Download(ctx context.Context, token string) (io.ReadCloser, string, string, error) {
	jobID, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}

	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", "", appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal, "failed to load export job")
	}
	if job.Status != models.ExportStatusFinished || job.FilePath == nil {
		return nil, "", "", appErrors.Clone(appErrors.ErrConflict, "export file is not ready")
	}

	reader, err := s.storage.Open(*job.FilePath)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal, "failed to open export file")
	}

	contentType := "text/csv"
	if job.Format == models.ExportFormatPDF {
		contentType = "application/pdf"
	}
	return reader, *job.FilePath, contentType, nil
}
