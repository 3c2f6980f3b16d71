package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pidb/catalog-api/internal/dto"
	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/internal/repository"
	"github.com/pidb/catalog-api/pkg/clock"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
	"github.com/pidb/catalog-api/pkg/export"
	"github.com/pidb/catalog-api/pkg/jobs"
	"github.com/pidb/catalog-api/pkg/storage"
)

const exportJobType = "catalog_export"

type exportJobStore interface {
	Save(ctx context.Context, job models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type exportMetrics interface {
	RecordExportJob(format models.ExportFormat, status models.ExportStatus)
}

type tableSource interface {
	Snapshot(ctx context.Context, program models.Program) (*models.CourseTable, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportService renders program catalogs to CSV or PDF in the background and
// serves the results through signed download URLs.
type ExportService struct {
	catalog   tableSource
	jobs      exportJobStore
	queue     jobDispatcher
	storage   fileStorage
	signer    *storage.SignedURLSigner
	csv       datasetRenderer
	pdf       datasetRenderer
	audit     auditRecorder
	metrics   exportMetrics
	clock     *clock.CivilClock
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService. The queue is attached with
// SetQueue because the queue's handler is the service itself.
func NewExportService(catalog tableSource, store exportJobStore, files fileStorage, signer *storage.SignedURLSigner, audit auditRecorder, metrics exportMetrics, civil *clock.CivilClock, validate *validator.Validate, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if civil == nil {
		civil = clock.NewCivil(clock.DefaultZone)
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		catalog:   catalog,
		jobs:      store,
		storage:   files,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		audit:     audit,
		metrics:   metrics,
		clock:     civil,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// SetQueue attaches the dispatcher used by Request.
func (s *ExportService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// Request validates the payload, persists a queued job and enqueues it.
func (s *ExportService) Request(ctx context.Context, actor models.UserInfo, req models.ExportRequest) (*dto.ExportJobResponse, []string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	program, err := models.ParseProgram(req.Program)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown program")
	}
	if s.queue == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "exports are disabled")
	}

	job := models.ExportJob{
		ID:          uuid.NewString(),
		Program:     program,
		Format:      req.Format,
		Status:      models.ExportStatusQueued,
		RequestedBy: actor.Username,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	s.record(job)

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: exportJobType}); err != nil {
		s.fail(ctx, job, "failed to enqueue job")
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	warnings := recordAudit(ctx, s.audit, actor, models.ExportAction(program, req.Format))
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status}, warnings, nil
}

// Status exposes job metadata to the user who requested it.
func (s *ExportService) Status(ctx context.Context, actor models.UserInfo, id string) (*dto.ExportStatusResponse, error) {
	job, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(job.RequestedBy, actor.Username) {
		return nil, appErrors.ErrForbidden
	}
	return &dto.ExportStatusResponse{
		ID:          job.ID,
		Program:     job.Program,
		Format:      job.Format,
		Status:      job.Status,
		RowCount:    job.RowCount,
		DownloadURL: job.DownloadURL,
		ExpiresAt:   job.ExpiresAt,
		Error:       job.ErrorMessage,
	}, nil
}

// Handle processes a queue job. Returned errors are retried by the queue.
func (s *ExportService) Handle(ctx context.Context, qj jobs.Job) error {
	job, err := s.jobs.FindByID(ctx, qj.ID)
	if err != nil {
		return err
	}
	job.Status = models.ExportStatusProcessing
	if err := s.jobs.Save(ctx, *job); err != nil {
		return err
	}

	table, err := s.catalog.Snapshot(ctx, job.Program)
	if err != nil {
		return err
	}
	payload, err := s.render(job.Format, s.buildDataset(table))
	if err != nil {
		return err
	}
	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return err
	}

	finished := time.Now().UTC()
	job.Status = models.ExportStatusFinished
	job.RowCount = table.Len()
	job.FilePath = relPath
	job.DownloadURL = s.downloadURL(token)
	job.ExpiresAt = &expiresAt
	job.FinishedAt = &finished
	job.ErrorMessage = ""
	if err := s.jobs.Save(ctx, *job); err != nil {
		return err
	}
	s.record(*job)
	s.logger.Info("catalog export finished",
		zap.String("job_id", job.ID),
		zap.String("program", job.Program.String()),
		zap.String("format", string(job.Format)),
		zap.Int("rows", job.RowCount),
	)
	return nil
}

// MarkFailed is the queue's exhaustion hook.
func (s *ExportService) MarkFailed(qj jobs.Job, cause error) {
	ctx := context.Background()
	job, err := s.jobs.FindByID(ctx, qj.ID)
	if err != nil {
		s.logger.Warn("failed to load exhausted export job", zap.String("job_id", qj.ID), zap.Error(err))
		return
	}
	msg := "export failed"
	if cause != nil {
		msg = cause.Error()
	}
	s.fail(ctx, *job, msg)
}

// ResolveDownload validates token and opens the stored export file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	claims, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.find(ctx, claims.ExportID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	if job.FilePath != claims.Path {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(claims.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(claims.Path),
		Format:    job.Format,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// ContentType returns the MIME type served for format.
func (s *ExportService) ContentType(format models.ExportFormat) string {
	if format == models.ExportFormatPDF {
		return export.NewPDFExporter().ContentType()
	}
	return export.NewCSVExporter().ContentType()
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Cleanup removes rendered files older than the result TTL.
func (s *ExportService) Cleanup() {
	removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("export cleanup", zap.Int("removed", len(removed)))
	}
}

func (s *ExportService) find(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return job, nil
}

func (s *ExportService) fail(ctx context.Context, job models.ExportJob, msg string) {
	now := time.Now().UTC()
	job.Status = models.ExportStatusFailed
	job.ErrorMessage = msg
	job.FinishedAt = &now
	if err := s.jobs.Save(ctx, job); err != nil {
		s.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	s.record(job)
}

func (s *ExportService) record(job models.ExportJob) {
	if s.metrics != nil {
		s.metrics.RecordExportJob(job.Format, job.Status)
	}
}

func (s *ExportService) render(format models.ExportFormat, data export.Dataset) ([]byte, error) {
	switch format {
	case models.ExportFormatCSV:
		return s.csv.Render(data)
	case models.ExportFormatPDF:
		return s.pdf.Render(data)
	}
	return nil, fmt.Errorf("unsupported format %s", format)
}

var exportHeaders = []string{
	models.ColCode, models.ColStatus, models.ColTitleES, models.ColTitleEN,
	models.ColCredits, models.ColContactHours, models.ColYear, models.ColSemester,
	models.ColRevisionDate, models.ColLastModifiedBy, models.ColLastModifiedAt,
}

func (s *ExportService) buildDataset(table *models.CourseTable) export.Dataset {
	rows := make([]map[string]string, 0, table.Len())
	for _, c := range table.Courses {
		status := "Inactivo"
		if c.Status == models.StatusActive {
			status = "Activo"
		}
		rows = append(rows, map[string]string{
			models.ColCode:           c.Code,
			models.ColStatus:         status,
			models.ColTitleES:        c.TitleES,
			models.ColTitleEN:        c.TitleEN,
			models.ColCredits:        c.Credits.String(),
			models.ColContactHours:   c.ContactHours.String(),
			models.ColYear:           c.Year.String(),
			models.ColSemester:       c.Semester.String(),
			models.ColRevisionDate:   c.LastRevisionDate,
			models.ColLastModifiedBy: c.LastModifiedBy,
			models.ColLastModifiedAt: c.LastModifiedAt,
		})
	}
	return export.Dataset{
		Title:    fmt.Sprintf("Catálogo %s", table.Program),
		Subtitle: "Generado " + s.clock.Stamp(s.clock.Now()),
		Headers:  exportHeaders,
		Rows:     rows,
	}
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("catalogo_%s_%s_%s.%s", sanitizeFilename(strings.ToLower(job.Program.String())), timestamp, shortID(job.ID), job.Format)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (s *ExportService) downloadURL(token string) string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/exports/download/%s", prefix, token)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
