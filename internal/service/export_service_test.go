package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/internal/repository"
	"github.com/pidb/catalog-api/pkg/clock"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
	"github.com/pidb/catalog-api/pkg/jobs"
	"github.com/pidb/catalog-api/pkg/storage"
)

type memoryExportJobs struct {
	mu   sync.Mutex
	jobs map[string]models.ExportJob
}

func (m *memoryExportJobs) Save(ctx context.Context, job models.ExportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs == nil {
		m.jobs = map[string]models.ExportJob{}
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *memoryExportJobs) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return &job, nil
}

type fakeDispatcher struct {
	queued []jobs.Job
	err    error
}

func (f *fakeDispatcher) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.queued = append(f.queued, job)
	return nil
}

type fakeExportMetrics struct {
	statuses []models.ExportStatus
}

func (f *fakeExportMetrics) RecordExportJob(format models.ExportFormat, status models.ExportStatus) {
	f.statuses = append(f.statuses, status)
}

type exportFixture struct {
	*catalogFixture
	jobs    *memoryExportJobs
	queue   *fakeDispatcher
	metrics *fakeExportMetrics
	files   *storage.LocalStorage
	svc     *ExportService
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	fx := newCatalogFixture(t)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	jobStore := &memoryExportJobs{}
	metrics := &fakeExportMetrics{}
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(fx.catalog, jobStore, files, signer, fx.audit, metrics,
		clock.Fixed(auditTime, clock.DefaultZone), nil, zap.NewNop(), ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour})
	queue := &fakeDispatcher{}
	svc.SetQueue(queue)
	return &exportFixture{catalogFixture: fx, jobs: jobStore, queue: queue, metrics: metrics, files: files, svc: svc}
}

func (fx *exportFixture) runQueued(t *testing.T) {
	t.Helper()
	for _, job := range fx.queue.queued {
		require.NoError(t, fx.svc.Handle(context.Background(), job))
	}
	fx.queue.queued = nil
}

func TestExportServiceCSVRoundTrip(t *testing.T) {
	fx := newExportFixture(t)
	ana := models.UserInfo{Username: "ana", Role: "editor"}

	resp, warnings, err := fx.svc.Request(context.Background(), ana, models.ExportRequest{Program: "pharmd", Format: models.ExportFormatCSV})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	require.Len(t, fx.queue.queued, 1)
	assert.Equal(t, exportJobType, fx.queue.queued[0].Type)
	assert.Equal(t, []string{"export: PharmD csv"}, fx.audit.actions())

	fx.runQueued(t)

	status, err := fx.svc.Status(context.Background(), ana, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, status.Status)
	assert.Equal(t, 4, status.RowCount)
	assert.True(t, strings.HasPrefix(status.DownloadURL, "/api/v1/exports/download/"))
	require.NotNil(t, status.ExpiresAt)

	token := strings.TrimPrefix(status.DownloadURL, "/api/v1/exports/download/")
	download, err := fx.svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.True(t, strings.HasPrefix(download.Filename, "catalogo_pharmd_"))
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))
	assert.Equal(t, "text/csv; charset=utf-8", fx.svc.ContentType(download.Format))

	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	content := string(body)
	assert.Contains(t, content, "Codificación")
	assert.Contains(t, content, "FARM 7103")
	assert.Contains(t, content, "Inactivo")
	assert.NotContains(t, content, "Principios de farmacología", "descriptions are not exported")

	assert.Equal(t, []models.ExportStatus{models.ExportStatusQueued, models.ExportStatusFinished}, fx.metrics.statuses)
}

func TestExportServicePDF(t *testing.T) {
	fx := newExportFixture(t)
	ana := models.UserInfo{Username: "ana"}

	resp, _, err := fx.svc.Request(context.Background(), ana, models.ExportRequest{Program: "PhD", Format: models.ExportFormatPDF})
	require.NoError(t, err)
	fx.runQueued(t)

	status, err := fx.svc.Status(context.Background(), ana, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.RowCount)

	download, err := fx.svc.ResolveDownload(context.Background(), strings.TrimPrefix(status.DownloadURL, "/api/v1/exports/download/"))
	require.NoError(t, err)
	defer download.File.Close()
	head := make([]byte, 4)
	_, err = io.ReadFull(download.File, head)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(head))
	assert.Equal(t, "application/pdf", fx.svc.ContentType(models.ExportFormatPDF))
}

func TestExportServiceStatusIsPrivate(t *testing.T) {
	fx := newExportFixture(t)

	resp, _, err := fx.svc.Request(context.Background(), models.UserInfo{Username: "ana"}, models.ExportRequest{Program: "PharmD", Format: models.ExportFormatCSV})
	require.NoError(t, err)

	_, err = fx.svc.Status(context.Background(), models.UserInfo{Username: "luis"}, resp.ID)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = fx.svc.Status(context.Background(), models.UserInfo{Username: "ana"}, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestExportServiceRequestValidation(t *testing.T) {
	fx := newExportFixture(t)
	ana := models.UserInfo{Username: "ana"}

	_, _, err := fx.svc.Request(context.Background(), ana, models.ExportRequest{Program: "PharmD", Format: "xlsx"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, _, err = fx.svc.Request(context.Background(), ana, models.ExportRequest{Program: "MBA", Format: models.ExportFormatCSV})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, fx.queue.queued)
}

func TestExportServiceWithoutQueue(t *testing.T) {
	fx := newExportFixture(t)
	fx.svc.SetQueue(nil)

	_, _, err := fx.svc.Request(context.Background(), models.UserInfo{Username: "ana"}, models.ExportRequest{Program: "PharmD", Format: models.ExportFormatCSV})
	assert.True(t, errors.Is(err, appErrors.ErrFeatureDisabled))
}

func TestExportServiceEnqueueFailureMarksJobFailed(t *testing.T) {
	fx := newExportFixture(t)
	fx.queue.err = errors.New("queue exports stopped")

	_, _, err := fx.svc.Request(context.Background(), models.UserInfo{Username: "ana"}, models.ExportRequest{Program: "PharmD", Format: models.ExportFormatCSV})
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	require.Len(t, fx.jobs.jobs, 1)
	for _, job := range fx.jobs.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
	assert.Empty(t, fx.audit.events)
}

func TestExportServiceMarkFailed(t *testing.T) {
	fx := newExportFixture(t)
	ana := models.UserInfo{Username: "ana"}
	resp, _, err := fx.svc.Request(context.Background(), ana, models.ExportRequest{Program: "PharmD", Format: models.ExportFormatCSV})
	require.NoError(t, err)

	fx.store.LoadErr = errors.New("offline")
	require.Error(t, fx.svc.Handle(context.Background(), fx.queue.queued[0]))
	fx.svc.MarkFailed(fx.queue.queued[0], errors.New("catalog unavailable"))

	status, err := fx.svc.Status(context.Background(), ana, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFailed, status.Status)
	assert.Equal(t, "catalog unavailable", status.Error)
	assert.Empty(t, status.DownloadURL)
}

func TestExportServiceRejectsBadTokens(t *testing.T) {
	fx := newExportFixture(t)

	_, err := fx.svc.ResolveDownload(context.Background(), "not-a-token")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	resp, _, err := fx.svc.Request(context.Background(), models.UserInfo{Username: "ana"}, models.ExportRequest{Program: "PharmD", Format: models.ExportFormatCSV})
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate(resp.ID, "elsewhere.csv")
	require.NoError(t, err)

	_, err = fx.svc.ResolveDownload(context.Background(), token)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden), "job not finished yet")
}
