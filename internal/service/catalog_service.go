package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pidb/catalog-api/internal/models"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
	"github.com/pidb/catalog-api/pkg/tabular"
)

type catalogLoader interface {
	Load(ctx context.Context, program models.Program) (*models.CourseTable, error)
	Ref(program models.Program) (tabular.TableRef, bool)
}

type folderLinkLoader interface {
	Load(ctx context.Context, program models.Program) (map[string]models.FolderLink, error)
}

type sessionSaver interface {
	Save(ctx context.Context, state models.SessionState) error
}

type catalogMetrics interface {
	RecordCatalogLoad(program models.Program, err error)
}

// CatalogConfig configures folder links and snapshot lifetime.
type CatalogConfig struct {
	FolderURLPrefix string
	RootFolders     map[models.Program]string
	SnapshotTTL     time.Duration
}

// CatalogService owns the last loaded course table of each program.
type CatalogService struct {
	repo     catalogLoader
	folders  folderLinkLoader
	sessions sessionSaver
	audit    auditRecorder
	metrics  catalogMetrics
	logger   *zap.Logger
	cfg      CatalogConfig
	now      func() time.Time

	mu        sync.RWMutex
	snapshots map[models.Program]*models.CourseTable
	// generations advance on every Patch and Invalidate. A load that started
	// before a newer change is returned but not kept.
	generations map[models.Program]uint64
}

// ProgramSwitch is the outcome of moving a session to another program.
// Halted is set when the new program's table could not be loaded.
type ProgramSwitch struct {
	Session  models.SessionState `json:"session"`
	Courses  []models.Course     `json:"courses"`
	Codes    []string            `json:"codes"`
	Halted   bool                `json:"halted"`
	Warnings []string            `json:"-"`
}

// CourseView is a single course with its document folder.
type CourseView struct {
	Course   models.Course           `json:"course"`
	Folder   models.FolderLinkResult `json:"folder"`
	Warnings []string                `json:"-"`
}

// NewCatalogService constructs the catalog service.
func NewCatalogService(repo catalogLoader, folders folderLinkLoader, sessions sessionSaver, audit auditRecorder, metrics catalogMetrics, logger *zap.Logger, cfg CatalogConfig) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 5 * time.Minute
	}
	if cfg.FolderURLPrefix == "" {
		cfg.FolderURLPrefix = "https://drive.google.com/drive/folders/"
	}
	return &CatalogService{
		repo:      repo,
		folders:   folders,
		sessions:  sessions,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		snapshots:   make(map[models.Program]*models.CourseTable),
		generations: make(map[models.Program]uint64),
	}
}

// Load reads the program's table from the remote store and keeps it as the
// current snapshot. A failed load drops the snapshot and returns an empty
// table together with ErrNoData.
func (s *CatalogService) Load(ctx context.Context, program models.Program) (*models.CourseTable, error) {
	if !program.Valid() {
		return models.NewCourseTable(program, nil, nil, s.now()), appErrors.Clone(appErrors.ErrValidation, "unknown program")
	}
	s.mu.RLock()
	gen := s.generations[program]
	s.mu.RUnlock()

	table, err := s.repo.Load(ctx, program)
	if s.metrics != nil {
		s.metrics.RecordCatalogLoad(program, err)
	}
	if err != nil {
		s.Invalidate(program)
		s.logger.Warn("catalog load failed", zap.String("program", program.String()), zap.Error(err))
		if table == nil {
			table = models.NewCourseTable(program, nil, nil, s.now())
		}
		return table, appErrors.WrapAs(err, appErrors.ErrNoData, fmt.Sprintf("no se pudo cargar el catálogo de %s", program))
	}
	if len(table.TextColumns) > 0 {
		s.logger.Info("catalog columns kept as text",
			zap.String("program", program.String()),
			zap.Strings("columns", table.TextColumns),
		)
	}

	s.mu.Lock()
	if s.generations[program] == gen {
		s.snapshots[program] = table
	}
	s.mu.Unlock()
	return table, nil
}

// Reload is Load under the name handlers use for explicit refreshes.
func (s *CatalogService) Reload(ctx context.Context, program models.Program) (*models.CourseTable, error) {
	return s.Load(ctx, program)
}

// Snapshot returns the current table of program, loading it when absent or stale.
func (s *CatalogService) Snapshot(ctx context.Context, program models.Program) (*models.CourseTable, error) {
	s.mu.RLock()
	table, ok := s.snapshots[program]
	s.mu.RUnlock()
	if ok && s.now().Sub(table.LoadedAt) < s.cfg.SnapshotTTL {
		return table, nil
	}
	return s.Load(ctx, program)
}

// Invalidate forgets the snapshot of program so the next read reloads it.
func (s *CatalogService) Invalidate(program models.Program) {
	s.mu.Lock()
	delete(s.snapshots, program)
	s.generations[program]++
	s.mu.Unlock()
}

// Patch replaces the snapshot course with a successfully written value. With
// no snapshot held, or no such course, the snapshot is dropped instead.
func (s *CatalogService) Patch(program models.Program, code string, patch models.CoursePatch) (models.Course, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[program]++
	table, ok := s.snapshots[program]
	if !ok {
		return models.Course{}, false
	}
	next, applied := table.Apply(code, patch)
	if !applied {
		delete(s.snapshots, program)
		return models.Course{}, false
	}
	s.snapshots[program] = next
	course, _ := next.Lookup(code)
	return course, true
}

// Ref exposes the table backing program for writers.
func (s *CatalogService) Ref(program models.Program) (tabular.TableRef, bool) {
	return s.repo.Ref(program)
}

// SwitchProgram moves the session to another program, resetting filters and
// selection, and reloads that program's table.
func (s *CatalogService) SwitchProgram(ctx context.Context, session models.SessionState, to models.Program) (*ProgramSwitch, error) {
	if !to.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown program")
	}
	from := session.Program
	next := session.SwitchedTo(to)
	next.UpdatedAt = s.now().UTC()
	if s.sessions != nil {
		if err := s.sessions.Save(ctx, next); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
		}
	}

	result := &ProgramSwitch{Session: next, Courses: []models.Course{}, Codes: []string{}}
	table, err := s.Load(ctx, to)
	if err != nil {
		result.Halted = true
		result.Warnings = append(result.Warnings, appErrors.FromError(err).Message)
	} else {
		result.Courses = table.Courses
		result.Codes = table.Codes()
	}

	result.Warnings = appendWarnings(result.Warnings, recordAudit(ctx, s.audit, session.Actor(), models.SwitchProgramAction(from, to))...)
	return result, nil
}

// ViewCourse returns one course with its folder link and marks it selected
// when it belongs to the session's program.
func (s *CatalogService) ViewCourse(ctx context.Context, session models.SessionState, program models.Program, code string) (*CourseView, error) {
	table, err := s.Snapshot(ctx, program)
	if err != nil {
		return nil, err
	}
	course, ok := table.Lookup(code)
	if !ok {
		return nil, appErrors.ErrCourseNotFound
	}

	view := &CourseView{Course: course}
	folder, err := s.FolderLink(ctx, program, course.Code)
	if err != nil {
		view.Warnings = append(view.Warnings, "no se pudo consultar el índice de carpetas")
	}
	view.Folder = folder

	if session.Program == program && s.sessions != nil {
		session.SelectedCode = course.Code
		session.UpdatedAt = s.now().UTC()
		if err := s.sessions.Save(ctx, session); err != nil {
			s.logger.Warn("failed to persist selected course", zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	view.Warnings = appendWarnings(view.Warnings, recordAudit(ctx, s.audit, session.Actor(), models.ViewCourseAction(course.Code))...)
	return view, nil
}

// FolderLink resolves the document folder of a course. A missing entry is a
// normal not_found result pointing at the program root folder; only a failed
// index read returns an error, alongside that same fallback.
func (s *CatalogService) FolderLink(ctx context.Context, program models.Program, code string) (models.FolderLinkResult, error) {
	code = strings.TrimSpace(code)
	notFound := models.FolderLinkResult{
		Status:  models.FolderLinkNotFound,
		RootURL: s.cfg.RootFolders[program],
		Hint:    fmt.Sprintf("Busca el subfolder llamado %s", code),
	}
	if s.folders == nil {
		return notFound, nil
	}
	links, err := s.folders.Load(ctx, program)
	if err != nil {
		s.logger.Warn("folder index load failed", zap.String("program", program.String()), zap.Error(err))
		return notFound, err
	}
	link, ok := links[code]
	if !ok || strings.TrimSpace(link.FolderID) == "" {
		return notFound, nil
	}
	return models.FolderLinkResult{
		Status: models.FolderLinkFound,
		URL:    s.folderURL(link.FolderID),
	}, nil
}

func (s *CatalogService) folderURL(id string) string {
	if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
		return id
	}
	return s.cfg.FolderURLPrefix + id
}
