package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/pkg/clock"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
	"github.com/pidb/catalog-api/pkg/tabular"
)

type catalogPatcher interface {
	Ref(program models.Program) (tabular.TableRef, bool)
	Invalidate(program models.Program)
	Patch(program models.Program, code string, patch models.CoursePatch) (models.Course, bool)
}

// UpdateRequest is one single-field edit of a course.
type UpdateRequest struct {
	Program models.Program
	Code    string
	Field   string
	Value   string
}

// UpdateResult carries the patched course. Course is nil when no snapshot
// was held and the caller has to reload to see the change.
type UpdateResult struct {
	Course   *models.Course `json:"course,omitempty"`
	Field    string         `json:"field"`
	Value    string         `json:"value"`
	Warnings []string       `json:"-"`
}

// UpdateService writes single course fields back to the remote table.
type UpdateService struct {
	writer  tabular.Writer
	catalog catalogPatcher
	policy  EditPolicy
	audit   auditRecorder
	clock   *clock.CivilClock
	logger  *zap.Logger

	// locks serialize write and snapshot patch per program, so the snapshot
	// reflects writes in the order they landed remotely.
	mu    sync.Mutex
	locks map[models.Program]*sync.Mutex
}

// NewUpdateService constructs the update service. A nil writer disables edits.
func NewUpdateService(writer tabular.Writer, catalog catalogPatcher, policy EditPolicy, audit auditRecorder, civil *clock.CivilClock, logger *zap.Logger) *UpdateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = AllowAuthenticated{}
	}
	if civil == nil {
		civil = clock.NewCivil(clock.DefaultZone)
	}
	return &UpdateService{
		writer:  writer,
		catalog: catalog,
		policy:  policy,
		audit:   audit,
		clock:   civil,
		logger:  logger,
		locks:   make(map[models.Program]*sync.Mutex),
	}
}

func (s *UpdateService) programLock(program models.Program) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[program]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[program] = lock
	}
	return lock
}

// UpdateField writes value into one editable field of the course together
// with the ModificadoPor and FechaModificación stamp, in a single remote
// write. Last write wins. Any failure invalidates the program snapshot.
func (s *UpdateService) UpdateField(ctx context.Context, actor models.UserInfo, req UpdateRequest) (*UpdateResult, error) {
	if !s.policy.CanEdit(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "user may not edit the catalog")
	}
	if !req.Program.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown program")
	}
	field, err := models.ParseCourseField(req.Field)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotEditable.Code, appErrors.ErrNotEditable.Status, "unknown field")
	}
	if !field.Editable() {
		return nil, appErrors.ErrNotEditable
	}
	cell, err := field.NormalizeValue(req.Value)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course code is required")
	}
	if s.writer == nil {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "catalog is read-only")
	}
	ref, ok := s.catalog.Ref(req.Program)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "no writable table for program")
	}

	lock := s.programLock(req.Program)
	lock.Lock()
	stamp := s.clock.Stamp(s.clock.Now())
	updates := []tabular.CellUpdate{
		{Column: field.Header(), Value: cell, Numeric: field.Numeric()},
		{Column: models.ColLastModifiedBy, Value: actor.Username},
		{Column: models.ColLastModifiedAt, Value: stamp},
	}
	key := tabular.RowKey{Column: models.ColCode, Value: code}
	if err := s.writer.WriteCells(ctx, ref, key, updates); err != nil {
		s.catalog.Invalidate(req.Program)
		lock.Unlock()
		s.logger.Warn("course update failed",
			zap.String("program", req.Program.String()),
			zap.String("code", code),
			zap.String("field", string(field)),
			zap.Error(err),
		)
		if errors.Is(err, tabular.ErrRowNotFound) {
			return nil, appErrors.WrapAs(err, appErrors.ErrCourseNotFound, "")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrWrite, "")
	}
	course, patched := s.catalog.Patch(req.Program, code, models.CoursePatch{
		Field:      field,
		Cell:       cell,
		ModifiedBy: actor.Username,
		ModifiedAt: stamp,
	})
	lock.Unlock()

	result := &UpdateResult{Field: string(field), Value: cell}
	result.Warnings = recordAudit(ctx, s.audit, actor, models.EditAction(code, field))
	if patched {
		result.Course = &course
	}
	return result, nil
}
