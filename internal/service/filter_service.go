package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pidb/catalog-api/internal/dto"
	"github.com/pidb/catalog-api/internal/models"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
)

type catalogSnapshots interface {
	Load(ctx context.Context, program models.Program) (*models.CourseTable, error)
	Snapshot(ctx context.Context, program models.Program) (*models.CourseTable, error)
}

// FilterResult is a resolved filter together with the updated session.
type FilterResult struct {
	Session    models.SessionState
	Resolution models.Resolution
	Table      *models.CourseTable
	Warnings   []string
}

// FilterService keeps each session's filter and selection.
type FilterService struct {
	catalog   catalogSnapshots
	sessions  sessionSaver
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFilterService constructs the filter service.
func NewFilterService(catalog catalogSnapshots, sessions sessionSaver, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *FilterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FilterService{
		catalog:   catalog,
		sessions:  sessions,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Apply replaces the session filter, resolves it against the session's
// program and records the search.
func (s *FilterService) Apply(ctx context.Context, session models.SessionState, req dto.FilterRequest) (*FilterResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter payload")
	}
	state, action, err := filterState(session.Filter, req)
	if err != nil {
		return nil, err
	}

	table, err := s.catalog.Snapshot(ctx, session.Program)
	if err != nil {
		return nil, err
	}
	res := Resolve(table, state)

	session.Filter = res.State
	session.SelectedCode = ""
	if res.Selected != nil {
		session.SelectedCode = res.Selected.Code
	}
	if err := s.save(ctx, &session); err != nil {
		return nil, err
	}

	return &FilterResult{
		Session:    session,
		Resolution: res,
		Table:      table,
		Warnings:   recordAudit(ctx, s.audit, session.Actor(), action),
	}, nil
}

// Select makes code the selected course among the current matches. With an
// empty code the current single match is kept; several matches and no code
// is an ambiguous selection.
func (s *FilterService) Select(ctx context.Context, session models.SessionState, code string) (*FilterResult, error) {
	table, err := s.catalog.Snapshot(ctx, session.Program)
	if err != nil {
		return nil, err
	}
	res := Resolve(table, session.Filter)
	course, ok := Select(res, code)
	if !ok {
		if code == "" && res.Outcome == models.OutcomeMultiple {
			return nil, appErrors.ErrAmbiguousSelection
		}
		return nil, appErrors.ErrCourseNotFound
	}

	selected := course
	res.Selected = &selected
	session.SelectedCode = course.Code
	if err := s.save(ctx, &session); err != nil {
		return nil, err
	}
	return &FilterResult{
		Session:    session,
		Resolution: res,
		Table:      table,
		Warnings:   recordAudit(ctx, s.audit, session.Actor(), models.ViewCourseAction(course.Code)),
	}, nil
}

// Clear drops the filter and selection.
func (s *FilterService) Clear(ctx context.Context, session models.SessionState) (*FilterResult, error) {
	session.Filter = session.Filter.Cleared()
	session.SelectedCode = ""
	if err := s.save(ctx, &session); err != nil {
		return nil, err
	}
	table, err := s.catalog.Snapshot(ctx, session.Program)
	result := &FilterResult{
		Session:    session,
		Resolution: Resolve(table, session.Filter),
		Table:      table,
	}
	if err != nil {
		result.Warnings = append(result.Warnings, appErrors.FromError(err).Message)
	}
	result.Warnings = appendWarnings(result.Warnings, recordAudit(ctx, s.audit, session.Actor(), models.AuditActionClearFilters)...)
	return result, nil
}

// Current reloads program and applies the session filter when program is the
// session's own. Other programs are listed unfiltered.
func (s *FilterService) Current(ctx context.Context, session models.SessionState, program models.Program) (*FilterResult, error) {
	table, err := s.catalog.Load(ctx, program)
	if err != nil {
		return nil, err
	}
	state := models.FilterState{}.Cleared()
	if program == session.Program {
		state = session.Filter
	}
	res := Resolve(table, state)
	if program == session.Program && session.SelectedCode != "" {
		if c, ok := Select(res, session.SelectedCode); ok {
			res.Selected = &c
		}
	}
	return &FilterResult{Session: session, Resolution: res, Table: table}, nil
}

func (s *FilterService) save(ctx context.Context, session *models.SessionState) error {
	if s.sessions == nil {
		return nil
	}
	session.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, *session); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}
	return nil
}

// filterState builds the new state from a request. Setting one mode clears
// the others.
func filterState(current models.FilterState, req dto.FilterRequest) (models.FilterState, string, error) {
	var (
		state  models.FilterState
		action string
	)
	switch req.Mode {
	case models.FilterByCode:
		state = current.WithCode(req.Code)
		action = models.SearchCodeAction(state.Code)
	case models.FilterByTitle:
		state = current.WithTitle(req.Title)
		action = models.SearchTitleAction(state.Title)
	case models.FilterByKeyword:
		field, err := models.ParseCourseField(req.Field)
		if err != nil || !field.Searchable() {
			return models.FilterState{}, "", appErrors.Clone(appErrors.ErrValidation, "field is not searchable")
		}
		state = current.WithKeyword(field, req.Keyword)
		action = models.SearchKeywordAction(field, state.Keyword)
	default:
		return models.FilterState{}, "", appErrors.Clone(appErrors.ErrValidation, "unknown filter mode")
	}
	if state.Mode != req.Mode {
		return models.FilterState{}, "", appErrors.Clone(appErrors.ErrValidation, "filter value is required")
	}
	return state, action, nil
}
