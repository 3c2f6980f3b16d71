package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pidb/catalog-api/internal/dto"
	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/internal/service"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
	"github.com/pidb/catalog-api/pkg/response"
)

type catalogService interface {
	SwitchProgram(ctx context.Context, session models.SessionState, to models.Program) (*service.ProgramSwitch, error)
	ViewCourse(ctx context.Context, session models.SessionState, program models.Program, code string) (*service.CourseView, error)
}

type courseLister interface {
	Current(ctx context.Context, session models.SessionState, program models.Program) (*service.FilterResult, error)
}

type courseUpdater interface {
	UpdateField(ctx context.Context, actor models.UserInfo, req service.UpdateRequest) (*service.UpdateResult, error)
}

// CatalogHandler serves program selection, course listing, viewing and editing.
type CatalogHandler struct {
	catalog     catalogService
	lister      courseLister
	updater     courseUpdater
	rootFolders map[models.Program]string
}

// NewCatalogHandler constructs the handler. rootFolders feeds GET /programs.
func NewCatalogHandler(catalog catalogService, lister courseLister, updater courseUpdater, rootFolders map[models.Program]string) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, lister: lister, updater: updater, rootFolders: rootFolders}
}

// Programs godoc
// @Summary List programs
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /programs [get]
func (h *CatalogHandler) Programs(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	programs := make([]dto.ProgramInfo, 0, len(models.Programs()))
	for _, p := range models.Programs() {
		programs = append(programs, dto.ProgramInfo{
			Program:       p,
			RootFolderURL: h.rootFolders[p],
			Active:        p == session.Program,
		})
	}
	response.JSON(c, http.StatusOK, programs)
}

// SwitchProgram godoc
// @Summary Switch active program
// @Description Moves the session to another program, clearing filters and reloading its table
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body dto.SwitchProgramRequest true "Program"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /session/program [post]
func (h *CatalogHandler) SwitchProgram(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.SwitchProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	program, err := models.ParseProgram(req.Program)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown program"))
		return
	}

	result, err := h.catalog.SwitchProgram(c.Request.Context(), session, program)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, result, result.Warnings)
}

// ListCourses godoc
// @Summary List courses of a program
// @Description Reloads the program table. For the session's own program the active filter is applied.
// @Tags Catalog
// @Produce json
// @Param program path string true "PharmD or PhD"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Security BearerAuth
// @Router /catalog/{program}/courses [get]
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	program, ok := programParam(c)
	if !ok {
		return
	}

	result, err := h.lister.Current(c.Request.Context(), session, program)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courseList(program, result))
}

// ViewCourse godoc
// @Summary View a course
// @Description Returns the course and its document folder link
// @Tags Catalog
// @Produce json
// @Param program path string true "PharmD or PhD"
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /catalog/{program}/courses/{code} [get]
func (h *CatalogHandler) ViewCourse(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	program, ok := programParam(c)
	if !ok {
		return
	}

	view, err := h.catalog.ViewCourse(c.Request.Context(), session, program, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, view, view.Warnings)
}

// UpdateCourse godoc
// @Summary Update one course field
// @Description Writes a single field together with the modifier stamp. On failure reload before retrying.
// @Tags Catalog
// @Accept json
// @Produce json
// @Param program path string true "PharmD or PhD"
// @Param code path string true "Course code"
// @Param payload body dto.UpdateFieldRequest true "Field and value"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Security BearerAuth
// @Router /catalog/{program}/courses/{code} [patch]
func (h *CatalogHandler) UpdateCourse(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	program, ok := programParam(c)
	if !ok {
		return
	}
	var req dto.UpdateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.updater.UpdateField(c.Request.Context(), session.Actor(), service.UpdateRequest{
		Program: program,
		Code:    c.Param("code"),
		Field:   req.Field,
		Value:   req.Value,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, result, result.Warnings)
}

func courseList(program models.Program, result *service.FilterResult) dto.CourseListResponse {
	res := result.Resolution
	out := dto.CourseListResponse{
		Program:  program,
		Outcome:  res.Outcome,
		Filter:   res.State,
		Courses:  res.Matches,
		Selected: res.Selected,
		Codes:    []string{},
	}
	if out.Courses == nil {
		out.Courses = []models.Course{}
	}
	if res.Outcome == models.OutcomeMultiple && res.Selected == nil {
		out.Options = res.Options()
	}
	if result.Table != nil {
		out.Codes = result.Table.Codes()
		out.TextColumns = result.Table.TextColumns
	}
	return out
}
