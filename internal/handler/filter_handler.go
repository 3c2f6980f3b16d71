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

type filterService interface {
	Apply(ctx context.Context, session models.SessionState, req dto.FilterRequest) (*service.FilterResult, error)
	Select(ctx context.Context, session models.SessionState, code string) (*service.FilterResult, error)
	Clear(ctx context.Context, session models.SessionState) (*service.FilterResult, error)
}

// FilterHandler manages the session's single active filter.
type FilterHandler struct {
	service filterService
}

func NewFilterHandler(svc filterService) *FilterHandler {
	return &FilterHandler{service: svc}
}

// SetFilter godoc
// @Summary Set the active filter
// @Description Exactly one of code, title or keyword-on-field. Several matches require POST /catalog/filters/select.
// @Tags Filters
// @Accept json
// @Produce json
// @Param payload body dto.FilterRequest true "Filter"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /catalog/filters [post]
func (h *FilterHandler) SetFilter(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid filter payload"))
		return
	}

	result, err := h.service.Apply(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, courseList(session.Program, result), result.Warnings)
}

// SelectCourse godoc
// @Summary Select one of several matches
// @Tags Filters
// @Accept json
// @Produce json
// @Param payload body dto.SelectCourseRequest true "Course code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /catalog/filters/select [post]
func (h *FilterHandler) SelectCourse(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.SelectCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.service.Select(c.Request.Context(), session, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, courseList(session.Program, result), result.Warnings)
}

// ClearFilters godoc
// @Summary Clear filters and selection
// @Tags Filters
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /catalog/filters [delete]
func (h *FilterHandler) ClearFilters(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	result, err := h.service.Clear(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, courseList(session.Program, result), result.Warnings)
}
