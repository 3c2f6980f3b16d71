package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pidb/catalog-api/internal/models"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
	"github.com/pidb/catalog-api/pkg/response"
)

type assistantService interface {
	Ask(ctx context.Context, session models.SessionState, req models.AssistantQuery) (*models.AssistantAnswer, []string, error)
}

// AssistantHandler answers free-text catalog questions.
type AssistantHandler struct {
	service assistantService
}

func NewAssistantHandler(svc assistantService) *AssistantHandler {
	return &AssistantHandler{service: svc}
}

// Query godoc
// @Summary Ask the catalog assistant
// @Description Recognized aggregate questions are computed from the active program; anything else falls back to semantic retrieval. Retrieval problems are reported in data.error with status 200.
// @Tags Assistant
// @Accept json
// @Produce json
// @Param payload body models.AssistantQuery true "Question"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /assistant/query [post]
func (h *AssistantHandler) Query(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req models.AssistantQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query payload"))
		return
	}

	answer, warnings, err := h.service.Ask(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, answer, warnings)
}
