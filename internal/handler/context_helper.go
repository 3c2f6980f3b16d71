package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pidb/catalog-api/internal/middleware"
	"github.com/pidb/catalog-api/internal/models"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
	"github.com/pidb/catalog-api/pkg/response"
)

// sessionFromContext writes 401 and returns false when no session is attached.
func sessionFromContext(c *gin.Context) (models.SessionState, bool) {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.SessionState{}, false
	}
	return *session, true
}

// programParam parses the :program path segment, writing 400 on failure.
func programParam(c *gin.Context) (models.Program, bool) {
	program, err := models.ParseProgram(c.Param("program"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown program"))
		return "", false
	}
	return program, true
}
