package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/pidb/catalog-api/internal/service"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
	"github.com/pidb/catalog-api/pkg/response"
)

// RequireEditor lets the request through only when the session user may edit
// the catalog. It must run after Session.
func RequireEditor(policy service.EditPolicy) gin.HandlerFunc {
	if policy == nil {
		policy = service.AllowAuthenticated{}
	}
	return func(c *gin.Context) {
		session, ok := CurrentSession(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !policy.CanEdit(session.Actor()) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "user may not edit the catalog"))
			c.Abort()
			return
		}
		c.Next()
	}
}
