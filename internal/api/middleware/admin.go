package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/logger"
)

// AdminChecker reports whether a user may use admin endpoints.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(checker AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := checker.IsAdmin(c.Request.Context(), UserID(c))
		if err != nil {
			logger.CtxError(c.Request.Context(), "Admin check failed: %v", err)
			abort(c, http.StatusInternalServerError, "internal_error", "Something went wrong.")
			return
		}
		if !ok {
			abort(c, http.StatusForbidden, "forbidden", "Admin access required.")
			return
		}
		c.Next()
	}
}
