package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/service"
)

// CircuitBreaker rejects requests that would make paid calls once the daily
// cost ceiling is reached.
func CircuitBreaker(guard *service.CostGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := guard.Check(c.Request.Context()); err != nil {
			abort(c, http.StatusServiceUnavailable, "service_unavailable",
				"VibeLog has reached its daily AI budget. Please try again tomorrow.")
			return
		}
		c.Next()
	}
}
