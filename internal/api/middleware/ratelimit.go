package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/service"
)

const maxAnonymousIDLen = 64

// anonymousKey identifies an unauthenticated caller by the client-provided
// anonymous id, falling back to the client IP.
func anonymousKey(c *gin.Context) string {
	if id := c.GetHeader("X-Anonymous-Id"); id != "" && len(id) <= maxAnonymousIDLen {
		return "id:" + id
	}
	return "ip:" + c.ClientIP()
}

// RateLimit applies the fixed-window limit of endpoint. It must run after auth.
func RateLimit(limiter *service.RateLimiter, endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		caller := service.Caller{UserID: UserID(c), AnonymousKey: anonymousKey(c)}

		decision, err := limiter.Allow(ctx, endpoint, caller)
		if err != nil {
			logger.CtxError(ctx, "Rate limiter unavailable for %s, allowing request: %v", endpoint, err)
		}
		if decision.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}
		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(decision.RetryAfter))
			abort(c, http.StatusTooManyRequests, "rate_limited",
				fmt.Sprintf("Too many requests. Try again in %d seconds.", decision.RetryAfter))
			return
		}
		c.Next()
	}
}
