package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vibelog/backend/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// quietRoutes are polled by health checks and only logged at debug level.
var quietRoutes = map[string]bool{
	"/health": true,
}

// LoggerMiddleware tags every request with a request id and writes one
// access line when the handler chain returns. The line carries the route
// template rather than the raw path so vibelog ids do not explode cardinality.
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := inboundRequestID(c.GetHeader(requestIDHeader))
		c.Header(requestIDHeader, requestID)
		ctx := c.Request.Context()
		if log != nil {
			ctx = log.WithContext(ctx)
		}
		c.Request = c.Request.WithContext(logger.WithFields(ctx, logger.Fields{
			logger.FieldRequestID: requestID,
			logger.FieldComponent: "api",
		}))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		// Auth runs inside c.Next and may have added user_id to the request context.
		ctx = c.Request.Context()
		entry := logger.With(logger.Fields{
			logger.FieldMethod:     c.Request.Method,
			logger.FieldRoute:      route,
			logger.FieldStatus:     status,
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
			logger.FieldSize:       c.Writer.Size(),
			logger.FieldClientIP:   c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.With(logger.Fields{"errors": c.Errors.String()})
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error(ctx, "%s %s -> %d", c.Request.Method, route, status)
		case status == http.StatusTooManyRequests:
			entry.With(logger.Fields{"retry_after": c.Writer.Header().Get("Retry-After")}).
				Warn(ctx, "%s %s throttled", c.Request.Method, route)
		case status >= http.StatusBadRequest:
			entry.Warn(ctx, "%s %s -> %d", c.Request.Method, route, status)
		case quietRoutes[route]:
			entry.Debug(ctx, "%s %s -> %d", c.Request.Method, route, status)
		default:
			entry.Info(ctx, "%s %s -> %d", c.Request.Method, route, status)
		}
	}
}

// inboundRequestID keeps a caller-supplied id when it is short and printable.
func inboundRequestID(id string) string {
	if id == "" || len(id) > 64 {
		return uuid.NewString()
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return uuid.NewString()
		}
	}
	return id
}
