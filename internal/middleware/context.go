package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/karmasystem/auth-service/internal/constants"
	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
)

// RequestContext stamps every request with an id, the client address and
// user agent, and logs start and completion. Downstream loggers pull these
// fields out of the context automatically.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := c.Request.Context()
		ctx = context.WithValue(ctx, ctxutil.RequestIDKey, requestID)
		ctx = context.WithValue(ctx, ctxutil.ClientIPKey, c.ClientIP())
		ctx = context.WithValue(ctx, ctxutil.UserAgentKey, c.GetHeader(constants.HeaderUserAgent))
		ctx = context.WithValue(ctx, ctxutil.StartTimeKey, time.Now())

		c.Request = c.Request.WithContext(ctx)
		c.Header(constants.HeaderXRequestID, requestID)

		logger.DebugWithContext(ctx, "Request started").
			String("method", c.Request.Method).
			String("path", c.Request.URL.Path).
			Log()

		c.Next()

		status := c.Writer.Status()
		entry := logger.InfoWithContext(ctx, "Request completed")
		if status >= http.StatusInternalServerError {
			entry = logger.ErrorWithContext(ctx, "Request completed")
		} else if status >= http.StatusBadRequest {
			entry = logger.WarnWithContext(ctx, "Request completed")
		}
		entry.
			String("method", c.Request.Method).
			String("path", c.Request.URL.Path).
			Int("status_code", status).
			Int("response_size", c.Writer.Size()).
			Duration("latency", ctxutil.GetDuration(ctx)).
			Log()
	}
}

// RequestTimeout bounds each request's context
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
