package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/karmasystem/auth-service/internal/constants"
	domainerrors "github.com/karmasystem/auth-service/internal/errors"
	"github.com/karmasystem/auth-service/internal/service"
)

// RateLimit throttles by client address using the shared counter store, so
// the window holds across replicas. Exhausted windows answer 429 with a
// Retry-After hint.
func RateLimit(limiter *service.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.Allow(c.Request.Context(), c.ClientIP())

		c.Header(constants.HeaderRateLimitLimit, strconv.Itoa(result.Limit))
		c.Header(constants.HeaderRateLimitLeft, strconv.Itoa(result.Remaining))
		c.Header(constants.HeaderRateLimitReset, strconv.FormatInt(time.Now().Add(result.ResetIn).Unix(), 10))

		if err != nil {
			retryAfter := result.ResetIn
			var domainErr *domainerrors.DomainError
			if errors.As(err, &domainErr) && domainErr.RetryAfter > 0 {
				retryAfter = domainErr.RetryAfter
			}

			c.Header(constants.HeaderRetryAfter, strconv.Itoa(int(retryAfter.Seconds())+1))
			c.JSON(http.StatusTooManyRequests, constants.BuildErrorResponse(
				constants.MsgTooManyRequests,
				gin.H{"retry_after": int(retryAfter.Seconds()) + 1},
			))
			c.Abort()
			return
		}

		c.Next()
	}
}
