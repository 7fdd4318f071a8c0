package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/karmasystem/auth-service/internal/constants"
	"github.com/karmasystem/auth-service/internal/service"
)

// memCounter is an in-memory CounterStore
type memCounter struct {
	counts map[string]int64
}

func newMemCounter() *memCounter {
	return &memCounter{counts: make(map[string]int64)}
}

func (s *memCounter) IncrWithExpiry(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.counts[key]++
	return s.counts[key], window, nil
}

func (s *memCounter) Delete(_ context.Context, key string) error {
	delete(s.counts, key)
	return nil
}

func rateLimitedRouter(limit int) *gin.Engine {
	limiter := service.NewRateLimiter(newMemCounter(), limit, time.Minute)
	r := gin.New()
	r.GET("/", RateLimit(limiter), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimitHeaders(t *testing.T) {
	r := rateLimitedRouter(5)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get(constants.HeaderRateLimitLimit))
	assert.Equal(t, "4", w.Header().Get(constants.HeaderRateLimitLeft))
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRateLimitReset))
}

func TestRateLimitExhaustion(t *testing.T) {
	r := rateLimitedRouter(2)

	var w *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRetryAfter))
	assert.Contains(t, w.Body.String(), "retry_after")
}
