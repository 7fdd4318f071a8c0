package service

import (
	"context"
	"time"

	"github.com/karmasystem/auth-service/internal/constants"
	domainerrors "github.com/karmasystem/auth-service/internal/errors"
	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
)

// CounterStore is the atomic counter surface the limiter needs. Satisfied by
// pkg/redis.Client; tests inject an in-memory fake.
type CounterStore interface {
	IncrWithExpiry(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Delete(ctx context.Context, key string) error
}

// LimitResult reports the state of one identity's window
type LimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// RateLimiter throttles authentication attempts with a sliding counter per
// identity. The increment and expiry stamp happen atomically in the store,
// so concurrent requests from one client cannot lose updates.
type RateLimiter struct {
	store  CounterStore
	limit  int
	window time.Duration
}

func NewRateLimiter(store CounterStore, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		store:  store,
		limit:  limit,
		window: window,
	}
}

// Allow consumes one slot for the identity. When the window is exhausted it
// returns ErrRateLimited carrying the retry-after hint.
func (l *RateLimiter) Allow(ctx context.Context, identity string) (*LimitResult, error) {
	ctx = ctxutil.WithScope(ctx, "ratelimit", "Allow")

	key := constants.KeyRateLimit + identity
	count, remaining, err := l.store.IncrWithExpiry(ctx, key, l.window)
	if err != nil {
		// Counter store trouble must not lock everyone out; the lockout
		// table still guards brute force per account
		logger.ErrorWithContext(ctx, "Rate limit store unreachable, allowing request").
			String("identity", identity).
			Err(err).
			Log()
		return &LimitResult{Allowed: true, Limit: l.limit, Remaining: 0, ResetIn: l.window}, nil
	}

	result := &LimitResult{
		Limit:   l.limit,
		ResetIn: remaining,
	}

	if count > int64(l.limit) {
		logger.WarnWithContext(ctx, "Rate limit exceeded").
			String("identity", identity).
			Int64("count", count).
			Int("limit", l.limit).
			Duration("retry_after", remaining).
			Log()
		return result, domainerrors.WithRetryAfter(domainerrors.ErrRateLimited, remaining)
	}

	result.Allowed = true
	result.Remaining = l.limit - int(count)

	return result, nil
}

// Reset clears the window for an identity, called after successful
// authentication
func (l *RateLimiter) Reset(ctx context.Context, identity string) {
	ctx = ctxutil.WithScope(ctx, "ratelimit", "Reset")

	if err := l.store.Delete(ctx, constants.KeyRateLimit+identity); err != nil {
		logger.WarnWithContext(ctx, "Failed to reset rate limit window").
			String("identity", identity).
			Err(err).
			Log()
	}
}
