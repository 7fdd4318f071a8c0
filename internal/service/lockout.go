package service

import (
	"context"
	"time"

	"github.com/karmasystem/auth-service/config"
	domainerrors "github.com/karmasystem/auth-service/internal/errors"
	"github.com/karmasystem/auth-service/internal/model"
	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
)

// suspiciousIPThreshold flags accounts whose recent failures arrive from this
// many distinct addresses or more
const suspiciousIPThreshold = 3

// AttemptLog is the audit surface the lockout policy reads and writes.
// Satisfied by repository.LoginAttemptRepository.
type AttemptLog interface {
	Record(ctx context.Context, attempt *model.UserLoginAttempt) error
	CountRecentFailures(ctx context.Context, userID uint, since time.Time) (int64, error)
	LatestFailure(ctx context.Context, userID uint, since time.Time) (time.Time, error)
	DistinctFailureIPs(ctx context.Context, userID uint, since time.Time) (int64, error)
}

// LockoutService enforces the per-account brute force policy: once an account
// collects too many failed attempts inside the window, further attempts are
// rejected until the lockout period elapses.
type LockoutService struct {
	attempts AttemptLog
	cfg      config.SecurityConfig
	now      func() time.Time
}

func NewLockoutService(attempts AttemptLog, cfg config.SecurityConfig) *LockoutService {
	return &LockoutService{
		attempts: attempts,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock replaces the time source, used by tests
func (s *LockoutService) WithClock(now func() time.Time) *LockoutService {
	s.now = now
	return s
}

// CheckLocked rejects the attempt when the account is inside an active
// lockout period. Returns ErrAccountLocked carrying the retry-after hint.
func (s *LockoutService) CheckLocked(ctx context.Context, userID uint) error {
	ctx = ctxutil.WithScope(ctx, "lockout", "CheckLocked")

	now := s.now().UTC()
	since := now.Add(-s.cfg.FailedWindow)

	failures, err := s.attempts.CountRecentFailures(ctx, userID, since)
	if err != nil {
		// Audit trail trouble should not block logins outright
		logger.ErrorWithContext(ctx, "Failed to read login attempts, skipping lockout check").
			Int("user_id", int(userID)).
			Err(err).
			Log()
		return nil
	}

	if failures < int64(s.cfg.MaxFailedAttempts) {
		return nil
	}

	latest, err := s.attempts.LatestFailure(ctx, userID, since)
	if err != nil || latest.IsZero() {
		return nil
	}

	lockedUntil := latest.Add(s.cfg.LockoutDuration)
	if now.Before(lockedUntil) {
		retryAfter := lockedUntil.Sub(now)
		logger.WarnWithContext(ctx, "Account locked out").
			Int("user_id", int(userID)).
			Int64("recent_failures", failures).
			Duration("retry_after", retryAfter).
			Log()
		return domainerrors.WithRetryAfter(domainerrors.ErrAccountLocked, retryAfter)
	}

	return nil
}

// RecordAttempt appends to the audit trail. Best effort: losing an attempt
// record must never fail the login itself.
func (s *LockoutService) RecordAttempt(ctx context.Context, userID uint, ip, userAgent string, success bool) {
	ctx = ctxutil.WithScope(ctx, "lockout", "RecordAttempt")

	attempt := &model.UserLoginAttempt{
		UserID:      userID,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Success:     success,
		AttemptTime: s.now().UTC(),
	}

	if err := s.attempts.Record(ctx, attempt); err != nil {
		logger.ErrorWithContext(ctx, "Failed to record login attempt").
			Int("user_id", int(userID)).
			Bool("success", success).
			Err(err).
			Log()
	}
}

// SuspiciousActivity reports whether recent failures for the account arrive
// from unusually many distinct addresses. Advisory only, never a hard block.
func (s *LockoutService) SuspiciousActivity(ctx context.Context, userID uint) bool {
	ctx = ctxutil.WithScope(ctx, "lockout", "SuspiciousActivity")

	since := s.now().UTC().Add(-s.cfg.FailedWindow)
	distinct, err := s.attempts.DistinctFailureIPs(ctx, userID, since)
	if err != nil {
		return false
	}

	if distinct >= suspiciousIPThreshold {
		logger.WarnWithContext(ctx, "Suspicious login activity detected").
			Int("user_id", int(userID)).
			Int64("distinct_ips", distinct).
			Log()
		return true
	}

	return false
}
