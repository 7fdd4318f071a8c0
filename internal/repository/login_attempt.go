package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/karmasystem/auth-service/internal/model"
	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
)

type LoginAttemptRepository struct {
	db *gorm.DB
}

func NewLoginAttemptRepository(db *gorm.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Record appends one attempt to the audit trail
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *model.UserLoginAttempt) error {
	ctx = ctxutil.WithScope(ctx, "repository", "Record")

	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to record login attempt").
			Int("user_id", int(attempt.UserID)).
			Bool("success", attempt.Success).
			Err(err).
			Log()
		return err
	}

	logger.DebugWithContext(ctx, "Login attempt recorded").
		Int("user_id", int(attempt.UserID)).
		Bool("success", attempt.Success).
		Log()

	return nil
}

// CountRecentFailures counts failed attempts for a user since the cutoff
func (r *LoginAttemptRepository) CountRecentFailures(ctx context.Context, userID uint, since time.Time) (int64, error) {
	ctx = ctxutil.WithScope(ctx, "repository", "CountRecentFailures")

	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserLoginAttempt{}).
		Where("user_id = ? AND success = ? AND attempt_time >= ?", userID, false, since).
		Count(&count).Error
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to count login failures").
			Int("user_id", int(userID)).
			Err(err).
			Log()
		return 0, err
	}

	return count, nil
}

// LatestFailure returns the timestamp of the most recent failed attempt since
// the cutoff, or the zero time when none exists
func (r *LoginAttemptRepository) LatestFailure(ctx context.Context, userID uint, since time.Time) (time.Time, error) {
	ctx = ctxutil.WithScope(ctx, "repository", "LatestFailure")

	var attempt model.UserLoginAttempt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND success = ? AND attempt_time >= ?", userID, false, since).
		Order("attempt_time DESC").
		First(&attempt).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}

	return attempt.AttemptTime, nil
}

// DistinctFailureIPs counts how many different source addresses sit behind a
// user's recent failed attempts. High counts feed the suspicious-activity
// advisory.
func (r *LoginAttemptRepository) DistinctFailureIPs(ctx context.Context, userID uint, since time.Time) (int64, error) {
	ctx = ctxutil.WithScope(ctx, "repository", "DistinctFailureIPs")

	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserLoginAttempt{}).
		Where("user_id = ? AND success = ? AND attempt_time >= ?", userID, false, since).
		Distinct("ip_address").
		Count(&count).Error
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to count distinct IPs").
			Int("user_id", int(userID)).
			Err(err).
			Log()
		return 0, err
	}

	return count, nil
}

// PruneOlderThan drops attempts past the retention horizon
func (r *LoginAttemptRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ctxutil.WithScope(ctx, "repository", "PruneOlderThan")

	result := r.db.WithContext(ctx).
		Where("attempt_time < ?", cutoff).
		Delete(&model.UserLoginAttempt{})
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to prune login attempts").
			Err(result.Error).
			Log()
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		logger.InfoWithContext(ctx, "Pruned old login attempts").
			Int64("deleted", result.RowsAffected).
			Log()
	}

	return result.RowsAffected, nil
}
