package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/karmasystem/auth-service/internal/model"
	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
)

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Upsert records a device sighting. A device is identified by the
// (user, user agent hash, ip hash) triple; repeats only bump last_seen.
func (r *DeviceRepository) Upsert(ctx context.Context, device *model.UserDevice) error {
	ctx = ctxutil.WithScope(ctx, "repository", "Upsert")

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "user_agent_hash"},
			{Name: "ip_hash"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_seen":  device.LastSeen,
			"updated_at": time.Now().UTC(),
		}),
	}).Create(device).Error

	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to upsert device").
			Int("user_id", int(device.UserID)).
			Err(err).
			Log()
		return err
	}

	logger.DebugWithContext(ctx, "Device sighting recorded").
		Int("user_id", int(device.UserID)).
		String("device_name", device.DeviceName).
		Log()

	return nil
}

// ListByUser returns a user's known devices, most recently seen first
func (r *DeviceRepository) ListByUser(ctx context.Context, userID uint) ([]model.UserDevice, error) {
	ctx = ctxutil.WithScope(ctx, "repository", "ListByUser")

	var devices []model.UserDevice
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_seen DESC").
		Find(&devices).Error
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to list devices").
			Int("user_id", int(userID)).
			Err(err).
			Log()
		return nil, err
	}

	return devices, nil
}

// CountByUser returns how many devices a user has been seen on
func (r *DeviceRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserDevice{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
