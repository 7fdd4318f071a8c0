package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/karmasystem/auth-service/config"
	domainerrors "github.com/karmasystem/auth-service/internal/errors"
	"github.com/karmasystem/auth-service/internal/model"
	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
)

// ProfileStore is the user persistence surface for profile operations.
// Satisfied by repository.UserRepository.
type ProfileStore interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetAll(ctx context.Context, limit, offset int, search string) ([]model.User, int64, error)
	UpdateProfile(ctx context.Context, id uint, firstName, lastName, username string) error
	UpdatePassword(ctx context.Context, id uint, hashedPassword string) error
}

// DeviceLister exposes a user's device history.
// Satisfied by repository.DeviceRepository.
type DeviceLister interface {
	ListByUser(ctx context.Context, userID uint) ([]model.UserDevice, error)
}

// UserService covers the authenticated self-service surface plus the admin
// listing
type UserService struct {
	users   ProfileStore
	devices DeviceLister
	cfg     config.SecurityConfig
}

func NewUserService(users ProfileStore, devices DeviceLister, cfg config.SecurityConfig) *UserService {
	return &UserService{
		users:   users,
		devices: devices,
		cfg:     cfg,
	}
}

func (s *UserService) GetProfile(ctx context.Context, userID uint) (*model.User, error) {
	ctx = ctxutil.WithScope(ctx, "user", "GetProfile")

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrUserNotFound
		}
		return nil, domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, firstName, lastName, username string) (*model.User, error) {
	ctx = ctxutil.WithScope(ctx, "user", "UpdateProfile")

	if err := s.users.UpdateProfile(ctx, userID, firstName, lastName, username); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrUserNotFound
		}
		return nil, domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	return s.GetProfile(ctx, userID)
}

// ChangePassword installs a new password after re-verifying the current one
func (s *UserService) ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword, confirm string) error {
	ctx = ctxutil.WithScope(ctx, "user", "ChangePassword")

	if newPassword != confirm {
		return domainerrors.ErrPasswordMismatch
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrUserNotFound
		}
		return domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)); err != nil {
		logger.WarnWithContext(ctx, "Password change rejected, wrong current password").
			Int("user_id", int(userID)).
			Log()
		return domainerrors.ErrIncorrectPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Password changed").
		Int("user_id", int(userID)).
		Log()

	return nil
}

// ListUsers is the admin-only paginated listing
func (s *UserService) ListUsers(ctx context.Context, limit, offset int, search string) ([]model.User, int64, error) {
	ctx = ctxutil.WithScope(ctx, "user", "ListUsers")

	users, total, err := s.users.GetAll(ctx, limit, offset, search)
	if err != nil {
		return nil, 0, domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	return users, total, nil
}

func (s *UserService) ListDevices(ctx context.Context, userID uint) ([]model.UserDevice, error) {
	ctx = ctxutil.WithScope(ctx, "user", "ListDevices")

	devices, err := s.devices.ListByUser(ctx, userID)
	if err != nil {
		return nil, domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	return devices, nil
}
