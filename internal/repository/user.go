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

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	ctx = ctxutil.WithScope(ctx, "repository", "GetByID")

	logger.DebugWithContext(ctx, "Getting user by ID").
		Int("user_id", int(id)).
		Log()

	if err := ctx.Err(); err != nil {
		logger.WarnWithContext(ctx, "Context cancelled before query").
			Err(err).
			Log()
		return nil, err
	}

	start := time.Now()
	var user model.User

	result := r.db.WithContext(ctx).Where("id = ?", id).First(&user)
	duration := time.Since(start)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to get user by ID").
			Int("user_id", int(id)).
			Duration("query_time", duration).
			Err(result.Error).
			Log()
		return nil, result.Error
	}

	logger.DebugWithContext(ctx, "User retrieved successfully").
		Int("user_id", int(id)).
		String("email", user.Email).
		Duration("query_time", duration).
		Log()

	return &user, nil
}

// GetByEmail finds user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx = ctxutil.WithScope(ctx, "repository", "GetByEmail")

	logger.DebugWithContext(ctx, "Getting user by email").
		String("email", email).
		Log()

	start := time.Now()
	var user model.User

	result := r.db.WithContext(ctx).Where("email = ?", email).First(&user)
	duration := time.Since(start)

	if result.Error != nil {
		logger.DebugWithContext(ctx, "Failed to get user by email").
			String("email", email).
			Duration("query_time", duration).
			Err(result.Error).
			Log()
		return nil, result.Error
	}

	return &user, nil
}

// GetAll lists users with pagination and an optional search filter
func (r *UserRepository) GetAll(ctx context.Context, limit, offset int, search string) ([]model.User, int64, error) {
	ctx = ctxutil.WithScope(ctx, "repository", "GetAll")

	logger.DebugWithContext(ctx, "Getting all users").
		Int("limit", limit).
		Int("offset", offset).
		String("search", search).
		Log()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	start := time.Now()
	var users []model.User
	var total int64

	query := r.db.WithContext(ctx).Model(&model.User{})

	if search != "" {
		searchPattern := "%" + search + "%"
		query = query.Where(
			"first_name ILIKE ? OR last_name ILIKE ? OR username ILIKE ? OR email ILIKE ?",
			searchPattern, searchPattern, searchPattern, searchPattern,
		)
	}

	if err := query.Count(&total).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to count total users").
			Err(err).
			Log()
		return nil, 0, err
	}

	if err := query.Order("id").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to fetch users").
			Int("limit", limit).
			Int("offset", offset).
			Duration("query_time", time.Since(start)).
			Err(err).
			Log()
		return nil, 0, err
	}

	logger.InfoWithContext(ctx, "Users retrieved successfully").
		Int64("total", total).
		Int("returned_count", len(users)).
		Duration("query_time", time.Since(start)).
		Log()

	return users, total, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx = ctxutil.WithScope(ctx, "repository", "Create")

	logger.DebugWithContext(ctx, "Creating new user").
		String("email", user.Email).
		Log()

	start := time.Now()
	result := r.db.WithContext(ctx).Create(user)
	duration := time.Since(start)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to create user").
			String("email", user.Email).
			Duration("query_time", duration).
			Err(result.Error).
			Log()
		return result.Error
	}

	logger.InfoWithContext(ctx, "User created successfully").
		String("email", user.Email).
		Int("user_id", int(user.ID)).
		Duration("query_time", duration).
		Log()

	return nil
}

// UpdateProfile updates mutable profile fields (never email or password)
func (r *UserRepository) UpdateProfile(ctx context.Context, id uint, firstName, lastName, username string) error {
	ctx = ctxutil.WithScope(ctx, "repository", "UpdateProfile")

	start := time.Now()
	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
		"username":   username,
	})

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to update user").
			Int("user_id", int(id)).
			Duration("query_time", time.Since(start)).
			Err(result.Error).
			Log()
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.InfoWithContext(ctx, "User updated successfully").
		Int("user_id", int(id)).
		Duration("query_time", time.Since(start)).
		Log()

	return nil
}

// UpdatePassword replaces the stored password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, hashedPassword string) error {
	ctx = ctxutil.WithScope(ctx, "repository", "UpdatePassword")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("password", hashedPassword)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to update password").
			Int("user_id", int(id)).
			Err(result.Error).
			Log()
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.InfoWithContext(ctx, "Password updated").
		Int("user_id", int(id)).
		Log()

	return nil
}

// TouchLastLogin stamps the most recent successful login
func (r *UserRepository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("last_login", at).Error
}

// MarkVerified flips the email verification flag
func (r *UserRepository) MarkVerified(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("is_verified", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetTwoFactorSecret stores a provisional secret without enabling enforcement.
// A pre-existing enabled secret is never overwritten here; the service layer
// gates that transition.
func (r *UserRepository) SetTwoFactorSecret(ctx context.Context, id uint, secret string, backupCodes []string) error {
	ctx = ctxutil.WithScope(ctx, "repository", "SetTwoFactorSecret")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"totp_secret":    secret,
		"backup_codes":   model.BackupCodeList(backupCodes),
		"is_2fa_enabled": false,
	})
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to store two-factor secret").
			Int("user_id", int(id)).
			Err(result.Error).
			Log()
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// EnableTwoFactor confirms a pending setup
func (r *UserRepository) EnableTwoFactor(ctx context.Context, id uint) error {
	ctx = ctxutil.WithScope(ctx, "repository", "EnableTwoFactor")

	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND totp_secret <> ''", id).
		Update("is_2fa_enabled", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.InfoWithContext(ctx, "Two-factor enabled").
		Int("user_id", int(id)).
		Log()

	return nil
}

// DisableTwoFactor clears all two-factor state
func (r *UserRepository) DisableTwoFactor(ctx context.Context, id uint) error {
	ctx = ctxutil.WithScope(ctx, "repository", "DisableTwoFactor")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"totp_secret":    "",
		"backup_codes":   nil,
		"is_2fa_enabled": false,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.InfoWithContext(ctx, "Two-factor disabled").
		Int("user_id", int(id)).
		Log()

	return nil
}

// ReplaceBackupCodes swaps the full backup code set under a row lock so two
// concurrent regenerations cannot interleave
func (r *UserRepository) ReplaceBackupCodes(ctx context.Context, id uint, codes []string) error {
	ctx = ctxutil.WithScope(ctx, "repository", "ReplaceBackupCodes")

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&user).Error; err != nil {
			return err
		}

		return tx.Model(&user).Update("backup_codes", model.BackupCodeList(codes)).Error
	})
}

// ConsumeBackupCode removes a single backup code if present. Returns true when
// the code existed and was burned. The row lock keeps a code from being spent
// twice by concurrent logins.
func (r *UserRepository) ConsumeBackupCode(ctx context.Context, id uint, code string) (bool, error) {
	ctx = ctxutil.WithScope(ctx, "repository", "ConsumeBackupCode")

	consumed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&user).Error; err != nil {
			return err
		}

		remaining := make([]string, 0, len(user.BackupCodes))
		for _, c := range user.BackupCodes {
			if !consumed && c == code {
				consumed = true
				continue
			}
			remaining = append(remaining, c)
		}

		if !consumed {
			return nil
		}

		return tx.Model(&user).Update("backup_codes", model.BackupCodeList(remaining)).Error
	})

	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to consume backup code").
			Int("user_id", int(id)).
			Err(err).
			Log()
		return false, err
	}

	if consumed {
		logger.InfoWithContext(ctx, "Backup code consumed").
			Int("user_id", int(id)).
			Log()
	}

	return consumed, nil
}
