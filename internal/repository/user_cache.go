package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/karmasystem/auth-service/internal/model"
	"github.com/karmasystem/auth-service/pkg/cache"
	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
)

// userStore is the repository surface the cache decorates
type userStore interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetAll(ctx context.Context, limit, offset int, search string) ([]model.User, int64, error)
	Create(ctx context.Context, user *model.User) error
	UpdateProfile(ctx context.Context, id uint, firstName, lastName, username string) error
	UpdatePassword(ctx context.Context, id uint, hashedPassword string) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	MarkVerified(ctx context.Context, id uint) error
	SetTwoFactorSecret(ctx context.Context, id uint, secret string, backupCodes []string) error
	EnableTwoFactor(ctx context.Context, id uint) error
	DisableTwoFactor(ctx context.Context, id uint) error
	ReplaceBackupCodes(ctx context.Context, id uint, codes []string) error
	ConsumeBackupCode(ctx context.Context, id uint, code string) (bool, error)
}

// CachedUserRepository puts a short TTL in front of the per-request user load
// the auth middleware does. Writes that change auth-relevant state drop the
// cached entry, so a 2FA change, password update or deactivation is visible on
// the next request; token revocation is checked on every request regardless.
// TouchLastLogin deliberately does not invalidate, the login stamp is not
// consulted by the middleware and evicting on every login would defeat the
// cache.
type CachedUserRepository struct {
	userStore
	cache *cache.Cache
	ttl   time.Duration
}

func NewCachedUserRepository(users userStore, ttl time.Duration) *CachedUserRepository {
	return &CachedUserRepository{
		userStore: users,
		cache:     cache.NewCache(),
		ttl:       ttl,
	}
}

func (r *CachedUserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	key := strconv.FormatUint(uint64(id), 10)

	if cached, ok := r.cache.Get(key); ok {
		if user, ok := cached.(*model.User); ok {
			return user, nil
		}
	}

	user, err := r.userStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cache.Set(key, user, r.ttl)

	ctx = ctxutil.WithScope(ctx, "repository", "CachedUserRepository")
	logger.DebugWithContext(ctx, "User cache filled").
		Int("user_id", int(id)).
		Log()

	return user, nil
}

func (r *CachedUserRepository) UpdateProfile(ctx context.Context, id uint, firstName, lastName, username string) error {
	err := r.userStore.UpdateProfile(ctx, id, firstName, lastName, username)
	r.Invalidate(id)
	return err
}

func (r *CachedUserRepository) UpdatePassword(ctx context.Context, id uint, hashedPassword string) error {
	err := r.userStore.UpdatePassword(ctx, id, hashedPassword)
	r.Invalidate(id)
	return err
}

func (r *CachedUserRepository) MarkVerified(ctx context.Context, id uint) error {
	err := r.userStore.MarkVerified(ctx, id)
	r.Invalidate(id)
	return err
}

func (r *CachedUserRepository) SetTwoFactorSecret(ctx context.Context, id uint, secret string, backupCodes []string) error {
	err := r.userStore.SetTwoFactorSecret(ctx, id, secret, backupCodes)
	r.Invalidate(id)
	return err
}

func (r *CachedUserRepository) EnableTwoFactor(ctx context.Context, id uint) error {
	err := r.userStore.EnableTwoFactor(ctx, id)
	r.Invalidate(id)
	return err
}

func (r *CachedUserRepository) DisableTwoFactor(ctx context.Context, id uint) error {
	err := r.userStore.DisableTwoFactor(ctx, id)
	r.Invalidate(id)
	return err
}

func (r *CachedUserRepository) ReplaceBackupCodes(ctx context.Context, id uint, codes []string) error {
	err := r.userStore.ReplaceBackupCodes(ctx, id, codes)
	r.Invalidate(id)
	return err
}

func (r *CachedUserRepository) ConsumeBackupCode(ctx context.Context, id uint, code string) (bool, error) {
	used, err := r.userStore.ConsumeBackupCode(ctx, id, code)
	r.Invalidate(id)
	return used, err
}

// Invalidate drops the cached entry for a user
func (r *CachedUserRepository) Invalidate(id uint) {
	r.cache.Delete(strconv.FormatUint(uint64(id), 10))
}

// Close releases the underlying cache
func (r *CachedUserRepository) Close() {
	r.cache.Close()
}
