package service

import (
	"context"
	"time"

	"github.com/karmasystem/auth-service/internal/constants"
	domainerrors "github.com/karmasystem/auth-service/internal/errors"
	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
)

// revocationTTLBuffer keeps a blacklist entry alive slightly past the
// token's own expiry to absorb clock drift between nodes
const revocationTTLBuffer = time.Hour

// RevocationStore is the key-value surface the blacklist needs. Satisfied by
// pkg/redis.Client.
type RevocationStore interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// BlacklistService records revoked token ids and token families. Entries
// self-prune: every write carries a TTL covering the token's remaining
// validity, so store size stays bounded by outstanding tokens.
//
// Failure policy is fail closed. If the store cannot be reached, every token
// counts as revoked; accepting a possibly-revoked token is the worse failure.
type BlacklistService struct {
	store RevocationStore
	now   func() time.Time
}

func NewBlacklistService(store RevocationStore) *BlacklistService {
	return &BlacklistService{
		store: store,
		now:   time.Now,
	}
}

// WithClock replaces the time source, used by tests
func (s *BlacklistService) WithClock(now func() time.Time) *BlacklistService {
	s.now = now
	return s
}

// RevokeToken blacklists a single token for its remaining validity
func (s *BlacklistService) RevokeToken(ctx context.Context, claims *Claims) error {
	ctx = ctxutil.WithScope(ctx, "blacklist", "RevokeToken")

	ttl := claims.RemainingValidity(s.now().UTC())
	if ttl == 0 {
		// Already expired, the codec rejects it on its own
		return nil
	}

	key := constants.KeyTokenBlacklist + claims.ID
	if err := s.store.Set(ctx, key, "revoked", ttl+revocationTTLBuffer); err != nil {
		logger.ErrorWithContext(ctx, "Failed to write revocation").
			String("jti", claims.ID).
			Err(err).
			Log()
		return domainerrors.WrapError(domainerrors.ErrRevocationStoreUnavailable, err)
	}

	logger.InfoWithContext(ctx, "Token revoked").
		String("jti", claims.ID).
		String("token_type", claims.TokenType).
		Duration("ttl", ttl).
		Log()

	return nil
}

// RevokeFamily blacklists an entire refresh rotation chain. Used on replay
// detection and on logout with a refresh token.
func (s *BlacklistService) RevokeFamily(ctx context.Context, familyID string, ttl time.Duration) error {
	ctx = ctxutil.WithScope(ctx, "blacklist", "RevokeFamily")

	if familyID == "" || ttl <= 0 {
		return nil
	}

	key := constants.KeyTokenFamily + familyID
	if err := s.store.Set(ctx, key, "revoked", ttl+revocationTTLBuffer); err != nil {
		logger.ErrorWithContext(ctx, "Failed to revoke token family").
			String("family_id", familyID).
			Err(err).
			Log()
		return domainerrors.WrapError(domainerrors.ErrRevocationStoreUnavailable, err)
	}

	logger.WarnWithContext(ctx, "Token family revoked").
		String("family_id", familyID).
		Duration("ttl", ttl).
		Log()

	return nil
}

// Check rejects a token whose jti or family has been revoked. A store error
// comes back as ErrRevocationStoreUnavailable, which callers surface exactly
// like a revoked token.
func (s *BlacklistService) Check(ctx context.Context, claims *Claims) error {
	ctx = ctxutil.WithScope(ctx, "blacklist", "Check")

	revoked, err := s.store.Exists(ctx, constants.KeyTokenBlacklist+claims.ID)
	if err != nil {
		logger.ErrorWithContext(ctx, "Revocation store unreachable, failing closed").
			String("jti", claims.ID).
			Err(err).
			Log()
		return domainerrors.WrapError(domainerrors.ErrRevocationStoreUnavailable, err)
	}
	if revoked {
		return domainerrors.ErrTokenRevoked
	}

	if claims.FamilyID != "" {
		revoked, err = s.store.Exists(ctx, constants.KeyTokenFamily+claims.FamilyID)
		if err != nil {
			logger.ErrorWithContext(ctx, "Revocation store unreachable, failing closed").
				String("family_id", claims.FamilyID).
				Err(err).
				Log()
			return domainerrors.WrapError(domainerrors.ErrRevocationStoreUnavailable, err)
		}
		if revoked {
			return domainerrors.ErrTokenRevoked
		}
	}

	return nil
}
