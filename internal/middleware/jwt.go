package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/karmasystem/auth-service/internal/constants"
	domainerrors "github.com/karmasystem/auth-service/internal/errors"
	"github.com/karmasystem/auth-service/internal/model"
	"github.com/karmasystem/auth-service/internal/service"
	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
)

// Gin context keys set by the auth middleware
const (
	GinKeyUserID = "user_id"
	GinKeyUser   = "user"
	GinKeyClaims = "claims"
)

// UserLoader resolves the subject of a token back to a live user record.
// Satisfied by repository.UserRepository.
type UserLoader interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
}

type AuthMiddleware struct {
	tokens    *service.TokenService
	blacklist *service.BlacklistService
	users     UserLoader
}

func NewAuthMiddleware(tokens *service.TokenService, blacklist *service.BlacklistService, users UserLoader) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:    tokens,
		blacklist: blacklist,
		users:     users,
	}
}

// bearerToken extracts the token from the Authorization header
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader(constants.HeaderAuthorization)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != constants.AuthSchemeBearer {
		return "", false
	}

	return parts[1], true
}

func (m *AuthMiddleware) abort(c *gin.Context, err error) {
	domainErr := domainerrors.GetDomainError(err)
	status := domainerrors.ToHTTPStatus(err)

	if status == http.StatusUnauthorized {
		c.Header(constants.HeaderWWWAuth, constants.AuthSchemeBearer)
	}

	message := constants.MsgUnauthorized
	details := any(nil)
	if domainErr != nil {
		message = domainErr.Message
		details = gin.H{"code": domainErr.Code}
	}

	c.JSON(status, constants.BuildErrorResponse(message, details))
	c.Abort()
}

// authenticate decodes and blacklist-checks the bearer token. The blacklist
// failure path is closed: when the store is unreachable the token is treated
// as revoked.
func (m *AuthMiddleware) authenticate(c *gin.Context) (*service.Claims, bool) {
	token, ok := bearerToken(c)
	if !ok {
		logger.WarnWithContext(c.Request.Context(), "Missing or malformed Authorization header").
			String("path", c.Request.URL.Path).
			Log()
		m.abort(c, domainerrors.ErrUnauthorized)
		return nil, false
	}

	claims, err := m.tokens.DecodeExpecting(token, constants.TokenTypeAccess)
	if err != nil {
		logger.WarnWithContext(c.Request.Context(), "Token rejected").
			String("path", c.Request.URL.Path).
			Err(err).
			Log()
		m.abort(c, err)
		return nil, false
	}

	if err := m.blacklist.Check(c.Request.Context(), claims); err != nil {
		m.abort(c, err)
		return nil, false
	}

	return claims, true
}

// RequireAuth admits only fully-scoped access tokens. Accounts with
// two-factor enabled must present a verified token; a step-up token does not
// pass here.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.authenticate(c)
		if !ok {
			return
		}

		if claims.Scope != constants.ScopeAccess {
			m.abort(c, domainerrors.ErrTokenWrongType)
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			m.abort(c, err)
			return
		}

		user, err := m.users.GetByID(c.Request.Context(), userID)
		if err != nil {
			logger.WarnWithContext(c.Request.Context(), "Token subject no longer exists").
				Int("user_id", int(userID)).
				Log()
			m.abort(c, domainerrors.ErrUnauthorized)
			return
		}

		if !user.IsActive {
			m.abort(c, domainerrors.ErrUserInactive)
			return
		}

		if user.Is2FAEnabled && !claims.TwoFactorVerified {
			c.Header(constants.HeaderX2FARequired, "true")
			m.abort(c, domainerrors.ErrTwoFactorRequired)
			return
		}

		ctx := ctxutil.WithUserID(c.Request.Context(), user.ID)
		ctx = ctxutil.WithValue(ctx, ctxutil.UserLoginKey, user.Email)
		c.Request = c.Request.WithContext(ctx)

		c.Set(GinKeyUserID, user.ID)
		c.Set(GinKeyUser, user)
		c.Set(GinKeyClaims, claims)

		c.Next()
	}
}

// RequireStepUp admits only the narrow step-up token issued mid-login. Full
// access tokens are rejected so the completion endpoint cannot be replayed
// with an ordinary session.
func (m *AuthMiddleware) RequireStepUp() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.authenticate(c)
		if !ok {
			return
		}

		if claims.Scope != constants.ScopeTwoFactor || claims.TwoFactorVerified {
			m.abort(c, domainerrors.ErrTokenWrongType)
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			m.abort(c, err)
			return
		}

		ctx := ctxutil.WithUserID(c.Request.Context(), userID)
		c.Request = c.Request.WithContext(ctx)

		c.Set(GinKeyUserID, userID)
		c.Set(GinKeyClaims, claims)

		c.Next()
	}
}

// RequireRole gates a route on the authenticated user's role. Must run after
// RequireAuth.
func (m *AuthMiddleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(GinKeyUser)
		if !exists {
			m.abort(c, domainerrors.ErrUnauthorized)
			return
		}

		user, ok := value.(*model.User)
		if !ok || user.Role != role {
			logger.WarnWithContext(c.Request.Context(), "Role check failed").
				String("required_role", role).
				Log()
			c.JSON(http.StatusForbidden, constants.BuildErrorResponse(constants.MsgForbidden, nil))
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentUser pulls the authenticated user set by RequireAuth
func CurrentUser(c *gin.Context) (*model.User, bool) {
	value, exists := c.Get(GinKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := value.(*model.User)
	return user, ok
}

// CurrentClaims pulls the decoded token claims set by the auth middleware
func CurrentClaims(c *gin.Context) (*service.Claims, bool) {
	value, exists := c.Get(GinKeyClaims)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*service.Claims)
	return claims, ok
}

// CurrentUserID pulls the authenticated subject id
func CurrentUserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get(GinKeyUserID)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}
