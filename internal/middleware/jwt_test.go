package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/karmasystem/auth-service/config"
	"github.com/karmasystem/auth-service/internal/constants"
	"github.com/karmasystem/auth-service/internal/model"
	"github.com/karmasystem/auth-service/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memStore is an in-memory RevocationStore
type memStore struct {
	entries map[string]string
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]string)}
}

func (s *memStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	s.entries[key] = value
	return nil
}

func (s *memStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.entries[key]
	return ok, nil
}

// fakeUsers is an in-memory UserLoader
type fakeUsers struct {
	users map[uint]*model.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uint) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type authFixture struct {
	tokens    *service.TokenService
	blacklist *service.BlacklistService
	users     *fakeUsers
	mw        *AuthMiddleware
}

func newAuthFixture() *authFixture {
	cfg := config.JWTConfig{
		Secret:          "0123456789abcdef0123456789abcdef",
		Issuer:          "karmasystem-test",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		StepUpTokenTTL:  10 * time.Minute,
		ResetTokenTTL:   time.Hour,
		VerifyTokenTTL:  time.Hour,
	}

	tokens := service.NewTokenService(cfg)
	blacklist := service.NewBlacklistService(newMemStore())
	users := &fakeUsers{users: map[uint]*model.User{
		1: {Model: gorm.Model{ID: 1}, Email: "ana@example.com", Role: model.RoleUser, IsActive: true},
		2: {Model: gorm.Model{ID: 2}, Email: "bob@example.com", Role: model.RoleAdmin, IsActive: true},
		3: {Model: gorm.Model{ID: 3}, Email: "eve@example.com", Role: model.RoleUser, IsActive: false},
		4: {Model: gorm.Model{ID: 4}, Email: "mia@example.com", Role: model.RoleUser, IsActive: true, Is2FAEnabled: true, TOTPSecret: "SECRET"},
	}}

	return &authFixture{
		tokens:    tokens,
		blacklist: blacklist,
		users:     users,
		mw:        NewAuthMiddleware(tokens, blacklist, users),
	}
}

func (f *authFixture) router() *gin.Engine {
	r := gin.New()
	r.GET("/protected", f.mw.RequireAuth(), func(c *gin.Context) {
		id, _ := CurrentUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id})
	})
	r.GET("/admin", f.mw.RequireAuth(), f.mw.RequireRole(model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.POST("/stepup", f.mw.RequireStepUp(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doRequest(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(constants.HeaderAuthorization, "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuthMissingHeader(t *testing.T) {
	f := newAuthFixture()
	r := f.router()

	w := doRequest(r, http.MethodGet, "/protected", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, constants.AuthSchemeBearer, w.Header().Get(constants.HeaderWWWAuth))
}

func TestRequireAuthValidToken(t *testing.T) {
	f := newAuthFixture()
	r := f.router()

	token, _, err := f.tokens.IssueAccess(1, true, service.Binding{})
	require.NoError(t, err)

	w := doRequest(r, http.MethodGet, "/protected", token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":1`)
}

func TestRequireAuthRevokedToken(t *testing.T) {
	f := newAuthFixture()
	r := f.router()

	token, claims, err := f.tokens.IssueAccess(1, true, service.Binding{})
	require.NoError(t, err)
	require.NoError(t, f.blacklist.RevokeToken(context.Background(), claims))

	w := doRequest(r, http.MethodGet, "/protected", token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_REVOKED")
}

func TestRequireAuthRejectsStepUpToken(t *testing.T) {
	f := newAuthFixture()
	r := f.router()

	token, _, err := f.tokens.IssueStepUp(1, service.Binding{})
	require.NoError(t, err)

	w := doRequest(r, http.MethodGet, "/protected", token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_WRONG_TYPE")
}

func TestRequireAuthRejectsRefreshToken(t *testing.T) {
	f := newAuthFixture()
	r := f.router()

	token, _, err := f.tokens.IssueRefresh(1, "", service.Binding{})
	require.NoError(t, err)

	w := doRequest(r, http.MethodGet, "/protected", token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_WRONG_TYPE")
}

func TestRequireAuthInactiveUser(t *testing.T) {
	f := newAuthFixture()
	r := f.router()

	token, _, err := f.tokens.IssueAccess(3, true, service.Binding{})
	require.NoError(t, err)

	w := doRequest(r, http.MethodGet, "/protected", token)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "USER_INACTIVE")
}

func TestRequireAuthUnverifiedTwoFactor(t *testing.T) {
	f := newAuthFixture()
	r := f.router()

	// Access-scoped token without the verification flag, for an account that
	// has two-factor enabled
	token, _, err := f.tokens.IssueAccess(4, false, service.Binding{})
	require.NoError(t, err)

	w := doRequest(r, http.MethodGet, "/protected", token)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "true", w.Header().Get(constants.HeaderX2FARequired))
	assert.Contains(t, w.Body.String(), "TWO_FACTOR_REQUIRED")
}

func TestRequireStepUp(t *testing.T) {
	f := newAuthFixture()
	r := f.router()

	stepUp, _, err := f.tokens.IssueStepUp(4, service.Binding{})
	require.NoError(t, err)

	w := doRequest(r, http.MethodPost, "/stepup", stepUp)
	assert.Equal(t, http.StatusOK, w.Code)

	// A full access token must not pass the step-up gate
	access, _, err := f.tokens.IssueAccess(4, true, service.Binding{})
	require.NoError(t, err)

	w = doRequest(r, http.MethodPost, "/stepup", access)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_WRONG_TYPE")
}

func TestRequireRole(t *testing.T) {
	f := newAuthFixture()
	r := f.router()

	adminToken, _, err := f.tokens.IssueAccess(2, true, service.Binding{})
	require.NoError(t, err)
	userToken, _, err := f.tokens.IssueAccess(1, true, service.Binding{})
	require.NoError(t, err)

	w := doRequest(r, http.MethodGet, "/admin", adminToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/admin", userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
