package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/karmasystem/auth-service/config"
	"github.com/karmasystem/auth-service/internal/constants"
	domainerrors "github.com/karmasystem/auth-service/internal/errors"
)

// Claims is the full claim set carried by every issued token. Access tokens
// carry the 2fa_verified flag, refresh tokens additionally carry a family id
// shared across the whole rotation chain.
type Claims struct {
	jwt.RegisteredClaims
	TokenType         string `json:"type"`
	Scope             string `json:"scope,omitempty"`
	TwoFactorVerified bool   `json:"2fa_verified"`
	FamilyID          string `json:"family_id,omitempty"`
	UserAgentHash     string `json:"ua,omitempty"`
	IPHash            string `json:"ip,omitempty"`
}

// UserID parses the subject claim back into the credential store's key space
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, domainerrors.ErrTokenMalformed
	}
	return uint(id), nil
}

// RemainingValidity reports how long the token stays valid from now
func (c *Claims) RemainingValidity(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := c.ExpiresAt.Time.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Binding carries digests of the client's user agent and source address.
// Raw values never enter a token.
type Binding struct {
	UserAgentHash string
	IPHash        string
}

// NewBinding hashes the raw request attributes
func NewBinding(userAgent, ip string) Binding {
	return Binding{
		UserAgentHash: digest(userAgent),
		IPHash:        digest(ip),
	}
}

func digest(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// TokenService signs and verifies all token types with a single shared
// HMAC-SHA256 secret
type TokenService struct {
	secret []byte
	cfg    config.JWTConfig
	now    func() time.Time
}

func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{
		secret: []byte(cfg.Secret),
		cfg:    cfg,
		now:    time.Now,
	}
}

// WithClock replaces the time source, used by tests
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// jitteredTTL spreads expiries inside +/- jitter around the base TTL so a
// burst of logins does not come back for re-auth in the same instant
func (s *TokenService) jitteredTTL(base, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int63n(int64(2*jitter))) - jitter
	return base + offset
}

func (s *TokenService) issue(userID uint, tokenType, scope string, ttl time.Duration, twoFAVerified bool, familyID string, binding Binding) (string, *Claims, error) {
	now := s.now().UTC()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		TokenType:         tokenType,
		Scope:             scope,
		TwoFactorVerified: twoFAVerified,
		FamilyID:          familyID,
		UserAgentHash:     binding.UserAgentHash,
		IPHash:            binding.IPHash,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	return signed, claims, nil
}

// IssueAccess mints a full access token
func (s *TokenService) IssueAccess(userID uint, twoFAVerified bool, binding Binding) (string, *Claims, error) {
	ttl := s.jitteredTTL(s.cfg.AccessTokenTTL, s.cfg.AccessTokenJitter)
	return s.issue(userID, constants.TokenTypeAccess, constants.ScopeAccess, ttl, twoFAVerified, "", binding)
}

// IssueRefresh mints a refresh token inside the given family. An empty
// familyID starts a new family.
func (s *TokenService) IssueRefresh(userID uint, familyID string, binding Binding) (string, *Claims, error) {
	if familyID == "" {
		familyID = uuid.NewString()
	}
	ttl := s.jitteredTTL(s.cfg.RefreshTokenTTL, s.cfg.RefreshTokenJitter)
	return s.issue(userID, constants.TokenTypeRefresh, constants.ScopeAccess, ttl, true, familyID, binding)
}

// IssueStepUp mints the narrow token handed out after password verification
// when the account still owes a second factor. It authorizes only the
// two-factor completion endpoint.
func (s *TokenService) IssueStepUp(userID uint, binding Binding) (string, *Claims, error) {
	return s.issue(userID, constants.TokenTypeAccess, constants.ScopeTwoFactor, s.cfg.StepUpTokenTTL, false, "", binding)
}

// IssuePasswordReset mints a single-purpose verification token
func (s *TokenService) IssuePasswordReset(userID uint) (string, *Claims, error) {
	return s.issue(userID, constants.TokenTypeVerification, constants.ScopePasswordReset, s.cfg.ResetTokenTTL, false, "", Binding{})
}

// IssueEmailVerify mints the email confirmation token sent on registration
func (s *TokenService) IssueEmailVerify(userID uint) (string, *Claims, error) {
	return s.issue(userID, constants.TokenTypeVerification, constants.ScopeEmailVerify, s.cfg.VerifyTokenTTL, false, "", Binding{})
}

// Decode verifies the signature, expiry and issuer, and returns the claims.
// Revocation is checked separately; a decoded token is not yet trusted.
func (s *TokenService) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domainerrors.ErrTokenMalformed
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.cfg.Issuer), jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domainerrors.WrapError(domainerrors.ErrTokenExpired, err)
		default:
			return nil, domainerrors.WrapError(domainerrors.ErrTokenMalformed, err)
		}
	}

	if !token.Valid {
		return nil, domainerrors.ErrTokenMalformed
	}

	if claims.ID == "" || claims.Subject == "" || claims.TokenType == "" {
		return nil, domainerrors.ErrTokenMissingClaim
	}

	return claims, nil
}

// DecodeExpecting decodes and additionally enforces the token type
func (s *TokenService) DecodeExpecting(tokenString, tokenType string) (*Claims, error) {
	claims, err := s.Decode(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, domainerrors.ErrTokenWrongType
	}
	return claims, nil
}
