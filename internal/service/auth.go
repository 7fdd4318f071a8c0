package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/karmasystem/auth-service/config"
	"github.com/karmasystem/auth-service/internal/constants"
	domainerrors "github.com/karmasystem/auth-service/internal/errors"
	"github.com/karmasystem/auth-service/internal/model"
	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
)

// CredentialStore is the user persistence surface the orchestrator needs.
// Satisfied by repository.UserRepository.
type CredentialStore interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	UpdatePassword(ctx context.Context, id uint, hashedPassword string) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	MarkVerified(ctx context.Context, id uint) error
}

// DeviceStore records device sightings on fully-verified logins.
// Satisfied by repository.DeviceRepository.
type DeviceStore interface {
	Upsert(ctx context.Context, device *model.UserDevice) error
	CountByUser(ctx context.Context, userID uint) (int64, error)
}

// Notifier delivers out-of-band messages to users. The default
// implementation only logs; real delivery is a deployment concern.
type Notifier interface {
	SendEmailVerification(ctx context.Context, email, token string)
	SendPasswordReset(ctx context.Context, email, token string)
	SendSecurityAlert(ctx context.Context, email, message string)
}

// RequestMeta carries the client attributes every auth decision wants
type RequestMeta struct {
	IP        string
	UserAgent string
}

// LoginResult is the outcome of a login, step-up completion or refresh
type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	ExpiresIn     int64
	Requires2FA   bool
	Is2FAVerified bool
	User          *model.User
}

// AuthService drives the login state machine
// Unauthenticated -> PasswordVerified -> (StepUpRequired) -> FullyAuthenticated
// composing the codec, blacklist, lockout and two-factor engines.
type AuthService struct {
	users     CredentialStore
	devices   DeviceStore
	tokens    *TokenService
	blacklist *BlacklistService
	twoFactor *TwoFactorService
	lockout   *LockoutService
	limiter   *RateLimiter
	notifier  Notifier
	cfg       *config.Config
	now       func() time.Time
}

func NewAuthService(
	users CredentialStore,
	devices DeviceStore,
	tokens *TokenService,
	blacklist *BlacklistService,
	twoFactor *TwoFactorService,
	lockout *LockoutService,
	limiter *RateLimiter,
	notifier Notifier,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		users:     users,
		devices:   devices,
		tokens:    tokens,
		blacklist: blacklist,
		twoFactor: twoFactor,
		lockout:   lockout,
		limiter:   limiter,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithClock replaces the time source, used by tests
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// dummyHash absorbs a bcrypt comparison for unknown identities so response
// timing does not reveal whether an email exists
var dummyHash = []byte("$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW")

// Register creates a new account and hands back the email verification token
func (s *AuthService) Register(ctx context.Context, firstName, lastName, username, email, password string) (*model.User, error) {
	ctx = ctxutil.WithScope(ctx, "auth", "Register")

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, domainerrors.ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.Security.BcryptCost)
	if err != nil {
		return nil, domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	user := &model.User{
		FirstName: firstName,
		LastName:  lastName,
		Username:  username,
		Email:     email,
		Password:  string(hash),
		Role:      model.RoleUser,
		IsActive:  true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domainerrors.ErrEmailExists
		}
		return nil, domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	verifyToken, _, err := s.tokens.IssueEmailVerify(user.ID)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to issue verification token").
			Int("user_id", int(user.ID)).
			Err(err).
			Log()
	} else {
		s.notifier.SendEmailVerification(ctx, user.Email, verifyToken)
	}

	logger.InfoWithContext(ctx, "User registered").
		Int("user_id", int(user.ID)).
		String("email", user.Email).
		Log()

	return user, nil
}

// Login runs Unauthenticated -> PasswordVerified and, depending on the
// account's two-factor state and whether a code came along, either finishes
// the sequence or returns a step-up token.
func (s *AuthService) Login(ctx context.Context, email, password, code string, meta RequestMeta) (*LoginResult, error) {
	ctx = ctxutil.WithScope(ctx, "auth", "Login")

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		// Burn the same hashing cost as a real comparison
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		logger.WarnWithContext(ctx, "Login attempt for unknown identity").
			String("ip", meta.IP).
			Log()
		return nil, domainerrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, domainerrors.ErrUserInactive
	}

	if err := s.lockout.CheckLocked(ctx, user.ID); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.lockout.RecordAttempt(ctx, user.ID, meta.IP, meta.UserAgent, false)
		if s.lockout.SuspiciousActivity(ctx, user.ID) {
			s.notifier.SendSecurityAlert(ctx, user.Email, "failed login attempts from multiple addresses")
		}
		logger.WarnWithContext(ctx, "Login failed, wrong password").
			Int("user_id", int(user.ID)).
			String("ip", meta.IP).
			Log()
		return nil, domainerrors.ErrInvalidCredentials
	}

	// PasswordVerified. Step up when the account owes a second factor.
	if user.Is2FAEnabled {
		if code == "" {
			return s.issueStepUp(ctx, user, meta)
		}

		if err := s.twoFactor.VerifyCode(ctx, user, code); err != nil {
			s.lockout.RecordAttempt(ctx, user.ID, meta.IP, meta.UserAgent, false)
			return nil, err
		}
	}

	return s.completeLogin(ctx, user, meta)
}

// CompleteTwoFactor runs StepUpRequired -> FullyAuthenticated. The step-up
// claims must already be decoded and blacklist-checked by the caller. The
// step-up token burns on success.
func (s *AuthService) CompleteTwoFactor(ctx context.Context, stepUp *Claims, code string, meta RequestMeta) (*LoginResult, error) {
	ctx = ctxutil.WithScope(ctx, "auth", "CompleteTwoFactor")

	userID, err := stepUp.UserID()
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, domainerrors.ErrUnauthorized
	}
	if !user.IsActive {
		return nil, domainerrors.ErrUserInactive
	}

	if err := s.lockout.CheckLocked(ctx, user.ID); err != nil {
		return nil, err
	}

	if err := s.twoFactor.VerifyCode(ctx, user, code); err != nil {
		s.lockout.RecordAttempt(ctx, user.ID, meta.IP, meta.UserAgent, false)
		return nil, err
	}

	// Single use: the step-up token dies the moment it succeeds
	if err := s.blacklist.RevokeToken(ctx, stepUp); err != nil {
		return nil, err
	}

	return s.completeLogin(ctx, user, meta)
}

// issueStepUp hands back the narrow token that only authorizes two-factor
// completion
func (s *AuthService) issueStepUp(ctx context.Context, user *model.User, meta RequestMeta) (*LoginResult, error) {
	token, claims, err := s.tokens.IssueStepUp(user.ID, NewBinding(meta.UserAgent, meta.IP))
	if err != nil {
		return nil, err
	}

	logger.InfoWithContext(ctx, "Step-up required").
		Int("user_id", int(user.ID)).
		Log()

	return &LoginResult{
		AccessToken:   token,
		ExpiresIn:     int64(claims.RemainingValidity(s.now().UTC()).Seconds()),
		Requires2FA:   true,
		Is2FAVerified: false,
		User:          user,
	}, nil
}

// completeLogin finishes FullyAuthenticated: full token pair, audit trail,
// device sighting, counter reset
func (s *AuthService) completeLogin(ctx context.Context, user *model.User, meta RequestMeta) (*LoginResult, error) {
	binding := NewBinding(meta.UserAgent, meta.IP)

	accessToken, accessClaims, err := s.tokens.IssueAccess(user.ID, true, binding)
	if err != nil {
		return nil, err
	}

	refreshToken, _, err := s.tokens.IssueRefresh(user.ID, "", binding)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	s.lockout.RecordAttempt(ctx, user.ID, meta.IP, meta.UserAgent, true)
	s.limiter.Reset(ctx, meta.IP)

	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		logger.WarnWithContext(ctx, "Failed to stamp last login").
			Int("user_id", int(user.ID)).
			Err(err).
			Log()
	}

	s.recordDevice(ctx, user, binding, meta, now)

	logger.InfoWithContext(ctx, "Login completed").
		Int("user_id", int(user.ID)).
		Bool("two_factor", user.Is2FAEnabled).
		Log()

	return &LoginResult{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		ExpiresIn:     int64(accessClaims.RemainingValidity(now).Seconds()),
		Is2FAVerified: true,
		User:          user,
	}, nil
}

func (s *AuthService) recordDevice(ctx context.Context, user *model.User, binding Binding, meta RequestMeta, seenAt time.Time) {
	known, countErr := s.devices.CountByUser(ctx, user.ID)

	device := &model.UserDevice{
		UserID:        user.ID,
		UserAgentHash: binding.UserAgentHash,
		IPHash:        binding.IPHash,
		DeviceName:    deviceName(meta.UserAgent),
		LastSeen:      seenAt,
	}

	if err := s.devices.Upsert(ctx, device); err != nil {
		// Device history is advisory, never fail a login over it
		logger.WarnWithContext(ctx, "Failed to record device").
			Int("user_id", int(user.ID)).
			Err(err).
			Log()
		return
	}

	// Alert on sign-ins from a device the account has never used. The very
	// first device is the enrollment login, not news.
	if countErr != nil || known == 0 {
		return
	}
	after, err := s.devices.CountByUser(ctx, user.ID)
	if err == nil && after > known {
		s.notifier.SendSecurityAlert(ctx, user.Email, "sign-in from a new device")
		logger.InfoWithContext(ctx, "New device recorded").
			Int("user_id", int(user.ID)).
			Log()
	}
}

// Refresh validates a refresh token and mints a fresh access token. Prior
// two-factor verification carries over: a refresh token only ever exists
// after a fully verified login, so the new access token keeps 2fa_verified.
// Reuse of an already-rotated token burns the whole family.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*LoginResult, error) {
	ctx = ctxutil.WithScope(ctx, "auth", "Refresh")

	claims, err := s.tokens.DecodeExpecting(refreshToken, constants.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	if err := s.blacklist.Check(ctx, claims); err != nil {
		if errors.Is(err, domainerrors.ErrTokenRevoked) && claims.FamilyID != "" {
			// Replay of a rotated token: someone is holding a stale copy,
			// kill the entire chain
			logger.WarnWithContext(ctx, "Refresh token replay detected").
				String("family_id", claims.FamilyID).
				Log()
			_ = s.blacklist.RevokeFamily(ctx, claims.FamilyID, claims.RemainingValidity(s.now().UTC()))
		}
		return nil, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, domainerrors.ErrUnauthorized
	}
	if !user.IsActive {
		return nil, domainerrors.ErrUserInactive
	}

	binding := NewBinding(meta.UserAgent, meta.IP)

	accessToken, accessClaims, err := s.tokens.IssueAccess(user.ID, claims.TwoFactorVerified, binding)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{
		AccessToken:   accessToken,
		ExpiresIn:     int64(accessClaims.RemainingValidity(s.now().UTC()).Seconds()),
		Is2FAVerified: claims.TwoFactorVerified,
		User:          user,
	}

	if s.cfg.JWT.RotateRefreshTokens {
		newRefresh, _, err := s.tokens.IssueRefresh(user.ID, claims.FamilyID, binding)
		if err != nil {
			return nil, err
		}
		if err := s.blacklist.RevokeToken(ctx, claims); err != nil {
			return nil, err
		}
		result.RefreshToken = newRefresh
	}

	logger.InfoWithContext(ctx, "Token refreshed").
		Int("user_id", int(user.ID)).
		Bool("rotated", s.cfg.JWT.RotateRefreshTokens).
		Log()

	return result, nil
}

// Logout blacklists the presented access token, and the refresh token plus
// its whole family when one is supplied
func (s *AuthService) Logout(ctx context.Context, access *Claims, refreshToken string) error {
	ctx = ctxutil.WithScope(ctx, "auth", "Logout")

	if err := s.blacklist.RevokeToken(ctx, access); err != nil {
		return err
	}

	if refreshToken != "" {
		claims, err := s.tokens.DecodeExpecting(refreshToken, constants.TokenTypeRefresh)
		if err == nil && claims.Subject == access.Subject {
			if err := s.blacklist.RevokeToken(ctx, claims); err != nil {
				return err
			}
			remaining := claims.RemainingValidity(s.now().UTC())
			if err := s.blacklist.RevokeFamily(ctx, claims.FamilyID, remaining); err != nil {
				return err
			}
		}
	}

	logger.InfoWithContext(ctx, "Logout completed").
		String("subject", access.Subject).
		Log()

	return nil
}

// RequestPasswordReset issues a reset token when the account exists. The
// response is identical either way so the endpoint cannot be used to probe
// for registered addresses.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) {
	ctx = ctxutil.WithScope(ctx, "auth", "RequestPasswordReset")

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		logger.InfoWithContext(ctx, "Password reset requested for unknown address").Log()
		return
	}
	if !user.IsActive {
		return
	}

	token, _, err := s.tokens.IssuePasswordReset(user.ID)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to issue reset token").
			Int("user_id", int(user.ID)).
			Err(err).
			Log()
		return
	}

	s.notifier.SendPasswordReset(ctx, user.Email, token)

	logger.InfoWithContext(ctx, "Password reset token issued").
		Int("user_id", int(user.ID)).
		Log()
}

// ConfirmPasswordReset redeems a reset token exactly once and installs the
// new password
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword, confirm string) error {
	ctx = ctxutil.WithScope(ctx, "auth", "ConfirmPasswordReset")

	if newPassword != confirm {
		return domainerrors.ErrPasswordMismatch
	}

	claims, err := s.tokens.DecodeExpecting(token, constants.TokenTypeVerification)
	if err != nil {
		return err
	}
	if claims.Scope != constants.ScopePasswordReset {
		return domainerrors.ErrTokenWrongType
	}

	if err := s.blacklist.Check(ctx, claims); err != nil {
		return err
	}

	userID, err := claims.UserID()
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.Security.BcryptCost)
	if err != nil {
		return domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrUserNotFound
		}
		return domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	// Consume the token; a second redemption sees it revoked
	if err := s.blacklist.RevokeToken(ctx, claims); err != nil {
		return err
	}

	logger.InfoWithContext(ctx, "Password reset completed").
		Int("user_id", int(userID)).
		Log()

	return nil
}

// VerifyEmail redeems an email confirmation token exactly once
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	ctx = ctxutil.WithScope(ctx, "auth", "VerifyEmail")

	claims, err := s.tokens.DecodeExpecting(token, constants.TokenTypeVerification)
	if err != nil {
		return err
	}
	if claims.Scope != constants.ScopeEmailVerify {
		return domainerrors.ErrTokenWrongType
	}

	if err := s.blacklist.Check(ctx, claims); err != nil {
		return err
	}

	userID, err := claims.UserID()
	if err != nil {
		return err
	}

	if err := s.users.MarkVerified(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrUserNotFound
		}
		return domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	if err := s.blacklist.RevokeToken(ctx, claims); err != nil {
		return err
	}

	logger.InfoWithContext(ctx, "Email verified").
		Int("user_id", int(userID)).
		Log()

	return nil
}

// deviceName derives a short human label from the user agent string
func deviceName(userAgent string) string {
	if userAgent == "" {
		return "unknown device"
	}
	if len(userAgent) > 120 {
		return userAgent[:120]
	}
	return userAgent
}
