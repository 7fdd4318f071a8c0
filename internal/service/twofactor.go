package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/karmasystem/auth-service/config"
	domainerrors "github.com/karmasystem/auth-service/internal/errors"
	"github.com/karmasystem/auth-service/internal/model"
	ctxutil "github.com/karmasystem/auth-service/pkg/context"
	"github.com/karmasystem/auth-service/pkg/logger"
	"github.com/karmasystem/auth-service/pkg/totp"
)

const backupCodeBytes = 4 // 8 hex chars per code

// TwoFactorStore is the slice of the credential store the engine mutates.
// Satisfied by repository.UserRepository.
type TwoFactorStore interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	SetTwoFactorSecret(ctx context.Context, id uint, secret string, backupCodes []string) error
	EnableTwoFactor(ctx context.Context, id uint) error
	DisableTwoFactor(ctx context.Context, id uint) error
	ReplaceBackupCodes(ctx context.Context, id uint, codes []string) error
	ConsumeBackupCode(ctx context.Context, id uint, code string) (bool, error)
}

// TwoFactorSetup is what the setup transition hands back to the client: the
// shared secret, its provisioning URI for authenticator apps, and the fresh
// backup code set. Shown exactly once.
type TwoFactorSetup struct {
	Secret      string
	QRCodeURL   string
	BackupCodes []string
}

// TwoFactorStatus summarizes a user's position in the state machine
type TwoFactorStatus struct {
	Enabled         bool
	PendingSetup    bool
	BackupCodesLeft int
}

// TwoFactorService drives the per-user state machine
// Disabled -> PendingSetup -> Enabled
type TwoFactorService struct {
	users TwoFactorStore
	cfg   config.TwoFactorConfig
	now   func() time.Time
}

func NewTwoFactorService(users TwoFactorStore, cfg config.TwoFactorConfig) *TwoFactorService {
	return &TwoFactorService{
		users: users,
		cfg:   cfg,
		now:   time.Now,
	}
}

// WithClock replaces the time source, used by tests
func (s *TwoFactorService) WithClock(now func() time.Time) *TwoFactorService {
	s.now = now
	return s
}

// Setup moves Disabled -> PendingSetup: a fresh secret and backup code set
// are stored, but enforcement stays off until Enable confirms possession.
// Re-running setup before confirmation replaces the provisional secret.
func (s *TwoFactorService) Setup(ctx context.Context, userID uint) (*TwoFactorSetup, error) {
	ctx = ctxutil.WithScope(ctx, "twofactor", "Setup")

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, domainerrors.WrapError(domainerrors.ErrUserNotFound, err)
	}

	if user.Is2FAEnabled {
		return nil, domainerrors.ErrTwoFactorEnabled
	}

	secret, err := totp.GenerateSecret()
	if err != nil {
		return nil, domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	codes, err := s.generateBackupCodes()
	if err != nil {
		return nil, domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	if err := s.users.SetTwoFactorSecret(ctx, userID, secret, codes); err != nil {
		return nil, domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Two-factor setup started").
		Int("user_id", int(userID)).
		Log()

	return &TwoFactorSetup{
		Secret:      secret,
		QRCodeURL:   totp.ProvisioningURI(s.cfg.Issuer, user.Email, secret, s.cfg.Digits, s.cfg.PeriodSeconds),
		BackupCodes: codes,
	}, nil
}

// Enable moves PendingSetup -> Enabled once the caller proves possession of
// the secret with a current code
func (s *TwoFactorService) Enable(ctx context.Context, userID uint, code string) error {
	ctx = ctxutil.WithScope(ctx, "twofactor", "Enable")

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domainerrors.WrapError(domainerrors.ErrUserNotFound, err)
	}

	if user.Is2FAEnabled {
		return domainerrors.ErrTwoFactorEnabled
	}
	if user.TOTPSecret == "" {
		return domainerrors.ErrTwoFactorNotSetUp
	}

	if !s.verifyTOTP(user.TOTPSecret, code) {
		logger.WarnWithContext(ctx, "Two-factor enable rejected, invalid code").
			Int("user_id", int(userID)).
			Log()
		return domainerrors.ErrInvalidTwoFactorCode
	}

	if err := s.users.EnableTwoFactor(ctx, userID); err != nil {
		return domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Two-factor enabled").
		Int("user_id", int(userID)).
		Log()

	return nil
}

// VerifyCode checks a login-time challenge for an Enabled user. Accepts a
// current TOTP code within the skew window, or burns an unused backup code.
// The error never reveals which kind failed.
func (s *TwoFactorService) VerifyCode(ctx context.Context, user *model.User, code string) error {
	ctx = ctxutil.WithScope(ctx, "twofactor", "VerifyCode")

	if !user.Is2FAEnabled || user.TOTPSecret == "" {
		return domainerrors.ErrTwoFactorNotSetUp
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return domainerrors.ErrInvalidTwoFactorCode
	}

	if s.verifyTOTP(user.TOTPSecret, code) {
		return nil
	}

	consumed, err := s.users.ConsumeBackupCode(ctx, user.ID, strings.ToUpper(code))
	if err != nil {
		return domainerrors.WrapError(domainerrors.ErrInternal, err)
	}
	if consumed {
		logger.InfoWithContext(ctx, "Login verified with backup code").
			Int("user_id", int(user.ID)).
			Log()
		return nil
	}

	logger.WarnWithContext(ctx, "Two-factor verification failed").
		Int("user_id", int(user.ID)).
		Log()

	return domainerrors.ErrInvalidTwoFactorCode
}

// Disable moves any state back to Disabled. Requires password re-entry, and
// for an Enabled account additionally a valid TOTP or backup code. Secret and
// backup codes clear together.
func (s *TwoFactorService) Disable(ctx context.Context, userID uint, password, code string) error {
	ctx = ctxutil.WithScope(ctx, "twofactor", "Disable")

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domainerrors.WrapError(domainerrors.ErrUserNotFound, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return domainerrors.ErrIncorrectPassword
	}

	if user.Is2FAEnabled {
		if err := s.VerifyCode(ctx, user, code); err != nil {
			return err
		}
	} else if user.TOTPSecret == "" {
		return domainerrors.ErrTwoFactorNotSetUp
	}

	if err := s.users.DisableTwoFactor(ctx, userID); err != nil {
		return domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Two-factor disabled").
		Int("user_id", int(userID)).
		Log()

	return nil
}

// RegenerateBackupCodes replaces the whole set. Every previously issued code
// stops working the moment this returns.
func (s *TwoFactorService) RegenerateBackupCodes(ctx context.Context, userID uint) ([]string, error) {
	ctx = ctxutil.WithScope(ctx, "twofactor", "RegenerateBackupCodes")

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, domainerrors.WrapError(domainerrors.ErrUserNotFound, err)
	}

	if !user.Is2FAEnabled {
		return nil, domainerrors.ErrTwoFactorNotSetUp
	}

	codes, err := s.generateBackupCodes()
	if err != nil {
		return nil, domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	if err := s.users.ReplaceBackupCodes(ctx, userID, codes); err != nil {
		return nil, domainerrors.WrapError(domainerrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Backup codes regenerated").
		Int("user_id", int(userID)).
		Int("count", len(codes)).
		Log()

	return codes, nil
}

// Status reports the user's current state without mutating anything
func (s *TwoFactorService) Status(ctx context.Context, userID uint) (*TwoFactorStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, domainerrors.WrapError(domainerrors.ErrUserNotFound, err)
	}

	return &TwoFactorStatus{
		Enabled:         user.Is2FAEnabled,
		PendingSetup:    user.TwoFactorPending(),
		BackupCodesLeft: len(user.BackupCodes),
	}, nil
}

func (s *TwoFactorService) verifyTOTP(secret, code string) bool {
	return totp.Verify(secret, code, s.now().UTC(), s.cfg.Digits, s.cfg.PeriodSeconds, s.cfg.SkewSteps)
}

func (s *TwoFactorService) generateBackupCodes() ([]string, error) {
	codes := make([]string, s.cfg.BackupCodeCount)
	for i := range codes {
		raw := make([]byte, backupCodeBytes)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		codes[i] = strings.ToUpper(hex.EncodeToString(raw))
	}
	return codes, nil
}
