package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domainerrors "github.com/karmasystem/auth-service/internal/errors"
	"github.com/karmasystem/auth-service/pkg/totp"
)

func newTestTwoFactorService(users *fakeUserStore, at time.Time) *TwoFactorService {
	return NewTwoFactorService(users, testConfig().TwoFactor).WithClock(fixedClock(at))
}

// currentCode mints the TOTP code valid at the given instant
func currentCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	cfg := testConfig().TwoFactor
	code, err := totp.Code(secret, at, cfg.Digits, cfg.PeriodSeconds)
	if err != nil {
		t.Fatalf("totp.Code: %v", err)
	}
	return code
}

func TestTwoFactorSetupStartsPending(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	svc := newTestTwoFactorService(users, testEpoch)
	account := seedUser(users, "a@example.com", "Secret1pw")

	setup, err := svc.Setup(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	if setup.Secret == "" {
		t.Error("expected a secret")
	}
	if !strings.HasPrefix(setup.QRCodeURL, "otpauth://totp/") {
		t.Errorf("provisioning uri = %q", setup.QRCodeURL)
	}
	if len(setup.BackupCodes) != testConfig().TwoFactor.BackupCodeCount {
		t.Errorf("backup codes = %d, want %d", len(setup.BackupCodes), testConfig().TwoFactor.BackupCodeCount)
	}
	for _, code := range setup.BackupCodes {
		if len(code) != 8 {
			t.Errorf("backup code %q should be 8 chars", code)
		}
	}

	status, err := svc.Status(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Enabled || !status.PendingSetup {
		t.Errorf("status = %+v, want pending", status)
	}
}

func TestTwoFactorSetupRegeneratesProvisionalSecret(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	svc := newTestTwoFactorService(users, testEpoch)
	account := seedUser(users, "a@example.com", "Secret1pw")
	ctx := context.Background()

	first, err := svc.Setup(ctx, account.ID)
	if err != nil {
		t.Fatalf("first Setup: %v", err)
	}
	second, err := svc.Setup(ctx, account.ID)
	if err != nil {
		t.Fatalf("second Setup: %v", err)
	}

	if first.Secret == second.Secret {
		t.Error("re-running setup must replace the provisional secret")
	}
	if account.TOTPSecret != second.Secret {
		t.Error("stored secret is not the latest one")
	}
}

func TestTwoFactorEnable(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	svc := newTestTwoFactorService(users, testEpoch)
	account := seedUser(users, "a@example.com", "Secret1pw")
	ctx := context.Background()

	// No setup yet
	if err := svc.Enable(ctx, account.ID, "000000"); !errors.Is(err, domainerrors.ErrTwoFactorNotSetUp) {
		t.Fatalf("err = %v, want ErrTwoFactorNotSetUp", err)
	}

	setup, err := svc.Setup(ctx, account.ID)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	// Wrong code keeps the state machine in PendingSetup
	if err := svc.Enable(ctx, account.ID, "000000"); !errors.Is(err, domainerrors.ErrInvalidTwoFactorCode) {
		t.Fatalf("err = %v, want ErrInvalidTwoFactorCode", err)
	}
	if account.Is2FAEnabled {
		t.Fatal("invalid code must not enable")
	}

	if err := svc.Enable(ctx, account.ID, currentCode(t, setup.Secret, testEpoch)); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !account.Is2FAEnabled {
		t.Fatal("expected enabled state")
	}

	// Enabling twice is rejected, as is re-running setup
	if err := svc.Enable(ctx, account.ID, currentCode(t, setup.Secret, testEpoch)); !errors.Is(err, domainerrors.ErrTwoFactorEnabled) {
		t.Errorf("err = %v, want ErrTwoFactorEnabled", err)
	}
	if _, err := svc.Setup(ctx, account.ID); !errors.Is(err, domainerrors.ErrTwoFactorEnabled) {
		t.Errorf("Setup err = %v, want ErrTwoFactorEnabled", err)
	}
}

func TestTwoFactorVerifyCode(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	svc := newTestTwoFactorService(users, testEpoch)
	account := seedUser(users, "a@example.com", "Secret1pw")
	ctx := context.Background()

	setup, err := svc.Setup(ctx, account.ID)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := svc.Enable(ctx, account.ID, currentCode(t, setup.Secret, testEpoch)); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	if err := svc.VerifyCode(ctx, account, currentCode(t, setup.Secret, testEpoch)); err != nil {
		t.Errorf("valid TOTP rejected: %v", err)
	}
	if err := svc.VerifyCode(ctx, account, "000000"); !errors.Is(err, domainerrors.ErrInvalidTwoFactorCode) {
		t.Errorf("err = %v, want ErrInvalidTwoFactorCode", err)
	}
	if err := svc.VerifyCode(ctx, account, ""); !errors.Is(err, domainerrors.ErrInvalidTwoFactorCode) {
		t.Errorf("empty code err = %v, want ErrInvalidTwoFactorCode", err)
	}
}

func TestTwoFactorVerifyCodeAcceptsSkew(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	svc := newTestTwoFactorService(users, testEpoch)
	account := seedUser(users, "a@example.com", "Secret1pw")
	ctx := context.Background()

	setup, err := svc.Setup(ctx, account.ID)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := svc.Enable(ctx, account.ID, currentCode(t, setup.Secret, testEpoch)); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	period := time.Duration(testConfig().TwoFactor.PeriodSeconds) * time.Second

	// One step behind and ahead are inside the configured skew
	if err := svc.VerifyCode(ctx, account, currentCode(t, setup.Secret, testEpoch.Add(-period))); err != nil {
		t.Errorf("previous-step code rejected: %v", err)
	}
	if err := svc.VerifyCode(ctx, account, currentCode(t, setup.Secret, testEpoch.Add(period))); err != nil {
		t.Errorf("next-step code rejected: %v", err)
	}

	// Two steps out is not
	stale := currentCode(t, setup.Secret, testEpoch.Add(-2*period))
	if err := svc.VerifyCode(ctx, account, stale); !errors.Is(err, domainerrors.ErrInvalidTwoFactorCode) {
		t.Errorf("two-step-old code err = %v, want ErrInvalidTwoFactorCode", err)
	}
}

func TestTwoFactorBackupCodeSingleUse(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	svc := newTestTwoFactorService(users, testEpoch)
	account := seedUser(users, "a@example.com", "Secret1pw")
	ctx := context.Background()

	setup, err := svc.Setup(ctx, account.ID)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := svc.Enable(ctx, account.ID, currentCode(t, setup.Secret, testEpoch)); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	backup := setup.BackupCodes[0]
	if err := svc.VerifyCode(ctx, account, backup); err != nil {
		t.Fatalf("backup code rejected: %v", err)
	}

	// The same code again is burned
	if err := svc.VerifyCode(ctx, account, backup); !errors.Is(err, domainerrors.ErrInvalidTwoFactorCode) {
		t.Errorf("burned code err = %v, want ErrInvalidTwoFactorCode", err)
	}

	// Backup codes match case-insensitively
	if err := svc.VerifyCode(ctx, account, strings.ToLower(setup.BackupCodes[1])); err != nil {
		t.Errorf("lowercase backup code rejected: %v", err)
	}

	status, err := svc.Status(ctx, account.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if want := testConfig().TwoFactor.BackupCodeCount - 2; status.BackupCodesLeft != want {
		t.Errorf("backup codes left = %d, want %d", status.BackupCodesLeft, want)
	}
}

func TestTwoFactorRegenerateInvalidatesOldCodes(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	svc := newTestTwoFactorService(users, testEpoch)
	account := seedUser(users, "a@example.com", "Secret1pw")
	ctx := context.Background()

	// Requires enabled state
	if _, err := svc.RegenerateBackupCodes(ctx, account.ID); !errors.Is(err, domainerrors.ErrTwoFactorNotSetUp) {
		t.Fatalf("err = %v, want ErrTwoFactorNotSetUp", err)
	}

	setup, err := svc.Setup(ctx, account.ID)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := svc.Enable(ctx, account.ID, currentCode(t, setup.Secret, testEpoch)); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	fresh, err := svc.RegenerateBackupCodes(ctx, account.ID)
	if err != nil {
		t.Fatalf("RegenerateBackupCodes: %v", err)
	}
	if len(fresh) != testConfig().TwoFactor.BackupCodeCount {
		t.Errorf("regenerated %d codes, want %d", len(fresh), testConfig().TwoFactor.BackupCodeCount)
	}

	// An original code no longer works, a fresh one does
	if err := svc.VerifyCode(ctx, account, setup.BackupCodes[0]); !errors.Is(err, domainerrors.ErrInvalidTwoFactorCode) {
		t.Errorf("old code err = %v, want ErrInvalidTwoFactorCode", err)
	}
	if err := svc.VerifyCode(ctx, account, fresh[0]); err != nil {
		t.Errorf("fresh code rejected: %v", err)
	}
}

func TestTwoFactorDisable(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	svc := newTestTwoFactorService(users, testEpoch)
	account := seedUser(users, "a@example.com", "Secret1pw")
	ctx := context.Background()

	setup, err := svc.Setup(ctx, account.ID)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := svc.Enable(ctx, account.ID, currentCode(t, setup.Secret, testEpoch)); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	// Wrong password
	if err := svc.Disable(ctx, account.ID, "wrong", currentCode(t, setup.Secret, testEpoch)); !errors.Is(err, domainerrors.ErrIncorrectPassword) {
		t.Fatalf("err = %v, want ErrIncorrectPassword", err)
	}
	// Right password, wrong code
	if err := svc.Disable(ctx, account.ID, "Secret1pw", "000000"); !errors.Is(err, domainerrors.ErrInvalidTwoFactorCode) {
		t.Fatalf("err = %v, want ErrInvalidTwoFactorCode", err)
	}

	if err := svc.Disable(ctx, account.ID, "Secret1pw", currentCode(t, setup.Secret, testEpoch)); err != nil {
		t.Fatalf("Disable: %v", err)
	}

	if account.Is2FAEnabled || account.TOTPSecret != "" || len(account.BackupCodes) != 0 {
		t.Error("disable must clear the secret and backup codes together")
	}
}

func TestTwoFactorDisablePendingSetup(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	svc := newTestTwoFactorService(users, testEpoch)
	account := seedUser(users, "a@example.com", "Secret1pw")
	ctx := context.Background()

	if _, err := svc.Setup(ctx, account.ID); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	// Abandoning a pending setup needs only the password
	if err := svc.Disable(ctx, account.ID, "Secret1pw", ""); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if account.TOTPSecret != "" {
		t.Error("provisional secret not cleared")
	}

	// Fully disabled account has nothing to disable
	if err := svc.Disable(ctx, account.ID, "Secret1pw", ""); !errors.Is(err, domainerrors.ErrTwoFactorNotSetUp) {
		t.Errorf("err = %v, want ErrTwoFactorNotSetUp", err)
	}
}
