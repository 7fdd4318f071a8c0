package service

// Shared fakes and fixtures for the service tests. Everything runs against
// in-memory stores and a fixed clock so outcomes are deterministic.

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/karmasystem/auth-service/config"
	"github.com/karmasystem/auth-service/internal/model"
)

var testEpoch = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:              "0123456789abcdef0123456789abcdef",
			Issuer:              "karmasystem-test",
			AccessTokenTTL:      8 * 24 * time.Hour,
			RefreshTokenTTL:     30 * 24 * time.Hour,
			StepUpTokenTTL:      10 * time.Minute,
			ResetTokenTTL:       time.Hour,
			VerifyTokenTTL:      24 * time.Hour,
			RotateRefreshTokens: true,
		},
		TwoFactor: config.TwoFactorConfig{
			Issuer:          "karmasystem-test",
			Digits:          6,
			PeriodSeconds:   30,
			SkewSteps:       1,
			BackupCodeCount: 10,
		},
		Security: config.SecurityConfig{
			BcryptCost:        bcrypt.MinCost,
			MaxFailedAttempts: 5,
			FailedWindow:      24 * time.Hour,
			LockoutDuration:   15 * time.Minute,
		},
		RateLimit: config.RateLimitConfig{Request: 10, Duration: 60},
	}
}

// fixedClock returns a clock pinned to the given instant
func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// fakeRevocationStore is an in-memory RevocationStore with fault injection
type fakeRevocationStore struct {
	mu         sync.Mutex
	entries    map[string]string
	failSet    bool
	failExists bool
}

func newFakeRevocationStore() *fakeRevocationStore {
	return &fakeRevocationStore{entries: make(map[string]string)}
}

func (f *fakeRevocationStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("store down")
	}
	f.entries[key] = value
	return nil
}

func (f *fakeRevocationStore) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failExists {
		return false, errors.New("store down")
	}
	_, ok := f.entries[key]
	return ok, nil
}

// fakeCounterStore is an in-memory CounterStore
type fakeCounterStore struct {
	mu     sync.Mutex
	counts map[string]int64
	window time.Duration
	fail   bool
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counts: make(map[string]int64)}
}

func (f *fakeCounterStore) IncrWithExpiry(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, 0, errors.New("store down")
	}
	f.counts[key]++
	f.window = window
	return f.counts[key], window, nil
}

func (f *fakeCounterStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counts, key)
	return nil
}

// fakeAttemptLog keeps attempts in a slice and answers the lockout queries
type fakeAttemptLog struct {
	mu       sync.Mutex
	attempts []model.UserLoginAttempt
	failRead bool
}

func newFakeAttemptLog() *fakeAttemptLog {
	return &fakeAttemptLog{}
}

func (f *fakeAttemptLog) Record(_ context.Context, attempt *model.UserLoginAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, *attempt)
	return nil
}

func (f *fakeAttemptLog) CountRecentFailures(_ context.Context, userID uint, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRead {
		return 0, errors.New("store down")
	}
	var n int64
	for _, a := range f.attempts {
		if a.UserID == userID && !a.Success && !a.AttemptTime.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeAttemptLog) LatestFailure(_ context.Context, userID uint, since time.Time) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest time.Time
	for _, a := range f.attempts {
		if a.UserID == userID && !a.Success && !a.AttemptTime.Before(since) && a.AttemptTime.After(latest) {
			latest = a.AttemptTime
		}
	}
	return latest, nil
}

func (f *fakeAttemptLog) DistinctFailureIPs(_ context.Context, userID uint, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]struct{})
	for _, a := range f.attempts {
		if a.UserID == userID && !a.Success && !a.AttemptTime.Before(since) {
			seen[a.IPAddress] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

// fakeUserStore is an in-memory credential store implementing
// CredentialStore, TwoFactorStore and ProfileStore
type fakeUserStore struct {
	mu     sync.Mutex
	users  map[uint]*model.User
	nextID uint
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uint]*model.User), nextID: 1}
}

func (f *fakeUserStore) addUser(user *model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == 0 {
		user.ID = f.nextID
		f.nextID++
	}
	f.users[user.ID] = user
	return user
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserStore) Create(_ context.Context, user *model.User) error {
	f.addUser(user)
	return nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, id uint, hashedPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.Password = hashedPassword
	return nil
}

func (f *fakeUserStore) TouchLastLogin(_ context.Context, id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[id]; ok {
		user.LastLogin = at
	}
	return nil
}

func (f *fakeUserStore) MarkVerified(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.IsVerified = true
	return nil
}

func (f *fakeUserStore) SetTwoFactorSecret(_ context.Context, id uint, secret string, backupCodes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.TOTPSecret = secret
	user.BackupCodes = model.BackupCodeList(backupCodes)
	user.Is2FAEnabled = false
	return nil
}

func (f *fakeUserStore) EnableTwoFactor(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok || user.TOTPSecret == "" {
		return gorm.ErrRecordNotFound
	}
	user.Is2FAEnabled = true
	return nil
}

func (f *fakeUserStore) DisableTwoFactor(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.TOTPSecret = ""
	user.BackupCodes = nil
	user.Is2FAEnabled = false
	return nil
}

func (f *fakeUserStore) ReplaceBackupCodes(_ context.Context, id uint, codes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.BackupCodes = model.BackupCodeList(codes)
	return nil
}

func (f *fakeUserStore) ConsumeBackupCode(_ context.Context, id uint, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	for i, c := range user.BackupCodes {
		if c == code {
			user.BackupCodes = append(user.BackupCodes[:i], user.BackupCodes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserStore) UpdateProfile(_ context.Context, id uint, firstName, lastName, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.FirstName = firstName
	user.LastName = lastName
	user.Username = username
	return nil
}

func (f *fakeUserStore) GetAll(_ context.Context, limit, offset int, _ string) ([]model.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, user := range f.users {
		out = append(out, *user)
	}
	total := int64(len(out))
	if offset > len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

// fakeDeviceStore records upserted devices
type fakeDeviceStore struct {
	mu      sync.Mutex
	devices []model.UserDevice
}

func newFakeDeviceStore() *fakeDeviceStore {
	return &fakeDeviceStore{}
}

func (f *fakeDeviceStore) Upsert(_ context.Context, device *model.UserDevice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.devices {
		if d.UserID == device.UserID && d.UserAgentHash == device.UserAgentHash && d.IPHash == device.IPHash {
			f.devices[i].LastSeen = device.LastSeen
			return nil
		}
	}
	f.devices = append(f.devices, *device)
	return nil
}

func (f *fakeDeviceStore) CountByUser(_ context.Context, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, d := range f.devices {
		if d.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeDeviceStore) ListByUser(_ context.Context, userID uint) ([]model.UserDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.UserDevice
	for _, d := range f.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

// fakeNotifier records outbound notifications
type fakeNotifier struct {
	mu             sync.Mutex
	verifications  []string
	resets         []string
	securityAlerts []string
	resetTokens    []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{}
}

func (f *fakeNotifier) SendEmailVerification(_ context.Context, email, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifications = append(f.verifications, email)
}

func (f *fakeNotifier) SendPasswordReset(_ context.Context, email, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, email)
	f.resetTokens = append(f.resetTokens, token)
}

func (f *fakeNotifier) SendSecurityAlert(_ context.Context, email, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.securityAlerts = append(f.securityAlerts, email)
}

// authStack bundles a fully wired in-memory auth service
type authStack struct {
	cfg       *config.Config
	users     *fakeUserStore
	devices   *fakeDeviceStore
	attempts  *fakeAttemptLog
	revstore  *fakeRevocationStore
	counters  *fakeCounterStore
	notifier  *fakeNotifier
	tokens    *TokenService
	blacklist *BlacklistService
	twoFactor *TwoFactorService
	lockout   *LockoutService
	limiter   *RateLimiter
	auth      *AuthService
}

func newAuthStack(at time.Time) *authStack {
	cfg := testConfig()
	clock := fixedClock(at)

	users := newFakeUserStore()
	devices := newFakeDeviceStore()
	attempts := newFakeAttemptLog()
	revstore := newFakeRevocationStore()
	counters := newFakeCounterStore()
	notifier := newFakeNotifier()

	tokens := NewTokenService(cfg.JWT).WithClock(clock)
	blacklist := NewBlacklistService(revstore).WithClock(clock)
	twoFactor := NewTwoFactorService(users, cfg.TwoFactor).WithClock(clock)
	lockout := NewLockoutService(attempts, cfg.Security).WithClock(clock)
	limiter := NewRateLimiter(counters, cfg.RateLimit.Request, time.Duration(cfg.RateLimit.Duration)*time.Second)

	auth := NewAuthService(users, devices, tokens, blacklist, twoFactor, lockout, limiter, notifier, cfg).WithClock(clock)

	return &authStack{
		cfg:       cfg,
		users:     users,
		devices:   devices,
		attempts:  attempts,
		revstore:  revstore,
		counters:  counters,
		notifier:  notifier,
		tokens:    tokens,
		blacklist: blacklist,
		twoFactor: twoFactor,
		lockout:   lockout,
		limiter:   limiter,
		auth:      auth,
	}
}

// setClock repins every injected clock in the stack
func (s *authStack) setClock(at time.Time) {
	clock := fixedClock(at)
	s.tokens.WithClock(clock)
	s.blacklist.WithClock(clock)
	s.twoFactor.WithClock(clock)
	s.lockout.WithClock(clock)
	s.auth.WithClock(clock)
}

// seedUser registers an active user with a bcrypt-hashed password
func seedUser(store *fakeUserStore, email, password string) *model.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return store.addUser(&model.User{
		Email:    email,
		Password: string(hash),
		Role:     model.RoleUser,
		IsActive: true,
	})
}

func (s *authStack) addUser(email, password string) *model.User {
	return seedUser(s.users, email, password)
}
