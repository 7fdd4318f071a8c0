package constants

// Application Information
const (
	AppName    = "Auth Service"
	AppVersion = "1.0.0"
)

// Environment Types
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Default Application Settings
const (
	DefaultPort        = "8080"
	DefaultEnvironment = EnvDevelopment
)

// Redis Key Prefixes
const (
	KeyPrefix             = "auth:"
	KeyTokenBlacklist     = KeyPrefix + "token_blacklist:"
	KeyTokenFamily        = KeyPrefix + "token_family:"
	KeyRateLimit          = KeyPrefix + "rate_limit:"
	KeyLockout            = KeyPrefix + "lockout:"
)

// Token Types
const (
	TokenTypeAccess       = "access"
	TokenTypeRefresh      = "refresh"
	TokenTypeVerification = "verification"
)

// Token Scopes
const (
	ScopeAccess        = "access"
	ScopeTwoFactor     = "2fa"
	ScopeVerification  = "verification"
	ScopePasswordReset = "password_reset"
	ScopeEmailVerify   = "email_verify"
)

// Log Levels
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"
)
