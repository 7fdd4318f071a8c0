package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	TwoFactor TwoFactorConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Name        string        `mapstructure:"name"`
	Environment string        `mapstructure:"environment"`
	Debug       bool          `mapstructure:"debug"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Port        string        `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

type JWTConfig struct {
	Secret              string        `mapstructure:"secret"`
	Issuer              string        `mapstructure:"issuer"`
	AccessTokenTTL      time.Duration `mapstructure:"access_token_ttl"`
	AccessTokenJitter   time.Duration `mapstructure:"access_token_jitter"`
	RefreshTokenTTL     time.Duration `mapstructure:"refresh_token_ttl"`
	RefreshTokenJitter  time.Duration `mapstructure:"refresh_token_jitter"`
	StepUpTokenTTL      time.Duration `mapstructure:"step_up_token_ttl"`
	ResetTokenTTL       time.Duration `mapstructure:"reset_token_ttl"`
	VerifyTokenTTL      time.Duration `mapstructure:"verify_token_ttl"`
	RotateRefreshTokens bool          `mapstructure:"rotate_refresh_tokens"`
}

type TwoFactorConfig struct {
	Issuer          string `mapstructure:"issuer"`
	Digits          int    `mapstructure:"digits"`
	PeriodSeconds   int    `mapstructure:"period_seconds"`
	SkewSteps       int    `mapstructure:"skew_steps"`
	BackupCodeCount int    `mapstructure:"backup_code_count"`
}

type SecurityConfig struct {
	BcryptCost        int           `mapstructure:"bcrypt_cost"`
	MaxFailedAttempts int           `mapstructure:"max_failed_attempts"`
	FailedWindow      time.Duration `mapstructure:"failed_window"`
	LockoutDuration   time.Duration `mapstructure:"lockout_duration"`
	AttemptRetention  time.Duration `mapstructure:"attempt_retention"`
}

type RateLimitConfig struct {
	Request  int `mapstructure:"request"`
	Duration int `mapstructure:"duration"`
}

func LoadConfig() (*Config, error) {
	// .env is optional; real deployments inject environment directly
	_ = godotenv.Load()

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "auth-service"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Debug:       getEnvAsBool("APP_DEBUG", true),
			Timeout:     getEnvAsDuration("APP_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "auth_db"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			Database:     getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getEnvAsDuration("REDIS_POOL_TIMEOUT", 4*time.Second),
		},
		JWT: JWTConfig{
			Secret:              getEnv("JWT_SECRET", ""),
			Issuer:              getEnv("JWT_ISSUER", "karmasystem"),
			AccessTokenTTL:      getEnvAsDuration("JWT_ACCESS_TTL", 8*24*time.Hour),
			AccessTokenJitter:   getEnvAsDuration("JWT_ACCESS_JITTER", 5*time.Minute),
			RefreshTokenTTL:     getEnvAsDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
			RefreshTokenJitter:  getEnvAsDuration("JWT_REFRESH_JITTER", 24*time.Hour),
			StepUpTokenTTL:      getEnvAsDuration("JWT_STEP_UP_TTL", 10*time.Minute),
			ResetTokenTTL:       getEnvAsDuration("JWT_RESET_TTL", time.Hour),
			VerifyTokenTTL:      getEnvAsDuration("JWT_VERIFY_TTL", 24*time.Hour),
			RotateRefreshTokens: getEnvAsBool("JWT_ROTATE_REFRESH", true),
		},
		TwoFactor: TwoFactorConfig{
			Issuer:          getEnv("TWO_FACTOR_ISSUER", "KarmaSystem"),
			Digits:          getEnvAsInt("TWO_FACTOR_DIGITS", 6),
			PeriodSeconds:   getEnvAsInt("TWO_FACTOR_PERIOD", 30),
			SkewSteps:       getEnvAsInt("TWO_FACTOR_SKEW", 1),
			BackupCodeCount: getEnvAsInt("TWO_FACTOR_BACKUP_CODES", 10),
		},
		Security: SecurityConfig{
			BcryptCost:        getEnvAsInt("SECURITY_BCRYPT_COST", 12),
			MaxFailedAttempts: getEnvAsInt("SECURITY_MAX_FAILED_ATTEMPTS", 5),
			FailedWindow:      getEnvAsDuration("SECURITY_FAILED_WINDOW", 24*time.Hour),
			LockoutDuration:   getEnvAsDuration("SECURITY_LOCKOUT_DURATION", 15*time.Minute),
			AttemptRetention:  getEnvAsDuration("SECURITY_ATTEMPT_RETENTION", 30*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Request:  getEnvAsInt("RATE_LIMIT_MAX_REQUEST", 10),
			Duration: getEnvAsInt("RATE_LIMIT_DURATION", 60),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate catches misconfiguration that must be fatal at startup rather
// than surfacing per-request.
func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWT.Secret))
	}
	if c.JWT.AccessTokenJitter >= c.JWT.AccessTokenTTL {
		return fmt.Errorf("JWT_ACCESS_JITTER must be smaller than JWT_ACCESS_TTL")
	}
	if c.JWT.RefreshTokenJitter >= c.JWT.RefreshTokenTTL {
		return fmt.Errorf("JWT_REFRESH_JITTER must be smaller than JWT_REFRESH_TTL")
	}
	if c.TwoFactor.Digits < 6 || c.TwoFactor.Digits > 8 {
		return fmt.Errorf("TWO_FACTOR_DIGITS must be between 6 and 8, got %d", c.TwoFactor.Digits)
	}
	return nil
}

func (c *Config) DatabaseConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
