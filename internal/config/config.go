package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Lifecycle LifecycleConfig
	Email     EmailConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port     string `env:"PORT" envDefault:"8080"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout    time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"60s"`

	AuthRateLimitPerMinute int      `env:"AUTH_RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	TrustedProxies         []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

type DatabaseConfig struct {
	Host              string        `env:"DB_HOST" envDefault:"localhost"`
	Port              int           `env:"DB_PORT" envDefault:"5432"`
	User              string        `env:"DB_USER" envDefault:"postgres"`
	Password          string        `env:"DB_PASSWORD"`
	Name              string        `env:"DB_NAME" envDefault:"tally"`
	SSLMode           string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns          int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	MinConns          int32         `env:"DB_MIN_CONNS" envDefault:"5"`
	MaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"5m"`
	MaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"1m"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
	AutoMigrate       bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

type AuthConfig struct {
	JWTSecret        string `env:"JWT_SECRET"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET"`

	AccessTokenTTL        time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
	RefreshTokenTTL       time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	VerificationTokenTTL  time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"24h"`
	PasswordResetTokenTTL time.Duration `env:"PASSWORD_RESET_TOKEN_TTL" envDefault:"1h"`

	BcryptCost       int           `env:"BCRYPT_COST" envDefault:"12"`
	MaxLoginAttempts int           `env:"MAX_LOGIN_ATTEMPTS" envDefault:"5"`
	LockoutDuration  time.Duration `env:"LOCKOUT_DURATION" envDefault:"5h"`

	// Failed login padding
	TimingBaseDelayMs   int `env:"AUTH_TIMING_BASE_DELAY_MS" envDefault:"100"`
	TimingRandomDelayMs int `env:"AUTH_TIMING_RANDOM_DELAY_MS" envDefault:"50"`
}

type LifecycleConfig struct {
	InactivityWarningAfter time.Duration `env:"INACTIVITY_WARNING_AFTER" envDefault:"120h"`
	InactivityWindow       time.Duration `env:"INACTIVITY_WINDOW" envDefault:"168h"`
	DeletionGrace          time.Duration `env:"DELETION_GRACE" envDefault:"12h"`

	WarningInterval        time.Duration `env:"JOB_INACTIVITY_WARNING_INTERVAL" envDefault:"24h"`
	SweepInterval          time.Duration `env:"JOB_INACTIVITY_SWEEP_INTERVAL" envDefault:"24h"`
	DeletionInterval       time.Duration `env:"JOB_DELETION_SWEEP_INTERVAL" envDefault:"1h"`
	SessionCleanupInterval time.Duration `env:"JOB_SESSION_CLEANUP_INTERVAL" envDefault:"24h"`
	JobTimeout             time.Duration `env:"JOB_TIMEOUT" envDefault:"5m"`
}

type EmailConfig struct {
	Provider   string `env:"EMAIL_PROVIDER" envDefault:"log"`
	AWSRegion  string `env:"AWS_REGION" envDefault:"us-east-1"`
	From       string `env:"EMAIL_FROM" envDefault:"no-reply@tally.local"`
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:5173"`
	AdminEmail string `env:"ADMIN_EMAIL"`

	QueueSize  int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	Workers    int           `env:"NOTIFY_WORKERS" envDefault:"4"`
	Timeout    time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`
	MaxRetries uint64        `env:"NOTIFY_MAX_RETRIES" envDefault:"3"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	ThrottleLimit  int64         `env:"EMAIL_THROTTLE_LIMIT" envDefault:"3"`
	ThrottleWindow time.Duration `env:"EMAIL_THROTTLE_WINDOW" envDefault:"1h"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"tally-api"`
}

// Enabled reports whether Redis-backed throttles and job locks are configured
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret("JWT_SECRET", cfg.Auth.JWTSecret, cfg.Server.Env); err != nil {
		return nil, err
	}
	if cfg.Auth.JWTRefreshSecret != "" {
		if err := validateJWTSecret("JWT_REFRESH_SECRET", cfg.Auth.JWTRefreshSecret, cfg.Server.Env); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.MaxLoginAttempts < 1 {
		return errors.New("MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	if c.Lifecycle.InactivityWarningAfter >= c.Lifecycle.InactivityWindow {
		return errors.New("INACTIVITY_WARNING_AFTER must be shorter than INACTIVITY_WINDOW")
	}
	jobDurations := []struct {
		name  string
		value time.Duration
	}{
		{"JOB_INACTIVITY_WARNING_INTERVAL", c.Lifecycle.WarningInterval},
		{"JOB_INACTIVITY_SWEEP_INTERVAL", c.Lifecycle.SweepInterval},
		{"JOB_DELETION_SWEEP_INTERVAL", c.Lifecycle.DeletionInterval},
		{"JOB_SESSION_CLEANUP_INTERVAL", c.Lifecycle.SessionCleanupInterval},
		{"JOB_TIMEOUT", c.Lifecycle.JobTimeout},
	}
	for _, d := range jobDurations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive (got %v)", d.name, d.value)
		}
	}
	switch c.Email.Provider {
	case "ses", "log":
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be ses or log (got %q)", c.Email.Provider)
	}
	if c.Email.Workers < 1 || c.Email.QueueSize < 1 {
		return errors.New("NOTIFY_WORKERS and NOTIFY_QUEUE_SIZE must be positive")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for a signing secret
func validateJWTSecret(name, secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("%s must be at least %d characters in %s environment (got %d)",
			name, minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("%s cannot be a common weak value", name)
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
