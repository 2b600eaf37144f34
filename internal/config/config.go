package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers
const (
	StoreSurrealDB = "surrealdb"
	StorePostgres  = "postgres"
	StoreSQLite    = "sqlite"
)

// Concurrency guards for the progression write path
const (
	GuardVersion = "version"
	GuardNone    = "none"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Store       StoreConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	Tracing     TracingConfig
	Progression ProgressionConfig
	Jobs        JobsConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string        `env:"SERVER_PORT" envDefault:"8080"`
	Env            string        `env:"SERVER_ENV" envDefault:"development"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
}

// StoreConfig selects the progress store backend
type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" envDefault:"surrealdb"`
	// DSN is used by the postgres and sqlite drivers.
	DSN         string `env:"SQL_DSN"`
	AutoMigrate bool   `env:"SQL_AUTO_MIGRATE" envDefault:"true"`
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string `env:"DB_HOST" envDefault:"localhost"`
	Port      string `env:"DB_PORT" envDefault:"8000"`
	Namespace string `env:"DB_NAMESPACE" envDefault:"questline"`
	Database  string `env:"DB_DATABASE" envDefault:"main"`
	User      string `env:"DB_USER" envDefault:"root"`
	Password  string `env:"DB_PASSWORD" envDefault:"root"`
}

// JWTConfig holds bearer token settings
type JWTConfig struct {
	PrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH" envDefault:"./keys/private.pem"`
	PublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./keys/public.pem"`
	ExpirationMins int    `env:"JWT_EXPIRATION_MINS" envDefault:"15"`
	Issuer         string `env:"JWT_ISSUER" envDefault:"questline.forgo.software"`
}

// RedisConfig holds event bus and idempotency cache settings. Redis is
// optional; with no address events are dropped and idempotency keys are kept
// in process memory.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Channel  string `env:"REDIS_CHANNEL" envDefault:"questline.progress"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"questline-api"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// ProgressionConfig tunes the bounded progression engine
type ProgressionConfig struct {
	ConcurrencyGuard   string `env:"CONCURRENCY_GUARD" envDefault:"version"`
	MaxConflictRetries int    `env:"MAX_CONFLICT_RETRIES" envDefault:"5"`
	FanOutConcurrency  int    `env:"FANOUT_CONCURRENCY" envDefault:"4"`
}

// JobsConfig holds background job settings
type JobsConfig struct {
	BoundsAuditInterval time.Duration `env:"BOUNDS_AUDIT_INTERVAL" envDefault:"10m"`
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}

	// Store validation
	switch c.Store.Driver {
	case StoreSurrealDB:
		if c.Database.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required"))
		}
		if c.Database.Port == "" {
			errs = append(errs, errors.New("DB_PORT is required"))
		}
		if c.Database.Namespace == "" {
			errs = append(errs, errors.New("DB_NAMESPACE is required"))
		}
		if c.Database.Database == "" {
			errs = append(errs, errors.New("DB_DATABASE is required"))
		}
	case StorePostgres, StoreSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("SQL_DSN is required when STORE_DRIVER is '%s'", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be 'surrealdb', 'postgres', or 'sqlite', got '%s'", c.Store.Driver))
	}

	// JWT validation - critical for production
	if c.IsProduction() && c.JWT.PublicKeyPath == "" {
		errs = append(errs, errors.New("JWT_PUBLIC_KEY_PATH is required in production"))
	}
	if c.JWT.ExpirationMins <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_MINS must be positive"))
	}

	// Progression validation
	if c.Progression.ConcurrencyGuard != GuardVersion && c.Progression.ConcurrencyGuard != GuardNone {
		errs = append(errs, fmt.Errorf("CONCURRENCY_GUARD must be 'version' or 'none', got '%s'", c.Progression.ConcurrencyGuard))
	}
	if c.Progression.MaxConflictRetries < 0 {
		errs = append(errs, errors.New("MAX_CONFLICT_RETRIES must not be negative"))
	}
	if c.Progression.FanOutConcurrency < 1 {
		errs = append(errs, errors.New("FANOUT_CONCURRENCY must be at least 1"))
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_SAMPLE_RATIO must be between 0 and 1"))
	}
	if c.Jobs.BoundsAuditInterval < 0 {
		errs = append(errs, errors.New("BOUNDS_AUDIT_INTERVAL must not be negative"))
	}

	return errors.Join(errs...)
}
