// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/substrate-hq/substrate/pkg/auth"
)

var Module = fx.Module("config",
	fx.Provide(
		NewConfig,
		NewAuthConfig,
	),
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"4200"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Database settings
	Database DatabaseConfig

	// Auth settings
	Auth AuthConfig

	// OpenTelemetry settings
	Otel OtelConfig

	// RateLimit settings
	RateLimit RateLimitConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"substrate"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"substrate"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// AuthConfig holds actor authentication settings.
type AuthConfig struct {
	// JWTSecret signs and verifies bearer tokens (HS256).
	JWTSecret string `env:"AUTH_JWT_SECRET" envDefault:""`

	// APIKey enables static-key auth for standalone deployments.
	APIKey string `env:"AUTH_API_KEY" envDefault:""`

	// APIKeyActorID is the actor identity assumed by API-key requests.
	APIKeyActorID string `env:"AUTH_API_KEY_ACTOR_ID" envDefault:""`
}

// RateLimitConfig holds per-tenant request rate limits.
type RateLimitConfig struct {
	// MutationsPerSecond is the sustained per-group mutation rate.
	MutationsPerSecond float64 `env:"RATE_LIMIT_MUTATIONS_PER_SECOND" envDefault:"50"`

	// MutationBurst is the per-group burst allowance.
	MutationBurst int `env:"RATE_LIMIT_MUTATION_BURST" envDefault:"100"`
}

// NewConfig loads configuration from environment variables.
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
	)

	return cfg, nil
}

// NewAuthConfig adapts the loaded config into the auth middleware's config.
func NewAuthConfig(cfg *Config) (auth.Config, error) {
	out := auth.Config{
		JWTSecret: cfg.Auth.JWTSecret,
		APIKey:    cfg.Auth.APIKey,
	}
	if cfg.Auth.APIKeyActorID != "" {
		id, err := uuid.Parse(cfg.Auth.APIKeyActorID)
		if err != nil {
			return auth.Config{}, fmt.Errorf("parse AUTH_API_KEY_ACTOR_ID: %w", err)
		}
		out.APIKeyActorID = id
	}
	return out, nil
}
