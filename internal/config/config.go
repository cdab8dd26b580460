// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minSecretLength = 32
	devSecret       = "development-only-secret-change-me!"
)

type Config struct {
	Env string `env:"ENV" envDefault:"development"`

	// HTTP Server
	Port int `env:"PORT" envDefault:"8080"`

	// Database
	DBPath string `env:"DB_PATH" envDefault:"./data/ledger.db"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Sessions
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// Display currency, ISO 4217
	Currency string `env:"CURRENCY" envDefault:"USD"`

	// AMQP change fan-out, disabled when AMQPURL is empty
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"household.changes"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Currency = strings.ToUpper(cfg.Currency)
	if cfg.JWTSecret == "" && cfg.Env == EnvDevelopment {
		cfg.JWTSecret = devSecret
	}
	return cfg, nil
}

// Validate validates the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errors = append(errors, fmt.Sprintf("invalid env '%s': must be %s or %s", c.Env, EnvDevelopment, EnvProduction))
	}

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(c.JWTSecret) < minSecretLength {
		errors = append(errors, fmt.Sprintf("JWT secret must be at least %d bytes", minSecretLength))
	} else if c.Env == EnvProduction && c.JWTSecret == devSecret {
		errors = append(errors, "JWT secret must be set in production")
	}

	if c.TokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	}

	if money.GetCurrency(c.Currency) == nil {
		errors = append(errors, fmt.Sprintf("unknown currency '%s'", c.Currency))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", s)
	}
}
