package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	Port        string `env:"PORT" envDefault:"8080" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	// Profile selects the fleet tuning profile. Empty means "derive from Env":
	// local -> local, everything else -> standard. Constrained hosting sets it
	// explicitly rather than the core probing the platform at runtime.
	Profile string `env:"SCHEDFLEET_PROFILE" validate:"omitempty,oneof=local constrained standard"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=32"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
	AlertTo      string `env:"ALERT_TO"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FleetProfile resolves the tuning profile for this deployment.
func (c *Config) FleetProfile() Profile {
	name := c.Profile
	if name == "" {
		if c.Env == "local" {
			name = "local"
		} else {
			name = "standard"
		}
	}
	switch name {
	case "local":
		return LocalProfile()
	case "constrained":
		return ConstrainedProfile()
	default:
		return StandardProfile()
	}
}
