// Package config loads process configuration from environment variables.
//
// Everything configurable lives on one struct, parsed once in main and
// passed down explicitly — no package reads os.Getenv on its own, and
// nothing depends on ambient global state. The initialization order is
// always: load config → open storage → build services → serve.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration.
//
// The env struct tags are read by caarlos0/env: each field maps to one
// environment variable, with envDefault applied when it's unset.
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"data/poems.db"`

	// JWTSecret signs every issued token. Required, min 16 chars.
	// Generate one with: openssl rand -hex 32
	JWTSecret string `env:"JWT_SECRET"`

	// TokenTTL is how long issued tokens stay valid.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: invalid port %d", cfg.Port)
	}

	return &cfg, nil
}
