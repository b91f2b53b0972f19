// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds server configuration.
type Config struct {
	Port               int           `env:"ADOPS_PORT" envDefault:"8080"`
	DatabaseURL        string        `env:"ADOPS_DATABASE_URL" envDefault:"file:adops.db?_pragma=foreign_keys(1)"`
	LogLevel           string        `env:"ADOPS_LOG_LEVEL" envDefault:"info"`
	LogFormat          string        `env:"ADOPS_LOG_FORMAT" envDefault:"text"`
	CollationLocale    string        `env:"ADOPS_COLLATION_LOCALE" envDefault:"pt-BR"`
	CatalogCacheTTL    time.Duration `env:"ADOPS_CATALOG_CACHE_TTL" envDefault:"30s"`
	SessionIdleTimeout time.Duration `env:"ADOPS_SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	SessionMaxAge      time.Duration `env:"ADOPS_SESSION_MAX_AGE" envDefault:"24h"`
}

// Load parses Config from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
