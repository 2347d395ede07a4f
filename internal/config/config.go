// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/olegiv/otax-go/internal/util"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"OTAX_DB_PATH" envDefault:"./data/otax.db"`
	ServerHost string `env:"OTAX_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"OTAX_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"OTAX_ENV" envDefault:"development"`
	LogLevel   string `env:"OTAX_LOG_LEVEL" envDefault:"info"`

	// Hierarchy configuration
	MaxDepth        int    `env:"OTAX_MAX_DEPTH" envDefault:"10"`      // Maximum category nesting depth
	DefaultLanguage string `env:"OTAX_DEFAULT_LANGUAGE" envDefault:"en"` // Primary language for paths and ordering

	// Cache configuration
	RedisURL     string `env:"OTAX_REDIS_URL"`                         // Optional Redis URL for distributed caching
	CachePrefix  string `env:"OTAX_CACHE_PREFIX" envDefault:"otax:"`   // Redis key prefix
	CacheTTL     int    `env:"OTAX_CACHE_TTL" envDefault:"300"`        // Tree cache TTL in seconds
	CacheMaxSize int    `env:"OTAX_CACHE_MAX_SIZE" envDefault:"10000"` // Max memory cache entries

	// Outbox dispatcher configuration
	OutboxWorkers      int `env:"OTAX_OUTBOX_WORKERS" envDefault:"3"`       // Concurrent delivery workers
	OutboxPollInterval int `env:"OTAX_OUTBOX_POLL_INTERVAL" envDefault:"2"` // Poll interval in seconds

	// Rate limiting
	RateLimitPerSecond int `env:"OTAX_RATE_LIMIT" envDefault:"50"` // API requests per second per client (0 = disabled)
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.MaxDepth < 1 {
		return nil, fmt.Errorf("OTAX_MAX_DEPTH must be at least 1, got %d", cfg.MaxDepth)
	}
	if !util.IsValidLangCode(cfg.DefaultLanguage) {
		return nil, fmt.Errorf("OTAX_DEFAULT_LANGUAGE %q is not a valid language code", cfg.DefaultLanguage)
	}

	return cfg, nil
}
