package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration loaded from YAML.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// Database holds connection settings.
	Database DatabaseConfig `yaml:"database"`

	// Redis holds the daily-counter backend settings.
	Redis RedisConfig `yaml:"redis"`

	// JWT holds token signing settings.
	JWT JWTConfig `yaml:"jwt"`

	// Log holds file logging settings.
	Log LogConfig `yaml:"log"`

	// Webhook holds payment webhook settings.
	Webhook WebhookConfig `yaml:"webhook"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // Postgres or SQLite DSN.
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`     // host:port. Empty disables Redis-backed counters.
	Password string `yaml:"password"` // Optional password.
	DB       int    `yaml:"db"`       // Logical database index.
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret      string `yaml:"secret"`       // HMAC signing secret.
	ExpiryHours int    `yaml:"expiry-hours"` // Token lifetime in hours.
}

// Expiry returns the configured token lifetime.
func (c JWTConfig) Expiry() time.Duration {
	hours := c.ExpiryHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// LogConfig holds file logging settings.
type LogConfig struct {
	File       string `yaml:"file"`        // Log file path. Empty logs to stdout only.
	MaxSizeMB  int    `yaml:"max-size"`    // Rotate after this many megabytes.
	MaxBackups int    `yaml:"max-backups"` // Rotated files to keep.
	MaxAgeDays int    `yaml:"max-age"`     // Days to keep rotated files.
}

// WebhookConfig holds payment webhook settings.
type WebhookConfig struct {
	Secret string `yaml:"secret"` // HMAC secret shared with the payment provider.
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	var cfg Config
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}

	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = ":8080"
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("config: missing database.dsn")
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("config: missing jwt.secret")
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 28
	}

	return &cfg, nil
}
