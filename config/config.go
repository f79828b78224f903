/*
Package config loads server configuration.

PURPOSE:
  Configuration resolves in three layers, later layers winning:

    1. Defaults (suitable for local development)
    2. An optional TOML file
    3. LEAVE_* environment variables

USAGE:
  cfg, err := config.Load("leave.toml")   // path may be ""
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Auth    AuthConfig    `toml:"auth"`
	Metrics MetricsConfig `toml:"metrics"`
	Leave   LeaveConfig   `toml:"leave"`
}

type ServerConfig struct {
	Addr        string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
}

type StorageConfig struct {
	// Path is the SQLite database file; ":memory:" keeps everything
	// in-process.
	Path string `toml:"path"`
}

type AuthConfig struct {
	// JWTSecret signs console session tokens. The default is only
	// acceptable for local development.
	JWTSecret string `toml:"jwt_secret"`

	// TokenTTLHours bounds session lifetime.
	TokenTTLHours int `toml:"token_ttl_hours"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

type LeaveConfig struct {
	// CompoffExpiryDays is how long an approved comp-off credit stays
	// usable before the year-close expires it.
	CompoffExpiryDays int `toml:"compoff_expiry_days"`
}

// Default returns the development configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Storage: StorageConfig{
			Path: "./data/leave.db",
		},
		Auth: AuthConfig{
			JWTSecret:     "dev-secret-change-me",
			TokenTTLHours: 12,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Leave: LeaveConfig{
			CompoffExpiryDays: 90,
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file,
// and LEAVE_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LEAVE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LEAVE_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("LEAVE_DB"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("LEAVE_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("LEAVE_TOKEN_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Auth.TokenTTLHours = n
		}
	}
	if v := os.Getenv("LEAVE_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("LEAVE_COMPOFF_EXPIRY_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Leave.CompoffExpiryDays = n
		}
	}
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("auth.token_ttl_hours must be positive")
	}
	if c.Leave.CompoffExpiryDays <= 0 {
		return fmt.Errorf("leave.compoff_expiry_days must be positive")
	}
	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
