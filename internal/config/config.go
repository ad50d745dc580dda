// Package config defines Keygate's runtime configuration: one explicit
// Config object built at process start from keygate.yaml and KEYGATE_*
// environment variables, then passed by reference into the components that
// need it. There is no ambient/global configuration lookup.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Issuer  IssuerConfig  `mapstructure:"issuer" yaml:"issuer"`
	Payload PayloadConfig `mapstructure:"payload" yaml:"payload"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_min" yaml:"rate_limit_per_min"`
}

// StoreConfig selects and configures the key store backend.
type StoreConfig struct {
	// Backend is one of "file", "sqlite", "postgres", "mysql".
	Backend string `mapstructure:"backend" yaml:"backend"`
	// DSN is the connection string for the SQL backends.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
	// Path is the JSON document location for the file backend.
	Path string `mapstructure:"path" yaml:"path"`
}

// AuthConfig controls administrative authentication.
type AuthConfig struct {
	AdminSecret string        `mapstructure:"admin_secret" yaml:"admin_secret"`
	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTExpiry   time.Duration `mapstructure:"jwt_expiry" yaml:"jwt_expiry"`
}

// IssuerConfig controls token generation.
type IssuerConfig struct {
	// Prefix is the product tag prepended to every token.
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// PayloadConfig locates the delivered script.
type PayloadConfig struct {
	Path    string `mapstructure:"path" yaml:"path"`
	Product string `mapstructure:"product" yaml:"product"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitPerMin: 60,
		},
		Store: StoreConfig{
			Backend: "file",
			Path:    "keys.json",
		},
		Auth: AuthConfig{
			JWTExpiry: 24 * time.Hour,
		},
		Issuer:  IssuerConfig{Prefix: "Keygate"},
		Payload: PayloadConfig{Path: "payload.lua", Product: "Keygate"},
	}
}

// Load unmarshals the effective viper state over the defaults and validates
// the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the file backend")
		}
	case "sqlite":
		// empty DSN means in-memory
	case "postgres", "mysql":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store.backend %q (want file, sqlite, postgres, or mysql)", c.Store.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

// Redacted returns a copy safe for display, with secrets masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Auth.AdminSecret != "" {
		out.Auth.AdminSecret = "********"
	}
	if out.Auth.JWTSecret != "" {
		out.Auth.JWTSecret = "********"
	}
	return out
}
