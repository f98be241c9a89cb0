// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

// Package config loads and validates Keyfold's runtime configuration.
//
// Precedence, lowest to highest: built-in defaults, optional YAML config
// file, environment (DATABASE_URL, KEYFOLD_SECRET), command-line flags.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds runtime settings for the Keyfold server.
type Config struct {
	// HTTPAddr is the bind address for the public identity API.
	HTTPAddr string `koanf:"http-addr"`
	// MetricsAddr is the bind address for metrics/health endpoints
	// (empty disables the observability server).
	MetricsAddr string `koanf:"metrics-addr"`
	// DatabaseURL is the PostgreSQL DSN (pgx). The database name and the
	// accounts table are fixed by the DSN and migrations respectively.
	DatabaseURL string `koanf:"database-url"`
	// Secret signs session tokens (HMAC-SHA256). There is deliberately no
	// default: a missing secret fails startup instead of silently signing
	// with a known value.
	Secret string `koanf:"secret"`
	// TokenTTL is the session token lifetime. The login cookie expires at
	// the same instant as the token.
	TokenTTL time.Duration `koanf:"token-ttl"`
	// LogFormat selects slog output: "json" or "text".
	LogFormat string `koanf:"log-format"`
}

// Default values for everything that safely can have one.
const (
	DefaultHTTPAddr    = ":8002"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultTokenTTL    = 10 * time.Hour
	DefaultLogFormat   = "json"
)

// Defaults returns a Config populated with defaults. DatabaseURL and
// Secret have none and must come from file, environment, or flags.
func Defaults() Config {
	return Config{
		HTTPAddr:    DefaultHTTPAddr,
		MetricsAddr: DefaultMetricsAddr,
		TokenTTL:    DefaultTokenTTL,
		LogFormat:   DefaultLogFormat,
	}
}

// Load builds a Config from the optional YAML file at path, the
// environment, and the given flag set. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Passing k makes unchanged flags defer to file-provided values.
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal config").
			Wrap(err)
	}

	// Secrets come from the environment in deployments; they override the
	// file but not explicit flags (flags don't exist for them).
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("KEYFOLD_SECRET"); v != "" {
		cfg.Secret = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is complete and coherent.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http-addr is required")
	}
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database-url is required (flag, config file, or DATABASE_URL)")
	}
	if c.Secret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("signing secret is required (config file or KEYFOLD_SECRET); refusing to start without one")
	}
	if c.TokenTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("token-ttl must be positive, got %s", c.TokenTTL)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	return nil
}
