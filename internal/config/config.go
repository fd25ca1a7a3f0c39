// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.seshat/config.yaml)
//  3. Default values
//
// The database connection URL has its own resolution ladder documented
// on [Config.ResolveDatabase]; the precise variable names are deployment
// detail carried over from existing installations.
//
// Security: the database password is never logged; use
// [database.MaskURL] when printing connection URLs.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrDatabaseURLNotFound indicates no connection URL could be resolved
	// from arguments or the environment.
	ErrDatabaseURLNotFound = errors.New("database URL not provided and no environment variables found")

	// ErrInvalidDatabaseURL indicates the resolved URL is malformed or
	// carries an unexpected scheme.
	ErrInvalidDatabaseURL = errors.New("invalid database URL")
)

// Config stores application configuration.
type Config struct {
	// DatabaseURL is the PostgreSQL connection URL. Usually left empty in
	// the config file and resolved from the environment; see
	// ResolveDatabase.
	DatabaseURL string `mapstructure:"database_url"`

	// DatabaseSchema optionally qualifies every table name. Empty means
	// the default (public) schema.
	DatabaseSchema string `mapstructure:"database_schema"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `mapstructure:"log_level"`

	// LogJSON enables JSON log output.
	LogJSON bool `mapstructure:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".seshat")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("database_url", "")
	v.SetDefault("database_schema", "")

	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	return &cfg, nil
}

// bindEnvVariables binds environment overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("log_level", "SESHAT_LOG_LEVEL")
	mustBind("log_json", "SESHAT_LOG_JSON")
	// DATABASE_URL and friends are resolved by ResolveDatabase, not viper,
	// because the ladder includes legacy multi-variable assembly.
}

// Level converts LogLevel to a slog.Level, defaulting to info.
func (c *Config) Level() slog.Level {
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
