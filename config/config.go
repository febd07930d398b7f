// Package config loads the silo command configuration from a silo.yaml
// file, SILO_* environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/syssam/silo/dialect"
	"github.com/syssam/silo/dialect/sql/schema"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Migrate  MigrateConfig  `mapstructure:"migrate"`
	Models   ModelsConfig   `mapstructure:"models"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type DatabaseConfig struct {
	Dialect      string `mapstructure:"dialect"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MigrateConfig struct {
	// Policy is one of check_only, enforce, safe and ignore.
	Policy string `mapstructure:"policy"`
	// Dir is the directory versioned migration files are written to.
	Dir string `mapstructure:"dir"`
}

type ModelsConfig struct {
	// Paths are declaration files or directories.
	Paths []string `mapstructure:"paths"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	// Addr is where long-running commands serve /metrics.
	Addr string `mapstructure:"addr"`
}

// Load reads the configuration. An empty path searches for silo.yaml in
// ./configs and the working directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("silo")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	setDefaults(v)

	v.SetEnvPrefix("silo")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dialect", dialect.SQLite)
	v.SetDefault("database.dsn", "file:silo.db?_pragma=foreign_keys(1)")
	v.SetDefault("database.max_open_conns", 0)

	v.SetDefault("migrate.policy", "check_only")
	v.SetDefault("migrate.dir", "migrations")

	v.SetDefault("models.paths", []string{"models"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.slow_threshold", "200ms")
	v.SetDefault("metrics.addr", ":9464")
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Dialect {
	case dialect.SQLite, dialect.Postgres, dialect.MySQL:
	default:
		errs = append(errs, fmt.Errorf("database.dialect: unsupported dialect %q", c.Database.Dialect))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn: must be set"))
	}
	if c.Database.MaxOpenConns < 0 {
		errs = append(errs, errors.New("database.max_open_conns: must not be negative"))
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, fmt.Errorf("migrate.policy: %w", err))
	}
	if len(c.Models.Paths) == 0 {
		errs = append(errs, errors.New("models.paths: at least one path is required"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Metrics.SlowThreshold < 0 {
		errs = append(errs, errors.New("metrics.slow_threshold: must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Policy returns the configured migration policy.
func (c *Config) Policy() (schema.Policy, error) {
	return schema.ParsePolicy(c.Migrate.Policy)
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.Log.Level))
	return l, err
}

// Logger returns a logger writing to w at the configured level and format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
