// Package config loads the server configuration from YAML.
//
// Values of the form ${VAR_NAME} are replaced by the environment variable
// before parsing. Missing fields take the values from Default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`
}

// StorageConfig locates the durable store and the fallback area.
type StorageConfig struct {
	Dir      string `yaml:"dir"`
	Database string `yaml:"database"` // file name under Dir, or ":memory:"

	// QuotaBytes caps the reported quota. Zero asks the filesystem.
	QuotaBytes     int64   `yaml:"quota_bytes"`
	WarningPercent float64 `yaml:"warning_percent"`
}

// RetentionConfig holds the default pruning window.
type RetentionConfig struct {
	DefaultDays int `yaml:"default_days"`

	// AutoPruneInterval runs the prune in the background. Zero disables it.
	AutoPruneInterval    time.Duration `yaml:"-"`
	AutoPruneIntervalRaw string        `yaml:"auto_prune_interval"`
}

// LoggingConfig selects the zap preset.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// CORSConfig lists the origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Dir:            "data",
			Database:       "familypoints.db",
			WarningPercent: 80,
		},
		Retention: RetentionConfig{DefaultDays: 365},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		CORS:      CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

// Load reads path on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Server.ShutdownTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if cfg.Retention.AutoPruneIntervalRaw != "" {
		d, err := time.ParseDuration(cfg.Retention.AutoPruneIntervalRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing auto_prune_interval %q: %w", cfg.Retention.AutoPruneIntervalRaw, err)
		}
		cfg.Retention.AutoPruneInterval = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or with the
// empty string when it is unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Validate returns the first invalid field.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Storage.Database == "" {
		return fmt.Errorf("storage.database is required")
	}
	if c.Storage.Dir == "" && !c.InMemory() {
		return fmt.Errorf("storage.dir is required for a file database")
	}
	if c.Storage.QuotaBytes < 0 {
		return fmt.Errorf("storage.quota_bytes must not be negative")
	}
	if c.Storage.WarningPercent <= 0 || c.Storage.WarningPercent > 100 {
		return fmt.Errorf("storage.warning_percent must be in (0, 100], got %v", c.Storage.WarningPercent)
	}
	if c.Retention.DefaultDays <= 0 {
		return fmt.Errorf("retention.default_days must be positive")
	}
	if c.Retention.AutoPruneInterval < 0 {
		return fmt.Errorf("retention.auto_prune_interval must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// InMemory reports whether the database lives only for the process.
func (c *Config) InMemory() bool {
	return c.Storage.Database == ":memory:"
}

// DatabasePath is the DSN path handed to the SQLite store.
func (c *Config) DatabasePath() string {
	if c.InMemory() || filepath.IsAbs(c.Storage.Database) {
		return c.Storage.Database
	}
	return filepath.Join(c.Storage.Dir, c.Storage.Database)
}

// FallbackDir is where the fallback key/value files are written.
func (c *Config) FallbackDir() string {
	return filepath.Join(c.Storage.Dir, "fallback")
}

// NewLogger builds a zap logger for cfg: production (JSON) or development
// (console) encoding at the configured level.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if strings.EqualFold(cfg.Format, "console") {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
