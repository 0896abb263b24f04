package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 365, cfg.Retention.DefaultDays)
	assert.Equal(t, 80.0, cfg.Storage.WarningPercent)
	assert.Equal(t, filepath.Join("data", "familypoints.db"), cfg.DatabasePath())
}

func TestLoad_OverridesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("FP_DATA_DIR", "/var/lib/familypoints")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  addr: ":9090"
  shutdown_timeout: 3s
storage:
  dir: ${FP_DATA_DIR}
  quota_bytes: 1048576
retention:
  auto_prune_interval: 24h
logging:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/var/lib/familypoints", cfg.Storage.Dir)
	assert.Equal(t, int64(1048576), cfg.Storage.QuotaBytes)
	assert.Equal(t, "familypoints.db", cfg.Storage.Database, "unset fields keep defaults")
	assert.Equal(t, "/var/lib/familypoints/fallback", cfg.FallbackDir())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 24*time.Hour, cfg.Retention.AutoPruneInterval)
	assert.Equal(t, 365, cfg.Retention.DefaultDays)
}

func TestParse_InMemoryDatabase(t *testing.T) {
	cfg, err := Parse([]byte("storage:\n  database: \":memory:\"\n"))
	require.NoError(t, err)
	assert.True(t, cfg.InMemory())
	assert.Equal(t, ":memory:", cfg.DatabasePath())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"empty database", func(c *Config) { c.Storage.Database = "" }},
		{"negative quota", func(c *Config) { c.Storage.QuotaBytes = -1 }},
		{"warning over 100", func(c *Config) { c.Storage.WarningPercent = 120 }},
		{"zero retention", func(c *Config) { c.Retention.DefaultDays = 0 }},
		{"negative prune interval", func(c *Config) { c.Retention.AutoPruneInterval = -time.Minute }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParse_BadDuration(t *testing.T) {
	_, err := Parse([]byte("server:\n  shutdown_timeout: soon\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("retention:\n  auto_prune_interval: weekly\n"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := NewLogger(LoggingConfig{Level: "warn", Format: format})
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(-1), "debug disabled at warn level")
	}
}
