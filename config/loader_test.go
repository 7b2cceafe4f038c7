package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/embedflow/types"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 10000, cfg.Cache.MemoryCapacity)
	assert.True(t, cfg.Cache.Disk.Enabled)
	assert.False(t, cfg.Cache.Redis.Enabled)
	assert.True(t, cfg.Cache.Normalize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 16, cfg.Pool.MaxPerClass)
	assert.Equal(t, 1000, cfg.Profiler.HistorySize)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).
		Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Cache.MemoryCapacity, cfg.Cache.MemoryCapacity)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embedflow.yaml")
	content := `
cache:
  memory_capacity: 128
  normalize: false
  disk:
    enabled: false
batch:
  batch_size: 8
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.Cache.MemoryCapacity)
	assert.False(t, cfg.Cache.Normalize)
	assert.False(t, cfg.Cache.Disk.Enabled)
	assert.Equal(t, 8, cfg.Batch.BatchSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache: ["), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EMBEDFLOW_CACHE_MEMORY_CAPACITY", "64")
	t.Setenv("EMBEDFLOW_CACHE_DISK_ENABLED", "false")
	t.Setenv("EMBEDFLOW_CACHE_REDIS_TTL", "90s")
	t.Setenv("EMBEDFLOW_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Cache.MemoryCapacity)
	assert.False(t, cfg.Cache.Disk.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Cache.Redis.TTL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embedflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  memory_capacity: 128\n"), 0o644))
	t.Setenv("EMBEDFLOW_CACHE_MEMORY_CAPACITY", "256")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Cache.MemoryCapacity)
}

func TestLoad_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_LOG_LEVEL", "error")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("EMBEDFLOW_CACHE_MEMORY_CAPACITY", "not-a-number")

	_, err := NewLoader().Load()
	require.Error(t, err)
}

func TestConfig_ValidateFailsFast(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero memory capacity", mutate: func(c *Config) { c.Cache.MemoryCapacity = 0 }},
		{name: "disk enabled without path", mutate: func(c *Config) { c.Cache.Disk.Path = "" }},
		{name: "disk enabled zero bound", mutate: func(c *Config) { c.Cache.Disk.MaxBytes = 0 }},
		{name: "redis enabled without addr", mutate: func(c *Config) {
			c.Cache.Redis.Enabled = true
			c.Cache.Redis.Addr = ""
		}},
		{name: "zero rate", mutate: func(c *Config) { c.RateLimit.RatePerSecond = 0 }},
		{name: "zero batch size", mutate: func(c *Config) { c.Batch.BatchSize = 0 }},
		{name: "zero pool bound", mutate: func(c *Config) { c.Pool.MaxPerClass = 0 }},
		{name: "zero profiler history", mutate: func(c *Config) { c.Profiler.HistorySize = 0 }},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, types.ErrConfigInvalid, types.GetErrorCode(err))
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		t.Run(format, func(t *testing.T) {
			logger, err := NewLogger(LogConfig{Level: "debug", Format: format})
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.Debug("logger constructed")
		})
	}

	_, err := NewLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
