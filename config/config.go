// Package config provides unified configuration loading for the embedflow
// pipeline: defaults, YAML file, then environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("embedflow.yaml").
//	    WithEnvPrefix("EMBEDFLOW").
//	    Load()
package config

import (
	"time"

	"github.com/BaSui01/embedflow/batch"
	"github.com/BaSui01/embedflow/cache"
	"github.com/BaSui01/embedflow/metrics"
	"github.com/BaSui01/embedflow/ratelimit"
	"github.com/BaSui01/embedflow/tuning"
)

// Config is the complete embedflow configuration.
type Config struct {
	// Cache configures the tier hierarchy.
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// RateLimit configures backend admission control.
	RateLimit ratelimit.Config `yaml:"rate_limit" env:"RATE_LIMIT"`

	// Batch configures batch dispatch.
	Batch batch.Config `yaml:"batch" env:"BATCH"`

	// Tuning configures batch-size calibration.
	Tuning tuning.Config `yaml:"tuning" env:"TUNING"`

	// Pool configures vector buffer reuse.
	Pool PoolConfig `yaml:"pool" env:"POOL"`

	// Monitor configures background metrics collection.
	Monitor metrics.MonitorConfig `yaml:"monitor" env:"MONITOR"`

	// Profiler configures per-call sample retention.
	Profiler ProfilerConfig `yaml:"profiler" env:"PROFILER"`

	// Log configures the zap logger.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// CacheConfig configures the cache hierarchy.
type CacheConfig struct {
	// MemoryCapacity is the in-memory tier entry bound.
	MemoryCapacity int `yaml:"memory_capacity" env:"MEMORY_CAPACITY"`

	// Disk configures the persistent tier.
	Disk DiskConfig `yaml:"disk" env:"DISK"`

	// Redis configures the optional remote tier.
	Redis RedisTierConfig `yaml:"redis" env:"REDIS"`

	// Normalize L2-normalizes vectors before caching.
	Normalize bool `yaml:"normalize" env:"NORMALIZE"`
}

// DiskConfig configures the persistent tier.
type DiskConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Path     string `yaml:"path" env:"PATH"`
	MaxBytes int64  `yaml:"max_bytes" env:"MAX_BYTES"`
}

// RedisTierConfig configures the remote tier.
type RedisTierConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	Addr         string        `yaml:"addr" env:"ADDR"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	DB           int           `yaml:"db" env:"DB"`
	TTL          time.Duration `yaml:"ttl" env:"TTL"`
	PoolSize     int           `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// ToTierConfig converts to the cache package's redis config.
func (c RedisTierConfig) ToTierConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		TTL:          c.TTL,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

// PoolConfig configures the buffer pool.
type PoolConfig struct {
	// MaxPerClass bounds each shape class's free list.
	MaxPerClass int `yaml:"max_per_class" env:"MAX_PER_CLASS"`
}

// ProfilerConfig configures the profiler.
type ProfilerConfig struct {
	// HistorySize bounds retained samples per profiled name.
	HistorySize int `yaml:"history_size" env:"HISTORY_SIZE"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console.
	Format string `yaml:"format" env:"FORMAT"`
}

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	redisDefaults := cache.DefaultRedisConfig()
	return &Config{
		Cache: CacheConfig{
			MemoryCapacity: 10000,
			Disk: DiskConfig{
				Enabled:  true,
				Path:     "embedflow-cache.db",
				MaxBytes: 512 << 20,
			},
			Redis: RedisTierConfig{
				Enabled:      false,
				Addr:         redisDefaults.Addr,
				TTL:          redisDefaults.TTL,
				PoolSize:     redisDefaults.PoolSize,
				MinIdleConns: redisDefaults.MinIdleConns,
			},
			Normalize: true,
		},
		RateLimit: ratelimit.DefaultConfig(),
		Batch:     batch.DefaultConfig(),
		Tuning:    tuning.DefaultConfig(),
		Pool:      PoolConfig{MaxPerClass: 16},
		Monitor:   metrics.DefaultMonitorConfig(),
		Profiler:  ProfilerConfig{HistorySize: 1000},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
