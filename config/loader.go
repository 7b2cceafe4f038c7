package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/embedflow/types"
)

// Loader loads configuration with precedence: defaults, then YAML file, then
// environment variables.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a Loader with the default env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "EMBEDFLOW"}
}

// WithConfigPath sets the YAML file path. A missing file is not an error;
// defaults apply.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load resolves the configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on any invalid value; nothing is silently clamped.
func (c *Config) Validate() error {
	if c.Cache.MemoryCapacity <= 0 {
		return types.ConfigError(fmt.Sprintf("cache memory_capacity must be positive, got %d", c.Cache.MemoryCapacity))
	}
	if c.Cache.Disk.Enabled {
		if c.Cache.Disk.Path == "" {
			return types.ConfigError("cache disk path must not be empty")
		}
		if c.Cache.Disk.MaxBytes <= 0 {
			return types.ConfigError(fmt.Sprintf("cache disk max_bytes must be positive, got %d", c.Cache.Disk.MaxBytes))
		}
	}
	if c.Cache.Redis.Enabled {
		if err := c.Cache.Redis.ToTierConfig().Validate(); err != nil {
			return err
		}
	}
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}
	if err := c.Batch.Validate(); err != nil {
		return err
	}
	if err := c.Tuning.Validate(); err != nil {
		return err
	}
	if c.Pool.MaxPerClass <= 0 {
		return types.ConfigError(fmt.Sprintf("pool max_per_class must be positive, got %d", c.Pool.MaxPerClass))
	}
	if err := c.Monitor.Validate(); err != nil {
		return err
	}
	if c.Profiler.HistorySize <= 0 {
		return types.ConfigError(fmt.Sprintf("profiler history_size must be positive, got %d", c.Profiler.HistorySize))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return types.ConfigError(fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	return nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	}
	return nil
}
