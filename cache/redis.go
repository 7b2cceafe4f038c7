package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/embedflow/types"
)

// RedisConfig configures the optional remote tier.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`

	// TTL bounds entry lifetime; redis itself bounds capacity via its own
	// maxmemory policy.
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	PoolSize     int `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`
}

// DefaultRedisConfig returns default remote tier settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		TTL:          30 * time.Minute,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// Validate reports configuration errors.
func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return types.ConfigError("redis tier addr must not be empty")
	}
	if c.TTL <= 0 {
		return types.ConfigError(fmt.Sprintf("redis tier ttl must be positive, got %s", c.TTL))
	}
	return nil
}

// RedisTier is the optional remote tier. It stores encoded vectors with a
// TTL; capacity enforcement is delegated to the redis server's eviction
// policy, so the tier never evicts locally.
type RedisTier struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	counters
}

// NewRedisTier connects to redis and verifies the connection.
func NewRedisTier(config RedisConfig, logger *zap.Logger) (*RedisTier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, types.StorageError("redis", fmt.Errorf("failed to connect to redis: %w", err))
	}

	logger.Info("redis tier initialized",
		zap.String("addr", config.Addr),
		zap.Duration("ttl", config.TTL),
	)

	return &RedisTier{
		client: client,
		ttl:    config.TTL,
		logger: logger.With(zap.String("component", "cache.redis")),
	}, nil
}

// Name implements Tier.
func (t *RedisTier) Name() string { return "redis" }

// Get implements Tier.
func (t *RedisTier) Get(ctx context.Context, key string) (types.Vector, bool, error) {
	blob, err := t.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		t.miss()
		return nil, false, nil
	}
	if err != nil {
		t.miss()
		return nil, false, types.StorageError(t.Name(), err)
	}
	t.hit()
	return types.DecodeVector(blob), true, nil
}

// Set implements Tier.
func (t *RedisTier) Set(ctx context.Context, key string, value types.Vector) error {
	t.requests.Add(1)
	if err := t.client.Set(ctx, key, types.EncodeVector(value), t.ttl).Err(); err != nil {
		return types.StorageError(t.Name(), err)
	}
	return nil
}

// Stats implements Tier.
func (t *RedisTier) Stats() TierStats {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	entries, err := t.client.DBSize(ctx).Result()
	if err != nil {
		entries = 0
	}
	return TierStats{
		Name:     t.Name(),
		Requests: t.requests.Load(),
		Hits:     t.hits.Load(),
		Misses:   t.misses.Load(),
		Entries:  entries,
	}
}

// Close implements Tier.
func (t *RedisTier) Close() error { return t.client.Close() }
