// Package ratelimit provides token-bucket admission control for calls into
// the embedding backend.
package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/BaSui01/embedflow/types"
)

// Config configures a Limiter.
type Config struct {
	// RatePerSecond is the steady-state token refill rate.
	RatePerSecond float64 `yaml:"rate_per_second" json:"rate_per_second"`

	// Burst caps accumulated tokens; the bucket starts full.
	Burst int `yaml:"burst" json:"burst"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RatePerSecond: 10,
		Burst:         5,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.RatePerSecond <= 0 {
		return types.ConfigError(fmt.Sprintf("rate_per_second must be positive, got %g", c.RatePerSecond))
	}
	if c.Burst <= 0 {
		return types.ConfigError(fmt.Sprintf("burst must be positive, got %d", c.Burst))
	}
	return nil
}

// Limiter admits one backend call per token. Tokens refill at RatePerSecond
// up to Burst; Acquire blocks until a token is available. Waiters are served
// approximately first-come-first-served, and a caller cancelled while waiting
// does not consume a token.
type Limiter struct {
	limiter *rate.Limiter

	acquired  atomic.Int64
	waitNanos atomic.Int64
}

// NewLimiter creates a Limiter with a full bucket.
func NewLimiter(config Config) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
	}, nil
}

// Acquire consumes exactly one token, blocking until one is available or ctx
// is cancelled. Cancellation while waiting returns the context error without
// consuming a token.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return types.NewError(types.ErrRateLimited, "admission rejected").WithCause(err)
	}
	l.acquired.Add(1)
	l.waitNanos.Add(int64(time.Since(start)))
	return nil
}

// Tokens returns the current token count, in [0, burst].
func (l *Limiter) Tokens() float64 {
	t := l.limiter.Tokens()
	if t < 0 {
		return 0
	}
	if max := float64(l.limiter.Burst()); t > max {
		return max
	}
	return t
}

// Stats returns limiter statistics.
func (l *Limiter) Stats() Stats {
	acquired := l.acquired.Load()
	s := Stats{Acquired: acquired}
	if acquired > 0 {
		s.AvgWaitMs = float64(l.waitNanos.Load()) / float64(acquired) / 1e6
	}
	return s
}

// Stats contains limiter statistics.
type Stats struct {
	Acquired  int64   `json:"acquired"`
	AvgWaitMs float64 `json:"avg_wait_ms"`
}
