// Package embedflow is the adaptive performance layer between an embedding
// backend and its callers. A Pipeline batches incoming texts, admits backend
// calls through a token bucket, serves repeats from a tiered vector cache,
// reuses numeric buffers across batches, and tunes its own batch size against
// the live backend.
//
// Usage:
//
//	p, err := embedflow.New(provider)
//	p.Calibrate(ctx, samples)
//	vectors, err := p.EmbedDocuments(ctx, texts)
package embedflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/embedflow/backend"
	"github.com/BaSui01/embedflow/cache"
	"github.com/BaSui01/embedflow/config"
)

// Option configures the Pipeline created by [New].
type Option func(*pipelineOptions)

type pipelineOptions struct {
	config   *config.Config
	logger   *zap.Logger
	registry prometheus.Registerer
	tiers    []cache.Tier
}

// WithConfig supplies a full configuration instead of defaults.
func WithConfig(cfg *config.Config) Option {
	return func(o *pipelineOptions) { o.config = cfg }
}

// WithLogger supplies the logger; defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *pipelineOptions) { o.logger = logger }
}

// WithPrometheus registers pipeline metrics on reg.
func WithPrometheus(reg prometheus.Registerer) Option {
	return func(o *pipelineOptions) { o.registry = reg }
}

// WithTiers replaces the configured cache tiers entirely, fastest first.
func WithTiers(tiers ...cache.Tier) Option {
	return func(o *pipelineOptions) { o.tiers = tiers }
}

// New creates a Pipeline over provider.
func New(provider backend.Provider, opts ...Option) (*Pipeline, error) {
	return newPipeline(provider, opts...)
}
