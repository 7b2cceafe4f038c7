// Package backend defines the embedding backend contract consumed by the
// pipeline. Transport, retries, and provider selection live outside this
// module; the pipeline only needs a way to turn texts into vectors.
package backend

import (
	"context"

	"github.com/BaSui01/embedflow/types"
)

// Provider generates embeddings for batches of text.
//
// A Provider may fail transiently; it performs no retries of its own. Callers
// decide whether to retry based on the returned error.
type Provider interface {
	// Embed generates one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([]types.Vector, error)

	// Name returns the provider name for logging and metrics.
	Name() string

	// Dimensions returns the fixed vector length this provider produces.
	Dimensions() int

	// MaxBatchSize returns the largest batch the provider accepts, or 0 for
	// no limit.
	MaxBatchSize() int
}
