package domain

import (
	"context"
)

// VectorEncoder defines the interface for generating embeddings.
// Encode is batched: one call embeds all texts in order. Implementations
// must be deterministic for identical input, so embedding a batch of N
// texts yields the same vectors as N single-text calls.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}
