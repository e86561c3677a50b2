// Package embedding provides text embedding clients, the lazy model
// registry, and the query embedding cache.
package embedding

import "context"

// Encoder turns texts into dense vectors. Implementations return one vector
// per input text, in order.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	// Model returns the backing model id; cache keys include it so swapping
	// models never serves stale vectors.
	Model() string
}
