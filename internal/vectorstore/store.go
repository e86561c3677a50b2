// Package vectorstore persists chunk embeddings and serves nearest-neighbor
// queries for the dense half of hybrid search.
package vectorstore

import "context"

// Record is one stored chunk with its embedding and timing metadata.
type Record struct {
	ChunkID   string
	VideoID   string
	Text      string
	Start     float64
	End       float64
	Embedding []float32
}

// Hit is one nearest-neighbor match.
type Hit struct {
	ChunkID    string
	VideoID    string
	Text       string
	Start      float64
	End        float64
	Similarity float32
}

// Store is the dense index. Implementations must tolerate queries against
// an empty store and upserts that overwrite existing chunk ids.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	// Query returns up to k hits by descending similarity. A non-empty
	// videoIDs restricts results to those videos.
	Query(ctx context.Context, embedding []float32, k int, videoIDs []string) ([]Hit, error)
	// Get fetches one record by chunk id; the bool reports existence.
	Get(ctx context.Context, chunkID string) (*Record, bool, error)
	DeleteVideo(ctx context.Context, videoID string) error
	Count() int
}
