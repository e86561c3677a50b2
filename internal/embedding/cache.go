package embedding

import (
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryCache memoizes query embeddings. Search queries repeat often (UI
// pagination, retries) and each miss costs a round trip to the embedding
// server, so even a small LRU pays for itself.
type QueryCache struct {
	cache *lru.Cache[string, []float32]
}

// NewQueryCache creates a cache holding up to size entries.
func NewQueryCache(size int) (*QueryCache, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("creating query cache: %w", err)
	}
	return &QueryCache{cache: cache}, nil
}

// cacheKey binds the entry to both model and text; a NUL separator keeps
// ("ab","c") and ("a","bc") distinct.
func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return fmt.Sprintf("%x", sum)
}

// Get returns the cached vector for (model, text), if present.
func (c *QueryCache) Get(model, text string) ([]float32, bool) {
	return c.cache.Get(cacheKey(model, text))
}

// Put stores the vector for (model, text).
func (c *QueryCache) Put(model, text string, vector []float32) {
	c.cache.Add(cacheKey(model, text), vector)
}

// Len returns the number of cached entries.
func (c *QueryCache) Len() int {
	return c.cache.Len()
}
