package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCache_HitAndMiss(t *testing.T) {
	cache, err := NewQueryCache(4)
	require.NoError(t, err)

	_, ok := cache.Get("model-a", "hello")
	assert.False(t, ok)

	cache.Put("model-a", "hello", []float32{0.1, 0.2})

	vec, ok := cache.Get("model-a", "hello")
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestQueryCache_KeyIncludesModel(t *testing.T) {
	cache, err := NewQueryCache(4)
	require.NoError(t, err)

	cache.Put("model-a", "hello", []float32{1})

	// Same text under a different model must miss.
	_, ok := cache.Get("model-b", "hello")
	assert.False(t, ok)
}

func TestQueryCache_Eviction(t *testing.T) {
	cache, err := NewQueryCache(2)
	require.NoError(t, err)

	cache.Put("m", "one", []float32{1})
	cache.Put("m", "two", []float32{2})
	cache.Put("m", "three", []float32{3})

	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Get("m", "one")
	assert.False(t, ok)
}
