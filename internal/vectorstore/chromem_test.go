package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords() []Record {
	// Orthogonal-ish unit vectors so similarity ordering is unambiguous.
	return []Record{
		{ChunkID: "vid-a-sem-0", VideoID: "vid-a", Text: "first chunk", Start: 0, End: 10, Embedding: []float32{1, 0, 0}},
		{ChunkID: "vid-a-sem-1", VideoID: "vid-a", Text: "second chunk", Start: 10, End: 20, Embedding: []float32{0, 1, 0}},
		{ChunkID: "vid-b-sem-0", VideoID: "vid-b", Text: "other video", Start: 0, End: 5, Embedding: []float32{0, 0, 1}},
	}
}

func TestChromemStore_UpsertAndQuery(t *testing.T) {
	store, err := NewInMemory()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecords()))
	assert.Equal(t, 3, store.Count())

	hits, err := store.Query(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "vid-a-sem-0", hits[0].ChunkID)
	assert.Equal(t, 10.0, hits[0].End)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestChromemStore_Query_EmptyStore(t *testing.T) {
	store, err := NewInMemory()
	require.NoError(t, err)

	hits, err := store.Query(context.Background(), []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChromemStore_Query_ClampsK(t *testing.T) {
	store, err := NewInMemory()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecords()))

	// Asking for more results than stored must not error.
	hits, err := store.Query(ctx, []float32{1, 0, 0}, 50, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestChromemStore_Query_VideoFilter(t *testing.T) {
	store, err := NewInMemory()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecords()))

	hits, err := store.Query(ctx, []float32{0, 0, 1}, 5, []string{"vid-b"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "vid-b-sem-0", hits[0].ChunkID)
}

func TestChromemStore_Get(t *testing.T) {
	store, err := NewInMemory()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecords()))

	rec, ok, err := store.Get(ctx, "vid-a-sem-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "vid-a", rec.VideoID)
	assert.Equal(t, 10.0, rec.Start)
	assert.Equal(t, 20.0, rec.End)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChromemStore_DeleteVideo(t *testing.T) {
	store, err := NewInMemory()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecords()))
	require.NoError(t, store.DeleteVideo(ctx, "vid-a"))

	assert.Equal(t, 1, store.Count())

	_, ok, err := store.Get(ctx, "vid-a-sem-0")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChromemStore_Upsert_Overwrites(t *testing.T) {
	store, err := NewInMemory()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecords()))
	require.NoError(t, store.Upsert(ctx, []Record{
		{ChunkID: "vid-a-sem-0", VideoID: "vid-a", Text: "rewritten", Start: 0, End: 12, Embedding: []float32{1, 0, 0}},
	}))

	assert.Equal(t, 3, store.Count())

	rec, ok, err := store.Get(ctx, "vid-a-sem-0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rewritten", rec.Text)
	assert.Equal(t, 12.0, rec.End)
}
