package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFTSRepo_ReplaceAndSearch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFTSRepository(db)
	ctx := context.Background()

	entries := []FTSEntry{
		{ChunkID: "vid-a-sem-0", VideoID: "vid-a", Text: "the quick brown fox jumps over the lazy dog"},
		{ChunkID: "vid-a-sem-1", VideoID: "vid-a", Text: "an unrelated sentence about databases"},
	}
	require.NoError(t, repo.Replace(ctx, "vid-a", entries))

	hits, err := repo.Search(ctx, "fox", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "vid-a-sem-0", hits[0].ChunkID)
	assert.Equal(t, "vid-a", hits[0].VideoID)
	// bm25 ranks are negative for matches.
	assert.Less(t, hits[0].Rank, 0.0)
}

func TestFTSRepo_Search_Cyrillic(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFTSRepository(db)
	ctx := context.Background()

	entries := []FTSEntry{
		{ChunkID: "vid-a-sem-0", VideoID: "vid-a", Text: "сегодня мы обсудим рынок недвижимости"},
	}
	require.NoError(t, repo.Replace(ctx, "vid-a", entries))

	hits, err := repo.Search(ctx, "недвижимости", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "vid-a-sem-0", hits[0].ChunkID)
}

func TestFTSRepo_Replace_SwapsRows(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFTSRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, "vid-a", []FTSEntry{
		{ChunkID: "vid-a-sem-0", VideoID: "vid-a", Text: "stale text"},
	}))
	require.NoError(t, repo.Replace(ctx, "vid-a", []FTSEntry{
		{ChunkID: "vid-a-sem-0", VideoID: "vid-a", Text: "fresh text"},
		{ChunkID: "vid-a-sem-1", VideoID: "vid-a", Text: "more fresh text"},
	}))

	ids, err := repo.ChunkIDs(ctx, "vid-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"vid-a-sem-0", "vid-a-sem-1"}, ids)

	hits, err := repo.Search(ctx, "stale", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFTSRepo_DeleteVideo(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFTSRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, "vid-a", []FTSEntry{
		{ChunkID: "vid-a-sem-0", VideoID: "vid-a", Text: "text a"},
	}))
	require.NoError(t, repo.Replace(ctx, "vid-b", []FTSEntry{
		{ChunkID: "vid-b-sem-0", VideoID: "vid-b", Text: "text b"},
	}))

	n, err := repo.DeleteVideo(ctx, "vid-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ids, err := repo.ChunkIDs(ctx, "vid-b")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}
