package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clipseek/clipseek/internal/database/migrations"
	"github.com/clipseek/clipseek/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	migrator := migrations.NewMigrator(db, nil)
	require.NoError(t, migrator.Up(context.Background()))

	return db
}

func createTestVideo(t *testing.T, db *gorm.DB, id, channel string) *models.Video {
	t.Helper()
	video := &models.Video{
		VideoID:     id,
		Title:       "Video " + id,
		LocalPath:   "/data/videos/" + id + ".mp4",
		Status:      models.VideoStatusAdded,
		CreatedAt:   time.Now().UTC(),
		ChannelName: channel,
	}
	require.NoError(t, db.Create(video).Error)
	return video
}

func createTestSegments(t *testing.T, db *gorm.DB, videoID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		seg := &models.Segment{
			SegmentID: videoID + "-raw-" + string(rune('a'+i)),
			VideoID:   videoID,
			StartSec:  float64(i) * 5,
			EndSec:    float64(i)*5 + 4,
			Text:      "segment text",
		}
		require.NoError(t, db.Create(seg).Error)
	}
}

func TestVideoRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	video := &models.Video{
		VideoID:   "vid-001",
		Title:     "Test Video",
		LocalPath: "/data/videos/vid-001.mp4",
		Status:    models.VideoStatusAdded,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, video))

	found, err := repo.GetByID(ctx, "vid-001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Test Video", found.Title)
	assert.Equal(t, models.VideoStatusAdded, found.Status)
}

func TestVideoRepo_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)

	found, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestVideoRepo_List_WithSegmentCounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	createTestVideo(t, db, "vid-a", "channel-one")
	createTestVideo(t, db, "vid-b", "channel-two")
	createTestSegments(t, db, "vid-a", 3)

	summaries, err := repo.List(ctx, VideoListOptions{})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	counts := map[string]int64{}
	for _, s := range summaries {
		counts[s.VideoID] = s.SegmentCount
	}
	assert.Equal(t, int64(3), counts["vid-a"])
	assert.Equal(t, int64(0), counts["vid-b"])
}

func TestVideoRepo_List_ChannelFilter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	createTestVideo(t, db, "vid-a", "channel-one")
	createTestVideo(t, db, "vid-b", "channel-two")

	summaries, err := repo.List(ctx, VideoListOptions{Channel: "channel-two"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "vid-b", summaries[0].VideoID)
}

func TestVideoRepo_UpdateStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	createTestVideo(t, db, "vid-a", "")

	require.NoError(t, repo.UpdateStatus(ctx, "vid-a", models.VideoStatusTranscribed))

	found, err := repo.GetByID(ctx, "vid-a")
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusTranscribed, found.Status)
}

func TestVideoRepo_UpdateStatus_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)

	err := repo.UpdateStatus(context.Background(), "missing", models.VideoStatusIndexed)
	assert.ErrorIs(t, err, models.ErrVideoNotFound)
}

func TestVideoRepo_DeleteCascade(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	createTestVideo(t, db, "vid-a", "")
	createTestVideo(t, db, "vid-b", "")
	createTestSegments(t, db, "vid-a", 2)
	require.NoError(t, db.Create(&models.Clip{
		VideoID:  "vid-a",
		StartSec: 1,
		EndSec:   2,
		Path:     "/data/clips/x.mp4",
	}).Error)

	stats, err := repo.DeleteCascade(ctx, "vid-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Segments)
	assert.Equal(t, int64(1), stats.Clips)

	found, err := repo.GetByID(ctx, "vid-a")
	require.NoError(t, err)
	assert.Nil(t, found)

	// The other video is untouched.
	other, err := repo.GetByID(ctx, "vid-b")
	require.NoError(t, err)
	require.NotNil(t, other)

	var segCount int64
	require.NoError(t, db.Model(&models.Segment{}).Count(&segCount).Error)
	assert.Equal(t, int64(0), segCount)
}

func TestVideoRepo_DeleteCascade_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)

	_, err := repo.DeleteCascade(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrVideoNotFound)
}

func TestVideoRepo_Channels(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	createTestVideo(t, db, "vid-a", "News")
	createTestVideo(t, db, "vid-b", "News")
	createTestVideo(t, db, "vid-c", "Talks")
	// Videos without a channel stay out of the aggregation.
	createTestVideo(t, db, "vid-d", "")

	channels, err := repo.Channels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 2)

	assert.Equal(t, "News", channels[0].Name)
	assert.Equal(t, int64(2), channels[0].Count)
	assert.Equal(t, "Talks", channels[1].Name)
	assert.Equal(t, int64(1), channels[1].Count)
}

func TestVideoRepo_Channels_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)

	channels, err := repo.Channels(context.Background())
	require.NoError(t, err)
	assert.Empty(t, channels)
}
