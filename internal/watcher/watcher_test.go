package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clipseek/clipseek/internal/config"
	"github.com/clipseek/clipseek/internal/database/migrations"
	"github.com/clipseek/clipseek/internal/models"
	"github.com/clipseek/clipseek/internal/repository"
)

type fakeEnqueuer struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeEnqueuer) Enqueue(videoID, title string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, videoID)
	return true
}

func setup(t *testing.T) (*Watcher, repository.VideoRepository, *fakeEnqueuer, string) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, migrations.NewMigrator(db, nil).Up(context.Background()))

	dir := t.TempDir()
	videos := repository.NewVideoRepository(db)
	enqueue := &fakeEnqueuer{}
	w := New(config.WatcherConfig{Enabled: true}, dir, videos, enqueue, nil)
	return w, videos, enqueue, dir
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("stub"), 0o644))
}

func TestWatcher_Scan(t *testing.T) {
	w, videos, _, dir := setup(t)
	ctx := context.Background()

	touch(t, dir, "lecture-01.mp4")
	touch(t, dir, "lecture-02.MKV")
	touch(t, dir, "notes.txt")

	result, err := w.Scan(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalFiles)
	assert.Equal(t, 0, result.Already)
	require.Len(t, result.Added, 2)

	video, err := videos.GetByID(ctx, "lecture-01")
	require.NoError(t, err)
	require.NotNil(t, video)
	assert.Equal(t, models.VideoStatusAdded, video.Status)
	assert.Equal(t, "lecture-01", video.Title)
	assert.True(t, filepath.IsAbs(video.LocalPath))
}

func TestWatcher_ScanIdempotent(t *testing.T) {
	w, _, _, dir := setup(t)
	ctx := context.Background()

	touch(t, dir, "lecture-01.mp4")

	first, err := w.Scan(ctx, false)
	require.NoError(t, err)
	require.Len(t, first.Added, 1)

	second, err := w.Scan(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, second.Added)
	assert.Equal(t, 1, second.Already)
}

func TestWatcher_ScanEnqueuesWhenProcessing(t *testing.T) {
	w, _, enqueue, dir := setup(t)

	touch(t, dir, "lecture-01.mp4")
	touch(t, dir, "lecture-02.mp4")

	_, err := w.Scan(context.Background(), true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lecture-01", "lecture-02"}, enqueue.ids)
}

func TestWatcher_ScanMissingDir(t *testing.T) {
	w, _, _, _ := setup(t)
	w.dir = filepath.Join(t.TempDir(), "nope")

	_, err := w.Scan(context.Background(), false)
	assert.Error(t, err)
}
