// Package watcher discovers new video files and feeds them into the
// catalog and, optionally, the processing pipeline.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/clipseek/clipseek/internal/config"
	"github.com/clipseek/clipseek/internal/models"
	"github.com/clipseek/clipseek/internal/repository"
)

// videoExtensions are the file suffixes treated as video files.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
	".flv":  true,
	".wmv":  true,
	".m4v":  true,
}

// Enqueuer submits a video for transcribe + index.
type Enqueuer interface {
	Enqueue(videoID, title string) bool
}

// ScanResult summarizes one directory pass.
type ScanResult struct {
	Added      []*models.Video
	Already    int
	TotalFiles int
}

// Watcher scans the video directory on a fixed schedule. The video id is
// the file stem, so dropping a file into the directory twice is a no-op.
type Watcher struct {
	cfg     config.WatcherConfig
	dir     string
	videos  repository.VideoRepository
	enqueue Enqueuer
	logger  *slog.Logger
	cron    *cron.Cron
}

// New creates a watcher over dir.
func New(cfg config.WatcherConfig, dir string, videos repository.VideoRepository, enqueue Enqueuer, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:     cfg,
		dir:     dir,
		videos:  videos,
		enqueue: enqueue,
		logger:  logger,
	}
}

// Start schedules the periodic scan. No-op when the watcher is disabled.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.cfg.Enabled {
		w.logger.Info("watcher disabled")
		return nil
	}

	w.cron = cron.New()
	spec := fmt.Sprintf("@every %s", w.cfg.Interval)
	_, err := w.cron.AddFunc(spec, func() {
		if _, err := w.Scan(ctx, w.cfg.AutoProcess); err != nil {
			w.logger.Error("scan failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling scan: %w", err)
	}
	w.cron.Start()
	w.logger.Info("watcher started",
		slog.String("dir", w.dir),
		slog.Duration("interval", w.cfg.Interval),
		slog.Bool("auto_process", w.cfg.AutoProcess),
	)
	return nil
}

// Stop halts the schedule and waits for a running scan to finish.
func (w *Watcher) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

// Scan walks the video directory once, registering unknown files with
// status "added". When process is set, new videos are also enqueued.
func (w *Watcher) Scan(ctx context.Context, process bool) (*ScanResult, error) {
	dirEntries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", w.dir, err)
	}

	known, err := w.videos.List(ctx, repository.VideoListOptions{})
	if err != nil {
		return nil, err
	}
	knownIDs := make(map[string]bool, len(known))
	knownPaths := make(map[string]bool, len(known))
	for _, v := range known {
		knownIDs[v.VideoID] = true
		if v.LocalPath != "" {
			knownPaths[v.LocalPath] = true
		}
	}

	result := &ScanResult{}
	for _, entry := range dirEntries {
		if entry.IsDir() || !videoExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		result.TotalFiles++

		path := filepath.Join(w.dir, entry.Name())
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		videoID := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if knownIDs[videoID] || knownPaths[path] {
			result.Already++
			continue
		}

		video := &models.Video{
			VideoID:   videoID,
			Title:     videoID,
			LocalPath: path,
			Status:    models.VideoStatusAdded,
			CreatedAt: time.Now().UTC(),
		}
		if err := w.videos.Create(ctx, video); err != nil {
			w.logger.Error("registering video",
				slog.String("video_id", videoID),
				slog.String("error", err.Error()),
			)
			continue
		}
		knownIDs[videoID] = true
		result.Added = append(result.Added, video)
		w.logger.Info("new video", slog.String("video_id", videoID))
	}

	if process && w.enqueue != nil {
		for _, v := range result.Added {
			w.enqueue.Enqueue(v.VideoID, v.Title)
		}
	}
	return result, nil
}
