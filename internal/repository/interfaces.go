// Package repository defines data access interfaces for clipseek entities.
// All catalog access goes through these interfaces, enabling easy testing
// with in-memory SQLite.
package repository

import (
	"context"

	"github.com/clipseek/clipseek/internal/models"
)

// VideoListOptions filters and pages the video listing.
type VideoListOptions struct {
	Channel string
	Status  models.VideoStatus
	Limit   int
	Offset  int
}

// VideoSummary is a video row joined with its segment count.
type VideoSummary struct {
	models.Video `gorm:"embedded"`
	SegmentCount int64 `gorm:"column:segment_count" json:"segment_count"`
}

// ChannelCount is one channel with its video count.
type ChannelCount struct {
	Name  string `gorm:"column:name" json:"name"`
	Count int64  `gorm:"column:count" json:"count"`
}

// DeleteStats reports what a cascading video delete removed.
type DeleteStats struct {
	Segments int64 `json:"segments"`
	Clips    int64 `json:"clips"`
	FTSRows  int64 `json:"fts_rows"`
}

// VideoRepository manages video catalog rows.
type VideoRepository interface {
	Create(ctx context.Context, video *models.Video) error
	// GetByID returns (nil, nil) when the video does not exist.
	GetByID(ctx context.Context, id string) (*models.Video, error)
	List(ctx context.Context, opts VideoListOptions) ([]*VideoSummary, error)
	// Channels aggregates videos by channel name, most populated first.
	Channels(ctx context.Context) ([]*ChannelCount, error)
	GetByStatus(ctx context.Context, status models.VideoStatus) ([]*models.Video, error)
	Update(ctx context.Context, video *models.Video) error
	UpdateStatus(ctx context.Context, id string, status models.VideoStatus) error
	// DeleteCascade removes the video and its segments, clips, and lexical
	// rows in one transaction. The vector store is cleaned separately.
	DeleteCascade(ctx context.Context, id string) (*DeleteStats, error)
}

// SegmentRepository manages raw ASR segments.
type SegmentRepository interface {
	// GetByVideo returns segments ordered by start time.
	GetByVideo(ctx context.Context, videoID string) ([]*models.Segment, error)
	CountByVideo(ctx context.Context, videoID string) (int64, error)
	// ReplaceAll atomically swaps a video's segments for the given set.
	ReplaceAll(ctx context.Context, videoID string, segments []*models.Segment) error
	DeleteByVideo(ctx context.Context, videoID string) error
}

// ClipRepository manages cut clips.
type ClipRepository interface {
	Create(ctx context.Context, clip *models.Clip) error
	// GetByID returns (nil, nil) when the clip does not exist.
	GetByID(ctx context.Context, id string) (*models.Clip, error)
	ListByVideo(ctx context.Context, videoID string) ([]*models.Clip, error)
	List(ctx context.Context) ([]*models.Clip, error)
	Delete(ctx context.Context, id string) error
}

// FTSEntry is one chunk row for the lexical index.
type FTSEntry struct {
	ChunkID string
	VideoID string
	Text    string
}

// FTSHit is one bm25-ranked match from the lexical index. Rank is the raw
// bm25 value; lower (more negative) means more relevant.
type FTSHit struct {
	ChunkID string
	VideoID string
	Text    string
	Rank    float64
}

// FTSRepository manages the SQLite FTS5 lexical index over chunks.
type FTSRepository interface {
	// Replace atomically swaps a video's rows for the given entries.
	Replace(ctx context.Context, videoID string, entries []FTSEntry) error
	Search(ctx context.Context, match string, limit int) ([]*FTSHit, error)
	// ChunkIDs returns the indexed chunk ids for a video in insertion order.
	ChunkIDs(ctx context.Context, videoID string) ([]string, error)
	DeleteVideo(ctx context.Context, videoID string) (int64, error)
}
