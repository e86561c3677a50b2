// Package models defines GORM database models for clipseek entities.
package models

import (
	"time"
)

// VideoStatus tracks a video's progress through the ingest pipeline.
type VideoStatus string

const (
	// VideoStatusAdded indicates the video is registered but not yet transcribed.
	VideoStatusAdded VideoStatus = "added"
	// VideoStatusTranscribed indicates raw segments have been written.
	VideoStatusTranscribed VideoStatus = "transcribed"
	// VideoStatusIndexed indicates chunks are present in both indices.
	VideoStatusIndexed VideoStatus = "indexed"
	// VideoStatusErrorTranscribe indicates transcription failed.
	VideoStatusErrorTranscribe VideoStatus = "error_transcribe"
	// VideoStatusErrorIndex indicates indexing failed.
	VideoStatusErrorIndex VideoStatus = "error_index"
)

// Video is the durable record of an ingested video. The primary key is a
// stable string derived from the file stem or remote id, so re-adding the
// same file is idempotent.
type Video struct {
	VideoID   string      `gorm:"primaryKey;size:255" json:"video_id"`
	Title     string      `gorm:"not null;size:512" json:"title"`
	LocalPath string      `gorm:"size:1024" json:"local_path,omitempty"`
	Status    VideoStatus `gorm:"not null;default:'added';size:32;index" json:"status"`
	CreatedAt time.Time   `gorm:"index:idx_videos_created,sort:desc" json:"created_at"`

	// Optional source metadata, filled by the downloader or PATCH endpoint.
	ChannelName  string     `gorm:"size:255" json:"channel_name,omitempty"`
	Duration     *float64   `json:"duration,omitempty"`
	ThumbnailURL string     `gorm:"size:1024" json:"thumbnail_url,omitempty"`
	UploadedAt   *time.Time `json:"uploaded_at,omitempty"`
	SourceURL    string     `gorm:"size:1024" json:"source_url,omitempty"`
	Tags         string     `gorm:"size:1024" json:"tags,omitempty"`
}

// TableName returns the table name for Video.
func (Video) TableName() string {
	return "videos"
}

// IsTranscribed reports whether raw segments exist for the video.
func (v *Video) IsTranscribed() bool {
	return v.Status == VideoStatusTranscribed || v.Status == VideoStatusIndexed
}

// IsIndexed reports whether the video is searchable.
func (v *Video) IsIndexed() bool {
	return v.Status == VideoStatusIndexed
}
