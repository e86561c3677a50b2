// Package handlers provides HTTP API handlers for clipseek.
package handlers

import (
	"time"

	"github.com/clipseek/clipseek/internal/models"
	"github.com/clipseek/clipseek/internal/repository"
)

// VideoResponse is the catalog view of a video, with the coarse status
// split into per-stage fields the UI renders as a progress row.
type VideoResponse struct {
	VideoID          string     `json:"video_id"`
	Title            string     `json:"title"`
	ChannelName      string     `json:"channel_name"`
	Tags             string     `json:"tags,omitempty"`
	Duration         *float64   `json:"duration,omitempty"`
	ThumbnailURL     string     `json:"thumbnail_url,omitempty"`
	UploadedAt       *time.Time `json:"uploaded_at,omitempty"`
	SourceURL        string     `json:"source_url,omitempty"`
	LocalPath        string     `json:"local_path,omitempty"`
	SegmentCount     int64      `json:"segment_count"`
	StatusDownload   string     `json:"status_download"`
	StatusTranscribe string     `json:"status_transcribe"`
	StatusIndex      string     `json:"status_index"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toVideoResponse(v *repository.VideoSummary) VideoResponse {
	channel := v.ChannelName
	if channel == "" {
		channel = "Local"
	}

	statusDownload := "pending"
	if v.LocalPath != "" {
		statusDownload = "done"
	}

	statusTranscribe := string(v.Status)
	switch v.Status {
	case models.VideoStatusTranscribed, models.VideoStatusIndexed:
		statusTranscribe = "done"
	case models.VideoStatusAdded:
		statusTranscribe = "pending"
	}

	statusIndex := "pending"
	if v.Status == models.VideoStatusIndexed {
		statusIndex = "done"
	}

	return VideoResponse{
		VideoID:          v.VideoID,
		Title:            v.Title,
		ChannelName:      channel,
		Tags:             v.Tags,
		Duration:         v.Duration,
		ThumbnailURL:     v.ThumbnailURL,
		UploadedAt:       v.UploadedAt,
		SourceURL:        v.SourceURL,
		LocalPath:        v.LocalPath,
		SegmentCount:     v.SegmentCount,
		StatusDownload:   statusDownload,
		StatusTranscribe: statusTranscribe,
		StatusIndex:      statusIndex,
		CreatedAt:        v.CreatedAt,
	}
}

// VideoRef is the short form used in scan and process-pending responses.
type VideoRef struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
}

// SegmentResponse is one transcript row.
type SegmentResponse struct {
	SegmentID string        `json:"segment_id"`
	Start     float64       `json:"start"`
	End       float64       `json:"end"`
	Text      string        `json:"text"`
	Words     []models.Word `json:"words"`
}

// ClipResponse is one cut clip.
type ClipResponse struct {
	ClipID      string    `json:"clip_id"`
	VideoID     string    `json:"video_id"`
	StartSec    float64   `json:"start_sec"`
	EndSec      float64   `json:"end_sec"`
	DownloadURL string    `json:"download_url"`
	CreatedAt   time.Time `json:"created_at"`
}
