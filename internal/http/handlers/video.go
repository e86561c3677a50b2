package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipseek/clipseek/internal/models"
	"github.com/clipseek/clipseek/internal/pipeline"
	"github.com/clipseek/clipseek/internal/repository"
	"github.com/clipseek/clipseek/internal/vectorstore"
	"github.com/clipseek/clipseek/internal/watcher"
)

// refLimit caps the embedded video lists in scan and process-pending
// responses.
const refLimit = 20

// VideoHandler handles catalog and per-video processing endpoints.
type VideoHandler struct {
	videos   repository.VideoRepository
	segments repository.SegmentRepository
	store    vectorstore.Store
	watcher  *watcher.Watcher
	pipeline *pipeline.Pipeline
	videoDir string
	logger   *slog.Logger
}

// NewVideoHandler creates a video handler.
func NewVideoHandler(
	videos repository.VideoRepository,
	segments repository.SegmentRepository,
	store vectorstore.Store,
	w *watcher.Watcher,
	p *pipeline.Pipeline,
	videoDir string,
	logger *slog.Logger,
) *VideoHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoHandler{
		videos:   videos,
		segments: segments,
		store:    store,
		watcher:  w,
		pipeline: p,
		videoDir: videoDir,
		logger:   logger,
	}
}

// Register registers the video routes with the API.
func (h *VideoHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "scanVideos",
		Method:      "POST",
		Path:        "/api/v1/videos/scan",
		Summary:     "Scan the video directory",
		Description: "Registers new files found in the video directory; optionally enqueues them for processing",
		Tags:        []string{"Videos"},
	}, h.Scan)

	huma.Register(api, huma.Operation{
		OperationID: "processPendingVideos",
		Method:      "POST",
		Path:        "/api/v1/videos/process-pending",
		Summary:     "Enqueue all unprocessed videos",
		Tags:        []string{"Videos"},
	}, h.ProcessPending)

	huma.Register(api, huma.Operation{
		OperationID: "listVideos",
		Method:      "GET",
		Path:        "/api/v1/videos",
		Summary:     "List videos",
		Tags:        []string{"Videos"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "listChannels",
		Method:      "GET",
		Path:        "/api/v1/channels",
		Summary:     "List channels",
		Description: "Channels with at least one video, most populated first",
		Tags:        []string{"Channels"},
	}, h.Channels)

	huma.Register(api, huma.Operation{
		OperationID: "addVideo",
		Method:      "POST",
		Path:        "/api/v1/videos",
		Summary:     "Add a local video file",
		Description: "Copies the file into the video directory, registers it, and enqueues processing",
		Tags:        []string{"Videos"},
	}, h.Add)

	huma.Register(api, huma.Operation{
		OperationID: "patchVideo",
		Method:      "PATCH",
		Path:        "/api/v1/videos/{video_id}",
		Summary:     "Update video metadata",
		Tags:        []string{"Videos"},
	}, h.Patch)

	huma.Register(api, huma.Operation{
		OperationID: "transcribeVideo",
		Method:      "POST",
		Path:        "/api/v1/videos/{video_id}/transcribe",
		Summary:     "Start transcription",
		Tags:        []string{"Videos"},
	}, h.Transcribe)

	huma.Register(api, huma.Operation{
		OperationID: "indexVideo",
		Method:      "POST",
		Path:        "/api/v1/videos/{video_id}/index",
		Summary:     "Start indexing",
		Tags:        []string{"Videos"},
	}, h.Index)

	huma.Register(api, huma.Operation{
		OperationID: "reprocessVideo",
		Method:      "POST",
		Path:        "/api/v1/videos/{video_id}/reprocess",
		Summary:     "Re-run the full pipeline",
		Description: "Drops the existing transcript and enqueues transcribe + index from scratch",
		Tags:        []string{"Videos"},
	}, h.Reprocess)

	huma.Register(api, huma.Operation{
		OperationID: "deleteVideo",
		Method:      "DELETE",
		Path:        "/api/v1/videos/{video_id}",
		Summary:     "Delete a video and all derived data",
		Tags:        []string{"Videos"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "getTranscript",
		Method:      "GET",
		Path:        "/api/v1/videos/{video_id}/transcript",
		Summary:     "Get the raw transcript",
		Tags:        []string{"Videos"},
	}, h.Transcript)
}

// ScanInput is the input for the scan endpoint.
type ScanInput struct {
	Process bool `query:"process" doc:"Enqueue newly found videos for processing"`
}

// ScanOutput is the output for the scan endpoint.
type ScanOutput struct {
	Body struct {
		Added      int        `json:"added"`
		Already    int        `json:"already"`
		TotalFiles int        `json:"total_files"`
		Videos     []VideoRef `json:"videos"`
	}
}

// Scan walks the video directory once.
func (h *VideoHandler) Scan(ctx context.Context, input *ScanInput) (*ScanOutput, error) {
	result, err := h.watcher.Scan(ctx, input.Process)
	if err != nil {
		return nil, huma.Error500InternalServerError("scan failed", err)
	}

	out := &ScanOutput{}
	out.Body.Added = len(result.Added)
	out.Body.Already = result.Already
	out.Body.TotalFiles = result.TotalFiles
	out.Body.Videos = make([]VideoRef, 0, refLimit)
	for _, v := range result.Added {
		if len(out.Body.Videos) == refLimit {
			break
		}
		out.Body.Videos = append(out.Body.Videos, VideoRef{VideoID: v.VideoID, Title: v.Title})
	}
	return out, nil
}

// ProcessPendingOutput is the output for the process-pending endpoint.
type ProcessPendingOutput struct {
	Body struct {
		Enqueued int        `json:"enqueued"`
		Skipped  int        `json:"skipped"`
		Total    int        `json:"total"`
		Videos   []VideoRef `json:"videos"`
	}
}

// ProcessPending enqueues every video that has no transcript yet and is
// not already queued.
func (h *VideoHandler) ProcessPending(ctx context.Context, _ *struct{}) (*ProcessPendingOutput, error) {
	videos, err := h.videos.List(ctx, repository.VideoListOptions{})
	if err != nil {
		return nil, huma.Error500InternalServerError("listing videos", err)
	}

	out := &ProcessPendingOutput{}
	out.Body.Total = len(videos)
	out.Body.Videos = make([]VideoRef, 0, refLimit)
	for _, v := range videos {
		if v.SegmentCount > 0 || h.pipeline.Queue().Contains(v.VideoID) {
			out.Body.Skipped++
			continue
		}
		h.pipeline.Enqueue(v.VideoID, v.Title)
		out.Body.Enqueued++
		if len(out.Body.Videos) < refLimit {
			out.Body.Videos = append(out.Body.Videos, VideoRef{VideoID: v.VideoID, Title: v.Title})
		}
	}
	return out, nil
}

// ListVideosInput is the input for listing videos.
type ListVideosInput struct {
	Channel string `query:"channel"`
	Status  string `query:"status"`
	Limit   int    `query:"limit" default:"100" minimum:"1" maximum:"1000"`
	Offset  int    `query:"offset" default:"0" minimum:"0"`
}

// ListVideosOutput is the output for listing videos.
type ListVideosOutput struct {
	Body []VideoResponse
}

// List returns the catalog, newest first.
func (h *VideoHandler) List(ctx context.Context, input *ListVideosInput) (*ListVideosOutput, error) {
	videos, err := h.videos.List(ctx, repository.VideoListOptions{
		Channel: input.Channel,
		Status:  models.VideoStatus(input.Status),
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("listing videos", err)
	}

	out := &ListVideosOutput{Body: make([]VideoResponse, len(videos))}
	for i, v := range videos {
		out.Body[i] = toVideoResponse(v)
	}
	return out, nil
}

// ChannelsOutput is the output for the channels listing.
type ChannelsOutput struct {
	Body []repository.ChannelCount
}

// Channels returns the channels that have videos, most populated first.
func (h *VideoHandler) Channels(ctx context.Context, _ *struct{}) (*ChannelsOutput, error) {
	channels, err := h.videos.Channels(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing channels", err)
	}

	out := &ChannelsOutput{Body: make([]repository.ChannelCount, len(channels))}
	for i, c := range channels {
		out.Body[i] = *c
	}
	return out, nil
}

// AddVideoInput is the input for adding a local file.
type AddVideoInput struct {
	Body struct {
		URL  string `json:"url" minLength:"1" doc:"Local path or file:// URL of the video"`
		Tags string `json:"tags,omitempty" doc:"Optional title override"`
	}
}

// AddVideoOutput is the output for adding a local file.
type AddVideoOutput struct {
	Body struct {
		Status  string `json:"status"`
		VideoID string `json:"video_id"`
	}
}

// Add copies a local file into the video directory and enqueues it.
func (h *VideoHandler) Add(ctx context.Context, input *AddVideoInput) (*AddVideoOutput, error) {
	src := strings.TrimPrefix(input.Body.URL, "file://")
	if _, err := os.Stat(src); err != nil {
		return nil, huma.Error400BadRequest(fmt.Sprintf("file not found: %s", src))
	}

	videoID := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	title := input.Body.Tags
	if title == "" {
		title = videoID
	}

	out := &AddVideoOutput{}
	out.Body.VideoID = videoID

	existing, err := h.videos.GetByID(ctx, videoID)
	if err != nil {
		return nil, huma.Error500InternalServerError("looking up video", err)
	}
	if existing != nil {
		out.Body.Status = "already_exists"
		return out, nil
	}

	dst := filepath.Join(h.videoDir, filepath.Base(src))
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		if err := copyFile(src, dst); err != nil {
			return nil, huma.Error500InternalServerError("copying file", err)
		}
	}

	video := &models.Video{
		VideoID:   videoID,
		Title:     title,
		LocalPath: dst,
		Status:    models.VideoStatusAdded,
	}
	if err := h.videos.Create(ctx, video); err != nil {
		return nil, huma.Error500InternalServerError("registering video", err)
	}

	h.pipeline.Enqueue(videoID, title)
	out.Body.Status = "processing_started"
	return out, nil
}

// PatchVideoInput is the input for updating metadata.
type PatchVideoInput struct {
	VideoID string `path:"video_id"`
	Body    struct {
		ChannelName *string `json:"channel_name,omitempty"`
		SourceURL   *string `json:"source_url,omitempty"`
		Title       *string `json:"title,omitempty"`
	}
}

// StatusOutput is a generic status + video id response.
type StatusOutput struct {
	Body struct {
		Status  string `json:"status"`
		VideoID string `json:"video_id"`
	}
}

// Patch updates mutable metadata fields.
func (h *VideoHandler) Patch(ctx context.Context, input *PatchVideoInput) (*StatusOutput, error) {
	video, err := h.videos.GetByID(ctx, input.VideoID)
	if err != nil {
		return nil, huma.Error500InternalServerError("looking up video", err)
	}
	if video == nil {
		return nil, huma.Error404NotFound("video not found")
	}

	if input.Body.ChannelName != nil {
		video.ChannelName = *input.Body.ChannelName
	}
	if input.Body.SourceURL != nil {
		video.SourceURL = *input.Body.SourceURL
	}
	if input.Body.Title != nil {
		video.Title = *input.Body.Title
	}
	if err := h.videos.Update(ctx, video); err != nil {
		return nil, huma.Error500InternalServerError("updating video", err)
	}

	out := &StatusOutput{}
	out.Body.Status = "ok"
	out.Body.VideoID = input.VideoID
	return out, nil
}

// TranscribeInput is the input for the transcribe endpoint.
type TranscribeInput struct {
	VideoID string `path:"video_id"`
	Force   bool   `query:"force" doc:"Drop an existing transcript first"`
}

// Transcribe starts transcription in the background.
func (h *VideoHandler) Transcribe(ctx context.Context, input *TranscribeInput) (*StatusOutput, error) {
	video, err := h.videos.GetByID(ctx, input.VideoID)
	if err != nil {
		return nil, huma.Error500InternalServerError("looking up video", err)
	}
	if video == nil {
		return nil, huma.Error404NotFound("video not found")
	}

	h.pipeline.TranscribeAsync(input.VideoID, input.Force)

	out := &StatusOutput{}
	out.Body.Status = "transcription_started"
	out.Body.VideoID = input.VideoID
	return out, nil
}

// IndexInput is the input for the index endpoint.
type IndexInput struct {
	VideoID string `path:"video_id"`
}

// Index starts indexing in the background.
func (h *VideoHandler) Index(ctx context.Context, input *IndexInput) (*StatusOutput, error) {
	video, err := h.videos.GetByID(ctx, input.VideoID)
	if err != nil {
		return nil, huma.Error500InternalServerError("looking up video", err)
	}
	if video == nil {
		return nil, huma.Error404NotFound("video not found")
	}

	h.pipeline.IndexAsync(input.VideoID)

	out := &StatusOutput{}
	out.Body.Status = "indexing_started"
	out.Body.VideoID = input.VideoID
	return out, nil
}

// Reprocess drops the transcript and queues the full pipeline again.
func (h *VideoHandler) Reprocess(ctx context.Context, input *IndexInput) (*StatusOutput, error) {
	video, err := h.videos.GetByID(ctx, input.VideoID)
	if err != nil {
		return nil, huma.Error500InternalServerError("looking up video", err)
	}
	if video == nil {
		return nil, huma.Error404NotFound("video not found")
	}

	if err := h.segments.DeleteByVideo(ctx, input.VideoID); err != nil {
		return nil, huma.Error500InternalServerError("dropping transcript", err)
	}
	if err := h.videos.UpdateStatus(ctx, input.VideoID, models.VideoStatusAdded); err != nil {
		return nil, huma.Error500InternalServerError("resetting status", err)
	}

	h.pipeline.Enqueue(input.VideoID, video.Title)

	out := &StatusOutput{}
	out.Body.Status = "reprocessing_started"
	out.Body.VideoID = input.VideoID
	return out, nil
}

// DeleteVideoOutput is the output for the delete endpoint.
type DeleteVideoOutput struct {
	Body struct {
		Status string `json:"status"`
		Stats  struct {
			Segments int64 `json:"segments"`
			Clips    int64 `json:"clips"`
		} `json:"stats"`
	}
}

// Delete removes the video and everything derived from it: catalog rows,
// lexical rows, vector records, and the media file.
func (h *VideoHandler) Delete(ctx context.Context, input *IndexInput) (*DeleteVideoOutput, error) {
	video, err := h.videos.GetByID(ctx, input.VideoID)
	if err != nil {
		return nil, huma.Error500InternalServerError("looking up video", err)
	}
	if video == nil {
		return nil, huma.Error404NotFound("video not found")
	}

	stats, err := h.videos.DeleteCascade(ctx, input.VideoID)
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			return nil, huma.Error404NotFound("video not found")
		}
		return nil, huma.Error500InternalServerError("deleting video", err)
	}

	if err := h.store.DeleteVideo(ctx, input.VideoID); err != nil {
		h.logger.Warn("deleting vector records",
			slog.String("video_id", input.VideoID),
			slog.String("error", err.Error()),
		)
	}

	if video.LocalPath != "" {
		if err := os.Remove(video.LocalPath); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("removing video file",
				slog.String("path", video.LocalPath),
				slog.String("error", err.Error()),
			)
		}
	}

	out := &DeleteVideoOutput{}
	out.Body.Status = "deleted"
	out.Body.Stats.Segments = stats.Segments
	out.Body.Stats.Clips = stats.Clips
	return out, nil
}

// TranscriptOutput is the output for the transcript endpoint.
type TranscriptOutput struct {
	Body struct {
		VideoID  string            `json:"video_id"`
		Title    string            `json:"title"`
		Duration float64           `json:"duration"`
		Segments []SegmentResponse `json:"segments"`
	}
}

// Transcript returns the raw segments with word timestamps.
func (h *VideoHandler) Transcript(ctx context.Context, input *IndexInput) (*TranscriptOutput, error) {
	video, err := h.videos.GetByID(ctx, input.VideoID)
	if err != nil {
		return nil, huma.Error500InternalServerError("looking up video", err)
	}
	if video == nil {
		return nil, huma.Error404NotFound("video not found")
	}

	segments, err := h.segments.GetByVideo(ctx, input.VideoID)
	if err != nil {
		return nil, huma.Error500InternalServerError("loading transcript", err)
	}

	out := &TranscriptOutput{}
	out.Body.VideoID = video.VideoID
	out.Body.Title = video.Title
	out.Body.Segments = make([]SegmentResponse, len(segments))
	for i, seg := range segments {
		words := seg.Words()
		if words == nil {
			words = []models.Word{}
		}
		out.Body.Segments[i] = SegmentResponse{
			SegmentID: seg.SegmentID,
			Start:     seg.StartSec,
			End:       seg.EndSec,
			Text:      seg.Text,
			Words:     words,
		}
	}
	if len(segments) > 0 {
		out.Body.Duration = segments[len(segments)-1].EndSec
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
