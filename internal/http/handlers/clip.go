package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipseek/clipseek/internal/media"
	"github.com/clipseek/clipseek/internal/models"
	"github.com/clipseek/clipseek/internal/repository"
)

// ClipHandler handles clip cutting and management.
type ClipHandler struct {
	cutter *media.Cutter
	clips  repository.ClipRepository
	logger *slog.Logger
}

// NewClipHandler creates a clip handler.
func NewClipHandler(cutter *media.Cutter, clips repository.ClipRepository, logger *slog.Logger) *ClipHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClipHandler{cutter: cutter, clips: clips, logger: logger}
}

// Register registers the clip routes with the API.
func (h *ClipHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createClip",
		Method:      "POST",
		Path:        "/api/v1/clips",
		Summary:     "Cut a clip",
		Tags:        []string{"Clips"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "listClips",
		Method:      "GET",
		Path:        "/api/v1/clips",
		Summary:     "List clips",
		Tags:        []string{"Clips"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "deleteClip",
		Method:      "DELETE",
		Path:        "/api/v1/clips/{clip_id}",
		Summary:     "Delete a clip",
		Tags:        []string{"Clips"},
	}, h.Delete)
}

// CreateClipInput is the input for cutting a clip.
type CreateClipInput struct {
	Body struct {
		VideoID string  `json:"video_id" minLength:"1"`
		Start   float64 `json:"start" minimum:"0"`
		End     float64 `json:"end" minimum:"0"`
		Precise *bool   `json:"precise,omitempty" doc:"Re-encode for frame-accurate boundaries (default true)"`
		Margins *bool   `json:"margins,omitempty" doc:"Widen the interval by the safety margins (default true)"`
	}
}

// CreateClipOutput is the output for cutting a clip.
type CreateClipOutput struct {
	Body ClipResponse
}

// Create cuts [start, end] out of the video.
func (h *ClipHandler) Create(ctx context.Context, input *CreateClipInput) (*CreateClipOutput, error) {
	if input.Body.End <= input.Body.Start {
		return nil, huma.Error400BadRequest("end must be after start")
	}

	opts := media.CutOptions{Precise: true, WithMargins: true}
	if input.Body.Precise != nil {
		opts.Precise = *input.Body.Precise
	}
	if input.Body.Margins != nil {
		opts.WithMargins = *input.Body.Margins
	}

	clip, err := h.cutter.Cut(ctx, input.Body.VideoID, input.Body.Start, input.Body.End, opts)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrVideoNotFound):
			return nil, huma.Error404NotFound("video not found")
		case errors.Is(err, models.ErrFileMissing):
			return nil, huma.Error400BadRequest("video file is missing")
		default:
			return nil, huma.Error500InternalServerError("cutting clip", err)
		}
	}

	return &CreateClipOutput{Body: toClipResponse(clip)}, nil
}

// ListClipsInput is the input for listing clips.
type ListClipsInput struct {
	VideoID string `query:"video_id"`
}

// ListClipsOutput is the output for listing clips.
type ListClipsOutput struct {
	Body []ClipResponse
}

// List returns clips, optionally restricted to one video.
func (h *ClipHandler) List(ctx context.Context, input *ListClipsInput) (*ListClipsOutput, error) {
	var (
		clips []*models.Clip
		err   error
	)
	if input.VideoID != "" {
		clips, err = h.clips.ListByVideo(ctx, input.VideoID)
	} else {
		clips, err = h.clips.List(ctx)
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("listing clips", err)
	}

	out := &ListClipsOutput{Body: make([]ClipResponse, len(clips))}
	for i, c := range clips {
		out.Body[i] = toClipResponse(c)
	}
	return out, nil
}

// DeleteClipInput is the input for deleting a clip.
type DeleteClipInput struct {
	ClipID string `path:"clip_id"`
}

// DeleteClipOutput is the output for deleting a clip.
type DeleteClipOutput struct {
	Body struct {
		Status string `json:"status"`
		ClipID string `json:"clip_id"`
	}
}

// Delete removes the clip file and its catalog row.
func (h *ClipHandler) Delete(ctx context.Context, input *DeleteClipInput) (*DeleteClipOutput, error) {
	if err := h.cutter.Delete(ctx, input.ClipID); err != nil {
		if errors.Is(err, models.ErrClipNotFound) {
			return nil, huma.Error404NotFound("clip not found")
		}
		return nil, huma.Error500InternalServerError("deleting clip", err)
	}

	out := &DeleteClipOutput{}
	out.Body.Status = "deleted"
	out.Body.ClipID = input.ClipID
	return out, nil
}

func toClipResponse(c *models.Clip) ClipResponse {
	return ClipResponse{
		ClipID:      c.ClipID,
		VideoID:     c.VideoID,
		StartSec:    c.StartSec,
		EndSec:      c.EndSec,
		DownloadURL: fmt.Sprintf("/files/clips/%s", filepath.Base(c.Path)),
		CreatedAt:   c.CreatedAt,
	}
}
