package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipseek/clipseek/internal/media"
	"github.com/clipseek/clipseek/internal/watcher"
)

// DownloadHandler handles remote video downloads.
type DownloadHandler struct {
	downloader *media.Downloader
	watcher    *watcher.Watcher
	logger     *slog.Logger
}

// NewDownloadHandler creates a download handler.
func NewDownloadHandler(downloader *media.Downloader, w *watcher.Watcher, logger *slog.Logger) *DownloadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DownloadHandler{downloader: downloader, watcher: w, logger: logger}
}

// Register registers the download route with the API.
func (h *DownloadHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "downloadVideo",
		Method:      "POST",
		Path:        "/api/v1/download",
		Summary:     "Download a remote video",
		Description: "Fetches the video with yt-dlp in the background; the finished file is registered and enqueued by a directory scan",
		Tags:        []string{"Download"},
	}, h.Download)
}

// DownloadInput is the input for the download endpoint.
type DownloadInput struct {
	Body struct {
		URL     string `json:"url" minLength:"1"`
		Quality string `json:"quality,omitempty" doc:"Download quality ceiling, 720p or best (default from config)"`
	}
}

// DownloadOutput is the output for the download endpoint.
type DownloadOutput struct {
	Body struct {
		Status string `json:"status"`
		URL    string `json:"url"`
	}
}

// Download starts a background fetch.
func (h *DownloadHandler) Download(ctx context.Context, input *DownloadInput) (*DownloadOutput, error) {
	url := input.Body.URL
	quality := input.Body.Quality

	go func() {
		// Detached from the request context: the download outlives the
		// HTTP exchange.
		ctx := context.Background()
		path, err := h.downloader.Download(ctx, url, quality)
		if err != nil {
			h.logger.Error("download failed",
				slog.String("url", url),
				slog.String("error", err.Error()),
			)
			return
		}
		h.logger.Info("download complete", slog.String("path", path))
		if _, err := h.watcher.Scan(ctx, true); err != nil {
			h.logger.Error("post-download scan failed", slog.String("error", err.Error()))
		}
	}()

	out := &DownloadOutput{}
	out.Body.Status = "download_started"
	out.Body.URL = url
	return out, nil
}
