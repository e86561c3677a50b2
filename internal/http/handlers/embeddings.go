package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipseek/clipseek/internal/vectorstore"
)

// EmbeddingsHandler exposes vector-store maintenance. Vector records can
// outlive a video when the best-effort cleanup during a catalog delete
// fails; this endpoint removes them by video id alone, without requiring
// the catalog row to still exist.
type EmbeddingsHandler struct {
	store  vectorstore.Store
	logger *slog.Logger
}

// NewEmbeddingsHandler creates an embeddings maintenance handler.
func NewEmbeddingsHandler(store vectorstore.Store, logger *slog.Logger) *EmbeddingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingsHandler{store: store, logger: logger}
}

// Register registers the embeddings routes with the API.
func (h *EmbeddingsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "deleteEmbeddings",
		Method:      "DELETE",
		Path:        "/api/v1/embeddings/{video_id}",
		Summary:     "Delete a video's vector records",
		Description: "Removes vector records by video id, even when the video is gone from the catalog",
		Tags:        []string{"Embeddings"},
	}, h.Delete)
}

// DeleteEmbeddingsInput is the input for deleting vector records.
type DeleteEmbeddingsInput struct {
	VideoID string `path:"video_id"`
}

// DeleteEmbeddingsOutput is the output for deleting vector records.
type DeleteEmbeddingsOutput struct {
	Body struct {
		Status       string `json:"status"`
		VideoID      string `json:"video_id"`
		DeletedCount int    `json:"deleted_count"`
	}
}

// Delete removes all vector records for the video.
func (h *EmbeddingsHandler) Delete(ctx context.Context, input *DeleteEmbeddingsInput) (*DeleteEmbeddingsOutput, error) {
	before := h.store.Count()
	if err := h.store.DeleteVideo(ctx, input.VideoID); err != nil {
		return nil, huma.Error500InternalServerError("deleting vector records", err)
	}
	deleted := before - h.store.Count()

	out := &DeleteEmbeddingsOutput{}
	out.Body.VideoID = input.VideoID
	out.Body.DeletedCount = deleted
	if deleted == 0 {
		out.Body.Status = "not_found"
		return out, nil
	}

	h.logger.Info("vector records deleted",
		slog.String("video_id", input.VideoID),
		slog.Int("count", deleted),
	)
	out.Body.Status = "deleted"
	return out, nil
}
