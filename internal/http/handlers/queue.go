package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipseek/clipseek/internal/pipeline"
)

// QueueHandler exposes the processing queue.
type QueueHandler struct {
	queue *pipeline.Queue
}

// NewQueueHandler creates a queue handler.
func NewQueueHandler(queue *pipeline.Queue) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// Register registers the queue routes with the API.
func (h *QueueHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getQueue",
		Method:      "GET",
		Path:        "/api/v1/queue",
		Summary:     "Queue snapshot",
		Tags:        []string{"Queue"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "removeFromQueue",
		Method:      "DELETE",
		Path:        "/api/v1/queue/{video_id}",
		Summary:     "Remove a queued job",
		Description: "Fails with 409 when the job is already processing",
		Tags:        []string{"Queue"},
	}, h.Remove)

	huma.Register(api, huma.Operation{
		OperationID: "clearQueue",
		Method:      "POST",
		Path:        "/api/v1/queue/clear",
		Summary:     "Purge finished and failed jobs",
		Tags:        []string{"Queue"},
	}, h.Clear)
}

// QueueListOutput is the output for the queue snapshot.
type QueueListOutput struct {
	Body []pipeline.Entry
}

// List returns the queue snapshot, oldest first.
func (h *QueueHandler) List(ctx context.Context, _ *struct{}) (*QueueListOutput, error) {
	return &QueueListOutput{Body: h.queue.List()}, nil
}

// QueueRemoveInput is the input for removing an entry.
type QueueRemoveInput struct {
	VideoID string `path:"video_id"`
}

// QueueRemoveOutput is the output for removing an entry.
type QueueRemoveOutput struct {
	Body struct {
		Status  string `json:"status"`
		VideoID string `json:"video_id"`
	}
}

// Remove drops a waiting entry.
func (h *QueueHandler) Remove(ctx context.Context, input *QueueRemoveInput) (*QueueRemoveOutput, error) {
	if err := h.queue.Remove(input.VideoID); err != nil {
		if errors.Is(err, pipeline.ErrProcessing) {
			return nil, huma.Error409Conflict("job is already processing")
		}
		return nil, huma.Error404NotFound("not in queue")
	}

	out := &QueueRemoveOutput{}
	out.Body.Status = "removed"
	out.Body.VideoID = input.VideoID
	return out, nil
}

// QueueClearOutput is the output for the clear endpoint.
type QueueClearOutput struct {
	Body struct {
		Cleared int `json:"cleared"`
	}
}

// Clear purges terminal entries.
func (h *QueueHandler) Clear(ctx context.Context, _ *struct{}) (*QueueClearOutput, error) {
	out := &QueueClearOutput{}
	out.Body.Cleared = h.queue.Clear()
	return out, nil
}
