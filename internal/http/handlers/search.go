package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipseek/clipseek/internal/repository"
	"github.com/clipseek/clipseek/internal/search"
)

// SearchHandler handles the hybrid search endpoint.
type SearchHandler struct {
	searcher *search.Searcher
	videos   repository.VideoRepository
	logger   *slog.Logger
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(searcher *search.Searcher, videos repository.VideoRepository, logger *slog.Logger) *SearchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandler{searcher: searcher, videos: videos, logger: logger}
}

// Register registers the search route with the API.
func (h *SearchHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "search",
		Method:      "POST",
		Path:        "/api/v1/search",
		Summary:     "Hybrid transcript search",
		Description: "Dense + lexical retrieval fused with reciprocal rank fusion",
		Tags:        []string{"Search"},
	}, h.Search)
}

// SearchInput is the input for the search endpoint.
type SearchInput struct {
	Body struct {
		Query      string   `json:"query" minLength:"1"`
		TopK       int      `json:"top_k,omitempty" minimum:"1" maximum:"100"`
		VideoIDs   []string `json:"video_ids,omitempty"`
		FilterTags string   `json:"filter_tags,omitempty" doc:"Comma-separated channel names to restrict the search to"`
		UseFTS     *bool    `json:"use_fts,omitempty" doc:"Set false for a pure dense search"`
	}
}

// SearchOutput is the output for the search endpoint.
type SearchOutput struct {
	Body []search.Result
}

// Search runs a query.
func (h *SearchHandler) Search(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	videoIDs := input.Body.VideoIDs

	if tags := strings.TrimSpace(input.Body.FilterTags); tags != "" {
		channelIDs, err := h.videoIDsForChannels(ctx, tags)
		if err != nil {
			return nil, huma.Error500InternalServerError("resolving channel filter", err)
		}
		if videoIDs != nil {
			wanted := make(map[string]bool, len(videoIDs))
			for _, id := range videoIDs {
				wanted[id] = true
			}
			filtered := make([]string, 0, len(channelIDs))
			for _, id := range channelIDs {
				if wanted[id] {
					filtered = append(filtered, id)
				}
			}
			videoIDs = filtered
		} else if len(channelIDs) > 0 {
			videoIDs = channelIDs
		}
	}

	opts := search.Options{
		TopK:     input.Body.TopK,
		VideoIDs: videoIDs,
	}
	if input.Body.UseFTS != nil && !*input.Body.UseFTS {
		opts.DenseOnly = true
	}

	results, err := h.searcher.Search(ctx, input.Body.Query, opts)
	if err != nil {
		return nil, huma.Error500InternalServerError("search failed", err)
	}
	if results == nil {
		results = []search.Result{}
	}
	return &SearchOutput{Body: results}, nil
}

// videoIDsForChannels resolves comma-separated channel names to video ids.
func (h *SearchHandler) videoIDsForChannels(ctx context.Context, tags string) ([]string, error) {
	var ids []string
	for _, name := range strings.Split(tags, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		videos, err := h.videos.List(ctx, repository.VideoListOptions{Channel: name})
		if err != nil {
			return nil, err
		}
		for _, v := range videos {
			ids = append(ids, v.VideoID)
		}
	}
	return ids, nil
}
