package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clipseek/clipseek/internal/models"
)

// HTTPClient talks to an OpenAI-compatible /v1/embeddings server. Both the
// retrieval model and the lighter chunk-similarity model sit behind this
// same protocol, just on different URLs.
type HTTPClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewHTTPClient creates a client for the given sidecar URL and model id.
func NewHTTPClient(baseURL, model string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Model returns the backing model id.
func (c *HTTPClient) Model() string {
	return c.model
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Encode embeds the given texts, preserving input order.
func (c *HTTPClient) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingsRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("encoding embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling embeddings server: %v", models.ErrModelLoad, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embeddings server returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding embeddings response: %w", err)
	}
	if len(decoded.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings server returned %d vectors for %d inputs",
			len(decoded.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range decoded.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings server returned out-of-range index %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}
