package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipseek/clipseek/internal/models"
)

// WhisperClient talks to an OpenAI-compatible transcription server
// (faster-whisper-server and friends). The server owns the GPU; this client
// just streams the file up and decodes verbose_json back.
type WhisperClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewWhisperClient creates a client for the given sidecar URL and model id.
func NewWhisperClient(baseURL, model string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Transcribe uploads the file and returns the decoded transcript.
func (c *WhisperClient) Transcribe(ctx context.Context, path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", models.ErrFileMissing, path, err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := c.writeForm(writer, file, filepath.Base(path))
		writer.Close()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", pr)
	if err != nil {
		return nil, fmt.Errorf("building transcription request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling transcription server: %v", models.ErrModelLoad, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: transcription server returned %d: %s",
			models.ErrDecodingFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding transcription response: %v", models.ErrDecodingFailed, err)
	}
	return &result, nil
}

func (c *WhisperClient) writeForm(writer *multipart.Writer, file *os.File, name string) error {
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copying file body: %w", err)
	}
	fields := map[string]string{
		"model":                     c.model,
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "word",
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("writing field %s: %w", key, err)
		}
	}
	return nil
}

// Unload asks the server to evict the model. Servers without the endpoint
// return 404; that is fine, the next Transcribe reloads either way.
func (c *WhisperClient) Unload(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1/models/%s/unload", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("building unload request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling unload endpoint: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unload endpoint returned %d", resp.StatusCode)
	}
	return nil
}
