// Package asr defines the speech-to-text contract and the HTTP client that
// talks to the whisper sidecar.
package asr

import "context"

// Word is a transcribed word with its timing.
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is one decoded utterance.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Result is a full transcription.
type Result struct {
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// Transcriber converts a media file into timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (*Result, error)
	// Unload asks the backend to drop the model from accelerator memory.
	// Implementations treat an unsupported endpoint as a no-op.
	Unload(ctx context.Context) error
}
