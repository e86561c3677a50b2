package models

import (
	"encoding/json"
	"fmt"
)

// Word is a single ASR word with its timing.
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is a raw ASR utterance with optional word-level timings.
// Segments are written once by the transcriber and never mutated; the
// chunker reads them in start order.
type Segment struct {
	SegmentID string  `gorm:"primaryKey;size:255" json:"segment_id"`
	VideoID   string  `gorm:"not null;size:255;index:idx_segments_video" json:"video_id"`
	StartSec  float64 `gorm:"not null;index:idx_segments_start" json:"start"`
	EndSec    float64 `gorm:"not null" json:"end"`
	Text      string  `gorm:"not null" json:"text"`
	// WordsJSON is a JSON array of Word; empty when the ASR produced no
	// word timings.
	WordsJSON string `json:"-"`
}

// TableName returns the table name for Segment.
func (Segment) TableName() string {
	return "segments"
}

// Words decodes the word timings. Returns nil when none are stored.
func (s *Segment) Words() []Word {
	if s.WordsJSON == "" {
		return nil
	}
	var words []Word
	if err := json.Unmarshal([]byte(s.WordsJSON), &words); err != nil {
		return nil
	}
	return words
}

// SetWords encodes word timings into WordsJSON. A nil or empty slice clears
// the column.
func (s *Segment) SetWords(words []Word) error {
	if len(words) == 0 {
		s.WordsJSON = ""
		return nil
	}
	data, err := json.Marshal(words)
	if err != nil {
		return fmt.Errorf("encoding words: %w", err)
	}
	s.WordsJSON = string(data)
	return nil
}

// DurationSec returns the segment duration in seconds.
func (s *Segment) DurationSec() float64 {
	return s.EndSec - s.StartSec
}
