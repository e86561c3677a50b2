// Package transcribe turns a video file into raw ASR segments in the
// catalog.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/clipseek/clipseek/internal/asr"
	"github.com/clipseek/clipseek/internal/embedding"
	"github.com/clipseek/clipseek/internal/models"
	"github.com/clipseek/clipseek/internal/repository"
)

// Service runs transcription for catalog videos. Segment writes are a
// single transaction, so a failed run never leaves a half-written
// transcript.
type Service struct {
	videos   repository.VideoRepository
	segments repository.SegmentRepository
	registry *embedding.Registry
	logger   *slog.Logger
}

// NewService creates a transcription service.
func NewService(videos repository.VideoRepository, segments repository.SegmentRepository, registry *embedding.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{videos: videos, segments: segments, registry: registry, logger: logger}
}

// Run transcribes the video. Existing segments are refused unless force is
// set, which keeps retries idempotent: callers that want a fresh transcript
// must ask for it. The ASR model is released before returning so the
// indexing stage can claim the accelerator.
func (s *Service) Run(ctx context.Context, videoID string, force bool) error {
	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		return err
	}
	if video == nil {
		return fmt.Errorf("%w: %s", models.ErrVideoNotFound, videoID)
	}

	if video.LocalPath == "" {
		return fmt.Errorf("%w: video %s has no local path", models.ErrFileMissing, videoID)
	}
	if _, err := os.Stat(video.LocalPath); err != nil {
		return fmt.Errorf("%w: %s", models.ErrFileMissing, video.LocalPath)
	}

	count, err := s.segments.CountByVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if count > 0 && !force {
		return fmt.Errorf("%w: video %s has %d segments", models.ErrAlreadyTranscribed, videoID, count)
	}

	logger := s.logger.With(slog.String("video_id", videoID))
	logger.Info("transcribing", slog.String("path", video.LocalPath))

	started := time.Now()
	result, err := s.registry.ASR().Transcribe(ctx, video.LocalPath)
	if err != nil {
		// The model may hold accelerator memory even after a failed
		// decode; release it before surfacing the error.
		s.registry.ReleaseASR(ctx)
		if statusErr := s.videos.UpdateStatus(ctx, videoID, models.VideoStatusErrorTranscribe); statusErr != nil {
			logger.Error("updating status after failure", slog.String("error", statusErr.Error()))
		}
		return fmt.Errorf("transcribing %s: %w", videoID, err)
	}

	logger.Info("language detected", slog.String("language", result.Language))

	rows := buildSegments(videoID, result)
	if err := s.segments.ReplaceAll(ctx, videoID, rows); err != nil {
		s.registry.ReleaseASR(ctx)
		if statusErr := s.videos.UpdateStatus(ctx, videoID, models.VideoStatusErrorTranscribe); statusErr != nil {
			logger.Error("updating status after failure", slog.String("error", statusErr.Error()))
		}
		return fmt.Errorf("storing segments for %s: %w", videoID, err)
	}

	if err := s.videos.UpdateStatus(ctx, videoID, models.VideoStatusTranscribed); err != nil {
		s.registry.ReleaseASR(ctx)
		return err
	}

	s.registry.ReleaseASR(ctx)

	elapsed := time.Since(started)
	speed := 0.0
	if len(rows) > 0 && elapsed > 0 {
		speed = rows[len(rows)-1].EndSec / elapsed.Seconds()
	}
	logger.Info("transcribed",
		slog.Int("segments", len(rows)),
		slog.Duration("elapsed", elapsed.Round(time.Second)),
		slog.Float64("realtime_factor", speed),
	)
	return nil
}

// buildSegments converts an ASR result into catalog rows, skipping empty
// utterances.
func buildSegments(videoID string, result *asr.Result) []*models.Segment {
	rows := make([]*models.Segment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		row := &models.Segment{
			SegmentID: fmt.Sprintf("%s-%d", videoID, len(rows)),
			VideoID:   videoID,
			StartSec:  seg.Start,
			EndSec:    seg.End,
			Text:      text,
		}

		words := make([]models.Word, 0, len(seg.Words))
		for _, w := range seg.Words {
			word := strings.TrimSpace(w.Text)
			if word == "" {
				continue
			}
			words = append(words, models.Word{Text: word, Start: w.Start, End: w.End})
		}
		if err := row.SetWords(words); err != nil {
			row.WordsJSON = ""
		}
		rows = append(rows, row)
	}
	return rows
}
