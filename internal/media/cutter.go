// Package media shells out to ffmpeg and yt-dlp for clip cutting and
// video downloads.
package media

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/clipseek/clipseek/internal/config"
	"github.com/clipseek/clipseek/internal/models"
	"github.com/clipseek/clipseek/internal/repository"
)

// Margins applied around a requested segment so speech is not clipped
// mid-word at keyframe boundaries.
const (
	safetyPre  = 0.3
	safetyPost = 0.5
)

// CutOptions controls a single cut.
type CutOptions struct {
	// Precise re-encodes for frame-accurate boundaries; otherwise the
	// streams are copied, which is fast but snaps to keyframes.
	Precise bool
	// WithMargins widens the interval by the safety margins.
	WithMargins bool
}

// Cutter extracts clips from catalog videos.
type Cutter struct {
	cfg     config.FFmpegConfig
	clipDir string
	videos  repository.VideoRepository
	clips   repository.ClipRepository
	logger  *slog.Logger
}

// NewCutter creates a Cutter writing into clipDir.
func NewCutter(cfg config.FFmpegConfig, clipDir string, videos repository.VideoRepository, clips repository.ClipRepository, logger *slog.Logger) *Cutter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cutter{
		cfg:     cfg,
		clipDir: clipDir,
		videos:  videos,
		clips:   clips,
		logger:  logger,
	}
}

// Cut extracts [startSec, endSec] from the video, records the clip in the
// catalog, and returns it. The ffmpeg invocation is bounded by the
// configured timeout.
func (c *Cutter) Cut(ctx context.Context, videoID string, startSec, endSec float64, opts CutOptions) (*models.Clip, error) {
	video, err := c.videos.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrVideoNotFound, videoID)
	}
	if video.LocalPath == "" {
		return nil, fmt.Errorf("%w: video %s has no local path", models.ErrFileMissing, videoID)
	}
	if _, err := os.Stat(video.LocalPath); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrFileMissing, video.LocalPath)
	}

	start, end := startSec, endSec
	if opts.WithMargins {
		start -= safetyPre
		end += safetyPost
	}
	if start < 0 {
		start = 0
	}
	if end < start+0.1 {
		end = start + 0.1
	}

	if err := os.MkdirAll(c.clipDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating clip dir: %w", err)
	}

	clipID := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	dst := filepath.Join(c.clipDir, fmt.Sprintf("%s_%s.mp4", videoID, clipID))

	if err := c.runFFmpeg(ctx, video.LocalPath, dst, start, end, opts.Precise); err != nil {
		return nil, err
	}

	clip := &models.Clip{
		ClipID:    clipID,
		VideoID:   videoID,
		StartSec:  start,
		EndSec:    end,
		Path:      dst,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.clips.Create(ctx, clip); err != nil {
		return nil, fmt.Errorf("recording clip: %w", err)
	}

	c.logger.Info("clip cut",
		slog.String("video_id", videoID),
		slog.String("clip_id", clipID),
		slog.Float64("start", start),
		slog.Float64("end", end),
		slog.Bool("precise", opts.Precise),
	)
	return clip, nil
}

// Delete removes a clip's file and catalog row.
func (c *Cutter) Delete(ctx context.Context, clipID string) error {
	clip, err := c.clips.GetByID(ctx, clipID)
	if err != nil {
		return err
	}
	if clip == nil {
		return fmt.Errorf("%w: %s", models.ErrClipNotFound, clipID)
	}
	if clip.Path != "" {
		if err := os.Remove(clip.Path); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("removing clip file",
				slog.String("path", clip.Path),
				slog.String("error", err.Error()),
			)
		}
	}
	return c.clips.Delete(ctx, clipID)
}

func (c *Cutter) runFFmpeg(ctx context.Context, src, dst string, start, end float64, precise bool) error {
	binary := c.cfg.BinaryPath
	if binary == "" {
		binary = "ffmpeg"
	}
	duration := end - start

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", start),
		"-i", src,
		"-t", fmt.Sprintf("%.3f", duration),
	}
	if precise {
		args = append(args,
			"-c:v", "libx264", "-preset", c.cfg.Preset, "-crf", fmt.Sprint(c.cfg.CRF),
			"-c:a", "aac", "-b:a", "192k",
			"-threads", "4",
		)
	} else {
		args = append(args, "-c", "copy")
	}
	args = append(args, dst)

	if c.cfg.CutTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CutTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ffmpeg timed out after %s", c.cfg.CutTimeout)
		}
		detail := string(output)
		if len(detail) > 500 {
			detail = detail[:500]
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, detail)
	}
	return nil
}
