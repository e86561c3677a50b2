package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clipseek/clipseek/internal/config"
)

const downloadUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"

// Downloader fetches remote videos into the video directory with yt-dlp.
// Discovery of the finished file is left to the directory watcher; the
// downloader only reports the newest file when asked.
type Downloader struct {
	cfg      config.DownloadConfig
	videoDir string
	logger   *slog.Logger
}

// NewDownloader creates a Downloader writing into videoDir.
func NewDownloader(cfg config.DownloadConfig, videoDir string, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{cfg: cfg, videoDir: videoDir, logger: logger}
}

// Download fetches url. An empty quality falls back to the configured
// default. Returns the path of the newest video file in the directory
// after the run, which is the downloaded file unless something raced the
// directory.
func (d *Downloader) Download(ctx context.Context, url, quality string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("empty url")
	}
	if err := os.MkdirAll(d.videoDir, 0o755); err != nil {
		return "", fmt.Errorf("creating video dir: %w", err)
	}

	binary := d.cfg.YtDlpPath
	if binary == "" {
		binary = "yt-dlp"
	}
	if quality == "" {
		quality = d.cfg.Quality
	}

	args := []string{
		"--no-playlist",
		"--newline",
		"--user-agent", downloadUserAgent,
		"--referer", "https://www.youtube.com/",
		"-o", filepath.Join(d.videoDir, "%(title)s.%(ext)s"),
	}
	switch quality {
	case "best":
		args = append(args, "-f", "bestvideo+bestaudio/best", "--merge-output-format", "mp4")
	default:
		// 720p ceiling keeps downloads fast and avoids re-encoding.
		args = append(args, "-f", "bestvideo[height<=720]+bestaudio/best[height<=720]", "--merge-output-format", "mp4")
	}
	args = append(args, url)

	d.logger.Info("download started", slog.String("url", url), slog.String("quality", quality))

	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := string(output)
		if len(detail) > 500 {
			detail = detail[len(detail)-500:]
		}
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, detail)
	}

	path, err := d.newestVideo()
	if err != nil {
		return "", err
	}
	d.logger.Info("download finished", slog.String("path", path))
	return path, nil
}

// newestVideo returns the most recently modified video file in the
// download directory.
func (d *Downloader) newestVideo() (string, error) {
	entries, err := os.ReadDir(d.videoDir)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", d.videoDir, err)
	}

	var files []os.FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".mp4", ".mkv", ".webm", ".m4v":
		default:
			// Skip partial downloads and metadata files.
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, info)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no files in %s after download", d.videoDir)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime().After(files[j].ModTime())
	})
	return filepath.Join(d.videoDir, files[0].Name()), nil
}
