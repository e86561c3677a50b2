// Package config provides configuration management for clipseek using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultDataDir = "./data"

	defaultWorkers     = 2
	defaultGPUSlots    = 2
	defaultSettleDelay = time.Second

	defaultChunkMinChars   = 80
	defaultChunkMaxChars   = 350
	defaultChunkMinSeconds = 5.0
	defaultChunkMaxSeconds = 20.0
	defaultChunkThreshold  = 0.55

	defaultSearchTopK       = 20
	defaultSearchMinDocLen  = 30
	defaultSearchRRFK       = 60.0
	defaultSearchOverlap    = 0.5
	defaultQueryCacheSize   = 512
	defaultIndexBatchSize   = 64
	defaultWatchInterval    = 5 * time.Second
	defaultCutTimeout       = 300 * time.Second
	defaultFFmpegCRF        = 23
	defaultFFmpegPreset     = "fast"
	defaultInferenceTimeout = 10 * time.Minute
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Models   ModelsConfig   `mapstructure:"models"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Chunking ChunkingConfig `mapstructure:"chunking"`
	Search   SearchConfig   `mapstructure:"search"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
	FFmpeg   FFmpegConfig   `mapstructure:"ffmpeg"`
	Download DownloadConfig `mapstructure:"download"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds catalog store configuration. The catalog is a single
// SQLite file in WAL mode; the DSN is derived from storage.data_dir unless
// set explicitly.
type DatabaseConfig struct {
	DSN         string        `mapstructure:"dsn"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
	LogLevel    string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds on-disk layout configuration. All directories are
// rooted at DataDir.
type StorageConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	VideoDir  string `mapstructure:"video_dir"`
	ClipDir   string `mapstructure:"clip_dir"`
	VectorDir string `mapstructure:"vector_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// ModelsConfig holds inference sidecar configuration. The ASR and embedding
// models run in external servers; clipseek talks to them over HTTP.
type ModelsConfig struct {
	ASRURL     string        `mapstructure:"asr_url"`
	ASRModel   string        `mapstructure:"asr_model"`
	EmbedURL   string        `mapstructure:"embed_url"`
	EmbedModel string        `mapstructure:"embed_model"`
	ChunkURL   string        `mapstructure:"chunk_url"`
	ChunkModel string        `mapstructure:"chunk_model"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// PipelineConfig holds ingest pipeline configuration.
type PipelineConfig struct {
	// Workers is the number of concurrent pipeline workers.
	Workers int `mapstructure:"workers"`
	// GPUSlots bounds how many jobs may occupy accelerator memory at once.
	// Must not exceed Workers.
	GPUSlots int `mapstructure:"gpu_slots"`
	// SettleDelay is the pause between releasing the ASR model and loading
	// the embedding models, giving the allocator time to return memory.
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	// IndexBatchSize is the embed/upsert batch size during indexing.
	IndexBatchSize int `mapstructure:"index_batch_size"`
}

// ChunkingConfig holds semantic chunker bounds.
type ChunkingConfig struct {
	MinChars   int     `mapstructure:"min_chars"`
	MaxChars   int     `mapstructure:"max_chars"`
	MinSeconds float64 `mapstructure:"min_seconds"`
	MaxSeconds float64 `mapstructure:"max_seconds"`
	// Threshold is the cosine similarity below which adjacent sentences are
	// split into separate chunks.
	Threshold float64 `mapstructure:"threshold"`
}

// SearchConfig holds hybrid search configuration.
type SearchConfig struct {
	TopK int `mapstructure:"top_k"`
	// MinDocLen drops dense candidates whose stored document is shorter
	// than this many characters.
	MinDocLen int     `mapstructure:"min_doc_len"`
	RRFK      float64 `mapstructure:"rrf_k"`
	// OverlapThreshold is the fraction of a candidate's duration that must
	// overlap an already-kept result for the candidate to be dropped.
	OverlapThreshold float64 `mapstructure:"overlap_threshold"`
	QueryCacheSize   int     `mapstructure:"query_cache_size"`
}

// WatcherConfig holds directory watcher configuration.
type WatcherConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	// AutoProcess enqueues newly discovered files for the full pipeline.
	AutoProcess bool `mapstructure:"auto_process"`
}

// FFmpegConfig holds clip cutter configuration.
type FFmpegConfig struct {
	BinaryPath string        `mapstructure:"binary_path"` // empty = find in PATH
	CRF        int           `mapstructure:"crf"`
	Preset     string        `mapstructure:"preset"`
	CutTimeout time.Duration `mapstructure:"cut_timeout"`
}

// DownloadConfig holds yt-dlp downloader configuration.
type DownloadConfig struct {
	YtDlpPath string `mapstructure:"ytdlp_path"` // empty = find in PATH
	Quality   string `mapstructure:"quality"`    // "720p" or "best"
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with CLIPSEEK_, using underscores for nesting
// (CLIPSEEK_SERVER_PORT=8080). The bare DATA_DIR variable is honored as a
// root for all on-disk state.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/clipseek")
		v.AddConfigPath("$HOME/.clipseek")
	}

	v.SetEnvPrefix("CLIPSEEK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars apply
	}

	// DATA_DIR roots the catalog file, vector directory, video directory
	// and clip directory.
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		v.Set("storage.data_dir", dir)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = filepath.Join(cfg.Storage.DataDir, "app.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.data_dir", defaultDataDir)
	v.SetDefault("storage.video_dir", "videos")
	v.SetDefault("storage.clip_dir", "clips")
	v.SetDefault("storage.vector_dir", "vectors")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("models.asr_url", "http://127.0.0.1:8571")
	v.SetDefault("models.asr_model", "large-v3")
	v.SetDefault("models.embed_url", "http://127.0.0.1:8572")
	v.SetDefault("models.embed_model", "intfloat/multilingual-e5-large")
	v.SetDefault("models.chunk_url", "http://127.0.0.1:8573")
	v.SetDefault("models.chunk_model", "paraphrase-multilingual-MiniLM-L12-v2")
	v.SetDefault("models.timeout", defaultInferenceTimeout)

	v.SetDefault("pipeline.workers", defaultWorkers)
	v.SetDefault("pipeline.gpu_slots", defaultGPUSlots)
	v.SetDefault("pipeline.settle_delay", defaultSettleDelay)
	v.SetDefault("pipeline.index_batch_size", defaultIndexBatchSize)

	v.SetDefault("chunking.min_chars", defaultChunkMinChars)
	v.SetDefault("chunking.max_chars", defaultChunkMaxChars)
	v.SetDefault("chunking.min_seconds", defaultChunkMinSeconds)
	v.SetDefault("chunking.max_seconds", defaultChunkMaxSeconds)
	v.SetDefault("chunking.threshold", defaultChunkThreshold)

	v.SetDefault("search.top_k", defaultSearchTopK)
	v.SetDefault("search.min_doc_len", defaultSearchMinDocLen)
	v.SetDefault("search.rrf_k", defaultSearchRRFK)
	v.SetDefault("search.overlap_threshold", defaultSearchOverlap)
	v.SetDefault("search.query_cache_size", defaultQueryCacheSize)

	v.SetDefault("watcher.enabled", true)
	v.SetDefault("watcher.interval", defaultWatchInterval)
	v.SetDefault("watcher.auto_process", true)

	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.crf", defaultFFmpegCRF)
	v.SetDefault("ffmpeg.preset", defaultFFmpegPreset)
	v.SetDefault("ffmpeg.cut_timeout", defaultCutTimeout)

	v.SetDefault("download.ytdlp_path", "")
	v.SetDefault("download.quality", "720p")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	if c.Pipeline.GPUSlots < 1 {
		return fmt.Errorf("pipeline.gpu_slots must be at least 1")
	}
	if c.Pipeline.GPUSlots > c.Pipeline.Workers {
		return fmt.Errorf("pipeline.gpu_slots must not exceed pipeline.workers")
	}

	if c.Chunking.MinChars < 1 || c.Chunking.MaxChars <= c.Chunking.MinChars {
		return fmt.Errorf("chunking bounds require 0 < min_chars < max_chars")
	}
	if c.Chunking.MinSeconds <= 0 || c.Chunking.MaxSeconds <= c.Chunking.MinSeconds {
		return fmt.Errorf("chunking bounds require 0 < min_seconds < max_seconds")
	}
	if c.Chunking.Threshold < -1 || c.Chunking.Threshold > 1 {
		return fmt.Errorf("chunking.threshold must be a cosine similarity in [-1, 1]")
	}

	if c.Search.TopK < 1 {
		return fmt.Errorf("search.top_k must be at least 1")
	}
	if c.Search.OverlapThreshold <= 0 || c.Search.OverlapThreshold > 1 {
		return fmt.Errorf("search.overlap_threshold must be in (0, 1]")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// VideoPath returns the full path to the video directory.
func (c *StorageConfig) VideoPath() string {
	return filepath.Join(c.DataDir, c.VideoDir)
}

// ClipPath returns the full path to the clip directory.
func (c *StorageConfig) ClipPath() string {
	return filepath.Join(c.DataDir, c.ClipDir)
}

// VectorPath returns the full path to the vector store directory.
func (c *StorageConfig) VectorPath() string {
	return filepath.Join(c.DataDir, c.VectorDir)
}

// EnsureDirs creates the data, video, clip and vector directories.
func (c *StorageConfig) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.VideoPath(), c.ClipPath(), c.VectorPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}
