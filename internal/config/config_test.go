package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080},
		Storage: StorageConfig{DataDir: "./data"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Pipeline: PipelineConfig{
			Workers:  2,
			GPUSlots: 2,
		},
		Chunking: ChunkingConfig{
			MinChars:   80,
			MaxChars:   350,
			MinSeconds: 5,
			MaxSeconds: 20,
			Threshold:  0.55,
		},
		Search: SearchConfig{
			TopK:             20,
			RRFK:             60,
			OverlapThreshold: 0.5,
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Load without config file should use defaults
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)

	// Storage defaults, with the catalog DSN derived from the data dir
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join("./data", "app.db"), cfg.Database.DSN)
	assert.Equal(t, filepath.Join("./data", "videos"), cfg.Storage.VideoPath())
	assert.Equal(t, filepath.Join("./data", "clips"), cfg.Storage.ClipPath())
	assert.Equal(t, filepath.Join("./data", "vectors"), cfg.Storage.VectorPath())

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Model sidecar defaults
	assert.Equal(t, "http://127.0.0.1:8571", cfg.Models.ASRURL)
	assert.Equal(t, "large-v3", cfg.Models.ASRModel)
	assert.Equal(t, "intfloat/multilingual-e5-large", cfg.Models.EmbedModel)

	// Pipeline defaults
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, 2, cfg.Pipeline.GPUSlots)
	assert.Equal(t, time.Second, cfg.Pipeline.SettleDelay)
	assert.Equal(t, 64, cfg.Pipeline.IndexBatchSize)

	// Chunking defaults
	assert.Equal(t, 80, cfg.Chunking.MinChars)
	assert.Equal(t, 350, cfg.Chunking.MaxChars)
	assert.InDelta(t, 5.0, cfg.Chunking.MinSeconds, 1e-9)
	assert.InDelta(t, 20.0, cfg.Chunking.MaxSeconds, 1e-9)
	assert.InDelta(t, 0.55, cfg.Chunking.Threshold, 1e-9)

	// Search defaults
	assert.Equal(t, 20, cfg.Search.TopK)
	assert.Equal(t, 30, cfg.Search.MinDocLen)
	assert.InDelta(t, 60.0, cfg.Search.RRFK, 1e-9)
	assert.InDelta(t, 0.5, cfg.Search.OverlapThreshold, 1e-9)

	// Watcher defaults
	assert.True(t, cfg.Watcher.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Watcher.Interval)
	assert.True(t, cfg.Watcher.AutoProcess)

	// Media tool defaults
	assert.Equal(t, 23, cfg.FFmpeg.CRF)
	assert.Equal(t, "fast", cfg.FFmpeg.Preset)
	assert.Equal(t, 300*time.Second, cfg.FFmpeg.CutTimeout)
	assert.Equal(t, "720p", cfg.Download.Quality)
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 60s

storage:
  data_dir: "/var/lib/clipseek"

logging:
  level: "debug"
  format: "text"

chunking:
  max_chars: 400

search:
  top_k: 10
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/var/lib/clipseek", cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join("/var/lib/clipseek", "app.db"), cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 400, cfg.Chunking.MaxChars)
	assert.Equal(t, 10, cfg.Search.TopK)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CLIPSEEK_SERVER_PORT", "3000")
	t.Setenv("CLIPSEEK_LOGGING_LEVEL", "warn")
	t.Setenv("CLIPSEEK_PIPELINE_WORKERS", "4")
	t.Setenv("CLIPSEEK_PIPELINE_GPU_SLOTS", "3")
	t.Setenv("CLIPSEEK_SEARCH_TOP_K", "5")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 3, cfg.Pipeline.GPUSlots)
	assert.Equal(t, 5, cfg.Search.TopK)
}

func TestLoad_DataDirEnvRootsStorage(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("DATA_DIR", tmpDir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, tmpDir, cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join(tmpDir, "app.db"), cfg.Database.DSN)
	assert.Equal(t, filepath.Join(tmpDir, "videos"), cfg.Storage.VideoPath())
	assert.Equal(t, filepath.Join(tmpDir, "vectors"), cfg.Storage.VectorPath())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 8080
logging:
  level: "debug"
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	t.Setenv("CLIPSEEK_SERVER_PORT", "9000")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Env should override file
	assert.Equal(t, 9000, cfg.Server.Port)
	// File value should be preserved
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validTestConfig()
	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero port", 0},
		{"negative port", -1},
		{"port too high", 70000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Server.Port = tt.port
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestValidate_EmptyDataDir(t *testing.T) {
	cfg := validTestConfig()
	cfg.Storage.DataDir = ""
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "storage.data_dir")
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validTestConfig()
	cfg.Logging.Level = "verbose"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_GPUSlotsExceedWorkers(t *testing.T) {
	cfg := validTestConfig()
	cfg.Pipeline.Workers = 2
	cfg.Pipeline.GPUSlots = 3
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "gpu_slots")
}

func TestValidate_ChunkingBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"min_chars above max_chars", func(c *Config) { c.Chunking.MinChars = 400 }},
		{"zero min_seconds", func(c *Config) { c.Chunking.MinSeconds = 0 }},
		{"max_seconds below min_seconds", func(c *Config) { c.Chunking.MaxSeconds = 1 }},
		{"threshold outside cosine range", func(c *Config) { c.Chunking.Threshold = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_SearchBounds(t *testing.T) {
	cfg := validTestConfig()
	cfg.Search.TopK = 0
	assert.Error(t, cfg.Validate())

	cfg = validTestConfig()
	cfg.Search.OverlapThreshold = 0
	assert.Error(t, cfg.Validate())
}
