package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/clipseek/clipseek/internal/config"
	"github.com/clipseek/clipseek/internal/database"
	"github.com/clipseek/clipseek/internal/database/migrations"
	"github.com/clipseek/clipseek/internal/embedding"
	internalhttp "github.com/clipseek/clipseek/internal/http"
	"github.com/clipseek/clipseek/internal/http/handlers"
	"github.com/clipseek/clipseek/internal/indexing"
	"github.com/clipseek/clipseek/internal/media"
	"github.com/clipseek/clipseek/internal/observability"
	"github.com/clipseek/clipseek/internal/pipeline"
	"github.com/clipseek/clipseek/internal/repository"
	"github.com/clipseek/clipseek/internal/search"
	"github.com/clipseek/clipseek/internal/transcribe"
	"github.com/clipseek/clipseek/internal/vectorstore"
	"github.com/clipseek/clipseek/internal/version"
	"github.com/clipseek/clipseek/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the clipseek server",
	Long: `Start the clipseek HTTP server and ingest pipeline.

The server provides:
- REST API for video management, hybrid search, clip cutting, and downloads
- Background directory watcher and transcription queue
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host to bind to")
	serveCmd.Flags().Int("port", 0, "Port to listen on")
	serveCmd.Flags().String("data-dir", "", "Root directory for catalog, videos, clips, and vectors")
}

// flagString returns the flag's value only when the user set it
// explicitly, preserving flag > env > file > default priority.
func flagString(flags *pflag.FlagSet, name string) (string, bool) {
	if !flags.Changed(name) {
		return "", false
	}
	v, _ := flags.GetString(name)
	return v, true
}

func runServe(cmd *cobra.Command, args []string) error {
	// The data-dir flag routes through the same override the DATA_DIR
	// environment variable uses, so the derived catalog and vector paths
	// stay consistent.
	if dir, ok := flagString(cmd.Flags(), "data-dir"); ok {
		if err := os.Setenv("DATA_DIR", dir); err != nil {
			return fmt.Errorf("setting data dir: %w", err)
		}
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if host, ok := flagString(cmd.Flags(), "host"); ok {
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if level, ok := flagString(rootCmd.PersistentFlags(), "log-level"); ok {
		cfg.Logging.Level = level
	}
	if format, ok := flagString(rootCmd.PersistentFlags(), "log-format"); ok {
		cfg.Logging.Format = format
	}

	logger := observability.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting clipseek",
		slog.String("version", version.Short()),
		slog.String("data_dir", cfg.Storage.DataDir),
	)

	if err := cfg.Storage.EnsureDirs(); err != nil {
		return fmt.Errorf("preparing storage: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := migrations.NewMigrator(db.DB, logger).Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	videoRepo := repository.NewVideoRepository(db.DB)
	segmentRepo := repository.NewSegmentRepository(db.DB)
	clipRepo := repository.NewClipRepository(db.DB)
	ftsRepo := repository.NewFTSRepository(db.DB)

	store, err := vectorstore.NewPersistent(cfg.Storage.VectorPath())
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}

	queryCache, err := embedding.NewQueryCache(cfg.Search.QueryCacheSize)
	if err != nil {
		return fmt.Errorf("creating query cache: %w", err)
	}

	registry := embedding.NewRegistry(cfg.Models, cfg.Pipeline.SettleDelay, logger)

	transcriber := transcribe.NewService(videoRepo, segmentRepo, registry, logger)
	indexer := indexing.New(videoRepo, segmentRepo, ftsRepo, store, registry,
		cfg.Chunking, cfg.Pipeline.IndexBatchSize, logger)
	searcher := search.New(cfg.Search, registry, queryCache, store, ftsRepo, logger)

	pipe := pipeline.New(pipeline.NewQueue(), transcriber, indexer, cfg.Pipeline, logger)
	pipe.Start(ctx)
	defer pipe.Stop()

	watch := watcher.New(cfg.Watcher, cfg.Storage.VideoPath(), videoRepo, pipe, logger)
	if err := watch.Start(ctx); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watch.Stop()

	if cfg.Watcher.Enabled {
		if _, err := watch.Scan(ctx, cfg.Watcher.AutoProcess); err != nil {
			logger.Warn("startup scan failed", slog.String("error", err.Error()))
		}
	}

	cutter := media.NewCutter(cfg.FFmpeg, cfg.Storage.ClipPath(), videoRepo, clipRepo, logger)
	downloader := media.NewDownloader(cfg.Download, cfg.Storage.VideoPath(), logger)

	server := internalhttp.NewServer(cfg.Server, logger, version.Short())
	api := server.API()

	handlers.NewHealthHandler(version.Short(), db, store).Register(api)
	handlers.NewVideoHandler(videoRepo, segmentRepo, store, watch, pipe, cfg.Storage.VideoPath(), logger).Register(api)
	handlers.NewSearchHandler(searcher, videoRepo, logger).Register(api)
	handlers.NewQueueHandler(pipe.Queue()).Register(api)
	handlers.NewClipHandler(cutter, clipRepo, logger).Register(api)
	handlers.NewDownloadHandler(downloader, watch, logger).Register(api)
	handlers.NewEmbeddingsHandler(store, logger).Register(api)

	// Cut clips are served as plain files; clip responses link here.
	server.Router().Handle("/files/clips/*",
		http.StripPrefix("/files/clips/", http.FileServer(http.Dir(cfg.Storage.ClipPath()))))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}

	return nil
}
