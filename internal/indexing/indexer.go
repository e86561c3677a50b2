// Package indexing orchestrates chunk → embed → dual-index writes.
package indexing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clipseek/clipseek/internal/chunking"
	"github.com/clipseek/clipseek/internal/config"
	"github.com/clipseek/clipseek/internal/embedding"
	"github.com/clipseek/clipseek/internal/models"
	"github.com/clipseek/clipseek/internal/repository"
	"github.com/clipseek/clipseek/internal/vectorstore"
)

// Indexer builds a video's chunk set and writes it to the vector store and
// the lexical index. Re-indexing is destructive per video: prior rows on
// both sides are wiped before new ones land, so a mid-run failure is
// repaired by the next successful run.
type Indexer struct {
	videos    repository.VideoRepository
	segments  repository.SegmentRepository
	fts       repository.FTSRepository
	store     vectorstore.Store
	registry  *embedding.Registry
	chunkCfg  config.ChunkingConfig
	batchSize int
	logger    *slog.Logger
}

// New creates an Indexer.
func New(
	videos repository.VideoRepository,
	segments repository.SegmentRepository,
	fts repository.FTSRepository,
	store vectorstore.Store,
	registry *embedding.Registry,
	chunkCfg config.ChunkingConfig,
	batchSize int,
	logger *slog.Logger,
) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize < 1 {
		batchSize = 64
	}
	return &Indexer{
		videos:    videos,
		segments:  segments,
		fts:       fts,
		store:     store,
		registry:  registry,
		chunkCfg:  chunkCfg,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run indexes the video. Idempotent under repeated invocation.
func (ix *Indexer) Run(ctx context.Context, videoID string) error {
	video, err := ix.videos.GetByID(ctx, videoID)
	if err != nil {
		return err
	}
	if video == nil {
		return fmt.Errorf("%w: %s", models.ErrVideoNotFound, videoID)
	}

	segments, err := ix.segments.GetByVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("%w: %s", models.ErrNoSegments, videoID)
	}

	logger := ix.logger.With(slog.String("video_id", videoID))

	if err := ix.reindex(ctx, videoID, segments, logger); err != nil {
		if statusErr := ix.videos.UpdateStatus(ctx, videoID, models.VideoStatusErrorIndex); statusErr != nil {
			logger.Error("updating status after failure", slog.String("error", statusErr.Error()))
		}
		return fmt.Errorf("indexing %s: %w", videoID, err)
	}

	return ix.videos.UpdateStatus(ctx, videoID, models.VideoStatusIndexed)
}

func (ix *Indexer) reindex(ctx context.Context, videoID string, segments []*models.Segment, logger *slog.Logger) error {
	// Destructive replace: wipe both sides first so the chunk-id sets can
	// never drift apart across runs.
	if err := ix.store.DeleteVideo(ctx, videoID); err != nil {
		return err
	}
	if _, err := ix.fts.DeleteVideo(ctx, videoID); err != nil {
		return err
	}

	chunker := chunking.New(ix.chunkCfg, ix.registry.Chunk(), logger)
	chunks, err := chunker.Chunk(ctx, segments)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		logger.Warn("no chunks produced", slog.Int("segments", len(segments)))
		return nil
	}

	dense := ix.registry.Dense()
	entries := make([]repository.FTSEntry, 0, len(chunks))

	for from := 0; from < len(chunks); from += ix.batchSize {
		to := from + ix.batchSize
		if to > len(chunks) {
			to = len(chunks)
		}
		batch := chunks[from:to]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}
		vectors, err := dense.Encode(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch at %d: %w", from, err)
		}

		records := make([]vectorstore.Record, len(batch))
		for i, ch := range batch {
			chunkID := fmt.Sprintf("%s-%s", videoID, ch.ID)
			records[i] = vectorstore.Record{
				ChunkID:   chunkID,
				VideoID:   videoID,
				Text:      ch.Text,
				Start:     ch.Start,
				End:       ch.End,
				Embedding: vectors[i],
			}
			entries = append(entries, repository.FTSEntry{
				ChunkID: chunkID,
				VideoID: videoID,
				Text:    ch.Text,
			})
		}
		if err := ix.store.Upsert(ctx, records); err != nil {
			return fmt.Errorf("upserting batch at %d: %w", from, err)
		}
	}

	if err := ix.fts.Replace(ctx, videoID, entries); err != nil {
		return err
	}

	logger.Info("indexed",
		slog.Int("chunks", len(chunks)),
		slog.Int("segments", len(segments)),
	)
	return nil
}
