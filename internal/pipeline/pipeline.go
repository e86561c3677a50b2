package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/clipseek/clipseek/internal/config"
	"github.com/clipseek/clipseek/internal/models"
)

// Transcriber is the transcription stage of a job.
type Transcriber interface {
	Run(ctx context.Context, videoID string, force bool) error
}

// Indexer is the indexing stage of a job.
type Indexer interface {
	Run(ctx context.Context, videoID string) error
}

// Pipeline runs queued jobs on a fixed worker pool. Worker count and
// accelerator slots are sized independently: workers bound overall
// parallelism, the semaphore bounds how many jobs may hold GPU memory at
// once.
type Pipeline struct {
	queue      *Queue
	transcribe Transcriber
	index      Indexer
	gpu        *semaphore.Weighted
	workers    int
	logger     *slog.Logger

	mu      sync.Mutex
	pending []string
	wake    chan struct{}

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a pipeline over the queue.
func New(queue *Queue, transcribe Transcriber, index Indexer, cfg config.PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	slots := int64(cfg.GPUSlots)
	if slots < 1 {
		slots = 1
	}
	return &Pipeline{
		queue:      queue,
		transcribe: transcribe,
		index:      index,
		gpu:        semaphore.NewWeighted(slots),
		workers:    workers,
		logger:     logger,
		wake:       make(chan struct{}, 1),
	}
}

// Queue exposes the underlying queue for the HTTP surface.
func (p *Pipeline) Queue() *Queue {
	return p.queue
}

// Start launches the workers. They run until Stop or context cancellation.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info("pipeline started", slog.Int("workers", p.workers))
}

// Stop cancels the workers and waits for running jobs to wind down.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("pipeline stopped")
}

// Enqueue registers a job and wakes a worker. Never blocks; queue growth
// is unbounded, the worker pool is the backpressure. Returns false when
// the video is already waiting or processing.
func (p *Pipeline) Enqueue(videoID, title string) bool {
	if !p.queue.Enqueue(videoID, title) {
		return false
	}
	p.mu.Lock()
	p.pending = append(p.pending, videoID)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

// TranscribeAsync runs a one-off transcription in the background, outside
// the queue but still under an accelerator token.
func (p *Pipeline) TranscribeAsync(videoID string, force bool) {
	go func() {
		ctx := context.Background()
		if err := p.gpu.Acquire(ctx, 1); err != nil {
			return
		}
		defer p.gpu.Release(1)
		if err := p.transcribe.Run(ctx, videoID, force); err != nil {
			p.logger.Error("transcribe failed",
				slog.String("video_id", videoID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// IndexAsync runs a one-off indexing pass in the background under an
// accelerator token.
func (p *Pipeline) IndexAsync(videoID string) {
	go func() {
		ctx := context.Background()
		if err := p.gpu.Acquire(ctx, 1); err != nil {
			return
		}
		defer p.gpu.Release(1)
		if err := p.index.Run(ctx, videoID); err != nil {
			p.logger.Error("index failed",
				slog.String("video_id", videoID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.logger.With(slog.Int("worker", id))
	for {
		videoID, ok := p.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
				continue
			}
		}
		p.run(ctx, videoID, logger)
	}
}

// next pops the oldest pending job. When more remain it re-arms the wake
// channel so sibling workers keep draining.
func (p *Pipeline) next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return "", false
	}
	videoID := p.pending[0]
	p.pending = p.pending[1:]
	if len(p.pending) > 0 {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
	return videoID, true
}

// run executes one job: transcribe, then index, both under one
// accelerator token. A transcript that already exists is not an error at
// this level; the job proceeds straight to indexing.
func (p *Pipeline) run(ctx context.Context, videoID string, logger *slog.Logger) {
	if !p.queue.markProcessing(videoID) {
		// Removed while waiting.
		return
	}
	logger = logger.With(slog.String("video_id", videoID))

	if err := p.gpu.Acquire(ctx, 1); err != nil {
		p.queue.finish(videoID, err)
		return
	}
	defer p.gpu.Release(1)

	logger.Info("job started")

	if err := p.transcribe.Run(ctx, videoID, false); err != nil {
		if !errors.Is(err, models.ErrAlreadyTranscribed) {
			logger.Error("job failed", slog.String("stage", "transcribe"), slog.String("error", err.Error()))
			p.queue.finish(videoID, err)
			return
		}
		logger.Info("transcript exists, indexing only")
	}

	if err := p.index.Run(ctx, videoID); err != nil {
		logger.Error("job failed", slog.String("stage", "index"), slog.String("error", err.Error()))
		p.queue.finish(videoID, err)
		return
	}

	p.queue.finish(videoID, nil)
	logger.Info("job done")
}
