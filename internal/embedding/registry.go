package embedding

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/clipseek/clipseek/internal/asr"
	"github.com/clipseek/clipseek/internal/config"
)

// Registry hands out the inference clients lazily and owns the
// release-and-settle dance between transcription and indexing. The ASR and
// embedding models cannot both fit in accelerator memory on small GPUs, so
// the pipeline asks the registry to drop the ASR model before it starts
// embedding.
type Registry struct {
	mu     sync.Mutex
	cfg    config.ModelsConfig
	settle time.Duration
	logger *slog.Logger

	transcriber asr.Transcriber
	dense       Encoder
	chunk       Encoder

	// Factories are replaceable in tests.
	newTranscriber func() asr.Transcriber
	newDense       func() Encoder
	newChunk       func() Encoder
}

// NewRegistry creates a registry from the models configuration. settle is
// the pause after an ASR release before embedding work resumes.
func NewRegistry(cfg config.ModelsConfig, settle time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{cfg: cfg, settle: settle, logger: logger}
	r.newTranscriber = func() asr.Transcriber {
		return asr.NewWhisperClient(cfg.ASRURL, cfg.ASRModel, cfg.Timeout)
	}
	r.newDense = func() Encoder {
		return NewHTTPClient(cfg.EmbedURL, cfg.EmbedModel, cfg.Timeout)
	}
	r.newChunk = func() Encoder {
		return NewHTTPClient(cfg.ChunkURL, cfg.ChunkModel, cfg.Timeout)
	}
	return r
}

// WithTranscriberFactory overrides how the ASR client is constructed,
// for alternative backends and tests.
func (r *Registry) WithTranscriberFactory(f func() asr.Transcriber) *Registry {
	r.newTranscriber = f
	return r
}

// WithEncoderFactories overrides how the encoders are constructed.
func (r *Registry) WithEncoderFactories(dense, chunk func() Encoder) *Registry {
	if dense != nil {
		r.newDense = dense
	}
	if chunk != nil {
		r.newChunk = chunk
	}
	return r
}

// ASR returns the shared transcriber, creating it on first use.
func (r *Registry) ASR() asr.Transcriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transcriber == nil {
		r.logger.Info("loading asr client", slog.String("model", r.cfg.ASRModel))
		r.transcriber = r.newTranscriber()
	}
	return r.transcriber
}

// Dense returns the retrieval embedding encoder, creating it on first use.
func (r *Registry) Dense() Encoder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dense == nil {
		r.logger.Info("loading dense encoder", slog.String("model", r.cfg.EmbedModel))
		r.dense = r.newDense()
	}
	return r.dense
}

// Chunk returns the chunk-similarity encoder, creating it on first use.
func (r *Registry) Chunk() Encoder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chunk == nil {
		r.logger.Info("loading chunk encoder", slog.String("model", r.cfg.ChunkModel))
		r.chunk = r.newChunk()
	}
	return r.chunk
}

// ReleaseASR drops the transcriber, asks the backend to evict the model,
// then waits for memory to settle. Safe to call when nothing is loaded.
func (r *Registry) ReleaseASR(ctx context.Context) {
	r.mu.Lock()
	transcriber := r.transcriber
	r.transcriber = nil
	r.mu.Unlock()

	if transcriber != nil {
		if err := transcriber.Unload(ctx); err != nil {
			r.logger.Warn("asr unload failed", slog.String("error", err.Error()))
		}
	}

	runtime.GC()
	if r.settle > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(r.settle):
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		r.logger.Info("asr released",
			slog.Float64("mem_used_percent", vm.UsedPercent),
			slog.Uint64("mem_available_mb", vm.Available/(1024*1024)),
		)
	}
}
