// Package search implements hybrid dense + lexical retrieval over indexed
// chunks.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/clipseek/clipseek/internal/config"
	"github.com/clipseek/clipseek/internal/embedding"
	"github.com/clipseek/clipseek/internal/repository"
	"github.com/clipseek/clipseek/internal/vectorstore"
)

// Result is one fused search hit.
type Result struct {
	ChunkID string  `json:"segment_id"`
	VideoID string  `json:"video_id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// Options narrows a search. The zero value means: default top-k, all
// videos, both retrieval paths.
type Options struct {
	TopK     int
	VideoIDs []string
	// DenseOnly skips the lexical path entirely.
	DenseOnly bool
}

// candidate carries one retrieval hit through fusion.
type candidate struct {
	chunkID string
	videoID string
	start   float64
	end     float64
	text    string
	score   float64
}

// Searcher runs both retrieval paths in parallel and fuses them with
// reciprocal rank fusion. It never touches the accelerator semaphore or
// the catalog write path, so searches stay responsive while the pipeline
// is busy.
type Searcher struct {
	cfg      config.SearchConfig
	registry *embedding.Registry
	cache    *embedding.QueryCache
	store    vectorstore.Store
	fts      repository.FTSRepository
	logger   *slog.Logger
}

// New creates a Searcher.
func New(
	cfg config.SearchConfig,
	registry *embedding.Registry,
	cache *embedding.QueryCache,
	store vectorstore.Store,
	fts repository.FTSRepository,
	logger *slog.Logger,
) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		cfg:      cfg,
		registry: registry,
		cache:    cache,
		store:    store,
		fts:      fts,
		logger:   logger,
	}
}

// Search runs the query and returns at most top-k fused results, scores
// non-increasing, with per-video overlapping hits deduplicated.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	topK := opts.TopK
	if topK < 1 {
		topK = s.cfg.TopK
	}
	fetchK := 3 * topK

	var dense, lexical []candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dense, err = s.denseSearch(gctx, query, fetchK, opts.VideoIDs)
		return err
	})
	if !opts.DenseOnly {
		g.Go(func() error {
			var err error
			lexical, err = s.lexicalSearch(gctx, query, fetchK, opts.VideoIDs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// With no lexical side there is nothing to fuse; dense candidates keep
	// their similarity scores.
	fused := dense
	if len(lexical) > 0 {
		fused = fuse(dense, lexical, s.cfg.RRFK)
	}
	deduped := dedupOverlaps(fused, s.cfg.OverlapThreshold)
	if len(deduped) > topK {
		deduped = deduped[:topK]
	}

	results := make([]Result, len(deduped))
	for i, c := range deduped {
		results[i] = Result{
			ChunkID: c.chunkID,
			VideoID: c.videoID,
			Start:   c.start,
			End:     c.end,
			Text:    c.text,
			Score:   c.score,
		}
	}

	s.logger.Debug("search",
		slog.String("query", query),
		slog.Int("dense", len(dense)),
		slog.Int("lexical", len(lexical)),
		slog.Int("results", len(results)),
	)
	return results, nil
}

// denseSearch embeds the query and runs the ANN lookup, dropping stub
// documents shorter than the configured minimum.
func (s *Searcher) denseSearch(ctx context.Context, query string, k int, videoIDs []string) ([]candidate, error) {
	vector, err := s.queryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := s.store.Query(ctx, vector, k, videoIDs)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	out := make([]candidate, 0, len(hits))
	for _, h := range hits {
		if utf8.RuneCountInString(h.Text) < s.cfg.MinDocLen {
			continue
		}
		out = append(out, candidate{
			chunkID: h.ChunkID,
			videoID: h.VideoID,
			start:   h.Start,
			end:     h.End,
			text:    h.Text,
			score:   round4(float64(h.Similarity)),
		})
	}
	return out, nil
}

// queryEmbedding returns the normalized query vector, memoized per
// (model, text).
func (s *Searcher) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	encoder := s.registry.Dense()
	if s.cache != nil {
		if vector, ok := s.cache.Get(encoder.Model(), query); ok {
			return vector, nil
		}
	}

	vectors, err := encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("encoder returned %d vectors for one input", len(vectors))
	}
	vector := normalize(vectors[0])
	if s.cache != nil {
		s.cache.Put(encoder.Model(), query, vector)
	}
	return vector, nil
}

// lexicalSearch runs the BM25 path. The lexical index is text-only, so
// timestamps come from the vector store; hits with no vector-side record
// are skipped rather than returned with zeroed times.
func (s *Searcher) lexicalSearch(ctx context.Context, query string, k int, videoIDs []string) ([]candidate, error) {
	match := sanitizeQuery(query)
	if match == "" {
		return nil, nil
	}

	limit := k
	if len(videoIDs) > 0 {
		// Post-filtering discards foreign-video rows, so fetch wider.
		limit = k * 3
	}

	hits, err := s.fts.Search(ctx, match, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}

	wanted := make(map[string]bool, len(videoIDs))
	for _, id := range videoIDs {
		wanted[id] = true
	}

	out := make([]candidate, 0, len(hits))
	for _, h := range hits {
		if len(wanted) > 0 && !wanted[h.VideoID] {
			continue
		}
		record, found, err := s.store.Get(ctx, h.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", h.ChunkID, err)
		}
		if !found {
			continue
		}
		out = append(out, candidate{
			chunkID: h.ChunkID,
			videoID: h.VideoID,
			start:   record.Start,
			end:     record.End,
			text:    h.Text,
			score:   round4(1.0 / (1.0 + math.Abs(h.Rank))),
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// sanitizeQuery strips everything but letters, digits, and whitespace so
// the string is safe to hand to the full-text MATCH parser.
func sanitizeQuery(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// fuse combines both candidate lists with reciprocal rank fusion,
// 1/(K+rank) with rank starting at 1. When a chunk appears on both sides
// the dense payload wins: it carries authoritative timestamps. Scores are
// quantized to the precision they are reported at; quantization ties go
// to the better dense rank, then the better lexical rank.
func fuse(dense, lexical []candidate, k float64) []candidate {
	const unranked = 1 << 30

	type fused struct {
		candidate
		denseRank int
		lexRank   int
	}

	byID := make(map[string]*fused, len(dense)+len(lexical))
	order := make([]string, 0, len(dense)+len(lexical))

	for i, c := range dense {
		f := &fused{candidate: c, denseRank: i + 1, lexRank: unranked}
		f.score = 1.0 / (k + float64(i+1))
		byID[c.chunkID] = f
		order = append(order, c.chunkID)
	}
	for i, c := range lexical {
		if f, seen := byID[c.chunkID]; seen {
			f.score += 1.0 / (k + float64(i+1))
			f.lexRank = i + 1
			continue
		}
		f := &fused{candidate: c, denseRank: unranked, lexRank: i + 1}
		f.score = 1.0 / (k + float64(i+1))
		byID[c.chunkID] = f
		order = append(order, c.chunkID)
	}

	out := make([]*fused, 0, len(order))
	for _, id := range order {
		f := byID[id]
		f.score = round4(f.score)
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].denseRank != out[j].denseRank {
			return out[i].denseRank < out[j].denseRank
		}
		if out[i].lexRank != out[j].lexRank {
			return out[i].lexRank < out[j].lexRank
		}
		return out[i].chunkID < out[j].chunkID
	})

	result := make([]candidate, len(out))
	for i, f := range out {
		result[i] = f.candidate
	}
	return result
}

// dedupOverlaps greedily keeps candidates in descending score order,
// dropping any that overlap an already-kept interval of the same video by
// at least threshold of the candidate's own duration.
func dedupOverlaps(candidates []candidate, threshold float64) []candidate {
	kept := make([]candidate, 0, len(candidates))
	byVideo := make(map[string][]candidate)

	for _, c := range candidates {
		// Floor the duration so zero-length intervals cannot divide by
		// zero or dodge the overlap test.
		duration := math.Max(c.end-c.start, 0.1)
		overlapping := false
		for _, k := range byVideo[c.videoID] {
			overlap := math.Min(c.end, k.end) - math.Max(c.start, k.start)
			if overlap <= 0 {
				continue
			}
			if overlap/duration >= threshold {
				overlapping = true
				break
			}
		}
		if overlapping {
			continue
		}
		kept = append(kept, c)
		byVideo[c.videoID] = append(byVideo[c.videoID], c)
	}
	return kept
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func normalize(vector []float32) []float32 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vector
	}
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
