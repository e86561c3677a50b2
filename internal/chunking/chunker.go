package chunking

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/clipseek/clipseek/internal/config"
	"github.com/clipseek/clipseek/internal/embedding"
	"github.com/clipseek/clipseek/internal/models"
)

// Chunk is one bounded, sentence-aligned span of transcript. IDs are local
// to the video ("sem-0", "seg-0"); the indexer prefixes the video id.
type Chunk struct {
	ID    string
	Start float64
	End   float64
	Text  string
}

// preMergeRunes is the floor used when pre-merging short sentences before
// grouping; it keeps single-clause fragments from dominating similarity.
const preMergeRunes = 40

// Chunker implements similarity-driven grouping over sentence spans. A nil
// encoder (or an encoder failure) degrades to segment-based chunking with
// the same bounds.
type Chunker struct {
	cfg     config.ChunkingConfig
	encoder embedding.Encoder
	logger  *slog.Logger
}

// New creates a Chunker. encoder may be nil.
func New(cfg config.ChunkingConfig, encoder embedding.Encoder, logger *slog.Logger) *Chunker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{cfg: cfg, encoder: encoder, logger: logger}
}

// timed is an unnamed chunk in flight.
type timed struct {
	start float64
	end   float64
	text  string
}

// wordSpan maps a word's byte range in the full text to its timestamps.
type wordSpan struct {
	sc, ec int
	st, et float64
}

// sentenceUnit is a located sentence with word-grid timestamps.
type sentenceUnit struct {
	text      string
	runeLen   int
	charStart int
	charEnd   int
	start     float64
	end       float64
}

// Chunk produces the chunk set for the given raw segments. The result is
// deterministic for identical inputs and model outputs.
func (c *Chunker) Chunk(ctx context.Context, segments []*models.Segment) ([]Chunk, error) {
	if len(segments) == 0 {
		return nil, nil
	}

	// Pre-pass: no raw segment may enter grouping above the bounds.
	processed := make([]*models.Segment, 0, len(segments))
	for _, seg := range segments {
		if c.exceedsBounds(seg.Text, seg.DurationSec()) {
			c.logger.Warn("splitting oversized raw segment",
				slog.String("segment_id", seg.SegmentID),
				slog.Int("chars", utf8.RuneCountInString(seg.Text)),
				slog.Float64("seconds", seg.DurationSec()),
			)
			processed = append(processed, c.forceSplit(seg)...)
		} else {
			processed = append(processed, seg)
		}
	}
	sort.SliceStable(processed, func(i, j int) bool {
		return processed[i].StartSec < processed[j].StartSec
	})

	words := collectWords(processed)
	if len(words) == 0 {
		return c.fallback(processed), nil
	}

	fullText, spans := buildWordSpans(words)

	sentSpans := sentenceSpans(fullText)
	if len(sentSpans) == 0 {
		return c.fallback(processed), nil
	}
	sentSpans = mergeShortSpans(fullText, sentSpans, preMergeRunes)

	sentences := locateSentences(fullText, sentSpans, spans)
	if len(sentences) == 0 {
		return c.fallback(processed), nil
	}

	if len(sentences) <= 2 {
		out := c.emitBounded(sentences, fullText, spans, nil)
		return finishChunks(c.postMerge(out), "sem"), nil
	}

	sims, err := c.adjacentSimilarities(ctx, sentences)
	if err != nil {
		c.logger.Warn("chunk encoder unavailable, using segment fallback",
			slog.String("error", err.Error()))
		return c.fallback(processed), nil
	}

	chunks := c.groupSentences(sentences, sims, fullText, spans)
	chunks = c.postMerge(chunks)
	return finishChunks(chunks, "sem"), nil
}

func (c *Chunker) exceedsBounds(text string, duration float64) bool {
	return utf8.RuneCountInString(text) > c.cfg.MaxChars || duration > c.cfg.MaxSeconds
}

// groupSentences runs the similarity grouping loop. The check order is
// deliberate: the maximum is tested before the minimum, otherwise a single
// oversized sentence grows without bound.
func (c *Chunker) groupSentences(sentences []sentenceUnit, sims []float64, fullText string, spans []wordSpan) []timed {
	var chunks []timed

	group := []sentenceUnit{sentences[0]}
	groupRunes := sentences[0].runeLen
	groupStart := sentences[0].start
	groupEnd := sentences[0].end

	flush := func() {
		chunks = c.emitBounded(group, fullText, spans, chunks)
	}

	for i, sim := range sims {
		next := sentences[i+1]
		duration := groupEnd - groupStart

		tooLong := groupRunes >= c.cfg.MaxChars || duration >= c.cfg.MaxSeconds
		tooShort := groupRunes < c.cfg.MinChars || duration < c.cfg.MinSeconds

		switch {
		case tooLong:
			flush()
			group = []sentenceUnit{next}
			groupRunes = next.runeLen
			groupStart = next.start
			groupEnd = next.end
		case tooShort:
			group = append(group, next)
			groupRunes += next.runeLen + 1
			groupEnd = next.end
		case sim < c.cfg.Threshold:
			flush()
			group = []sentenceUnit{next}
			groupRunes = next.runeLen
			groupStart = next.start
			groupEnd = next.end
		default:
			group = append(group, next)
			groupRunes += next.runeLen + 1
			groupEnd = next.end
		}
	}

	// Trailing group: split when over the maximum; when merely short, fold
	// into the predecessor only if the merged chunk stays within bounds,
	// otherwise it is the one permitted runt.
	duration := groupEnd - groupStart
	text := joinSentences(group)
	textRunes := utf8.RuneCountInString(text)
	switch {
	case textRunes > c.cfg.MaxChars || duration > c.cfg.MaxSeconds:
		flush()
	case (groupRunes < c.cfg.MinChars || duration < c.cfg.MinSeconds) && len(chunks) > 0:
		prev := chunks[len(chunks)-1]
		mergedRunes := utf8.RuneCountInString(prev.text) + 1 + utf8.RuneCountInString(text)
		mergedDur := groupEnd - prev.start
		if mergedRunes <= c.cfg.MaxChars && mergedDur <= c.cfg.MaxSeconds {
			chunks[len(chunks)-1] = timed{
				start: prev.start,
				end:   groupEnd,
				text:  strings.TrimRight(prev.text, ".!?") + " " + text,
			}
		} else {
			chunks = append(chunks, timed{start: groupStart, end: groupEnd, text: text})
		}
	default:
		chunks = append(chunks, timed{start: groupStart, end: groupEnd, text: text})
	}

	return chunks
}

// packBudget reserves one rune for the terminator appended when a joined
// chunk text does not already end a sentence.
func (c *Chunker) packBudget() int {
	return c.cfg.MaxChars - 1
}

// emitBounded flushes a sentence group, greedily packing sentences so no
// produced chunk exceeds the bounds. A single sentence beyond the maximum
// is sliced along the word grid.
func (c *Chunker) emitBounded(group []sentenceUnit, fullText string, spans []wordSpan, chunks []timed) []timed {
	var cur []sentenceUnit
	curRunes := 0

	flushCur := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, timed{
			start: cur[0].start,
			end:   cur[len(cur)-1].end,
			text:  joinSentences(cur),
		})
		cur = nil
		curRunes = 0
	}

	for _, s := range group {
		if s.runeLen > c.packBudget() || s.end-s.start > c.cfg.MaxSeconds {
			flushCur()
			chunks = append(chunks, c.sliceSentence(s, fullText, spans)...)
			continue
		}
		if len(cur) > 0 && (curRunes+1+s.runeLen > c.packBudget() || s.end-cur[0].start > c.cfg.MaxSeconds) {
			flushCur()
		}
		if len(cur) == 0 {
			curRunes = s.runeLen
		} else {
			curRunes += 1 + s.runeLen
		}
		cur = append(cur, s)
	}
	flushCur()
	return chunks
}

// sliceSentence cuts an oversized sentence into word-aligned pieces.
func (c *Chunker) sliceSentence(s sentenceUnit, fullText string, spans []wordSpan) []timed {
	var covered []wordSpan
	for _, ws := range spans {
		if ws.sc >= s.charStart && ws.ec <= s.charEnd {
			covered = append(covered, ws)
		}
	}
	if len(covered) == 0 {
		return []timed{{start: s.start, end: s.end, text: s.text}}
	}

	var out []timed
	sliceFrom := 0
	sliceRunes := 0
	for i, ws := range covered {
		wRunes := utf8.RuneCountInString(fullText[ws.sc:ws.ec])
		overChars := sliceRunes > 0 && sliceRunes+1+wRunes > c.packBudget()
		overTime := sliceRunes > 0 && ws.et-covered[sliceFrom].st > c.cfg.MaxSeconds
		if overChars || overTime {
			out = append(out, wordRangeChunk(fullText, covered[sliceFrom:i]))
			sliceFrom = i
			sliceRunes = wRunes
			continue
		}
		if sliceRunes == 0 {
			sliceRunes = wRunes
		} else {
			sliceRunes += 1 + wRunes
		}
	}
	out = append(out, wordRangeChunk(fullText, covered[sliceFrom:]))
	return out
}

func wordRangeChunk(fullText string, words []wordSpan) timed {
	first, last := words[0], words[len(words)-1]
	return timed{
		start: first.st,
		end:   last.et,
		text:  ensureTerminator(fullText[first.sc:last.ec]),
	}
}

// postMerge folds under-minimum chunks into their predecessor when the
// merge stays within bounds. Only the character floor triggers a fold;
// a chunk above MinChars is kept even when it runs shorter than
// MinSeconds.
func (c *Chunker) postMerge(chunks []timed) []timed {
	if len(chunks) <= 1 {
		return chunks
	}

	merged := []timed{chunks[0]}
	for _, cur := range chunks[1:] {
		prev := merged[len(merged)-1]
		prevRunes := utf8.RuneCountInString(prev.text)
		mergedRunes := prevRunes + 1 + utf8.RuneCountInString(cur.text)
		mergedDur := cur.end - prev.start

		if prevRunes < c.cfg.MinChars && mergedRunes <= c.cfg.MaxChars && mergedDur <= c.cfg.MaxSeconds {
			merged[len(merged)-1] = timed{
				start: prev.start,
				end:   cur.end,
				text:  strings.TrimRight(prev.text, ".!?") + " " + cur.text,
			}
		} else {
			merged = append(merged, cur)
		}
	}

	// The tail can be short too; fold it backwards when possible.
	if len(merged) > 1 {
		last := merged[len(merged)-1]
		if utf8.RuneCountInString(last.text) < c.cfg.MinChars {
			prev := merged[len(merged)-2]
			mergedRunes := utf8.RuneCountInString(prev.text) + 1 + utf8.RuneCountInString(last.text)
			mergedDur := last.end - prev.start
			if mergedRunes <= c.cfg.MaxChars && mergedDur <= c.cfg.MaxSeconds {
				merged[len(merged)-2] = timed{
					start: prev.start,
					end:   last.end,
					text:  strings.TrimRight(prev.text, ".!?") + " " + last.text,
				}
				merged = merged[:len(merged)-1]
			}
		}
	}

	return merged
}

// adjacentSimilarities embeds all sentences and returns cos(s_i, s_{i+1}).
func (c *Chunker) adjacentSimilarities(ctx context.Context, sentences []sentenceUnit) ([]float64, error) {
	if c.encoder == nil {
		return nil, fmt.Errorf("no chunk encoder configured")
	}

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.text
	}

	vectors, err := c.encoder.Encode(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d sentences: %w", len(texts), err)
	}

	sims := make([]float64, len(vectors)-1)
	for i := 0; i < len(vectors)-1; i++ {
		sims[i] = cosine(vectors[i], vectors[i+1])
	}
	return sims, nil
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(normA)*math.Sqrt(normB) + 1e-9)
}

// collectWords flattens the word timings of all segments in order.
func collectWords(segments []*models.Segment) []models.Word {
	var words []models.Word
	for _, seg := range segments {
		words = append(words, seg.Words()...)
	}
	return words
}

// buildWordSpans joins words into the full text and records each word's
// byte range alongside its timestamps.
func buildWordSpans(words []models.Word) (string, []wordSpan) {
	var sb strings.Builder
	spans := make([]wordSpan, 0, len(words))
	for i, w := range words {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sc := sb.Len()
		sb.WriteString(w.Text)
		spans = append(spans, wordSpan{sc: sc, ec: sb.Len(), st: w.Start, et: w.End})
	}
	return sb.String(), spans
}

// locateSentences projects sentence spans onto the word grid.
func locateSentences(fullText string, sentSpans []span, spans []wordSpan) []sentenceUnit {
	units := make([]sentenceUnit, 0, len(sentSpans))
	for _, s := range sentSpans {
		st := timeAtStart(spans, s.start)
		et := timeAtEnd(spans, s.end)
		units = append(units, sentenceUnit{
			text:      s.text(fullText),
			runeLen:   s.runes(fullText),
			charStart: s.start,
			charEnd:   s.end,
			start:     st,
			end:       et,
		})
	}
	return units
}

func timeAtStart(spans []wordSpan, offset int) float64 {
	for _, ws := range spans {
		if ws.sc <= offset && offset < ws.ec {
			return ws.st
		}
	}
	return 0.0
}

func timeAtEnd(spans []wordSpan, end int) float64 {
	last := end - 1
	for _, ws := range spans {
		if ws.sc <= last && last < ws.ec {
			return ws.et
		}
	}
	for i := len(spans) - 1; i >= 0; i-- {
		if spans[i].ec <= end {
			return spans[i].et
		}
	}
	return 0.0
}

func joinSentences(group []sentenceUnit) string {
	parts := make([]string, len(group))
	for i, s := range group {
		parts[i] = s.text
	}
	return ensureTerminator(strings.Join(parts, " "))
}

func finishChunks(chunks []timed, prefix string) []Chunk {
	out := make([]Chunk, len(chunks))
	for i, ch := range chunks {
		out[i] = Chunk{
			ID:    fmt.Sprintf("%s-%d", prefix, i),
			Start: ch.start,
			End:   ch.end,
			Text:  ch.text,
		}
	}
	return out
}
