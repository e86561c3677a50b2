package chunking

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipseek/clipseek/internal/config"
	"github.com/clipseek/clipseek/internal/models"
)

func testBounds() config.ChunkingConfig {
	return config.ChunkingConfig{
		MinChars:   80,
		MaxChars:   350,
		MinSeconds: 5,
		MaxSeconds: 20,
		Threshold:  0.55,
	}
}

// topicEncoder embeds by topic keyword: texts sharing a keyword are
// identical vectors, texts of different topics are orthogonal.
type topicEncoder struct{}

func (topicEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if strings.Contains(text, "Alpha") || strings.Contains(text, "alpha") {
			out[i] = []float32{1, 0}
		} else {
			out[i] = []float32{0, 1}
		}
	}
	return out, nil
}

func (topicEncoder) Model() string { return "topic-test" }

type failingEncoder struct{}

func (failingEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("server down")
}

func (failingEncoder) Model() string { return "broken" }

// topicSentence builds a ~100-rune sentence of one topic word, starting
// with the capitalized topic and ending with a period.
func topicSentence(topic string) string {
	capitalized := strings.ToUpper(topic[:1]) + topic[1:]
	return capitalized + " " + strings.TrimSpace(strings.Repeat(topic+" ", 15)) + " end."
}

// wordSegment builds one raw segment whose words tile [start, ...] at
// wordDur seconds per word.
func wordSegment(t *testing.T, id string, start float64, text string, wordDur float64) *models.Segment {
	t.Helper()
	fields := strings.Fields(text)
	words := make([]models.Word, len(fields))
	cursor := start
	for i, f := range fields {
		words[i] = models.Word{Text: f, Start: cursor, End: cursor + wordDur}
		cursor += wordDur
	}
	seg := &models.Segment{
		SegmentID: id,
		VideoID:   "vid",
		StartSec:  start,
		EndSec:    cursor,
		Text:      text,
	}
	require.NoError(t, seg.SetWords(words))
	return seg
}

func assertBounded(t *testing.T, chunks []Chunk, cfg config.ChunkingConfig) {
	t.Helper()
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), cfg.MaxChars,
			"chunk %s exceeds char bound", ch.ID)
		assert.LessOrEqual(t, ch.End-ch.Start, cfg.MaxSeconds+1e-9,
			"chunk %s exceeds duration bound", ch.ID)
	}
}

func assertOrdered(t *testing.T, chunks []Chunk) {
	t.Helper()
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i-1].End, chunks[i].Start+1e-9,
			"chunks %s and %s overlap", chunks[i-1].ID, chunks[i].ID)
	}
}

func TestChunker_SplitsOnTopicShift(t *testing.T) {
	c := New(testBounds(), topicEncoder{}, nil)

	alpha := topicSentence("alpha")
	bravo := topicSentence("bravo")
	wordDur := 0.5

	var segs []*models.Segment
	cursor := 0.0
	for i, text := range []string{alpha, alpha, bravo, bravo} {
		seg := wordSegment(t, "s"+string(rune('0'+i)), cursor, text, wordDur)
		segs = append(segs, seg)
		cursor = seg.EndSec
	}

	chunks, err := c.Chunk(context.Background(), segs)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Contains(t, chunks[0].Text, "alpha")
	assert.NotContains(t, chunks[0].Text, "bravo")
	assert.Contains(t, chunks[1].Text, "bravo")

	assert.Equal(t, "sem-0", chunks[0].ID)
	assert.Equal(t, "sem-1", chunks[1].ID)
	assertBounded(t, chunks, testBounds())
	assertOrdered(t, chunks)
	// The boundary lands exactly on the word grid.
	assert.InDelta(t, chunks[0].End, chunks[1].Start, 1e-9)
}

func TestChunker_Deterministic(t *testing.T) {
	c := New(testBounds(), topicEncoder{}, nil)

	var segs []*models.Segment
	cursor := 0.0
	for i, topic := range []string{"alpha", "alpha", "bravo", "alpha", "bravo"} {
		seg := wordSegment(t, "s"+string(rune('0'+i)), cursor, topicSentence(topic), 0.5)
		segs = append(segs, seg)
		cursor = seg.EndSec
	}

	first, err := c.Chunk(context.Background(), segs)
	require.NoError(t, err)
	second, err := c.Chunk(context.Background(), segs)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestChunker_WordAccurateBoundaries(t *testing.T) {
	seg1 := &models.Segment{SegmentID: "s1", VideoID: "vid", StartSec: 0, EndSec: 1, Text: "Hello world."}
	require.NoError(t, seg1.SetWords([]models.Word{
		{Text: "Hello", Start: 0.0, End: 0.5},
		{Text: "world.", Start: 0.5, End: 1.0},
	}))
	seg2 := &models.Segment{SegmentID: "s2", VideoID: "vid", StartSec: 1, EndSec: 2, Text: "This is a test."}
	require.NoError(t, seg2.SetWords([]models.Word{
		{Text: "This", Start: 1.0, End: 1.2},
		{Text: "is", Start: 1.2, End: 1.4},
		{Text: "a", Start: 1.4, End: 1.6},
		{Text: "test.", Start: 1.6, End: 2.0},
	}))

	c := New(testBounds(), topicEncoder{}, nil)
	chunks, err := c.Chunk(context.Background(), []*models.Segment{seg1, seg2})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	starts := []float64{0.0, 0.5, 1.0, 1.2, 1.4, 1.6}
	ends := []float64{0.5, 1.0, 1.2, 1.4, 1.6, 2.0}
	for _, ch := range chunks {
		assertOnGrid(t, ch.Start, starts)
		assertOnGrid(t, ch.End, ends)
	}
}

func assertOnGrid(t *testing.T, v float64, grid []float64) {
	t.Helper()
	for _, g := range grid {
		if v > g-0.01 && v < g+0.01 {
			return
		}
	}
	t.Errorf("timestamp %v not within 10ms of any word boundary %v", v, grid)
}

func TestChunker_PathologicalSegment(t *testing.T) {
	// One 4000-char, 400-second segment without punctuation or word
	// timestamps must still come out bounded, contiguous and covering.
	text := strings.TrimSpace(strings.Repeat("слово ", 667))
	seg := &models.Segment{
		SegmentID: "s1",
		VideoID:   "vid",
		StartSec:  0,
		EndSec:    400,
		Text:      text,
	}

	c := New(testBounds(), topicEncoder{}, nil)
	chunks, err := c.Chunk(context.Background(), []*models.Segment{seg})
	require.NoError(t, err)

	assert.Greater(t, len(chunks), 10)
	assertBounded(t, chunks, testBounds())
	assertOrdered(t, chunks)

	assert.InDelta(t, 0.0, chunks[0].Start, 1e-6)
	assert.InDelta(t, 400.0, chunks[len(chunks)-1].End, 1e-6)
	for i := 1; i < len(chunks); i++ {
		assert.InDelta(t, chunks[i-1].End, chunks[i].Start, 1e-6)
	}
	// Fallback path ids.
	assert.Equal(t, "seg-0", chunks[0].ID)
}

func TestChunker_OversizedSentenceStaysBounded(t *testing.T) {
	// A single 500-char run-on sentence with words; no terminator anywhere.
	text := strings.TrimSpace(strings.Repeat("alpha ", 84))
	seg := wordSegment(t, "s1", 0, text, 0.1)

	c := New(testBounds(), topicEncoder{}, nil)
	chunks, err := c.Chunk(context.Background(), []*models.Segment{seg})
	require.NoError(t, err)

	require.NotEmpty(t, chunks)
	assertBounded(t, chunks, testBounds())
	assertOrdered(t, chunks)
}

func TestChunker_FewSentencesSingleChunk(t *testing.T) {
	text := "Первое предложение содержит достаточно много символов для теста. Второе предложение тоже достаточно длинное для проверки."
	seg := wordSegment(t, "s1", 0, text, 0.5)

	c := New(testBounds(), topicEncoder{}, nil)
	chunks, err := c.Chunk(context.Background(), []*models.Segment{seg})
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "sem-0", chunks[0].ID)
	assert.InDelta(t, seg.StartSec, chunks[0].Start, 1e-9)
	assert.InDelta(t, seg.EndSec, chunks[0].End, 1e-9)
}

func TestChunker_EncoderFailureFallsBack(t *testing.T) {
	var segs []*models.Segment
	cursor := 0.0
	for i, topic := range []string{"alpha", "bravo", "delta"} {
		seg := wordSegment(t, "s"+string(rune('0'+i)), cursor, topicSentence(topic), 0.5)
		segs = append(segs, seg)
		cursor = seg.EndSec
	}

	c := New(testBounds(), failingEncoder{}, nil)
	chunks, err := c.Chunk(context.Background(), segs)
	require.NoError(t, err)

	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasPrefix(chunks[0].ID, "seg-"))
	assertBounded(t, chunks, testBounds())
	assertOrdered(t, chunks)
}

func TestChunker_PostMergeFoldsOnCharFloorOnly(t *testing.T) {
	c := New(testBounds(), topicEncoder{}, nil)
	long := strings.TrimSpace(strings.Repeat("alpha ", 20)) + "." // well above MinChars

	// Above the char floor a chunk keeps its slot even when it runs
	// shorter than MinSeconds.
	out := c.postMerge([]timed{
		{start: 0, end: 10, text: long},
		{start: 10, end: 13, text: long},
	})
	require.Len(t, out, 2)

	// Under the char floor it folds into the neighbor.
	out = c.postMerge([]timed{
		{start: 0, end: 3, text: "Tiny bit."},
		{start: 3, end: 13, text: long},
	})
	require.Len(t, out, 1)
	assert.InDelta(t, 0.0, out[0].start, 1e-9)
	assert.InDelta(t, 13.0, out[0].end, 1e-9)
}

func TestChunker_NoSegments(t *testing.T) {
	c := New(testBounds(), topicEncoder{}, nil)
	chunks, err := c.Chunk(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
