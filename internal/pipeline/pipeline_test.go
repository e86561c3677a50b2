package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipseek/clipseek/internal/config"
	"github.com/clipseek/clipseek/internal/models"
)

// gauge tracks how many jobs sit between transcribe-start and index-end,
// which is exactly the accelerator-holding span.
type gauge struct {
	mu     sync.Mutex
	active int
	peak   int
}

func (g *gauge) enter() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active++
	if g.active > g.peak {
		g.peak = g.active
	}
}

func (g *gauge) exit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active--
}

type stubTranscriber struct {
	gauge *gauge
	delay time.Duration
	errs  map[string]error
}

func (s *stubTranscriber) Run(ctx context.Context, videoID string, force bool) error {
	if s.gauge != nil {
		s.gauge.enter()
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if err, ok := s.errs[videoID]; ok {
		return err
	}
	return nil
}

type stubIndexer struct {
	gauge *gauge
	delay time.Duration
	errs  map[string]error

	mu   sync.Mutex
	runs []string
}

func (s *stubIndexer) Run(ctx context.Context, videoID string) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.gauge != nil {
		s.gauge.exit()
	}
	s.mu.Lock()
	s.runs = append(s.runs, videoID)
	s.mu.Unlock()
	if err, ok := s.errs[videoID]; ok {
		return err
	}
	return nil
}

func (s *stubIndexer) indexed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.runs...)
}

func startPipeline(t *testing.T, transcribe Transcriber, index Indexer, workers, gpuSlots int) *Pipeline {
	t.Helper()
	p := New(NewQueue(), transcribe, index, config.PipelineConfig{
		Workers:  workers,
		GPUSlots: gpuSlots,
	}, nil)
	p.Start(context.Background())
	t.Cleanup(p.Stop)
	return p
}

func waitTerminal(t *testing.T, p *Pipeline, want int) []Entry {
	t.Helper()
	var entries []Entry
	require.Eventually(t, func() bool {
		entries = p.Queue().List()
		terminal := 0
		for _, e := range entries {
			if e.Status == StatusDone || e.Status == StatusError {
				terminal++
			}
		}
		return terminal == want
	}, 5*time.Second, 10*time.Millisecond)
	return entries
}

func TestPipeline_RunsJobs(t *testing.T) {
	index := &stubIndexer{}
	p := startPipeline(t, &stubTranscriber{}, index, 2, 2)

	assert.True(t, p.Enqueue("vid-a", "A"))
	assert.True(t, p.Enqueue("vid-b", "B"))

	entries := waitTerminal(t, p, 2)
	for _, e := range entries {
		assert.Equal(t, StatusDone, e.Status)
		require.NotNil(t, e.StartedAt)
	}
	assert.ElementsMatch(t, []string{"vid-a", "vid-b"}, index.indexed())
}

func TestPipeline_TranscribeFailureIsTerminal(t *testing.T) {
	index := &stubIndexer{}
	transcribe := &stubTranscriber{errs: map[string]error{
		"vid-a": errors.New("decode blew up"),
	}}
	p := startPipeline(t, transcribe, index, 1, 1)

	p.Enqueue("vid-a", "")
	entries := waitTerminal(t, p, 1)

	assert.Equal(t, StatusError, entries[0].Status)
	assert.Contains(t, entries[0].Error, "decode blew up")
	assert.Empty(t, index.indexed())
}

func TestPipeline_ExistingTranscriptStillIndexes(t *testing.T) {
	index := &stubIndexer{}
	transcribe := &stubTranscriber{errs: map[string]error{
		"vid-a": fmt.Errorf("checking: %w", models.ErrAlreadyTranscribed),
	}}
	p := startPipeline(t, transcribe, index, 1, 1)

	p.Enqueue("vid-a", "")
	entries := waitTerminal(t, p, 1)

	assert.Equal(t, StatusDone, entries[0].Status)
	assert.Equal(t, []string{"vid-a"}, index.indexed())
}

func TestPipeline_IndexFailureIsTerminal(t *testing.T) {
	index := &stubIndexer{errs: map[string]error{
		"vid-a": errors.New("embed backend down"),
	}}
	p := startPipeline(t, &stubTranscriber{}, index, 1, 1)

	p.Enqueue("vid-a", "")
	entries := waitTerminal(t, p, 1)
	assert.Equal(t, StatusError, entries[0].Status)
}

func TestPipeline_AcceleratorIsolation(t *testing.T) {
	g := &gauge{}
	transcribe := &stubTranscriber{gauge: g, delay: 30 * time.Millisecond}
	index := &stubIndexer{gauge: g, delay: 30 * time.Millisecond}
	// Two workers, one accelerator slot: jobs may wait concurrently but
	// only one at a time holds the token across transcribe + index.
	p := startPipeline(t, transcribe, index, 2, 1)

	p.Enqueue("vid-a", "")
	p.Enqueue("vid-b", "")
	waitTerminal(t, p, 2)

	assert.Equal(t, 1, g.peak)
}

func TestPipeline_EnqueueWhileProcessingRejected(t *testing.T) {
	transcribe := &stubTranscriber{delay: 100 * time.Millisecond}
	p := startPipeline(t, transcribe, &stubIndexer{}, 1, 1)

	require.True(t, p.Enqueue("vid-a", ""))
	require.Eventually(t, func() bool {
		entries := p.Queue().List()
		return len(entries) == 1 && entries[0].Status == StatusProcessing
	}, 5*time.Second, 5*time.Millisecond)

	assert.False(t, p.Enqueue("vid-a", ""))
	waitTerminal(t, p, 1)
}
