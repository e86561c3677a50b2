// Package pipeline schedules transcribe → index jobs over a fixed worker
// pool, with a counting semaphore guarding accelerator residency.
package pipeline

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Entry status values. Entries only move forward: waiting → processing →
// done or error.
const (
	StatusWaiting    = "waiting"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

var (
	// ErrNotQueued is returned when removing an entry the queue does not
	// hold.
	ErrNotQueued = errors.New("not in queue")
	// ErrProcessing is returned when removing an entry a worker has
	// already picked up.
	ErrProcessing = errors.New("already processing")
)

// Entry is one queued job's visible state.
type Entry struct {
	VideoID   string     `json:"video_id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	AddedAt   time.Time  `json:"added_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Queue is the in-memory job table. All mutation goes through one mutex;
// workers and HTTP handlers see a consistent snapshot.
type Queue struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{entries: make(map[string]*Entry)}
}

// Enqueue registers a job. Returns false without touching the entry when
// the video is already waiting or processing; terminal entries are reset
// to waiting so a finished video can be re-run.
func (q *Queue) Enqueue(videoID, title string) bool {
	if title == "" {
		title = videoID
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.entries[videoID]; ok {
		if e.Status == StatusWaiting || e.Status == StatusProcessing {
			return false
		}
	}
	q.entries[videoID] = &Entry{
		VideoID: videoID,
		Title:   title,
		Status:  StatusWaiting,
		AddedAt: time.Now().UTC(),
	}
	return true
}

// Contains reports whether the video has a queue entry in any state.
func (q *Queue) Contains(videoID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[videoID]
	return ok
}

// Remove drops a waiting or terminal entry. A processing entry cannot be
// removed: the job runs to completion.
func (q *Queue) Remove(videoID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[videoID]
	if !ok {
		return ErrNotQueued
	}
	if e.Status == StatusProcessing {
		return ErrProcessing
	}
	delete(q.entries, videoID)
	return nil
}

// Clear purges terminal entries and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for id, e := range q.entries {
		if e.Status == StatusDone || e.Status == StatusError {
			delete(q.entries, id)
			n++
		}
	}
	return n
}

// List returns a snapshot ordered by enqueue time.
func (q *Queue) List() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].VideoID < out[j].VideoID
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out
}

// markProcessing transitions waiting → processing. Returns false when the
// entry was removed while waiting, which tells the worker to drop the job
// silently.
func (q *Queue) markProcessing(videoID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[videoID]
	if !ok || e.Status != StatusWaiting {
		return false
	}
	now := time.Now().UTC()
	e.Status = StatusProcessing
	e.StartedAt = &now
	return true
}

// finish moves a processing entry to its terminal state.
func (q *Queue) finish(videoID string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[videoID]
	if !ok {
		return
	}
	if err != nil {
		e.Status = StatusError
		e.Error = err.Error()
		return
	}
	e.Status = StatusDone
}
