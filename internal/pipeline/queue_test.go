package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueIdempotent(t *testing.T) {
	q := NewQueue()

	assert.True(t, q.Enqueue("vid-a", "Title A"))
	assert.False(t, q.Enqueue("vid-a", "Title A"))

	entries := q.List()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusWaiting, entries[0].Status)
	assert.Equal(t, "Title A", entries[0].Title)
}

func TestQueue_EnqueueDefaultsTitle(t *testing.T) {
	q := NewQueue()
	q.Enqueue("vid-a", "")
	assert.Equal(t, "vid-a", q.List()[0].Title)
}

func TestQueue_ReenqueueAfterTerminal(t *testing.T) {
	q := NewQueue()
	q.Enqueue("vid-a", "")
	require.True(t, q.markProcessing("vid-a"))
	q.finish("vid-a", errors.New("boom"))

	entries := q.List()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusError, entries[0].Status)
	assert.Equal(t, "boom", entries[0].Error)

	// A terminal entry can be queued again; the error is wiped.
	assert.True(t, q.Enqueue("vid-a", ""))
	entries = q.List()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusWaiting, entries[0].Status)
	assert.Empty(t, entries[0].Error)
}

func TestQueue_Remove(t *testing.T) {
	q := NewQueue()

	assert.ErrorIs(t, q.Remove("vid-a"), ErrNotQueued)

	q.Enqueue("vid-a", "")
	require.NoError(t, q.Remove("vid-a"))
	assert.False(t, q.Contains("vid-a"))

	q.Enqueue("vid-b", "")
	require.True(t, q.markProcessing("vid-b"))
	assert.ErrorIs(t, q.Remove("vid-b"), ErrProcessing)
}

func TestQueue_RemovedWhileWaitingIsNotPickedUp(t *testing.T) {
	q := NewQueue()
	q.Enqueue("vid-a", "")
	require.NoError(t, q.Remove("vid-a"))

	// The worker's claim on a removed entry fails silently.
	assert.False(t, q.markProcessing("vid-a"))
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue()
	q.Enqueue("vid-done", "")
	require.True(t, q.markProcessing("vid-done"))
	q.finish("vid-done", nil)

	q.Enqueue("vid-error", "")
	require.True(t, q.markProcessing("vid-error"))
	q.finish("vid-error", errors.New("boom"))

	q.Enqueue("vid-waiting", "")

	assert.Equal(t, 2, q.Clear())

	entries := q.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "vid-waiting", entries[0].VideoID)
}

func TestQueue_ListOrdered(t *testing.T) {
	q := NewQueue()
	q.Enqueue("vid-b", "")
	q.Enqueue("vid-a", "")
	q.Enqueue("vid-c", "")

	entries := q.List()
	require.Len(t, entries, 3)
	// Same-instant adds fall back to id order, otherwise enqueue order.
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].AddedAt.Before(entries[i-1].AddedAt))
	}
}

func TestQueue_StartedAtRecorded(t *testing.T) {
	q := NewQueue()
	q.Enqueue("vid-a", "")
	require.True(t, q.markProcessing("vid-a"))

	entries := q.List()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusProcessing, entries[0].Status)
	require.NotNil(t, entries[0].StartedAt)
}
