package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
)

const collectionName = "chunks"

// ChromemStore implements Store on chromem-go. Embeddings are always
// computed upstream, so the collection's embedding func is a guard that
// rejects any accidental re-embedding.
type ChromemStore struct {
	collection *chromem.Collection
}

// NewPersistent opens (or creates) an on-disk store rooted at path.
func NewPersistent(path string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	return newStore(db)
}

// NewInMemory creates an ephemeral store, used in tests.
func NewInMemory() (*ChromemStore, error) {
	return newStore(chromem.NewDB())
}

func newStore(db *chromem.DB) (*ChromemStore, error) {
	collection, err := db.GetOrCreateCollection(collectionName, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", collectionName, err)
	}
	return &ChromemStore{collection: collection}, nil
}

func rejectEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embeddings must be provided by the caller")
}

// Upsert writes the records, overwriting existing chunk ids.
func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(records))
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			return fmt.Errorf("record %s has no embedding", rec.ChunkID)
		}
		docs = append(docs, chromem.Document{
			ID:        rec.ChunkID,
			Content:   rec.Text,
			Embedding: rec.Embedding,
			Metadata: map[string]string{
				"video_id": rec.VideoID,
				"start":    strconv.FormatFloat(rec.Start, 'f', -1, 64),
				"end":      strconv.FormatFloat(rec.End, 'f', -1, 64),
			},
		})
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("upserting %d records: %w", len(docs), err)
	}
	return nil
}

// Query returns up to k hits by descending similarity. chromem caps
// nResults at the collection size, so k is clamped here; filtering by more
// than one video falls back to a wider unfiltered query because the where
// clause only supports equality.
func (s *ChromemStore) Query(ctx context.Context, embedding []float32, k int, videoIDs []string) ([]Hit, error) {
	count := s.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}

	var where map[string]string
	fetch := k
	switch {
	case len(videoIDs) == 1:
		where = map[string]string{"video_id": videoIDs[0]}
	case len(videoIDs) > 1:
		fetch = k * len(videoIDs)
	}
	if fetch > count {
		fetch = count
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, fetch, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	allowed := make(map[string]bool, len(videoIDs))
	for _, id := range videoIDs {
		allowed[id] = true
	}

	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		hit, err := resultToHit(res)
		if err != nil {
			return nil, err
		}
		if len(allowed) > 0 && !allowed[hit.VideoID] {
			continue
		}
		hits = append(hits, hit)
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Get fetches one record by chunk id.
func (s *ChromemStore) Get(ctx context.Context, chunkID string) (*Record, bool, error) {
	doc, err := s.collection.GetByID(ctx, chunkID)
	if err != nil {
		// chromem reports missing ids as an error; treat as absence.
		return nil, false, nil
	}

	start, end, err := parseTimes(doc.Metadata)
	if err != nil {
		return nil, false, fmt.Errorf("record %s: %w", chunkID, err)
	}
	return &Record{
		ChunkID:   doc.ID,
		VideoID:   doc.Metadata["video_id"],
		Text:      doc.Content,
		Start:     start,
		End:       end,
		Embedding: doc.Embedding,
	}, true, nil
}

// DeleteVideo removes all records for a video.
func (s *ChromemStore) DeleteVideo(ctx context.Context, videoID string) error {
	if s.collection.Count() == 0 {
		return nil
	}
	if err := s.collection.Delete(ctx, map[string]string{"video_id": videoID}, nil); err != nil {
		return fmt.Errorf("deleting vectors for video %s: %w", videoID, err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

func resultToHit(res chromem.Result) (Hit, error) {
	start, end, err := parseTimes(res.Metadata)
	if err != nil {
		return Hit{}, fmt.Errorf("result %s: %w", res.ID, err)
	}
	return Hit{
		ChunkID:    res.ID,
		VideoID:    res.Metadata["video_id"],
		Text:       res.Content,
		Start:      start,
		End:        end,
		Similarity: res.Similarity,
	}, nil
}

func parseTimes(metadata map[string]string) (float64, float64, error) {
	start, err := strconv.ParseFloat(metadata["start"], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing start time: %w", err)
	}
	end, err := strconv.ParseFloat(metadata["end"], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing end time: %w", err)
	}
	return start, end, nil
}
