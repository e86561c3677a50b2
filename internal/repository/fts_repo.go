package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// ftsRepo implements FTSRepository over the segments_fts FTS5 table. The
// virtual table is created by migration; GORM models cannot describe it, so
// access is raw SQL.
type ftsRepo struct {
	db *gorm.DB
}

// NewFTSRepository creates a new FTSRepository.
func NewFTSRepository(db *gorm.DB) *ftsRepo {
	return &ftsRepo{db: db}
}

// Replace swaps a video's lexical rows in one transaction.
func (r *ftsRepo) Replace(ctx context.Context, videoID string, entries []FTSEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM segments_fts WHERE video_id = ?", videoID).Error; err != nil {
			return fmt.Errorf("deleting fts rows: %w", err)
		}
		for _, entry := range entries {
			if err := tx.Exec(
				"INSERT INTO segments_fts (segment_id, video_id, text) VALUES (?, ?, ?)",
				entry.ChunkID, entry.VideoID, entry.Text,
			).Error; err != nil {
				return fmt.Errorf("inserting fts row %s: %w", entry.ChunkID, err)
			}
		}
		return nil
	})
}

// Search runs a bm25-ranked full-text match. Rows come back most relevant
// first (bm25 returns negative scores, ascending order).
func (r *ftsRepo) Search(ctx context.Context, match string, limit int) ([]*FTSHit, error) {
	rows, err := r.db.WithContext(ctx).Raw(
		`SELECT segment_id, video_id, text, bm25(segments_fts) AS rank
		 FROM segments_fts
		 WHERE segments_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		match, limit,
	).Rows()
	if err != nil {
		return nil, fmt.Errorf("querying fts index: %w", err)
	}
	defer rows.Close()

	var hits []*FTSHit
	for rows.Next() {
		var hit FTSHit
		if err := rows.Scan(&hit.ChunkID, &hit.VideoID, &hit.Text, &hit.Rank); err != nil {
			return nil, fmt.Errorf("scanning fts hit: %w", err)
		}
		hits = append(hits, &hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fts hits: %w", err)
	}
	return hits, nil
}

// ChunkIDs returns a video's indexed chunk ids in insertion order.
func (r *ftsRepo) ChunkIDs(ctx context.Context, videoID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Raw(
		"SELECT segment_id FROM segments_fts WHERE video_id = ? ORDER BY rowid",
		videoID,
	).Scan(&ids).Error; err != nil {
		return nil, fmt.Errorf("listing fts chunk ids: %w", err)
	}
	return ids, nil
}

// DeleteVideo removes a video's lexical rows and reports how many went.
func (r *ftsRepo) DeleteVideo(ctx context.Context, videoID string) (int64, error) {
	result := r.db.WithContext(ctx).Exec("DELETE FROM segments_fts WHERE video_id = ?", videoID)
	if result.Error != nil {
		return 0, fmt.Errorf("deleting fts rows for video: %w", result.Error)
	}
	return result.RowsAffected, nil
}
