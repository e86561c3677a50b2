package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/clipseek/clipseek/internal/models"
)

// segmentBatchSize bounds the per-statement row count when bulk inserting;
// SQLite caps bound parameters per statement.
const segmentBatchSize = 200

// segmentRepo implements SegmentRepository using GORM.
type segmentRepo struct {
	db *gorm.DB
}

// NewSegmentRepository creates a new SegmentRepository.
func NewSegmentRepository(db *gorm.DB) *segmentRepo {
	return &segmentRepo{db: db}
}

// GetByVideo retrieves a video's segments ordered by start time.
func (r *segmentRepo) GetByVideo(ctx context.Context, videoID string) ([]*models.Segment, error) {
	var segments []*models.Segment
	if err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("start_sec ASC").
		Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("getting segments for video: %w", err)
	}
	return segments, nil
}

// CountByVideo returns the number of stored segments for a video.
func (r *segmentRepo) CountByVideo(ctx context.Context, videoID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Segment{}).
		Where("video_id = ?", videoID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting segments for video: %w", err)
	}
	return count, nil
}

// ReplaceAll swaps a video's segments in one transaction so readers never
// observe a half-written transcript.
func (r *segmentRepo) ReplaceAll(ctx context.Context, videoID string, segments []*models.Segment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("video_id = ?", videoID).Delete(&models.Segment{}).Error; err != nil {
			return fmt.Errorf("deleting old segments: %w", err)
		}
		if len(segments) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(segments, segmentBatchSize).Error; err != nil {
			return fmt.Errorf("inserting segments: %w", err)
		}
		return nil
	})
}

// DeleteByVideo removes all segments for a video.
func (r *segmentRepo) DeleteByVideo(ctx context.Context, videoID string) error {
	if err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Delete(&models.Segment{}).Error; err != nil {
		return fmt.Errorf("deleting segments for video: %w", err)
	}
	return nil
}
