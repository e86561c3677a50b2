package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/clipseek/clipseek/internal/models"
)

// clipRepo implements ClipRepository using GORM.
type clipRepo struct {
	db *gorm.DB
}

// NewClipRepository creates a new ClipRepository.
func NewClipRepository(db *gorm.DB) *clipRepo {
	return &clipRepo{db: db}
}

// Create creates a new clip row.
func (r *clipRepo) Create(ctx context.Context, clip *models.Clip) error {
	if err := r.db.WithContext(ctx).Create(clip).Error; err != nil {
		return fmt.Errorf("creating clip: %w", err)
	}
	return nil
}

// GetByID retrieves a clip by ID.
func (r *clipRepo) GetByID(ctx context.Context, id string) (*models.Clip, error) {
	var clip models.Clip
	if err := r.db.WithContext(ctx).Where("clip_id = ?", id).First(&clip).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting clip by ID: %w", err)
	}
	return &clip, nil
}

// ListByVideo retrieves a video's clips, newest first.
func (r *clipRepo) ListByVideo(ctx context.Context, videoID string) ([]*models.Clip, error) {
	var clips []*models.Clip
	if err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("created_at DESC").
		Find(&clips).Error; err != nil {
		return nil, fmt.Errorf("listing clips for video: %w", err)
	}
	return clips, nil
}

// List retrieves all clips, newest first.
func (r *clipRepo) List(ctx context.Context) ([]*models.Clip, error) {
	var clips []*models.Clip
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&clips).Error; err != nil {
		return nil, fmt.Errorf("listing clips: %w", err)
	}
	return clips, nil
}

// Delete deletes a clip by ID.
func (r *clipRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("clip_id = ?", id).Delete(&models.Clip{})
	if result.Error != nil {
		return fmt.Errorf("deleting clip: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrClipNotFound
	}
	return nil
}
