package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/clipseek/clipseek/internal/models"
)

// videoRepo implements VideoRepository using GORM.
type videoRepo struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(db *gorm.DB) *videoRepo {
	return &videoRepo{db: db}
}

// Create creates a new video row.
func (r *videoRepo) Create(ctx context.Context, video *models.Video) error {
	if err := r.db.WithContext(ctx).Create(video).Error; err != nil {
		return fmt.Errorf("creating video: %w", err)
	}
	return nil
}

// GetByID retrieves a video by ID.
func (r *videoRepo) GetByID(ctx context.Context, id string) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).Where("video_id = ?", id).First(&video).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting video by ID: %w", err)
	}
	return &video, nil
}

// List retrieves videos with their segment counts, newest first.
func (r *videoRepo) List(ctx context.Context, opts VideoListOptions) ([]*VideoSummary, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Select("videos.*, COUNT(segments.segment_id) AS segment_count").
		Joins("LEFT JOIN segments ON segments.video_id = videos.video_id").
		Group("videos.video_id").
		Order("videos.created_at DESC")

	if opts.Channel != "" {
		query = query.Where("videos.channel_name = ?", opts.Channel)
	}
	if opts.Status != "" {
		query = query.Where("videos.status = ?", opts.Status)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	var summaries []*VideoSummary
	if err := query.Scan(&summaries).Error; err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	return summaries, nil
}

// Channels aggregates videos by channel name, most populated first.
func (r *videoRepo) Channels(ctx context.Context) ([]*ChannelCount, error) {
	var channels []*ChannelCount
	if err := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Select("channel_name AS name, COUNT(*) AS count").
		Where("channel_name IS NOT NULL AND channel_name != ''").
		Group("channel_name").
		Order("count DESC").
		Scan(&channels).Error; err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	return channels, nil
}

// GetByStatus retrieves videos with the given status, oldest first so the
// pipeline processes backlog in arrival order.
func (r *videoRepo) GetByStatus(ctx context.Context, status models.VideoStatus) ([]*models.Video, error) {
	var videos []*models.Video
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("getting videos by status: %w", err)
	}
	return videos, nil
}

// Update updates an existing video.
func (r *videoRepo) Update(ctx context.Context, video *models.Video) error {
	if err := r.db.WithContext(ctx).Save(video).Error; err != nil {
		return fmt.Errorf("updating video: %w", err)
	}
	return nil
}

// UpdateStatus updates only the status column.
func (r *videoRepo) UpdateStatus(ctx context.Context, id string, status models.VideoStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("video_id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("updating video status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrVideoNotFound
	}
	return nil
}

// DeleteCascade removes the video and everything that references it in the
// catalog, lexical rows included. The caller is responsible for the vector
// store and files on disk.
func (r *videoRepo) DeleteCascade(ctx context.Context, id string) (*DeleteStats, error) {
	stats := &DeleteStats{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		segments := tx.Where("video_id = ?", id).Delete(&models.Segment{})
		if segments.Error != nil {
			return fmt.Errorf("deleting segments: %w", segments.Error)
		}
		stats.Segments = segments.RowsAffected

		clips := tx.Where("video_id = ?", id).Delete(&models.Clip{})
		if clips.Error != nil {
			return fmt.Errorf("deleting clips: %w", clips.Error)
		}
		stats.Clips = clips.RowsAffected

		fts := tx.Exec("DELETE FROM segments_fts WHERE video_id = ?", id)
		if fts.Error != nil {
			return fmt.Errorf("deleting lexical rows: %w", fts.Error)
		}
		stats.FTSRows = fts.RowsAffected

		video := tx.Where("video_id = ?", id).Delete(&models.Video{})
		if video.Error != nil {
			return fmt.Errorf("deleting video: %w", video.Error)
		}
		if video.RowsAffected == 0 {
			return models.ErrVideoNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
