package models

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// Clip is a cut fragment of a video. Clips are created on demand and are
// independent of the search index.
type Clip struct {
	ClipID    string    `gorm:"primaryKey;size:26" json:"clip_id"`
	VideoID   string    `gorm:"not null;size:255;index:idx_clips_video" json:"video_id"`
	StartSec  float64   `gorm:"not null" json:"start"`
	EndSec    float64   `gorm:"not null" json:"end"`
	Path      string    `gorm:"not null;size:1024" json:"path"`
	CreatedAt time.Time `gorm:"index:idx_clips_created,sort:desc" json:"created_at"`
}

// TableName returns the table name for Clip.
func (Clip) TableName() string {
	return "clips"
}

// BeforeCreate generates a ULID clip id if not already set.
func (c *Clip) BeforeCreate(tx *gorm.DB) error {
	if c.ClipID == "" {
		c.ClipID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	}
	return nil
}
