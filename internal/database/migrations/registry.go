package migrations

import (
	"gorm.io/gorm"

	"github.com/clipseek/clipseek/internal/models"
)

// All returns the complete migration registry:
// - 001: core schema via GORM AutoMigrate
// - 002: full-text index over segment chunks
func All() []Migration {
	return []Migration{
		migration001Schema(),
		migration002FullText(),
	}
}

// migration001Schema creates the catalog tables.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "create videos, segments and clips tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Video{},
				&models.Segment{},
				&models.Clip{},
			)
		},
	}
}

// migration002FullText creates the FTS5 table that backs lexical search.
// The table stores its own copy of the chunk text; the indexer rewrites a
// video's rows atomically on each (re)index. unicode61 tokenization handles
// Cyrillic and other non-ASCII scripts.
func migration002FullText() Migration {
	return Migration{
		Version:     "002",
		Description: "create segments_fts full-text index",
		Up: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS segments_fts USING fts5(
				segment_id UNINDEXED,
				video_id UNINDEXED,
				text,
				tokenize='unicode61'
			)`).Error
		},
	}
}
