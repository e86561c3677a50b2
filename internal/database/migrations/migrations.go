// Package migrations provides versioned schema migrations for the clipseek
// catalog. Migrations are forward-only and tracked in schema_migrations.
package migrations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gorm.io/gorm"
)

// Migration represents a single database migration.
type Migration struct {
	Version     string
	Description string
	Up          func(tx *gorm.DB) error
}

// MigrationRecord tracks applied migrations in the database.
type MigrationRecord struct {
	ID          uint      `gorm:"primarykey"`
	Version     string    `gorm:"uniqueIndex;not null"`
	Description string    `gorm:"not null"`
	AppliedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for migration records.
func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

// Migrator handles database migrations.
type Migrator struct {
	db         *gorm.DB
	logger     *slog.Logger
	migrations []Migration
}

// NewMigrator creates a Migrator with the full registry loaded.
func NewMigrator(db *gorm.DB, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		db:         db,
		logger:     logger,
		migrations: All(),
	}
}

// Up applies all pending migrations in version order.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("initializing migrations table: %w", err)
	}

	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}

	for _, migration := range m.migrations {
		if applied[migration.Version] {
			continue
		}

		m.logger.InfoContext(ctx, "applying migration",
			slog.String("version", migration.Version),
			slog.String("description", migration.Description),
		)

		if err := m.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("applying migration %s: %w", migration.Version, err)
		}
	}

	return nil
}

// applyMigration applies a single migration within a transaction.
func (m *Migrator) applyMigration(ctx context.Context, migration Migration) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := migration.Up(tx); err != nil {
			return err
		}

		record := MigrationRecord{
			Version:     migration.Version,
			Description: migration.Description,
			AppliedAt:   time.Now().UTC(),
		}
		return tx.Create(&record).Error
	})
}

// appliedVersions returns a map of applied migration versions.
func (m *Migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	var records []MigrationRecord
	if err := m.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, err
	}

	applied := make(map[string]bool, len(records))
	for _, record := range records {
		applied[record.Version] = true
	}
	return applied, nil
}
