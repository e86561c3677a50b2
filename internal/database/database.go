// Package database provides the SQLite catalog connection for clipseek.
// The catalog is a single file in WAL mode, accessed through GORM with the
// pure Go driver.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clipseek/clipseek/internal/config"
)

// DB wraps a GORM database connection.
type DB struct {
	*gorm.DB
	cfg    config.DatabaseConfig
	logger *slog.Logger
}

// Options contains optional configuration for database connections.
type Options struct {
	// PrepareStmt enables prepared statement caching. Default is true.
	// Set to false when using transactions in tests.
	PrepareStmt bool
}

// New opens the catalog database. PRAGMAs are applied via DSN parameters so
// every pooled connection gets them.
func New(cfg config.DatabaseConfig, log *slog.Logger, opts *Options) (*DB, error) {
	if opts == nil {
		opts = &Options{PrepareStmt: true}
	}
	if log == nil {
		log = slog.Default()
	}

	busyMs := cfg.BusyTimeout.Milliseconds()
	if busyMs <= 0 {
		busyMs = 5000
	}

	dsn := cfg.DSN
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += fmt.Sprintf("_pragma=busy_timeout(%d)", busyMs) +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(ON)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 newGormLogger(cfg.LogLevel, log),
		SkipDefaultTransaction: true,
		PrepareStmt:            opts.PrepareStmt,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	// WAL allows concurrent readers with one writer; a small pool keeps
	// pipeline writers and API readers from starving each other.
	sqlDB.SetMaxOpenConns(6)
	sqlDB.SetMaxIdleConns(3)

	wrapper := &DB{DB: db, cfg: cfg, logger: log}
	wrapper.logPragmas()
	return wrapper, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Transaction executes fn within a database transaction, rolling back when
// fn returns an error.
func (db *DB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return db.DB.WithContext(ctx).Transaction(fn)
}

// logPragmas reads back the effective PRAGMA values so misconfiguration
// shows up at startup rather than as lock errors later.
func (db *DB) logPragmas() {
	var journalMode string
	var busyTimeout int64
	_ = db.DB.Raw("PRAGMA journal_mode").Scan(&journalMode)
	_ = db.DB.Raw("PRAGMA busy_timeout").Scan(&busyTimeout)

	db.logger.Info("catalog opened",
		slog.String("journal_mode", journalMode),
		slog.Int64("busy_timeout_ms", busyTimeout),
	)
}

// gormLogLevel maps string log levels to GORM logger levels.
func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func newGormLogger(level string, log *slog.Logger) *slogGormLogger {
	return &slogGormLogger{logger: log, level: gormLogLevel(level)}
}

// slogGormLogger implements GORM's logger.Interface using slog.
type slogGormLogger struct {
	logger *slog.Logger
	level  logger.LogLevel
}

func (l *slogGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &slogGormLogger{logger: l.logger, level: level}
}

func (l *slogGormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *slogGormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *slogGormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// slowQueryThreshold defines when a query is considered slow. Indexing runs
// large batch inserts, so this is deliberately generous.
const slowQueryThreshold = time.Second

const maxSQLLogLength = 200

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLogLength {
		return sql
	}
	return sql[:maxSQLLogLength] + "... (truncated)"
}

func (l *slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	isError := err != nil && err != gorm.ErrRecordNotFound
	isSlow := elapsed > slowQueryThreshold

	var willLog bool
	switch {
	case isError && l.level >= logger.Error:
		willLog = true
	case isSlow && l.level >= logger.Warn:
		willLog = l.logger.Enabled(ctx, slog.LevelWarn)
	case l.level >= logger.Info:
		willLog = l.logger.Enabled(ctx, slog.LevelDebug)
	}
	if !willLog {
		return
	}

	sqlStr, rows := fc()

	switch {
	case isError:
		l.logger.ErrorContext(ctx, "database error",
			slog.String("sql", truncateSQL(sqlStr)),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
	case isSlow:
		l.logger.WarnContext(ctx, "slow query",
			slog.String("sql", truncateSQL(sqlStr)),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	default:
		l.logger.DebugContext(ctx, "database query",
			slog.String("sql", truncateSQL(sqlStr)),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	}
}
