package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vibelog/backend/internal/config"
	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write hits a unique index.
	ErrDuplicate = errors.New("duplicate key")
)

// Models lists every table the service owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&domain.Profile{},
		&domain.Vibelog{},
		&domain.VibelogTranslation{},
		&domain.Comment{},
		&domain.Reaction{},
		&domain.AdminConfig{},
		&domain.CostEntry{},
		&domain.RateLimitBucket{},
		&domain.UserMemory{},
	}
}

// InitDB opens the configured database and applies pool limits. AutoMigrate
// is meant for sqlite and tests; postgres deployments run cmd/migrate, which
// also installs the reaction counter trigger.
func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         queryLogger(cfg),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driverName(cfg), err)
	}
	if driverName(cfg) == "sqlite" {
		db.Exec("PRAGMA journal_mode=WAL")
		db.Exec("PRAGMA foreign_keys=ON")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	logger.Info("[DB] connected: driver=%s max_open=%d", driverName(cfg), cfg.MaxOpenConns)

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(Models()...); err != nil {
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
		logger.Info("[DB] AutoMigrate completed for %d tables", len(Models()))
	}
	return db, nil
}

func driverName(cfg *config.DatabaseConfig) string {
	if cfg.Driver == "" {
		return "sqlite"
	}
	return cfg.Driver
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch driverName(cfg) {
	case "postgres":
		if cfg.URL == "" {
			return nil, errors.New("database.url is required for postgres")
		}
		// Simple protocol works behind transaction poolers (Supabase port 6543).
		return postgres.New(postgres.Config{DSN: cfg.DSN(), PreferSimpleProtocol: true}), nil
	case "sqlite":
		if dir := sqliteDir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		return sqlite.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// sqliteDir is the directory a file-backed database lives in, or "" for
// in-memory and URI databases.
func sqliteDir(path string) string {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return ""
	}
	if dir := filepath.Dir(path); dir != "." {
		return dir
	}
	return ""
}

// queryLogger routes gorm's SQL logging through the service logger so slow
// queries land in the same JSON stream as request logs.
func queryLogger(cfg *config.DatabaseConfig) gormlogger.Interface {
	level := gormlogger.Warn
	if cfg.LogQueries {
		level = gormlogger.Info
	}
	slow := cfg.SlowQuery
	if slow <= 0 {
		slow = 500 * time.Millisecond
	}
	return gormlogger.New(logger.Default().WithField(logger.FieldComponent, "db"), gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
