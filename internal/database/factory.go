package database

import (
	"fmt"
	"os"
	"path/filepath"

	"autoinspect/internal/config"
	"autoinspect/internal/inspection"
)

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, inspectorID string, clock inspection.Clock) (inspection.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return open(filepath.Join(cfg.DataDir, inspectorID+".db"), clock)
	case "memory":
		return open(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// open keeps a failed *SQLiteDatabase from becoming a non-nil interface.
func open(path string, clock inspection.Clock) (inspection.Database, error) {
	db, err := NewSQLiteDatabase(path, clock)
	if err != nil {
		return nil, err
	}
	return db, nil
}
