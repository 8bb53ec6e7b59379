package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/optimization"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// InitSQLite initializes the local SQLite database and creates the presets schema.
// cfg sizes the connection pool; nil uses optimization.DefaultConfig.
func InitSQLite(dbPath string, cfg *optimization.Config) (*sql.DB, error) {
	if cfg == nil {
		cfg = optimization.DefaultConfig()
	}

	if dbPath != MemoryPath {
		// Ensure directory exists
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if dbPath == MemoryPath {
		// Every connection to :memory: is a different database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := createSchemas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS presets (
			name TEXT PRIMARY KEY,
			pickup_ms INTEGER NOT NULL CHECK (pickup_ms > 0),
			putdown_ms INTEGER NOT NULL CHECK (putdown_ms > 0),
			eating_ms INTEGER NOT NULL CHECK (eating_ms > 0),
			thinking_ms INTEGER NOT NULL CHECK (thinking_ms > 0),
			builtin BOOLEAN NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
