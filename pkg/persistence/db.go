// Package persistence provides SQLite-backed storage for suspended runs
// and the ticket system.
package persistence

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"supportflow/pkg/logx"
)

// CurrentSchemaVersion defines the current schema version.
const CurrentSchemaVersion = 1

// Store wraps the SQLite database used for run and ticket persistence.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (or creates) the database at path and ensures the schema is
// current. SQLite supports a single writer, so the pool is capped at one
// connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		path,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{
		db:     db,
		logger: logx.NewLogger("persistence"),
	}
	store.logger.Info("database initialized: %s", path)
	return store, nil
}

// OpenMemory opens an in-memory database, for tests.
func OpenMemory() (*Store, error) {
	return Open(":memory:")
}

// DB exposes the underlying connection for collaborators that manage their
// own tables on the shared database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
