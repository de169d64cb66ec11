package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gallery-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteSlot keeps the index document as one row of the kv_slots table.
// A single database can hold several slots under different keys.
type SQLiteSlot struct {
	db  *sql.DB
	key string
	now func() time.Time
}

// NewSQLiteSlot opens (creating if needed) the database at path, brings its
// schema up to date and returns the slot stored under key.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteSlot(path, key string) (*SQLiteSlot, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLiteSlotFromDB(db, key), nil
}

// NewSQLiteSlotFromDB wraps an existing, already migrated connection.
func NewSQLiteSlotFromDB(db *sql.DB, key string) *SQLiteSlot {
	return &SQLiteSlot{db: db, key: key, now: time.Now}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database exists per connection, and the
	// store is the only writer anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = FULL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Load returns the stored document, or nil if the key has never been saved.
func (s *SQLiteSlot) Load(ctx context.Context) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_slots WHERE key = ?", s.key).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading slot %s: %w", s.key, err)
	}
	if doc == nil {
		doc = []byte{}
	}
	return doc, nil
}

// Save replaces the stored document in a single statement.
func (s *SQLiteSlot) Save(ctx context.Context, doc []byte) error {
	if doc == nil {
		doc = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, doc, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("saving slot %s: %w", s.key, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteSlot) Close() error {
	return s.db.Close()
}
