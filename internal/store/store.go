// Package store provides durable storage for submitted section payloads.
//
// The save engine itself never touches storage - persistence lives entirely
// inside each unit's submit function. This package is the backing store used
// by the form-section adapter in internal/form.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when no payload exists for a section id.
var ErrNotFound = errors.New("section not found")

// Store persists section payloads in SQLite.
// Uses WAL mode for concurrent read access during writes.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically; safe to call
// multiple times on the same path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent submits.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSection upserts one section's payload. seq is the save cycle number
// that produced the payload; it gives readers a wall-clock-free ordering key.
func (s *Store) SaveSection(ctx context.Context, id string, payload []byte, seq int64) error {
	const q = `
		INSERT INTO sections (id, payload, saved_seq)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			saved_seq = excluded.saved_seq,
			updated_at = datetime('now')`

	if _, err := s.db.ExecContext(ctx, q, id, payload, seq); err != nil {
		return fmt.Errorf("save section %s: %w", id, err)
	}
	return nil
}

// LoadSection returns the last-saved payload and cycle number for a section.
// Returns ErrNotFound if the section has never been saved.
func (s *Store) LoadSection(ctx context.Context, id string) ([]byte, int64, error) {
	const q = `SELECT payload, saved_seq FROM sections WHERE id = ?`

	var payload []byte
	var seq int64
	err := s.db.QueryRowContext(ctx, q, id).Scan(&payload, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load section %s: %w", id, err)
	}
	return payload, seq, nil
}

// SectionIDs returns the ids of all saved sections ordered by id.
func (s *Store) SectionIDs(ctx context.Context) ([]string, error) {
	const q = `SELECT id FROM sections ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan section id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return ids, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}
