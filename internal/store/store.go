// Package store provides an optional SQLite mirror of the JSONL event log
// for structured querying. It is never the durability unit of record (the
// JSONL file is), and a mirror failure never fails the caller's write.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    ts      INTEGER NOT NULL,
    type    TEXT NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
`

// Store mirrors event-log lines into a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the mirror database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// InsertEvent mirrors one event-log line.
func (s *Store) InsertEvent(ts int64, typ string, payloadJSON []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO events (ts, type, payload) VALUES (?, ?, ?)`,
		ts, typ, string(payloadJSON),
	)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
