// Package store is the durable side of the system: accounts, rooms and
// chat history on SQLite. The realtime coordinator only touches it through
// narrow lookup/persistence interfaces; presence itself is never stored.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	// Session pragmas like foreign_keys apply per connection, so keep the
	// pool at one. SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	// WAL for concurrent reads alongside the writer.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable FK: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE CHECK(length(username) >= 3 AND length(username) <= 20),
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		last_room     TEXT,
		created_at    INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		code         TEXT NOT NULL UNIQUE,
		host_id      TEXT NOT NULL REFERENCES users(id),
		last_used_at INTEGER NOT NULL,
		created_at   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rooms_host ON rooms(host_id);
	CREATE INDEX IF NOT EXISTS idx_rooms_last_used ON rooms(last_used_at);

	CREATE TABLE IF NOT EXISTS messages (
		id         TEXT PRIMARY KEY,
		room_id    TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		sender_id  TEXT NOT NULL REFERENCES users(id),
		text       TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
