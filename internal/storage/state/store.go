// Package state keeps per-channel scan cursors in a local SQLite file.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
	"github.com/lueurxax/fundraising-ledger/internal/core/ports"
)

const memoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS scan_cursors (
	channel     TEXT NOT NULL,
	table_ref   TEXT NOT NULL,
	message_id  INTEGER NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (channel, table_ref)
)`

// Store implements ports.CursorStore.
type Store struct {
	db *sql.DB
}

var _ ports.CursorStore = (*Store)(nil)

// Open opens (creating if needed) the cursor database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	// One connection keeps :memory: databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Cursor returns the saved cursor for channel and table.
func (s *Store) Cursor(ctx context.Context, channel, table string) (int64, bool, error) {
	var id int64

	err := s.db.QueryRowContext(ctx,
		`SELECT message_id FROM scan_cursors WHERE channel = ? AND table_ref = ?`,
		channel, table,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("reading scan cursor: %w", err)
	}

	return id, true, nil
}

// SaveCursor records id as the cursor for channel and table.
func (s *Store) SaveCursor(ctx context.Context, channel, table string, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_cursors (channel, table_ref, message_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (channel, table_ref) DO UPDATE
		SET message_id = excluded.message_id, updated_at = excluded.updated_at`,
		channel, table, id, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving scan cursor: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
