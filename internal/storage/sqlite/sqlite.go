// Package sqlite provides a single-file SQLite snapshot store.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/faraday/faraday/internal/metrics"
)

const schema = `CREATE TABLE IF NOT EXISTS project_snapshots (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store keeps snapshot blobs in a SQLite database file.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the database at path.
func New(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create dir for %s: %w", path, err)
		}
	}

	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases coherent and avoids
	// writer contention on files.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// GetObject loads the blob stored under key.
func (s *Store) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	start := time.Now()
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM project_snapshots WHERE key = ?`, key).Scan(&data)
	metrics.RecordBackendOperation("sqlite", "get", time.Since(start), err == nil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("get %s: %w", key, fs.ErrNotExist)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", key, err)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// PutObject upserts the blob under key.
func (s *Store) PutObject(ctx context.Context, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body for %s: %w", key, err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_snapshots (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, time.Now().Unix())
	metrics.RecordBackendOperation("sqlite", "put", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// DeleteObject removes the row for key.
func (s *Store) DeleteObject(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM project_snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ObjectExists reports whether a row exists for key.
func (s *Store) ObjectExists(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM project_snapshots WHERE key = ?`, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Type returns "sqlite".
func (s *Store) Type() string { return "sqlite" }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
