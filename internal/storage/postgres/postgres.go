// Package postgres provides a PostgreSQL-backed snapshot store with metrics.
package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	_ "github.com/lib/pq"

	"github.com/faraday/faraday/internal/metrics"
)

const schema = `CREATE TABLE IF NOT EXISTS project_snapshots (
	key        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Store keeps snapshot blobs in the project_snapshots table.
type Store struct {
	db *sql.DB
}

// New opens the database, verifies the connection and creates the table if
// needed.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// GetObject loads the blob stored under key.
func (s *Store) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	start := time.Now()
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM project_snapshots WHERE key = $1`, key).Scan(&data)
	metrics.RecordBackendOperation("postgres", "get", time.Since(start), err == nil)
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
		`INSERT INTO project_snapshots (key, data, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()`,
		key, data)
	metrics.RecordBackendOperation("postgres", "put", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// DeleteObject removes the row for key.
func (s *Store) DeleteObject(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM project_snapshots WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ObjectExists reports whether a row exists for key.
func (s *Store) ObjectExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM project_snapshots WHERE key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return exists, nil
}

// Type returns "postgres".
func (s *Store) Type() string { return "postgres" }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
