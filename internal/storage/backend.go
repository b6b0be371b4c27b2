// Package storage defines the Backend interface for project snapshot storage
// and a factory that opens the configured implementation.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// Backend is the interface for snapshot storage backends.
// Implementations handle raw blob I/O (local filesystem, S3, PostgreSQL,
// SQLite, memory). Missing keys are reported with an error wrapping
// fs.ErrNotExist.
type Backend interface {
	// GetObject retrieves an object by key along with its size.
	GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// PutObject stores content under the given key, replacing any previous value.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) error

	// DeleteObject removes an object by key. Deleting a missing key is not an error.
	DeleteObject(ctx context.Context, key string) error

	// ObjectExists checks if an object exists at the given key.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// Type returns the backend type identifier.
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// IsNotFound reports whether err means the requested key does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// ReadAll fetches a whole object.
func ReadAll(ctx context.Context, b Backend, key string) ([]byte, error) {
	rc, _, err := b.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// WriteAll stores data under key.
func WriteAll(ctx context.Context, b Backend, key string, data []byte) error {
	return b.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)))
}
