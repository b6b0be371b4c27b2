// Package memory provides an in-process snapshot backend. Contents are lost
// when the process exits.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"sync"
)

// Backend implements storage.Backend with a map.
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// FailPuts makes every PutObject fail; used to exercise persistence errors.
	FailPuts bool
}

// New creates an empty memory backend.
func New() *Backend {
	return &Backend{objects: make(map[string][]byte)}
}

// GetObject returns a copy of the stored bytes.
func (b *Backend) GetObject(_ context.Context, key string) (io.ReadCloser, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, 0, fmt.Errorf("get %s: %w", key, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), int64(len(data)), nil
}

// PutObject stores the full body under key.
func (b *Backend) PutObject(_ context.Context, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body for %s: %w", key, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailPuts {
		return fmt.Errorf("put %s: quota exceeded", key)
	}
	b.objects[key] = data
	return nil
}

// DeleteObject removes key.
func (b *Backend) DeleteObject(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// ObjectExists reports whether key is stored.
func (b *Backend) ObjectExists(_ context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[key]
	return ok, nil
}

// Type returns "memory".
func (b *Backend) Type() string { return "memory" }

// Close is a no-op.
func (b *Backend) Close() error { return nil }
