// Package project holds the path-addressed file store that chat turns write
// into. The store keeps one ProjectState in memory, mirrors every change to
// a storage backend and can rehydrate itself from that backend.
package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/faraday/faraday/internal/events"
	"github.com/faraday/faraday/internal/logging"
	"github.com/faraday/faraday/internal/metrics"
	"github.com/faraday/faraday/internal/storage"
	"github.com/faraday/faraday/pkg/models"
)

var (
	// ErrNotFound is returned when a requested file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrEmptyPath is returned when upserting a file whose path has no
	// segments.
	ErrEmptyPath = errors.New("file path is empty")
)

// Load sources.
const (
	SourcePersisted = "persisted"
	SourceDefaulted = "defaulted"
)

// LoadOutcome reports which branch Load took.
type LoadOutcome struct {
	Source string
	Reason string
}

// Store is the project file store. All methods are safe for concurrent use;
// every mutation is applied and persisted as one serialized transition.
type Store struct {
	mu      sync.Mutex
	state   models.ProjectState
	backend storage.Backend
	key     string
	events  *events.Broadcaster
	loaded  bool
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the backend key the snapshot is stored under.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithEvents publishes every transition to b.
func WithEvents(b *events.Broadcaster) Option {
	return func(s *Store) { s.events = b }
}

// New creates a store holding the default state. Call Load to rehydrate it.
func New(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		state:   DefaultState(),
		backend: backend,
		key:     StorageKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the backend key of the snapshot.
func (s *Store) Key() string { return s.key }

// Load reads the persisted snapshot. A missing or unusable snapshot leaves
// the store on the default state. The resulting state is written back when
// it differs from what was read. The returned error reports a backend read
// failure other than a missing key, or a failed write-back; the store is
// usable in both cases.
func (s *Store) Load(ctx context.Context) (LoadOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, readErr := storage.ReadAll(ctx, s.backend, s.key)

	// Reading back our own last write changes nothing and stays silent.
	current, _ := Encode(s.state)
	unchanged := readErr == nil && s.loaded && bytes.Equal(raw, current)

	var (
		outcome LoadOutcome
		state   models.ProjectState
	)
	switch {
	case readErr != nil && storage.IsNotFound(readErr):
		state = DefaultState()
		outcome = LoadOutcome{Source: SourceDefaulted, Reason: ReasonMissing}
		readErr = nil
	case readErr != nil:
		state = DefaultState()
		outcome = LoadOutcome{Source: SourceDefaulted, Reason: readErr.Error()}
		readErr = fmt.Errorf("read snapshot: %w", readErr)
	default:
		decoded, notes, err := Decode(raw)
		if err != nil {
			state = DefaultState()
			outcome = LoadOutcome{Source: SourceDefaulted, Reason: strings.TrimPrefix(err.Error(), ErrMalformed.Error()+": ")}
			logging.Warn("persisted project unusable, using defaults",
				zap.String("key", s.key),
				zap.Error(err))
		} else {
			state = decoded
			outcome = LoadOutcome{Source: SourcePersisted, Reason: strings.Join(notes, "; ")}
		}
	}

	s.state = state
	s.loaded = true
	metrics.RecordLoad(outcome.Source)
	logging.Debug("project loaded",
		zap.String("source", outcome.Source),
		zap.String("reason", outcome.Reason),
		zap.Int("files", len(state.Files)))

	if !unchanged {
		s.publish(events.EventLoad, "")
	}

	// A backend that failed to read keeps its data; only rewrite after a
	// clean read.
	if readErr != nil {
		return outcome, readErr
	}
	if encoded, err := Encode(state); err == nil && !bytes.Equal(encoded, raw) {
		return outcome, s.write(ctx, encoded)
	}
	return outcome, nil
}

// Reload is Load for callers that only care about the new state, such as a
// watcher reacting to an external edit of the snapshot.
func (s *Store) Reload(ctx context.Context) (models.ProjectState, error) {
	if _, err := s.Load(ctx); err != nil {
		return s.Snapshot(), err
	}
	return s.Snapshot(), nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() models.ProjectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// ActiveFile returns the active file, or the first file when the active path
// does not resolve. ErrNotFound means the store is empty.
func (s *Store) ActiveFile() (models.ProjectFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.state.Find(s.state.ActivePath); ok {
		return f, nil
	}
	if len(s.state.Files) > 0 {
		return s.state.Files[0], nil
	}
	return models.ProjectFile{}, ErrNotFound
}

// File returns the file at path.
func (s *Store) File(path string) (models.ProjectFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.state.Find(path); ok {
		return f, nil
	}
	return models.ProjectFile{}, fmt.Errorf("%s: %w", path, ErrNotFound)
}

// SetActivePath makes path the active file. Unknown paths leave the state
// unchanged and are not an error.
func (s *Store) SetActivePath(ctx context.Context, path string) (models.ProjectState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IndexOf(path) < 0 || s.state.ActivePath == path {
		return s.state.Clone(), nil
	}
	s.state.ActivePath = path
	return s.commit(ctx, events.EventActivate, path)
}

// UpsertFile replaces the file with the same path in place, or prepends it
// when the path is new. The file becomes active either way. A path without
// segments is rejected with ErrEmptyPath and leaves the state unchanged.
func (s *Store) UpsertFile(ctx context.Context, file models.ProjectFile) (models.ProjectState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !HasPath(file.Path) {
		return s.state.Clone(), fmt.Errorf("%q: %w", file.Path, ErrEmptyPath)
	}

	file = file.WithLanguage()
	if i := s.state.IndexOf(file.Path); i >= 0 {
		s.state.Files[i] = file
	} else {
		files := make([]models.ProjectFile, 0, len(s.state.Files)+1)
		files = append(files, file)
		s.state.Files = append(files, s.state.Files...)
	}
	s.state.ActivePath = file.Path
	return s.commit(ctx, events.EventUpsert, file.Path)
}

// UpdateActiveContent replaces the content of the active file. It is a
// no-op when no file is active.
func (s *Store) UpdateActiveContent(ctx context.Context, content string) (models.ProjectState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.state.IndexOf(s.state.ActivePath)
	if i < 0 {
		return s.state.Clone(), nil
	}
	s.state.Files[i].Content = content
	return s.commit(ctx, events.EventEdit, s.state.ActivePath)
}

// ReplaceAll swaps in a whole new state. Files without a path are dropped,
// duplicate paths collapse to the last occurrence at the first occurrence's
// position, and an active path that does not resolve is clamped to the
// first file.
func (s *Store) ReplaceAll(ctx context.Context, next models.ProjectState) (models.ProjectState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, notes := normalize(next.Clone())
	if len(notes) > 0 {
		logging.Debug("replacement state normalized", zap.Strings("notes", notes))
	}
	s.state = state
	return s.commit(ctx, events.EventReplace, "")
}

// commit persists the current state and announces the transition. The
// in-memory state stands even when persisting fails. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, op, path string) (models.ProjectState, error) {
	metrics.RecordStoreOp(op, len(s.state.Files))
	snapshot := s.state.Clone()

	data, err := Encode(s.state)
	if err == nil {
		err = s.write(ctx, data)
	}
	s.publish(op, path)
	return snapshot, err
}

func (s *Store) write(ctx context.Context, data []byte) error {
	if err := storage.WriteAll(ctx, s.backend, s.key, data); err != nil {
		metrics.RecordPersistFailure()
		logging.Error("failed to persist project",
			zap.String("backend", s.backend.Type()),
			zap.String("key", s.key),
			zap.Error(err))
		return fmt.Errorf("persist project: %w", err)
	}
	return nil
}

func (s *Store) publish(op, path string) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Event{
		Type:       op,
		Path:       path,
		ActivePath: s.state.ActivePath,
		FileCount:  len(s.state.Files),
	})
}
