package project

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/faraday/faraday/pkg/models"
	"github.com/faraday/faraday/pkg/tree"
)

// ErrMalformed is wrapped by Decode when a snapshot cannot be used.
var ErrMalformed = errors.New("malformed project snapshot")

// Reasons recorded in a LoadOutcome.
const (
	ReasonMissing       = "no persisted snapshot"
	ReasonInvalidJSON   = "invalid json"
	ReasonNoFiles       = "empty file list"
	ReasonNoActivePath  = "missing active path"
	ReasonActiveClamped = "active path clamped"
	ReasonDeduplicated  = "duplicate paths merged"
	ReasonPathless      = "files without a path dropped"
)

// Encode serializes state in the persisted format.
func Encode(state models.ProjectState) ([]byte, error) {
	if state.Files == nil {
		state.Files = []models.ProjectFile{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	return data, nil
}

// Decode parses and validates a persisted snapshot. A snapshot that does not
// parse, has no usable files or has no active path is rejected with an error
// wrapping ErrMalformed. An accepted snapshot is normalized and the applied
// repairs are returned as notes.
func Decode(data []byte) (models.ProjectState, []string, error) {
	var state models.ProjectState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.ProjectState{}, nil, fmt.Errorf("%w: %s: %v", ErrMalformed, ReasonInvalidJSON, err)
	}
	if len(state.Files) == 0 {
		return models.ProjectState{}, nil, fmt.Errorf("%w: %s", ErrMalformed, ReasonNoFiles)
	}
	if state.ActivePath == "" {
		return models.ProjectState{}, nil, fmt.Errorf("%w: %s", ErrMalformed, ReasonNoActivePath)
	}

	state, notes := normalize(state)
	if len(state.Files) == 0 {
		return models.ProjectState{}, nil, fmt.Errorf("%w: %s", ErrMalformed, ReasonNoFiles)
	}
	return state, notes, nil
}

// HasPath reports whether path names a file, i.e. has at least one segment.
func HasPath(path string) bool {
	return len(tree.Split(path)) > 0
}

// normalize restores the store invariants: every file has a path, one entry
// per path (last write wins, first position kept), every file tagged with a
// language, and an active path that names an existing file.
func normalize(state models.ProjectState) (models.ProjectState, []string) {
	var notes []string

	files := make([]models.ProjectFile, 0, len(state.Files))
	index := make(map[string]int, len(state.Files))
	pathless := 0
	for _, f := range state.Files {
		if !HasPath(f.Path) {
			pathless++
			continue
		}
		f = f.WithLanguage()
		if i, ok := index[f.Path]; ok {
			files[i] = f
			continue
		}
		index[f.Path] = len(files)
		files = append(files, f)
	}
	if pathless > 0 {
		notes = append(notes, ReasonPathless)
	}
	if len(files)+pathless != len(state.Files) {
		notes = append(notes, ReasonDeduplicated)
	}

	active := state.ActivePath
	if _, ok := index[active]; !ok {
		next := ""
		if len(files) > 0 {
			next = files[0].Path
		}
		if active != "" || next != "" {
			notes = append(notes, ReasonActiveClamped)
		}
		active = next
	}

	return models.ProjectState{Files: files, ActivePath: active}, notes
}
