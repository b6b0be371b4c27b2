// Package models contains the data types shared by the server, the client
// library and the CLI.
package models

import "strings"

// Language is the display/highlighting hint attached to a project file.
type Language string

const (
	LanguageTypeScript Language = "typescript"
	LanguageTSX        Language = "tsx"
	LanguageJSON       Language = "json"
	LanguageMarkdown   Language = "markdown"
	LanguageArduino    Language = "arduino"
	LanguageText       Language = "text"
)

// Valid reports whether l is one of the known language tags.
func (l Language) Valid() bool {
	switch l {
	case LanguageTypeScript, LanguageTSX, LanguageJSON, LanguageMarkdown, LanguageArduino, LanguageText:
		return true
	}
	return false
}

// InferLanguage derives a language tag from the extension of path.
// Matching is case-insensitive; unknown extensions map to text.
func InferLanguage(path string) Language {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tsx"):
		return LanguageTSX
	case strings.HasSuffix(lower, ".ts"):
		return LanguageTypeScript
	case strings.HasSuffix(lower, ".json"):
		return LanguageJSON
	case strings.HasSuffix(lower, ".md"):
		return LanguageMarkdown
	case strings.HasSuffix(lower, ".ino"):
		return LanguageArduino
	default:
		return LanguageText
	}
}

// ProjectFile is a path-addressed text artifact.
type ProjectFile struct {
	Path     string   `json:"path"`
	Content  string   `json:"content"`
	Language Language `json:"language,omitempty"`
}

// WithLanguage returns f with its language filled in from the path when unset.
func (f ProjectFile) WithLanguage() ProjectFile {
	if f.Language == "" {
		f.Language = InferLanguage(f.Path)
	}
	return f
}

// ProjectState is the full persisted state of a project: its files and the
// currently selected one.
type ProjectState struct {
	Files      []ProjectFile `json:"files"`
	ActivePath string        `json:"activePath"`
}

// Clone returns a deep copy of s.
func (s ProjectState) Clone() ProjectState {
	out := ProjectState{ActivePath: s.ActivePath}
	if s.Files != nil {
		out.Files = make([]ProjectFile, len(s.Files))
		copy(out.Files, s.Files)
	}
	return out
}

// IndexOf returns the position of path in s.Files, or -1.
func (s ProjectState) IndexOf(path string) int {
	for i, f := range s.Files {
		if f.Path == path {
			return i
		}
	}
	return -1
}

// Find returns the file at path.
func (s ProjectState) Find(path string) (ProjectFile, bool) {
	if i := s.IndexOf(path); i >= 0 {
		return s.Files[i], true
	}
	return ProjectFile{}, false
}
