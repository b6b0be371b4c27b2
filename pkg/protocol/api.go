// Package protocol defines the API request/response types.
package protocol

import "github.com/faraday/faraday/pkg/models"

// ChatRequest is the body for POST /functions/v1/chat.
type ChatRequest struct {
	Message        string      `json:"message"`
	ConversationID string      `json:"conversationId"`
	ActiveFile     *ActiveFile `json:"activeFile,omitempty"`
}

// ActiveFile describes the file the user has open when sending a message.
type ActiveFile struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

// ChatResponse is returned by the chat function. On failure only Message is
// set and the HTTP status carries the error class.
type ChatResponse struct {
	Message string     `json:"message"`
	Files   []ChatFile `json:"files,omitempty"`
}

// ChatFile is a file edit proposed by the assistant. Language may be empty.
type ChatFile struct {
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
	Content  string `json:"content"`
}

// ErrorResponse is returned on project API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// TreeResponse is returned by GET /api/v1/project/tree.
type TreeResponse struct {
	Tree       []*models.TreeNode `json:"tree"`
	ActivePath string             `json:"activePath"`
}

// SetActiveRequest is the body for PUT /api/v1/project/active.
type SetActiveRequest struct {
	Path string `json:"path"`
}

// UpdateContentRequest is the body for PUT /api/v1/project/active/content.
type UpdateContentRequest struct {
	Content string `json:"content"`
}

// UpsertFileRequest is the body for PUT /api/v1/project/files/{path}.
type UpsertFileRequest struct {
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// ProjectEvent is a server-sent event describing a project store transition.
type ProjectEvent struct {
	Type       string `json:"type"`
	Path       string `json:"path,omitempty"`
	ActivePath string `json:"activePath"`
	FileCount  int    `json:"fileCount"`
	Timestamp  int64  `json:"timestamp"`
}
