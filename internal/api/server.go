// Package api provides the HTTP server and handlers.
package api

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/faraday/faraday/internal/chat"
	"github.com/faraday/faraday/internal/events"
	"github.com/faraday/faraday/internal/logging"
	"github.com/faraday/faraday/internal/metrics"
	"github.com/faraday/faraday/internal/project"
	"github.com/faraday/faraday/internal/quota"
	"github.com/faraday/faraday/pkg/models"
	"github.com/faraday/faraday/pkg/protocol"
	"github.com/faraday/faraday/pkg/tree"
)

// Version is reported by /health.
const Version = "1.0"

// Pool gzip writers to reduce allocations on the tree endpoint.
var gzipPool = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

// Server is the HTTP server.
type Server struct {
	store       *project.Store
	chat        *chat.Handler
	broadcaster *events.Broadcaster
	rateLimiter *quota.RateLimiter
	maxBodySize int64
}

// NewServer creates a new server. broadcaster and rateLimiter may be nil.
func NewServer(
	store *project.Store,
	chatHandler *chat.Handler,
	broadcaster *events.Broadcaster,
	rateLimiter *quota.RateLimiter,
	maxBodySize int64,
) *Server {
	if maxBodySize <= 0 {
		maxBodySize = 10 << 20
	}
	return &Server{
		store:       store,
		chat:        chatHandler,
		broadcaster: broadcaster,
		rateLimiter: rateLimiter,
		maxBodySize: maxBodySize,
	}
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Chat function, rate limited per client
	chatHandler := quota.RateLimitMiddleware(s.rateLimiter, chat.Reject)(s.chat)
	for _, path := range []string{"/functions/v1/chat", "/api/v1/chat"} {
		mux.Handle("POST "+path, chatHandler)
		mux.Handle("OPTIONS "+path, chatHandler)
	}

	// Project store
	mux.HandleFunc("GET /api/v1/project", s.handleGetProject)
	mux.HandleFunc("PUT /api/v1/project", s.handleReplaceProject)
	mux.HandleFunc("GET /api/v1/project/tree", s.handleTree)
	mux.HandleFunc("GET /api/v1/project/active", s.handleGetActive)
	mux.HandleFunc("PUT /api/v1/project/active", s.handleSetActive)
	mux.HandleFunc("PUT /api/v1/project/active/content", s.handleUpdateActiveContent)
	mux.HandleFunc("GET /api/v1/project/files/{path...}", s.handleGetFile)
	mux.HandleFunc("PUT /api/v1/project/files/{path...}", s.handleUpsertFile)

	// SSE
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)

	// Metrics must see the request the mux annotated with its pattern.
	return logging.Middleware(metrics.Middleware(mux))
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": Version})
}

// ─── Project ────────────────────────────────────────────────────────────────

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleReplaceProject(w http.ResponseWriter, r *http.Request) {
	var state models.ProjectState
	if !s.decode(w, r, &state) {
		return
	}
	for _, f := range state.Files {
		if !project.HasPath(f.Path) {
			s.sendError(w, http.StatusBadRequest, "every file needs a path")
			return
		}
		if f.Language != "" && !f.Language.Valid() {
			s.sendError(w, http.StatusBadRequest, fmt.Sprintf("unknown language %q for %s", f.Language, f.Path))
			return
		}
	}
	snap, err := s.store.ReplaceAll(r.Context(), state)
	s.sendState(w, r, snap, err)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	resp := protocol.TreeResponse{
		Tree:       tree.Build(snap.Files),
		ActivePath: snap.ActivePath,
	}

	if acceptsGzip(r) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzipPool.Get().(*gzip.Writer)
		gw.Reset(w)
		json.NewEncoder(gw).Encode(resp)
		gw.Close()
		gzipPool.Put(gw)
		return
	}

	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetActive(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.ActiveFile()
	if errors.Is(err, project.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "project has no files")
		return
	}
	s.sendJSON(w, http.StatusOK, f)
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req protocol.SetActiveRequest
	if !s.decode(w, r, &req) {
		return
	}
	snap, err := s.store.SetActivePath(r.Context(), req.Path)
	s.sendState(w, r, snap, err)
}

func (s *Server) handleUpdateActiveContent(w http.ResponseWriter, r *http.Request) {
	var req protocol.UpdateContentRequest
	if !s.decode(w, r, &req) {
		return
	}
	snap, err := s.store.UpdateActiveContent(r.Context(), req.Content)
	s.sendState(w, r, snap, err)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	f, err := s.store.File(path)
	if errors.Is(err, project.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "file not found: "+path)
		return
	}
	s.sendJSON(w, http.StatusOK, f)
}

func (s *Server) handleUpsertFile(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.PathValue("path"), "/")
	if path == "" {
		s.sendError(w, http.StatusBadRequest, "path is required")
		return
	}

	var req protocol.UpsertFileRequest
	if !s.decode(w, r, &req) {
		return
	}
	lang := models.Language(req.Language)
	if lang != "" && !lang.Valid() {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("unknown language %q", req.Language))
		return
	}

	snap, err := s.store.UpsertFile(r.Context(), models.ProjectFile{
		Path:     path,
		Content:  req.Content,
		Language: lang,
	})
	s.sendState(w, r, snap, err)
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.broadcaster == nil {
		s.sendError(w, http.StatusServiceUnavailable, "events not enabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

// decode reads a JSON body, answering 400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.sendError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// sendState answers a store transition. A persistence failure is a 500
// even though the in-memory transition stands.
func (s *Server) sendState(w http.ResponseWriter, r *http.Request, snap models.ProjectState, err error) {
	if err != nil {
		logging.WithContext(r.Context()).Error("project transition not persisted", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(protocol.ErrorResponse{
			Error:   "project updated but not persisted",
			Code:    http.StatusInternalServerError,
			Details: err.Error(),
		})
		return
	}
	s.sendJSON(w, http.StatusOK, snap)
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
