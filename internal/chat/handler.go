// Package chat serves the chat function: it forwards a user message to the
// AI provider and relays back a message plus optional files.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/faraday/faraday/internal/gateway"
	"github.com/faraday/faraday/internal/logging"
	"github.com/faraday/faraday/internal/metrics"
	"github.com/faraday/faraday/pkg/protocol"
)

// User-facing error messages.
const (
	MsgEmpty         = "Please enter a message."
	MsgNotConfigured = "AI is not configured."
	MsgRateLimited   = "Rate limit exceeded. Please try again in a moment."
	MsgNoCredits     = "AI usage limit reached. Please add credits to continue."
	MsgFailed        = "AI request failed."
	MsgNoResponse    = "(no response)"
)

// Handler is the chat function.
type Handler struct {
	client      gateway.Client
	maxBodySize int64
}

// NewHandler creates a chat handler. maxBodySize <= 0 means 1 MiB.
func NewHandler(client gateway.Client, maxBodySize int64) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = 1 << 20
	}
	return &Handler{client: client, maxBodySize: maxBodySize}
}

// ServeHTTP handles POST and OPTIONS.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	SetCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	req := readRequest(io.LimitReader(r.Body, h.maxBodySize))
	resp, status := h.Respond(r.Context(), req)
	writeJSON(w, status, resp)
}

// Respond runs one chat turn and returns the response body and HTTP status.
func (h *Handler) Respond(ctx context.Context, req protocol.ChatRequest) (protocol.ChatResponse, int) {
	log := logging.WithContext(ctx)

	if strings.TrimSpace(req.Message) == "" {
		metrics.RecordChatTurn("empty", 0)
		return protocol.ChatResponse{Message: MsgEmpty}, http.StatusBadRequest
	}
	if h.client == nil {
		metrics.RecordChatTurn("not_configured", 0)
		return protocol.ChatResponse{Message: MsgNotConfigured}, http.StatusInternalServerError
	}

	var path, lang string
	if req.ActiveFile != nil {
		path, lang = req.ActiveFile.Path, req.ActiveFile.Language
	}

	raw, err := h.client.Complete(ctx, gateway.Request{
		System: gateway.SystemPrompt,
		Prompt: gateway.UserPrompt(req.Message, path, lang),
	})
	if err != nil {
		var se *gateway.StatusError
		switch {
		case errors.Is(err, gateway.ErrNotConfigured):
			metrics.RecordChatTurn("not_configured", 0)
			return protocol.ChatResponse{Message: MsgNotConfigured}, http.StatusInternalServerError
		case errors.As(err, &se):
			metrics.RecordChatTurn("upstream_error", 0)
			return protocol.ChatResponse{Message: upstreamMessage(se.Status)}, se.Status
		default:
			log.Error("chat function error", zap.Error(err))
			metrics.RecordChatTurn("error", 0)
			return protocol.ChatResponse{Message: err.Error()}, http.StatusInternalServerError
		}
	}

	resp, ok := ParseModelOutput(raw)
	if !ok {
		log.Warn("failed to parse model json", zap.Int("length", len(raw)))
		metrics.RecordChatTurn("plain_text", 0)
		return resp, http.StatusOK
	}
	metrics.RecordChatTurn("ok", len(resp.Files))
	return resp, http.StatusOK
}

func upstreamMessage(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return MsgRateLimited
	case http.StatusPaymentRequired:
		return MsgNoCredits
	default:
		return MsgFailed
	}
}

// readRequest decodes the body leniently: anything unparsable is an empty
// request.
func readRequest(body io.Reader) protocol.ChatRequest {
	var req protocol.ChatRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return protocol.ChatRequest{}
	}
	return req
}

// SetCORSHeaders adds the headers every chat function response carries.
func SetCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
}

// Reject answers a rate-limited chat request in the chat response shape.
func Reject(w http.ResponseWriter, _ *http.Request) {
	SetCORSHeaders(w)
	metrics.RecordChatTurn("rate_limited", 0)
	writeJSON(w, http.StatusTooManyRequests, protocol.ChatResponse{Message: MsgRateLimited})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
