package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faraday/faraday/internal/gateway"
	"github.com/faraday/faraday/pkg/protocol"
)

type stubClient struct {
	text string
	err  error
	got  gateway.Request
}

func (s *stubClient) Complete(_ context.Context, req gateway.Request) (string, error) {
	s.got = req
	return s.text, s.err
}

func (s *stubClient) Provider() string { return "stub" }

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, protocol.ChatResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp protocol.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec, resp
}

func TestEmptyMessage(t *testing.T) {
	stub := &stubClient{text: "{}"}
	h := NewHandler(stub, 0)

	for _, body := range []string{`{"message":""}`, `{"message":"   \n\t"}`, `{}`, `not json`, ``} {
		rec, resp := post(t, h, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, MsgEmpty, resp.Message, body)
	}
	assert.Empty(t, stub.got.Prompt, "gateway must not be called")
}

func TestNotConfigured(t *testing.T) {
	rec, resp := post(t, NewHandler(nil, 0), `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MsgNotConfigured, resp.Message)

	h := NewHandler(&stubClient{err: gateway.ErrNotConfigured}, 0)
	rec, resp = post(t, h, `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MsgNotConfigured, resp.Message)
}

func TestUpstreamErrors(t *testing.T) {
	tests := []struct {
		status int
		msg    string
	}{
		{http.StatusTooManyRequests, MsgRateLimited},
		{http.StatusPaymentRequired, MsgNoCredits},
		{http.StatusBadGateway, MsgFailed},
		{http.StatusUnauthorized, MsgFailed},
	}
	for _, tt := range tests {
		h := NewHandler(&stubClient{err: &gateway.StatusError{Status: tt.status}}, 0)
		rec, resp := post(t, h, `{"message":"hi"}`)
		assert.Equal(t, tt.status, rec.Code)
		assert.Equal(t, tt.msg, resp.Message)
	}
}

func TestInternalError(t *testing.T) {
	h := NewHandler(&stubClient{err: errors.New("dial tcp: connection refused")}, 0)
	rec, resp := post(t, h, `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "dial tcp: connection refused", resp.Message)
}

func TestSuccessRelaysModelJSON(t *testing.T) {
	stub := &stubClient{text: `{"message":"Done.","files":[{"path":"arduino/main.ino","language":"arduino","content":"void setup(){}"}]}`}
	h := NewHandler(stub, 0)

	rec, resp := post(t, h, `{"message":"blink","conversationId":"c1","activeFile":{"path":"src/App.tsx","language":"tsx","content":"x"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Done.", resp.Message)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "arduino/main.ino", resp.Files[0].Path)

	assert.Equal(t, gateway.SystemPrompt, stub.got.System)
	assert.Equal(t, "User message: blink\n\nCurrent active file: src/App.tsx (tsx)\n", stub.got.Prompt)
}

func TestNonJSONModelOutput(t *testing.T) {
	rec, resp := post(t, NewHandler(&stubClient{text: "Sure! Here is some text."}, 0), `{"message":"hi"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Sure! Here is some text.", resp.Message)
	assert.Empty(t, resp.Files)

	_, resp = post(t, NewHandler(&stubClient{text: ""}, 0), `{"message":"hi"}`)
	assert.Equal(t, MsgNoResponse, resp.Message)
}

func TestOptionsPreflight(t *testing.T) {
	stub := &stubClient{}
	req := httptest.NewRequest(http.MethodOptions, "/functions/v1/chat", nil)
	rec := httptest.NewRecorder()
	NewHandler(stub, 0).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestReject(t *testing.T) {
	rec := httptest.NewRecorder()
	Reject(rec, httptest.NewRequest(http.MethodPost, "/functions/v1/chat", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgRateLimited)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestParseModelOutput(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		msg   string
		files int
		ok    bool
	}{
		{"plain json", `{"message":"hi"}`, "hi", 0, true},
		{"fenced json", "```json\n{\"message\":\"fenced\",\"files\":[{\"path\":\"a.md\",\"content\":\"#\"}]}\n```", "fenced", 1, true},
		{"bare fence", "```\n{\"message\":\"bare\"}\n```", "bare", 0, true},
		{"drops pathless files", `{"message":"m","files":[{"path":"","content":"x"},{"path":"b.ts","content":"y"}]}`, "m", 1, true},
		{"prose", "just words", "just words", 0, false},
		{"json string", `"quoted"`, `"quoted"`, 0, false},
		{"empty", "", MsgNoResponse, 0, false},
		{"whitespace", "  \n", "  \n", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, ok := ParseModelOutput(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.msg, resp.Message)
			assert.Len(t, resp.Files, tt.files)
		})
	}
}
