package client

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/faraday/faraday/pkg/models"
	"github.com/faraday/faraday/pkg/protocol"
	"github.com/faraday/faraday/pkg/retry"
)

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	c := New(Config{
		BaseURL: ts.URL,
		RetryConfig: retry.Config{
			MaxAttempts: 3,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
		},
		ClientInfo: "test-client",
	})
	return c, ts
}

func TestChat_Success(t *testing.T) {
	var got protocol.ChatRequest
	var info string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/functions/v1/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		info = r.Header.Get("X-Client-Info")
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(protocol.ChatResponse{
			Message: "Here is your sketch.",
			Files:   []protocol.ChatFile{{Path: "arduino/main.ino", Language: "arduino", Content: "void setup(){}"}},
		})
	}))
	defer ts.Close()

	resp, err := c.Chat(context.Background(), protocol.ChatRequest{
		Message:    "blink",
		ActiveFile: &protocol.ActiveFile{Path: "src/App.tsx", Language: "tsx"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message != "Here is your sketch." || len(resp.Files) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if got.Message != "blink" || got.ActiveFile == nil || got.ActiveFile.Path != "src/App.tsx" {
		t.Errorf("unexpected request: %+v", got)
	}
	if info != "test-client" {
		t.Errorf("expected X-Client-Info test-client, got %q", info)
	}
}

func TestChat_ErrorCarriesServerMessage(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"Rate limit exceeded. Please try again in a moment."}`))
	}))
	defer ts.Close()

	_, err := c.Chat(context.Background(), protocol.ChatRequest{Message: "hi"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", apiErr.Status)
	}
	if err.Error() != "Rate limit exceeded. Please try again in a moment." {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestChat_NotRetried(t *testing.T) {
	var calls atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message":"AI request failed."}`))
	}))
	defer ts.Close()

	_, err := c.Chat(context.Background(), protocol.ChatRequest{Message: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls.Load())
	}
}

func TestProject_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(models.ProjectState{
			Files:      []models.ProjectFile{{Path: "a.ts", Language: models.LanguageTypeScript}},
			ActivePath: "a.ts",
		})
	}))
	defer ts.Close()

	state, err := c.Project(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.ActivePath != "a.ts" {
		t.Errorf("expected active a.ts, got %s", state.ActivePath)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestProject_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid JSON","code":400}`))
	}))
	defer ts.Close()

	_, err := c.ReplaceProject(context.Background(), models.ProjectState{})
	if err == nil || err.Error() != "invalid JSON" {
		t.Fatalf("expected invalid JSON error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestFile_NotFound(t *testing.T) {
	var path string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"file not found","code":404}`))
	}))
	defer ts.Close()

	_, err := c.File(context.Background(), "docs/my notes.md")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if path != "/api/v1/project/files/docs/my%20notes.md" {
		t.Errorf("unexpected path %s", path)
	}
}

func TestUpsertFile(t *testing.T) {
	var got protocol.UpsertFileRequest
	var method, path string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(models.ProjectState{ActivePath: "arduino/main.ino"})
	}))
	defer ts.Close()

	state, err := c.UpsertFile(context.Background(), models.ProjectFile{
		Path:     "arduino/main.ino",
		Content:  "void loop(){}",
		Language: models.LanguageArduino,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodPut || path != "/api/v1/project/files/arduino/main.ino" {
		t.Errorf("unexpected %s %s", method, path)
	}
	if got.Content != "void loop(){}" || got.Language != "arduino" {
		t.Errorf("unexpected body %+v", got)
	}
	if state.ActivePath != "arduino/main.ino" {
		t.Errorf("unexpected state %+v", state)
	}
}

func TestTree_Gzip(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "gzip" {
			t.Errorf("expected gzip to be accepted")
		}
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzip.NewWriter(w)
		json.NewEncoder(gw).Encode(protocol.TreeResponse{
			Tree: []*models.TreeNode{{
				Kind: models.KindFolder,
				Name: "src",
				Path: "src",
				Children: []*models.TreeNode{{
					Kind: models.KindFile,
					Name: "App.tsx",
					Path: "src/App.tsx",
				}},
			}},
			ActivePath: "src/App.tsx",
		})
		gw.Close()
	}))
	defer ts.Close()

	tree, err := c.Tree(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Tree) != 1 || len(tree.Tree[0].Children) != 1 {
		t.Fatalf("unexpected tree %+v", tree.Tree)
	}
	if tree.Tree[0].Children[0].Path != "src/App.tsx" {
		t.Errorf("unexpected leaf %s", tree.Tree[0].Children[0].Path)
	}
}

func TestPing(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsOnline() {
		t.Error("expected online")
	}

	ts.Close()
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error after server closed")
	}
	if c.IsOnline() {
		t.Error("expected offline")
	}
}

func TestSSESubscribe(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": connected\n\n")
		fmt.Fprint(w, "event: upsert\ndata: {\"type\":\"upsert\",\"path\":\"a.ts\",\"activePath\":\"a.ts\",\"fileCount\":3,\"timestamp\":1}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := NewSSEClient(ts.URL).Subscribe(ctx)
	select {
	case ev := <-events:
		if ev.Type != "upsert" || ev.Path != "a.ts" || ev.FileCount != 3 {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
