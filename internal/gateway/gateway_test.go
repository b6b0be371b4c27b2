package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faraday/faraday/internal/config"
)

func TestCompleteSendsPromptAndReturnsContent(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"message\":\"hi\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewChatCompletions(ChatCompletionsConfig{URL: srv.URL, APIKey: "secret"})
	text, err := c.Complete(context.Background(), Request{
		System: SystemPrompt,
		Prompt: UserPrompt("blink an LED", "arduino/blink.ino", "arduino"),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"message":"hi"}`, text)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, SystemPrompt, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "User message: blink an LED\n\nCurrent active file: arduino/blink.ino (arduino)\n", got.Messages[1].Content)
}

func TestCompleteWithoutKey(t *testing.T) {
	c := NewChatCompletions(ChatCompletionsConfig{URL: "http://127.0.0.1:1"})
	_, err := c.Complete(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCompleteUpstreamStatus(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusPaymentRequired, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte("upstream says no"))
		}))

		c := NewChatCompletions(ChatCompletionsConfig{URL: srv.URL, APIKey: "k"})
		_, err := c.Complete(context.Background(), Request{Prompt: "x"})
		srv.Close()

		var se *StatusError
		require.True(t, errors.As(err, &se), "status %d", status)
		assert.Equal(t, status, se.Status)
		assert.Equal(t, "upstream says no", se.Body)
	}
}

func TestCompleteNoContent(t *testing.T) {
	for _, body := range []string{`{}`, `{"choices":[]}`, `{"choices":[{"message":{}}]}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		c := NewChatCompletions(ChatCompletionsConfig{URL: srv.URL, APIKey: "k"})
		text, err := c.Complete(context.Background(), Request{})
		srv.Close()
		require.NoError(t, err, body)
		assert.Empty(t, text, body)
	}
}

func TestCompleteBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	c := NewChatCompletions(ChatCompletionsConfig{URL: srv.URL, APIKey: "k"})
	_, err := c.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "decode"))
}

func TestCompleteHonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewChatCompletions(ChatCompletionsConfig{URL: srv.URL, APIKey: "k"})
	_, err := c.Complete(ctx, Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Defaults()
	c, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gateway", c.Provider())

	cfg.AIProvider = "ollama"
	c, err = FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", c.Provider())

	cfg.AIProvider = "carrier-pigeon"
	_, err = FromConfig(cfg)
	assert.Error(t, err)
}
