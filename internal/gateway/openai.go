package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/faraday/faraday/internal/logging"
	"github.com/faraday/faraday/internal/metrics"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "google/gemini-3-flash-preview"

// ChatCompletionsConfig configures a ChatCompletions client.
type ChatCompletionsConfig struct {
	URL        string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// ChatCompletions calls an OpenAI-compatible chat completions endpoint.
type ChatCompletions struct {
	url    string
	apiKey string
	model  string
	http   *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewChatCompletions creates a client. A missing API key is reported by
// Complete, not here, so the server can start without one.
func NewChatCompletions(cfg ChatCompletionsConfig) *ChatCompletions {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 120 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &ChatCompletions{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		http:   hc,
	}
}

// Provider returns "gateway".
func (c *ChatCompletions) Provider() string { return "gateway" }

// Complete sends one system+user exchange and returns the first choice.
func (c *ChatCompletions) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.RecordGatewayCall(c.Provider(), 0, time.Since(start))
		return "", fmt.Errorf("ai gateway request: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordGatewayCall(c.Provider(), resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		logging.WithContext(ctx).Error("ai gateway error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(text)))
		return "", &StatusError{Status: resp.StatusCode, Body: string(text)}
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ai gateway response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == nil {
		return "", nil
	}
	return *out.Choices[0].Message.Content, nil
}
