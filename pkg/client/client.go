// Package client is the HTTP client for the Faraday server: the chat
// function and the project API.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/faraday/faraday/internal/logging"
	"github.com/faraday/faraday/pkg/models"
	"github.com/faraday/faraday/pkg/protocol"
	"github.com/faraday/faraday/pkg/retry"
)

// Client talks to a Faraday server.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config
	clientInfo  string

	mu       sync.RWMutex
	online   bool
	lastPing time.Time
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config
	// ClientInfo is sent as X-Client-Info; the server rate-limits by it.
	ClientInfo string
}

// APIError is a non-2xx answer from the server. Message carries the
// server's explanation when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// ErrNotFound is returned when the requested file does not exist.
var ErrNotFound = errors.New("not found")

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 150 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	if cfg.ClientInfo == "" {
		cfg.ClientInfo = "faraday-go"
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig: cfg.RetryConfig,
		clientInfo:  cfg.ClientInfo,
		online:      true,
	}
}

// IsOnline returns true if the server answered the last request.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logging.Info("server is back online", zap.String("url", c.baseURL))
		} else {
			logging.Warn("server is offline", zap.String("url", c.baseURL))
		}
	}
	c.online = online
	c.lastPing = time.Now()
}

// Ping checks if the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.setOnline(false)
		return &APIError{Status: resp.StatusCode}
	}

	c.setOnline(true)
	return nil
}

// Chat sends one chat turn. Chat turns are never retried.
func (c *Client) Chat(ctx context.Context, req protocol.ChatRequest) (*protocol.ChatResponse, error) {
	var out protocol.ChatResponse
	if err := c.once(ctx, http.MethodPost, "/functions/v1/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Project fetches the server's project state.
func (c *Client) Project(ctx context.Context) (models.ProjectState, error) {
	var out models.ProjectState
	err := c.withRetry(ctx, http.MethodGet, "/api/v1/project", nil, &out)
	return out, err
}

// ReplaceProject replaces the server's project state.
func (c *Client) ReplaceProject(ctx context.Context, state models.ProjectState) (models.ProjectState, error) {
	var out models.ProjectState
	err := c.withRetry(ctx, http.MethodPut, "/api/v1/project", state, &out)
	return out, err
}

// Tree fetches the folder/file tree of the server's project.
func (c *Client) Tree(ctx context.Context) (*protocol.TreeResponse, error) {
	var out protocol.TreeResponse
	if err := c.withRetry(ctx, http.MethodGet, "/api/v1/project/tree", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveFile fetches the server's active file.
func (c *Client) ActiveFile(ctx context.Context) (models.ProjectFile, error) {
	var out models.ProjectFile
	err := c.withRetry(ctx, http.MethodGet, "/api/v1/project/active", nil, &out)
	return out, err
}

// SetActivePath selects a file on the server. Unknown paths are ignored by
// the server.
func (c *Client) SetActivePath(ctx context.Context, path string) (models.ProjectState, error) {
	var out models.ProjectState
	err := c.withRetry(ctx, http.MethodPut, "/api/v1/project/active", protocol.SetActiveRequest{Path: path}, &out)
	return out, err
}

// UpdateActiveContent replaces the content of the server's active file.
func (c *Client) UpdateActiveContent(ctx context.Context, content string) (models.ProjectState, error) {
	var out models.ProjectState
	err := c.withRetry(ctx, http.MethodPut, "/api/v1/project/active/content", protocol.UpdateContentRequest{Content: content}, &out)
	return out, err
}

// File fetches one file. A missing file yields an error wrapping ErrNotFound.
func (c *Client) File(ctx context.Context, path string) (models.ProjectFile, error) {
	var out models.ProjectFile
	err := c.withRetry(ctx, http.MethodGet, filesPath(path), nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return out, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return out, err
}

// UpsertFile creates or replaces a file on the server.
func (c *Client) UpsertFile(ctx context.Context, file models.ProjectFile) (models.ProjectState, error) {
	var out models.ProjectState
	err := c.withRetry(ctx, http.MethodPut, filesPath(file.Path), protocol.UpsertFileRequest{
		Content:  file.Content,
		Language: string(file.Language),
	}, &out)
	return out, err
}

func filesPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/api/v1/project/files/" + strings.Join(segments, "/")
}

func (c *Client) withRetry(ctx context.Context, method, path string, in, out any) error {
	return retry.Do(ctx, c.retryConfig, func() error {
		return c.once(ctx, method, path, in, out)
	})
}

// once performs a single request. Transport failures and 5xx answers are
// marked retryable.
func (c *Client) once(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("X-Client-Info", c.clientInfo)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return retry.Retryable(err)
	}
	defer resp.Body.Close()
	c.setOnline(true)

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gr.Close()
		reader = gr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(reader)}
		if resp.StatusCode >= 500 && method != http.MethodPost {
			return retry.Retryable(apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(reader).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage pulls the explanation out of either error envelope the
// server uses: {message} from the chat function or {error} from the API.
func errorMessage(r io.Reader) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&body) != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
