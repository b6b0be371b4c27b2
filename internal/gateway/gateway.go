// Package gateway talks to the AI model that answers chat turns.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/faraday/faraday/internal/config"
)

// ErrNotConfigured is returned when the provider has no credential or host.
var ErrNotConfigured = errors.New("ai provider not configured")

// StatusError is a non-2xx answer from the upstream AI service.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai gateway returned status %d", e.Status)
}

// Request is one completion request.
type Request struct {
	System string
	Prompt string
}

// Client produces a completion for a system and user prompt. The returned
// text is empty when the model produced no content.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() string
}

// FromConfig builds the client selected by cfg.AIProvider.
func FromConfig(cfg *config.Config) (Client, error) {
	switch cfg.AIProvider {
	case "", "gateway":
		return NewChatCompletions(ChatCompletionsConfig{
			URL:     cfg.AIGatewayURL,
			APIKey:  cfg.AIGatewayKey,
			Model:   cfg.AIModel,
			Timeout: cfg.AIGatewayTimeout,
		}), nil
	case "ollama":
		host, err := url.Parse(cfg.OllamaHost)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.OllamaHost, err)
		}
		return NewOllama(host, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unknown ai provider: %s", cfg.AIProvider)
	}
}
