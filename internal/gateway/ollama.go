package gateway

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/JexSrs/go-ollama"

	"github.com/faraday/faraday/internal/metrics"
)

// Ollama answers chat turns with a local Ollama model.
type Ollama struct {
	client *ollama.Ollama
	model  string
}

// NewOllama creates a client for the Ollama server at host.
func NewOllama(host *url.URL, model string) *Ollama {
	return &Ollama{
		client: ollama.New(*host),
		model:  model,
	}
}

// Provider returns "ollama".
func (o *Ollama) Provider() string { return "ollama" }

type generateResult struct {
	text string
	err  error
}

// Complete runs a single non-streaming generation. The underlying client
// has no context support, so ctx only bounds how long Complete waits.
func (o *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	if o.model == "" {
		return "", ErrNotConfigured
	}

	start := time.Now()
	done := make(chan generateResult, 1)
	go func() {
		res, err := o.client.Generate(
			o.client.Generate.WithModel(o.model),
			o.client.Generate.WithSystem(req.System),
			o.client.Generate.WithPrompt(req.Prompt),
		)
		if err != nil {
			done <- generateResult{err: fmt.Errorf("ollama generate: %w", err)}
			return
		}
		if !res.Done {
			done <- generateResult{err: fmt.Errorf("ollama generate: response not finished")}
			return
		}
		done <- generateResult{text: res.Response}
	}()

	select {
	case <-ctx.Done():
		metrics.RecordGatewayCall(o.Provider(), 0, time.Since(start))
		return "", ctx.Err()
	case r := <-done:
		status := 200
		if r.err != nil {
			status = 0
		}
		metrics.RecordGatewayCall(o.Provider(), status, time.Since(start))
		return r.text, r.err
	}
}
