// Package ollama adapts a local Ollama-compatible /api/chat endpoint.
package ollama

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/YourPureAI/ai-api-connector/pkg/llm"
	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider"
)

// DefaultBaseURL is where a local Ollama listens by default.
const DefaultBaseURL = "http://localhost:11434"

// Provider sends conversations to a local model server. The credential is
// ignored.
type Provider struct {
	baseURL   string
	caller    *provider.Caller
	keepAlive string
}

// Option configures a Provider.
type Option func(*Provider)

// WithKeepAlive asks the server to keep the model loaded for d after each
// call, in Ollama duration syntax ("10m", "-1" for forever).
func WithKeepAlive(d string) Option {
	return func(p *Provider) {
		p.keepAlive = d
	}
}

// New creates a local adapter. An empty baseURL uses DefaultBaseURL.
func New(baseURL string, caller *provider.Caller, opts ...Option) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		caller:  caller,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements provider.Provider.
func (p *Provider) Name() provider.Name {
	return provider.Local
}

// Send performs a non-streaming chat call and returns the reply message.
func (p *Provider) Send(ctx context.Context, messages []llm.Message, model string, _ string) (string, error) {
	if len(messages) == 0 {
		return "", provider.ErrNoMessages
	}

	// Ensure non-streaming
	streaming := false
	req := llm.ChatRequest{
		Model:    model,
		Messages: llm.ToWire(messages),
		Stream:   &streaming,

		KeepAlive: p.keepAlive,
	}

	result, err := p.caller.PostJSON(ctx, provider.Local, p.baseURL+"/api/chat", nil, req)
	if err != nil {
		return "", err
	}

	var resp llm.ChatResponse
	if err := json.Unmarshal([]byte(result.Raw), &resp); err != nil {
		return "", provider.NewUpstreamError(provider.Local, 0, "unexpected response shape: "+err.Error())
	}
	if !result.Get("message.content").Exists() {
		return "", provider.NewUpstreamError(provider.Local, 0, "unexpected response shape: missing message.content")
	}
	return resp.Message.Content, nil
}
