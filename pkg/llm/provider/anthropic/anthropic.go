// Package anthropic adapts the messages protocol, which carries the system
// prompt in its own field rather than as a turn.
package anthropic

import (
	"context"
	"strings"

	"github.com/YourPureAI/ai-api-connector/pkg/llm"
	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider"
)

const (
	// DefaultBaseURL is the public messages API root.
	DefaultBaseURL = "https://api.anthropic.com/v1"

	// APIVersion is sent as the anthropic-version header.
	APIVersion = "2023-06-01"

	// MaxTokens bounds the length of every reply.
	MaxTokens = 1024
)

// Provider sends conversations to a messages endpoint.
type Provider struct {
	baseURL string
	caller  *provider.Caller
}

// New creates an Anthropic adapter. An empty baseURL uses DefaultBaseURL.
func New(baseURL string, caller *provider.Caller) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		caller:  caller,
	}
}

type messagesRequest struct {
	Model     string            `json:"model"`
	MaxTokens int               `json:"max_tokens"`
	System    string            `json:"system,omitempty"`
	Messages  []llm.WireMessage `json:"messages"`
}

// Name implements provider.Provider.
func (p *Provider) Name() provider.Name {
	return provider.Anthropic
}

// Send lifts the system message out of the turn list and returns the text
// of the first content block.
func (p *Provider) Send(ctx context.Context, messages []llm.Message, model string, credential string) (string, error) {
	if len(messages) == 0 {
		return "", provider.ErrNoMessages
	}

	system, _ := llm.SystemText(messages)
	body := messagesRequest{
		Model:     model,
		MaxTokens: MaxTokens,
		System:    system,
		Messages:  llm.ToWire(llm.WithoutSystem(messages)),
	}
	headers := map[string]string{
		"x-api-key":         credential,
		"anthropic-version": APIVersion,
	}

	result, err := p.caller.PostJSON(ctx, provider.Anthropic, p.baseURL+"/messages", headers, body)
	if err != nil {
		return "", err
	}
	return provider.Text(provider.Anthropic, result, "content.0.text")
}
