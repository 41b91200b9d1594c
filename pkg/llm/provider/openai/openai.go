// Package openai adapts the chat-completions protocol.
package openai

import (
	"context"
	"strings"

	"github.com/YourPureAI/ai-api-connector/pkg/llm"
	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider"
)

// DefaultBaseURL is the public chat-completions API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// Provider sends conversations to a chat-completions endpoint.
type Provider struct {
	baseURL string
	caller  *provider.Caller
}

// New creates an OpenAI adapter. An empty baseURL uses DefaultBaseURL.
func New(baseURL string, caller *provider.Caller) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		caller:  caller,
	}
}

type chatCompletionRequest struct {
	Model    string            `json:"model"`
	Messages []llm.WireMessage `json:"messages"`
}

// Name implements provider.Provider.
func (p *Provider) Name() provider.Name {
	return provider.OpenAI
}

// Send posts the messages verbatim and returns the first choice's content.
func (p *Provider) Send(ctx context.Context, messages []llm.Message, model string, credential string) (string, error) {
	if len(messages) == 0 {
		return "", provider.ErrNoMessages
	}

	body := chatCompletionRequest{
		Model:    model,
		Messages: llm.ToWire(messages),
	}
	headers := map[string]string{
		"Authorization": "Bearer " + credential,
	}

	result, err := p.caller.PostJSON(ctx, provider.OpenAI, p.baseURL+"/chat/completions", headers, body)
	if err != nil {
		return "", err
	}
	return provider.Text(provider.OpenAI, result, "choices.0.message.content")
}
