// Package google adapts the generate-content protocol. Roles are remapped
// (assistant becomes model) and the system prompt travels as a separate
// system instruction.
package google

import (
	"context"
	"net/url"
	"strings"

	"github.com/YourPureAI/ai-api-connector/pkg/llm"
	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider"
)

// DefaultBaseURL is the public generative language API root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Provider sends conversations to a generate-content endpoint.
type Provider struct {
	baseURL string
	caller  *provider.Caller
}

// New creates a Google adapter. An empty baseURL uses DefaultBaseURL.
func New(baseURL string, caller *provider.Caller) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		caller:  caller,
	}
}

// Part is a single text fragment of a Content.
type Part struct {
	Text string `json:"text"`
}

// Content is one turn in a generate-content request.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerateContentRequest is the request body sent upstream.
type GenerateContentRequest struct {
	Contents          []Content `json:"contents"`
	SystemInstruction *Content  `json:"systemInstruction,omitempty"`
}

// BuildRequest converts messages into a generate-content body.
func BuildRequest(messages []llm.Message) GenerateContentRequest {
	req := GenerateContentRequest{
		Contents: make([]Content, 0, len(messages)),
	}
	for _, m := range llm.WithoutSystem(messages) {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, Content{
			Role:  role,
			Parts: []Part{{Text: m.Content}},
		})
	}
	if system, ok := llm.SystemText(messages); ok && system != "" {
		req.SystemInstruction = &Content{Parts: []Part{{Text: system}}}
	}
	return req
}

// Name implements provider.Provider.
func (p *Provider) Name() provider.Name {
	return provider.Google
}

// Send returns the first text part of the first candidate.
func (p *Provider) Send(ctx context.Context, messages []llm.Message, model string, credential string) (string, error) {
	if len(messages) == 0 {
		return "", provider.ErrNoMessages
	}

	modelName := strings.TrimPrefix(model, "models/")
	endpoint := p.baseURL + "/models/" + url.PathEscape(modelName) + ":generateContent?key=" + url.QueryEscape(credential)

	result, err := p.caller.PostJSON(ctx, provider.Google, endpoint, nil, BuildRequest(messages))
	if err != nil {
		return "", err
	}
	if len(result.Get("candidates").Array()) == 0 {
		return "", provider.NewUpstreamError(provider.Google, 0, "No response from Gemini API")
	}
	return provider.Text(provider.Google, result, "candidates.0.content.parts.0.text")
}
