// Package provider defines the contract every upstream LLM adapter satisfies
// and the registry the chat orchestrator selects adapters from.
//
// Each adapter translates an ordered slice of llm.Message into its vendor's
// native request shape, performs exactly one HTTP call, and extracts the reply
// text from the vendor's response shape. Adapters hold no per-conversation
// state and are safe for concurrent use.
package provider

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/YourPureAI/ai-api-connector/pkg/llm"
)

// Name identifies an upstream provider.
type Name string

const (
	OpenAI    Name = "openai"
	Anthropic Name = "anthropic"
	Google    Name = "google"
	Local     Name = "local"
)

// ErrNoMessages is returned by adapters when asked to send an empty history.
var ErrNoMessages = errors.New("no messages to send")

// ParseName normalizes s into a known provider name.
func ParseName(s string) (Name, bool) {
	switch n := Name(strings.ToLower(strings.TrimSpace(s))); n {
	case OpenAI, Anthropic, Google, Local:
		return n, true
	default:
		return "", false
	}
}

// DisplayName is the vendor name as shown to users.
func (n Name) DisplayName() string {
	switch n {
	case OpenAI:
		return "OpenAI"
	case Anthropic:
		return "Anthropic"
	case Google:
		return "Google"
	case Local:
		return "Local"
	default:
		return string(n)
	}
}

// RequiresCredential reports whether calls to the provider need an API key.
// Local model servers are reached without one.
func (n Name) RequiresCredential() bool {
	return n != Local
}

// Provider sends a conversation to one upstream LLM and returns its reply text.
type Provider interface {
	// Name returns the provider this adapter speaks for.
	Name() Name

	// Send performs a single upstream call. Failures are returned as
	// *UpstreamError; there is no retry.
	Send(ctx context.Context, messages []llm.Message, model string, credential string) (string, error)
}

// Registry maps provider names to adapters.
type Registry struct {
	providers map[Name]Provider
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[Name]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the adapter for p.Name().
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns the adapter registered for name.
func (r *Registry) Get(name Name) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []Name {
	names := make([]Name, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
