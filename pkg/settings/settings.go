// Package settings resolves which provider, model and credential the chat
// orchestrator uses for a turn. Settings are read from a Source before every
// turn so that edits made mid-session take effect on the next message.
package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider"
)

// DefaultModel is used when no agent model is configured.
const DefaultModel = "gpt-4"

// Settings mirrors the configuration service document.
type Settings struct {
	AgentProvider     string `json:"agentProvider" toml:"agentProvider" yaml:"agentProvider"`
	AgentModel        string `json:"agentModel" toml:"agentModel" yaml:"agentModel"`
	OpenAIAPIKey      string `json:"openaiApiKey" toml:"openaiApiKey" yaml:"openaiApiKey"`
	AnthropicAPIKey   string `json:"anthropicApiKey" toml:"anthropicApiKey" yaml:"anthropicApiKey"`
	GoogleAPIKey      string `json:"googleApiKey" toml:"googleApiKey" yaml:"googleApiKey"`
	EmbeddingProvider string `json:"embeddingProvider,omitempty" toml:"embeddingProvider" yaml:"embeddingProvider"`
	EmbeddingModel    string `json:"embeddingModel,omitempty" toml:"embeddingModel" yaml:"embeddingModel"`
	LogLevel          string `json:"logLevel,omitempty" toml:"logLevel" yaml:"logLevel"`
}

// Source loads the current settings.
type Source interface {
	Load(ctx context.Context) (Settings, error)
}

// ProviderConfig is the resolved selection for one turn.
type ProviderConfig struct {
	Provider   provider.Name
	Model      string
	Credential string
}

// String never includes the credential.
func (c ProviderConfig) String() string {
	return fmt.Sprintf("%s/%s", c.Provider, c.Model)
}

// Resolve picks the provider, model and credential. Missing values fall back
// to openai and DefaultModel; a missing credential for a provider that needs
// one is a *ConfigurationError.
func (s Settings) Resolve() (ProviderConfig, error) {
	raw := strings.TrimSpace(s.AgentProvider)
	if raw == "" {
		raw = string(provider.OpenAI)
	}
	name, ok := provider.ParseName(raw)
	if !ok {
		return ProviderConfig{}, NewConfigurationError(provider.Name(raw), "Unsupported LLM provider")
	}

	model := strings.TrimSpace(s.AgentModel)
	if model == "" {
		model = DefaultModel
	}

	credential := strings.TrimSpace(s.credential(name))
	if name.RequiresCredential() && credential == "" {
		return ProviderConfig{}, NewConfigurationError(name,
			fmt.Sprintf("%s API key not configured. Please add it in Settings.", name.DisplayName()))
	}

	return ProviderConfig{
		Provider:   name,
		Model:      model,
		Credential: credential,
	}, nil
}

func (s Settings) credential(name provider.Name) string {
	switch name {
	case provider.OpenAI:
		return s.OpenAIAPIKey
	case provider.Anthropic:
		return s.AnthropicAPIKey
	case provider.Google:
		return s.GoogleAPIKey
	default:
		return ""
	}
}

// StaticSource always returns the same settings, or Err when set.
type StaticSource struct {
	Settings Settings
	Err      error
}

// Load implements Source.
func (s StaticSource) Load(context.Context) (Settings, error) {
	if s.Err != nil {
		return Settings{}, s.Err
	}
	return s.Settings, nil
}
