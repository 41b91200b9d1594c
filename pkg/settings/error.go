package settings

import (
	"errors"

	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider"
)

// ErrConfiguration matches any *ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("configuration error")

// NotLoadedMessage is shown when no settings could be read at all.
const NotLoadedMessage = "Configuration not loaded. Please configure your LLM settings first."

// ConfigurationError reports settings that cannot drive a provider call.
// It is always raised before any network call to a provider.
type ConfigurationError struct {
	Provider provider.Name
	Message  string
	Err      error
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is allows comparison with the ErrConfiguration sentinel.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(name provider.Name, message string) *ConfigurationError {
	return &ConfigurationError{Provider: name, Message: message}
}

// NotLoaded wraps a Source failure.
func NotLoaded(err error) *ConfigurationError {
	return &ConfigurationError{Message: NotLoadedMessage, Err: err}
}
