// Package connector assembles the chat runtime from process configuration:
// provider adapters, the query service client, the settings source and the
// transcript store.
package connector

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/YourPureAI/ai-api-connector/pkg/chat"
	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider"
	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider/anthropic"
	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider/google"
	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider/ollama"
	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider/openai"
	"github.com/YourPureAI/ai-api-connector/pkg/merkle"
	"github.com/YourPureAI/ai-api-connector/pkg/query"
	"github.com/YourPureAI/ai-api-connector/pkg/settings"
	"github.com/YourPureAI/ai-api-connector/pkg/transcript"
)

// Runtime holds the long-lived collaborators of a chat process.
type Runtime struct {
	Providers *provider.Registry
	Query     *query.Client
	Settings  settings.Source
	Storer    merkle.Storer
	Recorder  *transcript.Recorder

	config Config
	file   *settings.FileSource
	logger *zap.Logger
}

// New builds a Runtime. The caller must Close it.
func New(config Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.QueryURL == "" {
		config.QueryURL = DefaultQueryURL
	}
	if config.LocalURL == "" {
		config.LocalURL = DefaultLocalURL
	}

	httpClient := &http.Client{}
	caller := provider.NewCaller(httpClient, config.Timeout, logger.Named("provider"))

	r := &Runtime{
		Providers: provider.NewRegistry(
			openai.New(config.OpenAIURL, caller),
			anthropic.New(config.AnthropicURL, caller),
			google.New(config.GoogleURL, caller),
			ollama.New(config.LocalURL, caller, ollama.WithKeepAlive(config.LocalKeepAlive)),
		),
		Query:  query.NewClient(config.QueryURL, httpClient, config.Timeout, logger.Named("query")),
		config: config,
		logger: logger,
	}

	if config.SettingsFile != "" {
		file, err := settings.NewFileSource(config.SettingsFile, logger.Named("settings"))
		if err != nil {
			return nil, fmt.Errorf("failed to load settings file: %w", err)
		}
		r.file = file
		r.Settings = file
		logger.Info("using settings file", zap.String("path", config.SettingsFile))
	} else {
		configURL := config.ConfigURL
		if configURL == "" {
			configURL = DefaultConfigURL
		}
		r.Settings = settings.NewHTTPSource(configURL, httpClient, 0)
		logger.Info("using configuration service", zap.String("url", configURL))
	}

	if config.DBPath != "" {
		storer, err := merkle.NewSQLiteStorer(config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		r.Storer = storer
		logger.Info("using SQLite transcript storage", zap.String("path", config.DBPath))
	} else {
		r.Storer = merkle.NewMemoryStorer()
		logger.Info("using in-memory transcript storage")
	}
	r.Recorder = transcript.NewRecorder(r.Storer, logger.Named("transcript"))

	return r, nil
}

// SessionConfig returns the base configuration for new chat sessions.
func (r *Runtime) SessionConfig() chat.Config {
	return chat.Config{
		Providers:  r.Providers,
		Dispatcher: r.Query,
		Settings:   r.Settings,
		Greeting:   r.config.Greeting,
		Recorder:   r.Recorder,
		Logger:     r.logger.Named("chat"),
	}
}

// NewManager returns a session manager whose sessions fetch their dispatch
// key from the query service.
func (r *Runtime) NewManager() *chat.Manager {
	return chat.NewManager(r.SessionConfig(), r.Query)
}

// NewSession creates a standalone session, fetching its dispatch key first.
func (r *Runtime) NewSession(ctx context.Context) *chat.Session {
	_, s := chat.NewManager(r.SessionConfig(), r.Query).Create(ctx)
	return s
}

// Watch keeps a file-backed settings source fresh until ctx is done. It
// returns immediately when settings come from the configuration service.
func (r *Runtime) Watch(ctx context.Context) error {
	if r.file == nil {
		return nil
	}
	return r.file.Watch(ctx)
}

// Close releases the transcript store.
func (r *Runtime) Close() error {
	return r.Storer.Close()
}
