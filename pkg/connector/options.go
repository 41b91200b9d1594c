package connector

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/YourPureAI/ai-api-connector/pkg/logger"
)

// Options are the flags shared by every command.
type Options struct {
	Config    Config
	Debug     bool
	LogLevel  string
	LogFormat string
}

// RegisterFlags binds the options to fs.
func (o *Options) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Config.QueryURL, "query-url", DefaultQueryURL, "Query service URL (serves /query and /test-key)")
	fs.StringVar(&o.Config.ConfigURL, "config-url", DefaultConfigURL, "Configuration service URL (serves /config)")
	fs.StringVar(&o.Config.SettingsFile, "settings", "", "Settings file (.toml, .yaml or .json) used instead of the configuration service")
	fs.StringVar(&o.Config.OpenAIURL, "openai-url", "", "OpenAI API base URL")
	fs.StringVar(&o.Config.AnthropicURL, "anthropic-url", "", "Anthropic API base URL")
	fs.StringVar(&o.Config.GoogleURL, "google-url", "", "Google Generative Language API base URL")
	fs.StringVar(&o.Config.LocalURL, "local-url", DefaultLocalURL, "Local Ollama-compatible server URL")
	fs.StringVar(&o.Config.LocalKeepAlive, "local-keep-alive", "", "How long the local server keeps the model loaded (e.g. 10m, -1)")
	fs.DurationVar(&o.Config.Timeout, "timeout", DefaultTimeout, "Timeout for each provider and query service call")
	fs.StringVar(&o.Config.DBPath, "db", "", "Path to SQLite transcript database (default: in-memory)")
	fs.BoolVar(&o.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&o.LogLevel, "log-level", "info", "Log level (debug or info); --debug wins")
	fs.StringVar(&o.LogFormat, "log-format", "console", "Log format: console or json")
}

// Logger builds the process logger from the options.
func (o *Options) Logger() (*zap.Logger, error) {
	debug := o.Debug || logger.ParseLevel(o.LogLevel)
	switch o.LogFormat {
	case "", "console":
		return logger.NewLogger(debug), nil
	case "json":
		return logger.NewJSONLogger(debug), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", o.LogFormat)
	}
}
