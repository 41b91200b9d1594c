package connector

import "time"

// Config is the process-level configuration shared by every command.
type Config struct {
	// QueryURL is the query service root serving /query and /test-key.
	QueryURL string

	// ConfigURL is the configuration service root serving /config. Ignored
	// when SettingsFile is set.
	ConfigURL string

	// SettingsFile is an optional TOML, YAML or JSON settings file.
	SettingsFile string

	// Provider base URLs. Empty values use each adapter's public default.
	OpenAIURL    string
	AnthropicURL string
	GoogleURL    string
	LocalURL     string

	// LocalKeepAlive is passed to the local server as keep_alive when set.
	LocalKeepAlive string

	// Timeout bounds each provider and query service call.
	Timeout time.Duration

	// DBPath is the path to the SQLite transcript database.
	// Use ":memory:" for an in-memory database, or empty for in-memory.
	DBPath string

	// Greeting overrides the opening assistant message.
	Greeting string
}

const (
	DefaultQueryURL  = "http://localhost:8000/api/v1/query"
	DefaultConfigURL = "http://localhost:8000/api/v1"
	DefaultLocalURL  = "http://localhost:11434"
	DefaultTimeout   = 60 * time.Second
)
