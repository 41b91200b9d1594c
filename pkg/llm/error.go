// Package llm provides the provider-neutral representations of chat messages
// and the Ollama-compatible wire types used to talk to a local model server.
package llm

// ErrorResponse represents an error returned over HTTP.
type ErrorResponse struct {
	Error string `json:"error"`
}
