package llm

// ChatRequest represents a chat completion request (Ollama-compatible).
type ChatRequest struct {
	Model    string        `json:"model"`            // Model name (e.g., "llama3", "mistral")
	Messages []WireMessage `json:"messages"`         // Conversation history
	Stream   *bool         `json:"stream,omitempty"` // Ollama streams unless told otherwise

	// How long the server keeps the model loaded after the call ("5m", "-1")
	KeepAlive string `json:"keep_alive,omitempty"`
}

// WireMessage is the role/content pair sent over the wire. Timestamps are
// never sent upstream.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToWire converts messages to their role/content wire form, preserving order.
func ToWire(messages []Message) []WireMessage {
	out := make([]WireMessage, len(messages))
	for i, m := range messages {
		out[i] = WireMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}
