package llm

import "time"

// ChatResponse represents a chat completion response (Ollama-compatible).
type ChatResponse struct {
	Model     string      `json:"model"`      // Model that generated the response
	CreatedAt time.Time   `json:"created_at"` // Response timestamp
	Message   WireMessage `json:"message"`    // The assistant's response
	Done      bool        `json:"done"`       // Whether generation is complete

	// Metrics (only present when done=true)
	TotalDuration   int64 `json:"total_duration,omitempty"`    // Total time in nanoseconds
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"` // Tokens in prompt
	EvalCount       int   `json:"eval_count,omitempty"`        // Generated tokens
}
