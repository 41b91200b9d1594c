package llm

import "time"

// Role identifies the author of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role      Role      `json:"role"`               // "system", "user", "assistant"
	Content   string    `json:"content"`            // The message content
	Timestamp time.Time `json:"timestamp,omitzero"` // When the message was created (display only)
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now()}
}

// SystemText returns the content of the first system message, if any.
func SystemText(messages []Message) (string, bool) {
	for _, m := range messages {
		if m.Role == RoleSystem {
			return m.Content, true
		}
	}
	return "", false
}

// WithoutSystem returns the messages with every system message removed,
// preserving order.
func WithoutSystem(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}
