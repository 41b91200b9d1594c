package chat

import (
	"github.com/YourPureAI/ai-api-connector/pkg/llm"
)

// Conversation is the ordered message history of one session. The system
// prompt, when present, is always the first message.
type Conversation struct {
	messages []llm.Message
}

// NewConversation starts a history with the system prompt (if non-empty)
// followed by an assistant greeting (if non-empty).
func NewConversation(systemPrompt, greeting string) *Conversation {
	c := &Conversation{}
	c.reset(systemPrompt, greeting)
	return c
}

func (c *Conversation) reset(systemPrompt, greeting string) {
	c.messages = c.messages[:0:0]
	if systemPrompt != "" {
		c.messages = append(c.messages, llm.NewMessage(llm.RoleSystem, systemPrompt))
	}
	if greeting != "" {
		c.messages = append(c.messages, llm.NewMessage(llm.RoleAssistant, greeting))
	}
}

// Append adds m to the end of the history.
func (c *Conversation) Append(m llm.Message) {
	c.messages = append(c.messages, m)
}

// Len returns the number of messages, including the system prompt.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Messages returns a copy of the full history.
func (c *Conversation) Messages() []llm.Message {
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Visible returns a copy of the history without the system prompt.
func (c *Conversation) Visible() []llm.Message {
	return llm.WithoutSystem(c.messages)
}
