package chat

// SystemPrompt tells the model how to ask for external data.
const SystemPrompt = `You are a helpful AI assistant. When a user asks for information that you don't have direct access to (like weather data, calendar events, or other external data), you should recognize this and indicate that you need to fetch this data from an external source.

When you need external data, respond with a JSON object in this format:
{
  "need_external_data": true,
  "query": "natural language description of what data is needed"
}

Otherwise, respond normally to the user's question.`

const (
	// Greeting opens every new session.
	Greeting = "Hello! I'm your AI assistant. I can help you access data through your configured connectors. Try asking me for information!"

	// ResetGreeting replaces the history after Reset.
	ResetGreeting = "Chat history cleared. How can I help you?"

	errorPrefix       = "Sorry, I encountered an error: "
	dispatchFailure   = "I tried to fetch that information, but encountered an error: "
	fallbackPrefix    = "I successfully retrieved the data:\n\n"
	formatInstruction = "The external API returned this data: %s. Please format this information in a user-friendly, natural language way to answer my original question."
)
