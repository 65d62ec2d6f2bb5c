// Package llm provides shared data models for LLM providers.
package llm

// Default models per provider.
const (
	// ModelOpenRouterGPT4oMini is the default OpenRouter model.
	ModelOpenRouterGPT4oMini = "openai/gpt-4o-mini"
	// ModelGeminiFlash15 is the default Gemini model.
	ModelGeminiFlash15 = "gemini-1.5-flash"
	// ModelAnthropicHaiku35 is the default Anthropic model.
	ModelAnthropicHaiku35 = "claude-3-5-haiku-latest"
)

// ChatMessage represents a chat message with role and content.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "system",
		Content: content,
	}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "user",
		Content: content,
	}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "assistant",
		Content: content,
	}
}
