// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a consistent interface for chat completions.
//
// Credentials are checked lazily: constructing a provider with a missing
// API key succeeds, and the first call returns a *ConfigurationError.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends a chat completion request and returns the full response text.
	Chat(ctx context.Context, messages []ChatMessage) (string, error)

	// StreamChat starts a streaming chat completion. The returned Stream
	// yields text deltas as the upstream produces them; nothing is buffered
	// ahead of the caller's pulls.
	StreamChat(ctx context.Context, messages []ChatMessage) (*Stream, error)
}
