// LLM Provider Factory - Ergonomic builder-first API for creating LLM providers.
//
// Quick Start:
//
//	// Simplest: use defaults, read API key from environment
//	openrouter := llm.ProviderOpenRouter.FromEnv()  // Uses openai/gpt-4o-mini
//	gemini := llm.ProviderGemini.FromEnv()          // Uses gemini-1.5-flash
//
//	// Full configuration
//	custom := llm.ProviderOpenRouter.
//	    Model("openai/gpt-4o").
//	    MaxTokens(2048).
//	    Temperature(0.3).
//	    FromEnv()
//
// A missing API key is not an error here: the provider is built anyway and
// reports a *ConfigurationError on first use. This keeps construction cheap
// and lets a process without credentials start up and fail only when the
// provider is actually exercised.

package llm

import (
	"fmt"
	"os"
	"strings"
)

// ProviderType represents supported LLM providers.
type ProviderType int

const (
	// ProviderOpenRouter is the OpenRouter provider (OpenAI-compatible models).
	ProviderOpenRouter ProviderType = iota
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini
	// ProviderAnthropic is the Anthropic provider (Claude models).
	ProviderAnthropic
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	switch p {
	case ProviderOpenRouter:
		return "openrouter"
	case ProviderGemini:
		return "gemini"
	case ProviderAnthropic:
		return "anthropic"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable name for this provider's API key.
func (p ProviderType) EnvVar() string {
	switch p {
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// DefaultModel returns the default model for this provider.
func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderOpenRouter:
		return ModelOpenRouterGPT4oMini
	case ProviderGemini:
		return ModelGeminiFlash15
	case ProviderAnthropic:
		return ModelAnthropicHaiku35
	default:
		return ""
	}
}

// ParseProviderType parses a provider from string (case-insensitive).
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(s) {
	case "openrouter":
		return ProviderOpenRouter, nil
	case "gemini", "google":
		return ProviderGemini, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// FromEnv creates a provider with defaults, reading the API key from the
// environment.
func (p ProviderType) FromEnv() Provider {
	return NewProviderBuilder(p).FromEnv()
}

// Model starts configuring this provider with a specific model.
func (p ProviderType) Model(model string) *ProviderBuilder {
	return NewProviderBuilder(p).Model(model)
}

// APIKey creates a provider with an explicit API key (uses defaults for
// everything else).
func (p ProviderType) APIKey(key string) Provider {
	return NewProviderBuilder(p).APIKey(key)
}

// ProviderBuilder is a builder for configuring LLM providers.
type ProviderBuilder struct {
	providerType ProviderType
	model        string
	maxTokens    uint32
	temperature  *float32
	topP         *float32
}

// NewProviderBuilder creates a new builder for the given provider.
func NewProviderBuilder(providerType ProviderType) *ProviderBuilder {
	return &ProviderBuilder{
		providerType: providerType,
	}
}

// Model sets the model to use.
func (b *ProviderBuilder) Model(model string) *ProviderBuilder {
	b.model = model
	return b
}

// MaxTokens sets maximum tokens for responses.
func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

// Temperature sets temperature (0.0 = deterministic, 1.0 = creative).
func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// TopP sets nucleus sampling probability mass.
func (b *ProviderBuilder) TopP(topP float32) *ProviderBuilder {
	b.topP = &topP
	return b
}

// FromEnv builds the provider, reading the API key from the environment.
// An unset variable is not an error; see the package note on lazy credentials.
func (b *ProviderBuilder) FromEnv() Provider {
	return b.build(os.Getenv(b.providerType.EnvVar()))
}

// APIKey builds the provider with an explicit API key.
func (b *ProviderBuilder) APIKey(key string) Provider {
	return b.build(key)
}

func (b *ProviderBuilder) build(apiKey string) Provider {
	model := b.model
	if model == "" {
		model = b.providerType.DefaultModel()
	}

	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	temperature := float32(0.7) // default
	if b.temperature != nil {
		temperature = *b.temperature
	}

	topP := float32(0.95) // default
	if b.topP != nil {
		topP = *b.topP
	}

	switch b.providerType {
	case ProviderGemini:
		return NewGeminiProvider(apiKey, model, maxTokens, temperature, topP)
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey, model, maxTokens, temperature, topP)
	default:
		return NewOpenRouterProvider(apiKey, model, maxTokens, temperature, topP)
	}
}
