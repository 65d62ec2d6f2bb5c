// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Streaming via official SDK

package llm

import (
	"context"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	topP        float64
	confErr     error // Missing credential, reported on first use
}

// NewAnthropicProvider creates a new Anthropic provider.
// An empty apiKey is accepted; the missing credential is reported as a
// *ConfigurationError on first use.
func NewAnthropicProvider(apiKey, model string, maxTokens uint32, temperature, topP float32) *AnthropicProvider {
	p := &AnthropicProvider{
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
		topP:        float64(topP),
	}

	if apiKey == "" {
		p.confErr = &ConfigurationError{Provider: "anthropic", EnvVar: "ANTHROPIC_API_KEY"}
		return p
	}

	p.client = anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return p
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the current model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

func (p *AnthropicProvider) messageParams(messages []ChatMessage) anthropic.MessageNewParams {
	anthropicMessages, systemPrompt := convertToAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Messages:    anthropicMessages,
		Temperature: anthropic.Float(p.temperature),
		TopP:        anthropic.Float(p.topP),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}
	return params
}

// Chat sends a chat completion request.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	if p.confErr != nil {
		return "", p.confErr
	}

	message, err := p.client.Messages.New(ctx, p.messageParams(messages))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	var content string
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += text.Text
		}
	}
	return content, nil
}

// StreamChat starts a streaming chat completion.
func (p *AnthropicProvider) StreamChat(ctx context.Context, messages []ChatMessage) (*Stream, error) {
	if p.confErr != nil {
		return nil, p.confErr
	}

	stream := p.client.Messages.NewStreaming(ctx, p.messageParams(messages))

	// Events that carry no text (message start, usage deltas) are skipped.
	pull := func() (string, error) {
		for stream.Next() {
			event := stream.Current()
			if eventVariant, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if deltaVariant, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok {
					if deltaVariant.Text != "" {
						return deltaVariant.Text, nil
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			return "", fmt.Errorf("stream error: %w", err)
		}
		return "", io.EOF
	}

	return NewStream(pull, stream.Close), nil
}

// convertToAnthropicMessages converts our ChatMessage to Anthropic format.
// Extracts the system message and returns it separately.
func convertToAnthropicMessages(messages []ChatMessage) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemPrompt = msg.Content
		case "user":
			anthropicMessages = append(anthropicMessages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case "assistant":
			anthropicMessages = append(anthropicMessages,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return anthropicMessages, systemPrompt
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
