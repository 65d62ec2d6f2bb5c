// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - System instruction handling via config
// - Streaming adapted from the SDK iterator to the pull-based Stream

package llm

import (
	"context"
	"fmt"
	"io"
	"iter"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	topP        float32
	initErr     error // Stores client initialization error for deferred reporting
}

// NewGeminiProvider creates a new Gemini provider.
// If the API key is missing or client initialization fails, the error is
// stored and returned on first use.
func NewGeminiProvider(apiKey, model string, maxTokens uint32, temperature, topP float32) *GeminiProvider {
	p := &GeminiProvider{
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
		topP:        topP,
	}

	if apiKey == "" {
		p.initErr = &ConfigurationError{Provider: "gemini", EnvVar: "GEMINI_API_KEY"}
		return p
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		p.initErr = fmt.Errorf("failed to initialize Gemini client: %w", err)
		return p
	}

	p.client = client
	return p
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the current model.
func (p *GeminiProvider) Model() string {
	return p.model
}

func (p *GeminiProvider) generateConfig(systemInstruction string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		TopP:            genai.Ptr(p.topP),
		MaxOutputTokens: p.maxTokens,
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}
	return config
}

// Chat sends a chat completion request.
func (p *GeminiProvider) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	if p.initErr != nil {
		return "", p.initErr
	}

	contents, systemInstruction := convertToGeminiMessages(messages)

	response, err := p.client.Models.GenerateContent(ctx, p.model, contents, p.generateConfig(systemInstruction))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	content := response.Text()
	if content == "" {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return content, nil
}

// StreamChat starts a streaming chat completion.
func (p *GeminiProvider) StreamChat(ctx context.Context, messages []ChatMessage) (*Stream, error) {
	if p.initErr != nil {
		return nil, p.initErr
	}

	contents, systemInstruction := convertToGeminiMessages(messages)

	// GenerateContentStream returns iter.Seq2[*GenerateContentResponse, error];
	// iter.Pull2 turns the push iterator into the pull shape Stream needs.
	next, stop := iter.Pull2(
		p.client.Models.GenerateContentStream(ctx, p.model, contents, p.generateConfig(systemInstruction)))

	pull := func() (string, error) {
		for {
			response, err, ok := next()
			if !ok {
				return "", io.EOF
			}
			if err != nil {
				return "", fmt.Errorf("stream error: %w", err)
			}
			if text := response.Text(); text != "" {
				return text, nil
			}
		}
	}
	release := func() error {
		stop()
		return nil
	}

	return NewStream(pull, release), nil
}

// convertToGeminiMessages converts our ChatMessage to Gemini format.
// Extracts the system message and returns it separately.
func convertToGeminiMessages(messages []ChatMessage) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemInstruction string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemInstruction = msg.Content
		case "user":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}

	return contents, systemInstruction
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
