// OpenRouter Provider implementation.
//
// Information Hiding:
// - Uses OpenAI-compatible API at the OpenRouter base URL
// - Attribution headers (HTTP-Referer, X-Title) injected on every request
// - Non-streaming completions via go-openai library
// - Streaming via a direct SSE decode of the completions endpoint, so that
//   malformed frames can be skipped instead of aborting the stream

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	openRouterReferer = "https://studybuddy.works"
	openRouterTitle   = "StudyBuddy AI Tutor"
)

// attributionTransport adds the OpenRouter attribution headers to every request.
type attributionTransport struct {
	base http.RoundTripper
}

func (t attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("HTTP-Referer", openRouterReferer)
	req.Header.Set("X-Title", openRouterTitle)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// OpenRouterProvider implements the Provider interface for OpenRouter.
type OpenRouterProvider struct {
	client      *openai.Client
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float32
	topP        float32
}

// NewOpenRouterProvider creates a new OpenRouter provider.
// An empty apiKey is accepted; the missing credential is reported as a
// *ConfigurationError on first use.
func NewOpenRouterProvider(apiKey, model string, maxTokens uint32, temperature, topP float32) *OpenRouterProvider {
	httpClient := &http.Client{Transport: attributionTransport{}}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = openRouterBaseURL
	config.HTTPClient = httpClient

	return &OpenRouterProvider{
		client:      openai.NewClientWithConfig(config),
		httpClient:  httpClient,
		apiKey:      apiKey,
		baseURL:     openRouterBaseURL,
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
		topP:        topP,
	}
}

// Name returns the provider name.
func (p *OpenRouterProvider) Name() string {
	return "openrouter"
}

// Model returns the current model.
func (p *OpenRouterProvider) Model() string {
	return p.model
}

func (p *OpenRouterProvider) checkKey() error {
	if p.apiKey == "" {
		return &ConfigurationError{Provider: "openrouter", EnvVar: "OPENROUTER_API_KEY"}
	}
	return nil
}

// Chat sends a chat completion request.
func (p *OpenRouterProvider) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	if err := p.checkKey(); err != nil {
		return "", err
	}

	req := openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            convertMessages(messages),
		MaxCompletionTokens: p.maxTokens,
		Temperature:         p.temperature,
		TopP:                p.topP,
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &ProviderError{
				Provider:   "openrouter",
				StatusCode: apiErr.HTTPStatusCode,
				Body:       apiErr.Message,
			}
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// orChatRequest is the streaming request body for the completions endpoint.
type orChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	TopP        float32       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// orStreamChunk is one SSE frame of a streamed completion.
type orStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamChat starts a streaming chat completion. The returned Stream pulls
// one delta per SSE frame; frames that are not valid JSON and the [DONE]
// sentinel are skipped.
func (p *OpenRouterProvider) StreamChat(ctx context.Context, messages []ChatMessage) (*Stream, error) {
	if err := p.checkKey(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(orChatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.temperature,
		TopP:        p.topP,
		MaxTokens:   p.maxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &ProviderError{
			Provider:   "openrouter",
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	reader := bufio.NewReader(resp.Body)
	pull := func() (string, error) {
		for {
			line, err := reader.ReadString('\n')
			if data, ok := strings.CutPrefix(strings.TrimRight(line, "\r\n"), "data: "); ok && data != "[DONE]" {
				var chunk orStreamChunk
				// Frames that fail to decode are skipped, not surfaced.
				if jsonErr := json.Unmarshal([]byte(data), &chunk); jsonErr == nil {
					if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
						return chunk.Choices[0].Delta.Content, nil
					}
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return "", io.EOF
				}
				return "", fmt.Errorf("stream read failed: %w", err)
			}
		}
	}

	return NewStream(pull, resp.Body.Close), nil
}

// convertMessages converts our ChatMessage to openai.ChatCompletionMessage
func convertMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		result[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return result
}

// Verify OpenRouterProvider implements Provider
var _ Provider = (*OpenRouterProvider)(nil)
