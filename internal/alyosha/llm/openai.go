package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.deepseek.com/v1"
	defaultModel   = "deepseek-chat"
	defaultTimeout = 60 * time.Second

	// classifyTemperature keeps label answers deterministic enough to parse.
	classifyTemperature = 0.1
	classifyMaxTokens   = 16
)

// Config configures the OpenAI-compatible provider.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Works against DeepSeek, OpenAI,
	// Ollama, or any other OpenAI-compatible endpoint.
	// Defaults to https://api.deepseek.com/v1 when empty.
	BaseURL string

	// Model is the chat model to use. Defaults to deepseek-chat when empty.
	Model string

	// Timeout is the HTTP request timeout. Defaults to 60 s.
	Timeout time.Duration
}

// OpenAIProvider implements Provider using an OpenAI-compatible chat
// completions API.
type OpenAIProvider struct {
	cfg    Config
	client *http.Client
}

// NewOpenAIProvider returns a Provider backed by an OpenAI-compatible chat
// API. The returned provider is safe for concurrent use.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Complete generates a conversational reply from the instruction block and
// the prior turns.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]chatMessage, 0, len(req.Turns)+1)
	messages = append(messages, chatMessage{Role: "system", Content: req.System})
	for _, t := range req.Turns {
		messages = append(messages, chatMessage{Role: t.Role, Content: t.Content})
	}
	return p.call(ctx, chatRequest{
		Model:       p.cfg.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
}

// Classify answers an instruction prompt with a short label.
func (p *OpenAIProvider) Classify(ctx context.Context, prompt string) (string, error) {
	return p.call(ctx, chatRequest{
		Model:       p.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: classifyTemperature,
		MaxTokens:   classifyMaxTokens,
	})
}

func (p *OpenAIProvider) call(ctx context.Context, body chatRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("llm: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return "", ErrRateLimit
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read response body: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("llm: decode API response: %w", err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("llm: API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices returned (HTTP %d)", resp.StatusCode)
	}

	return parsed.Choices[0].Message.Content, nil
}

// Compile-time interface satisfaction check.
var _ Provider = (*OpenAIProvider)(nil)
