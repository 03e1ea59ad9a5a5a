// Package llm is the analyst client: it sends market context to a
// configured LLM provider and returns the raw completion text. Nothing
// here interprets the response; that is the parser's job.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Provider represents the LLM provider type
type Provider string

const (
	ProviderClaude      Provider = "claude"
	ProviderOpenAI      Provider = "openai"
	ProviderDeepSeek    Provider = "deepseek"
	ProviderSiliconFlow Provider = "siliconflow"
	ProviderNvidia      Provider = "nvidia"
)

// Endpoints for the OpenAI-compatible providers.
var openAICompatibleURLs = map[Provider]string{
	ProviderOpenAI:      "https://api.openai.com/v1/chat/completions",
	ProviderDeepSeek:    "https://api.deepseek.com/v1/chat/completions",
	ProviderSiliconFlow: "https://api.siliconflow.cn/v1/chat/completions",
	ProviderNvidia:      "https://integrate.api.nvidia.com/v1/chat/completions",
}

// ClientConfig holds LLM client configuration
type ClientConfig struct {
	Provider    Provider      `json:"provider"`
	APIKey      string        `json:"api_key"`
	Model       string        `json:"model"`
	BaseURL     string        `json:"base_url,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
	MaxRetries  int           `json:"max_retries"`
}

// DefaultClientConfig returns default configuration
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Provider:    ProviderSiliconFlow,
		Model:       "deepseek-ai/DeepSeek-V3",
		MaxTokens:   4096,
		Temperature: 0.3,
		Timeout:     60 * time.Second,
		MaxRetries:  3,
	}
}

// Client is the LLM API client
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new LLM client
func NewClient(config *ClientConfig, logger zerolog.Logger) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClaudeRequest represents a Claude API request
type ClaudeRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
}

// ClaudeResponse represents a Claude API response
type ClaudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAIRequest represents an OpenAI-compatible API request
type OpenAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// OpenAIResponse represents an OpenAI-compatible API response
type OpenAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a completion request to the configured provider.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.config.Provider == ProviderClaude {
		return c.completeClaude(ctx, systemPrompt, userPrompt)
	}
	return c.completeOpenAICompatible(ctx, systemPrompt, userPrompt)
}

// CompleteWithRetry retries transient completion failures with a linear
// backoff. Context cancellation stops the retry loop immediately.
func (c *Client) CompleteWithRetry(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	retries := c.config.MaxRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		text, err := c.Complete(ctx, systemPrompt, userPrompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_retries", retries).
			Msg("LLM completion failed")

		if attempt < retries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}
	}
	return "", fmt.Errorf("completion failed after %d attempts: %w", retries, lastErr)
}

func (c *Client) completeClaude(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := ClaudeRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		System:      systemPrompt,
		Messages: []Message{
			{Role: "user", Content: userPrompt},
		},
	}

	url := c.config.BaseURL
	if url == "" {
		url = "https://api.anthropic.com/v1/messages"
	}

	respBody, err := c.post(ctx, url, req, map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var claudeResp ClaudeResponse
	if err := json.Unmarshal(respBody, &claudeResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if claudeResp.Error != nil {
		return "", fmt.Errorf("API error: %s - %s", claudeResp.Error.Type, claudeResp.Error.Message)
	}
	if len(claudeResp.Content) == 0 {
		return "", fmt.Errorf("empty response from provider")
	}
	return claudeResp.Content[0].Text, nil
}

func (c *Client) completeOpenAICompatible(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	url := c.config.BaseURL
	if url == "" {
		var ok bool
		url, ok = openAICompatibleURLs[c.config.Provider]
		if !ok {
			return "", fmt.Errorf("unsupported provider: %s", c.config.Provider)
		}
	}

	req := OpenAIRequest{
		Model: c.config.Model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	respBody, err := c.post(ctx, url, req, map[string]string{
		"Authorization": "Bearer " + c.config.APIKey,
	})
	if err != nil {
		return "", err
	}

	var openAIResp OpenAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if openAIResp.Error != nil {
		return "", fmt.Errorf("API error: %s - %s", openAIResp.Error.Type, openAIResp.Error.Message)
	}
	if len(openAIResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from provider")
	}
	return openAIResp.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, url string, payload interface{}, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return respBody, nil
}

// GetProvider returns the configured provider
func (c *Client) GetProvider() Provider {
	return c.config.Provider
}

// IsConfigured checks if the client is properly configured
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}
