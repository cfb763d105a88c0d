package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ChatCompleter is the single method we need from an OpenAI-compatible
// backend, satisfied by *openai.Client and by stubs in tests.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient calls an OpenAI-compatible chat endpoint with a fixed model
// and per-call timeout.
type OpenAIClient struct {
	inner   ChatCompleter
	model   string
	timeout time.Duration
}

// NewOpenAIClient builds a client for baseURL (empty for api.openai.com).
func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIClient{
		inner:   openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// NewOpenAIClientWith wraps an existing backend, mainly for tests.
func NewOpenAIClientWith(inner ChatCompleter, model string, timeout time.Duration) *OpenAIClient {
	return &OpenAIClient{inner: inner, model: model, timeout: timeout}
}

func (c *OpenAIClient) Complete(ctx context.Context, msgs []Message, temperature float32) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	resp, err := c.inner.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
