// Package llm wraps chat-completion access behind a small interface so
// agents can be tested with scripted models. The OpenAI-compatible adapter
// adds per-call timeouts, a token-bucket rate limit and a circuit breaker.
package llm

import "context"

// Role values for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// Client produces a completion for a conversation at a given temperature.
type Client interface {
	Complete(ctx context.Context, msgs []Message, temperature float32) (string, error)
}

// Func adapts a plain function to Client, mainly for tests.
type Func func(ctx context.Context, msgs []Message, temperature float32) (string, error)

func (f Func) Complete(ctx context.Context, msgs []Message, temperature float32) (string, error) {
	return f(ctx, msgs, temperature)
}
