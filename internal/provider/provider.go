// Package provider implements the LLM client used by the deep-mode planner
// and the conversational responder.
package provider

import (
	"context"
)

// ChatProvider is the interface for LLM API clients.
type ChatProvider interface {
	// Chat sends a completion request and returns the response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// TokenSource supplies the bearer token for API calls. Refresh is invoked
// once when the provider sees a 401, then the request is retried.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for plain API keys, which cannot be refreshed.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error)   { return string(t), nil }
func (t StaticToken) Refresh(context.Context) (string, error) { return string(t), nil }

// ChatRequest contains the parameters for a chat completion request.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// ChatResponse contains the response from a chat completion request.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
