// Package providers talks to OpenAI-compatible chat endpoints, including a
// running toolbridge gateway.
package providers

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// Provider is the chat client interface
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	Model        string        `json:"model"`
	Messages     []Message     `json:"messages"`
	Tools        []openai.Tool `json:"tools,omitempty"`
	MaxTokens    int           `json:"max_tokens,omitempty"`
	Temperature  float64       `json:"temperature,omitempty"`
	SystemPrompt string        `json:"-"`
}

type ChatResponse struct {
	ID         string     `json:"id"`
	Model      string     `json:"model"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	Usage      Usage      `json:"usage"`
	StopReason string     `json:"stop_reason"`
	// ToolUsed is reported by a toolbridge gateway in the X-Tool-Used header.
	ToolUsed string `json:"tool_used,omitempty"`
}

type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
