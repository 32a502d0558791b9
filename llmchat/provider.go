// Package llmchat provides the chat-completion seam used by the fact
// extractor, memory updater, and layer generator — everywhere the spec
// calls for "an LLM" to turn text into structured JSON. Grounded on the
// teacher's llm.Provider interface (llm/provider.go), trimmed to the
// synchronous single-shot completion this engine actually needs (no
// streaming, no tool calling: the core never dispatches tools).
package llmchat

import (
	"context"
	"time"
)

// Role mirrors types.Role for chat messages sent to the provider.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat-completion request.
type Message struct {
	Role    Role
	Content string
}

// Request is a synchronous chat-completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Response is a synchronous chat-completion response.
type Response struct {
	Content      string
	Model        string
	FinishReason string
	PromptTokens int
	OutputTokens int
}

// Provider is the unified chat-completion seam. Dynamic dispatch on the
// concrete LLM backend is confined to this interface (spec §9).
type Provider interface {
	// Complete sends a synchronous chat request and returns the model's
	// text response.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Name returns the provider's identifier, used in logs and metrics.
	Name() string
}
