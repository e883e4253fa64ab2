// Package providers defines the provider contract (spec.md §4.3) and the
// concrete backends that implement it: Anthropic, OpenAI (Chat Completions
// and Responses API), Gemini, Bedrock, and Ollama.
package providers

import (
	"context"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// Provider is the contract every LLM backend must satisfy. Implementations
// must be safe for concurrent use: the failover chain and the agent loop may
// both call Complete/Stream for the same Provider value from different
// goroutines.
type Provider interface {
	// Name is the provider label used for telemetry and failover affinity
	// (spec.md §4.7). It may be an alias distinct from the wire API name.
	Name() string

	// ID is the selected model identifier, e.g. "claude-sonnet-4-20250514".
	ID() string

	// ContextWindow is the model's input token capacity, used for proactive
	// compaction decisions upstream of the provider.
	ContextWindow() int

	// SupportsTools reports whether tool schemas may be sent on the wire.
	// When false, callers must not pass non-empty schemas to Complete/Stream.
	SupportsTools() bool

	// SupportsVision reports whether image content parts are honored.
	SupportsVision() bool

	// Complete performs a non-streaming completion.
	Complete(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (*CompletionResult, error)

	// Stream performs a streaming completion without tool support, emitting
	// normalized StreamEvent values on the returned channel. The channel is
	// closed after an EventDone or EventError is sent.
	Stream(ctx context.Context, messages []models.ChatMessage) (<-chan agent.StreamEvent, error)

	// StreamWithTools performs a streaming completion with tool schemas.
	// DefaultStreamWithTools (base.go) is a fallback that calls Stream and
	// ignores tools, for providers that only need non-streaming tool support.
	StreamWithTools(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (<-chan agent.StreamEvent, error)
}

// CompletionResult is what a non-streaming Complete call returns.
type CompletionResult struct {
	Text      string
	ToolCalls []models.ToolCall
	Usage     models.Usage
}
