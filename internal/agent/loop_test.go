package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/haasonsaas/agentcore/pkg/models"
)

type stubLoopProvider struct {
	supportsTools bool
	completeFunc  func(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (CompletionResult, error)
	streamFunc    func(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (<-chan StreamEvent, error)
}

func (s *stubLoopProvider) SupportsTools() bool { return s.supportsTools }

func (s *stubLoopProvider) Complete(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (CompletionResult, error) {
	return s.completeFunc(ctx, messages, tools)
}

func (s *stubLoopProvider) StreamWithTools(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (<-chan StreamEvent, error) {
	return s.streamFunc(ctx, messages, tools)
}

type echoTool struct {
	calls int
}

func (t *echoTool) Name() string        { return "echo" }
func (t *echoTool) Description() string { return "echoes its input" }
func (t *echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}}}`)
}
func (t *echoTool) Execute(ctx context.Context, arguments json.RawMessage) (*ToolResult, error) {
	t.calls++
	return &ToolResult{Content: string(arguments)}, nil
}

func TestLoop_CompletesWithoutToolCalls(t *testing.T) {
	registry := NewToolRegistry()
	provider := &stubLoopProvider{
		completeFunc: func(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (CompletionResult, error) {
			return CompletionResult{Text: "hello there"}, nil
		},
	}

	loop := NewLoop(provider, registry)
	result, err := loop.Run(context.Background(), []models.ChatMessage{models.NewUserMessage("hi")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello there" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if result.Iterations != 1 {
		t.Fatalf("expected 1 iteration, got %d", result.Iterations)
	}
	if result.ToolCallsMade != 0 {
		t.Fatalf("expected no tool calls, got %d", result.ToolCallsMade)
	}
}

func TestLoop_ExecutesToolCallThenCompletes(t *testing.T) {
	registry := NewToolRegistry()
	tool := &echoTool{}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register tool: %v", err)
	}

	calls := 0
	provider := &stubLoopProvider{
		supportsTools: true,
		completeFunc: func(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (CompletionResult, error) {
			calls++
			if calls == 1 {
				return CompletionResult{
					Text: "calling echo",
					ToolCalls: []models.ToolCall{
						{ID: "call-1", Name: "echo", Arguments: json.RawMessage(`{"text":"hi"}`)},
					},
				}, nil
			}
			// Second iteration: the tool result must have been appended
			// as a Tool message addressed to call-1.
			for _, m := range messages {
				if m.Role == models.RoleTool && m.ToolCallID == "call-1" {
					return CompletionResult{Text: "done: " + m.Text}, nil
				}
			}
			t.Fatal("expected a tool message for call-1 in the second iteration's history")
			return CompletionResult{}, nil
		},
	}

	loop := NewLoop(provider, registry)
	result, err := loop.Run(context.Background(), []models.ChatMessage{models.NewUserMessage("please echo hi")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Iterations != 2 {
		t.Fatalf("expected 2 iterations, got %d", result.Iterations)
	}
	if result.ToolCallsMade != 1 {
		t.Fatalf("expected 1 tool call, got %d", result.ToolCallsMade)
	}
	if tool.calls != 1 {
		t.Fatalf("expected the tool to execute exactly once, got %d", tool.calls)
	}
}

func TestLoop_TextEmbeddedToolCallFallback(t *testing.T) {
	registry := NewToolRegistry()
	tool := &echoTool{}
	_ = registry.Register(tool)

	calls := 0
	provider := &stubLoopProvider{
		supportsTools: false, // forces the text-embedded fallback path
		completeFunc: func(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (CompletionResult, error) {
			calls++
			if calls == 1 {
				return CompletionResult{
					Text: "Sure, let me do that.\n```tool_call\n{\"tool\":\"echo\",\"arguments\":{\"text\":\"hi\"}}\n```\nOne moment.",
				}, nil
			}
			return CompletionResult{Text: "all done"}, nil
		},
	}

	loop := NewLoop(provider, registry)
	result, err := loop.Run(context.Background(), []models.ChatMessage{models.NewUserMessage("echo hi please")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ToolCallsMade != 1 {
		t.Fatalf("expected the embedded tool call to be parsed and executed, got %d calls", result.ToolCallsMade)
	}
	if tool.calls != 1 {
		t.Fatalf("expected echo tool to run once, got %d", tool.calls)
	}
}

func TestLoop_BeforeToolCallHookCanBlock(t *testing.T) {
	registry := NewToolRegistry()
	tool := &echoTool{}
	_ = registry.Register(tool)

	provider := &stubLoopProvider{
		supportsTools: true,
		completeFunc: func(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (CompletionResult, error) {
			for _, m := range messages {
				if m.Role == models.RoleTool {
					if m.Text == "" {
						t.Fatal("expected a non-empty blocked-tool result message")
					}
					return CompletionResult{Text: "acknowledged"}, nil
				}
			}
			return CompletionResult{
				Text:      "calling echo",
				ToolCalls: []models.ToolCall{{ID: "call-1", Name: "echo", Arguments: json.RawMessage(`{}`)}},
			}, nil
		},
	}

	loop := NewLoop(provider, registry)
	loop.Hooks = &HookChain{
		Before: []BeforeToolCallHook{
			func(call models.ToolCall) (HookDecision, []byte, string) {
				return HookBlock, nil, "not allowed in this test"
			},
		},
	}

	_, err := loop.Run(context.Background(), []models.ChatMessage{models.NewUserMessage("echo hi")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tool.calls != 0 {
		t.Fatalf("expected the tool to never execute once blocked, got %d calls", tool.calls)
	}
}

func TestLoop_ContextWindowErrorIsDistinctResult(t *testing.T) {
	registry := NewToolRegistry()
	provider := &stubLoopProvider{
		completeFunc: func(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (CompletionResult, error) {
			return CompletionResult{}, &contextWindowStub{}
		},
	}

	loop := NewLoop(provider, registry)
	_, err := loop.Run(context.Background(), []models.ChatMessage{models.NewUserMessage("hi")})

	var cwErr *ContextWindowExceededError
	if !errors.As(err, &cwErr) {
		t.Fatalf("expected a ContextWindowExceededError, got %v", err)
	}
}

type contextWindowStub struct{}

func (e *contextWindowStub) Error() string     { return "anthropic[context_window]: too many tokens" }
func (e *contextWindowStub) ErrorKind() string { return "context_window" }

func TestLoop_ExceedsMaxIterations(t *testing.T) {
	registry := NewToolRegistry()
	tool := &echoTool{}
	_ = registry.Register(tool)

	provider := &stubLoopProvider{
		supportsTools: true,
		completeFunc: func(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (CompletionResult, error) {
			return CompletionResult{
				Text:      "again",
				ToolCalls: []models.ToolCall{{ID: "call-loop", Name: "echo", Arguments: json.RawMessage(`{}`)}},
			}, nil
		},
	}

	loop := NewLoop(provider, registry)
	_, err := loop.Run(context.Background(), []models.ChatMessage{models.NewUserMessage("loop forever")})
	if err == nil {
		t.Fatal("expected an error once MAX_ITERATIONS is exceeded")
	}
}
