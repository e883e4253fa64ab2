package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/haasonsaas/agentcore/pkg/models"
)

func TestLoop_RunCompacting_CompactsOnContextWindowError(t *testing.T) {
	registry := NewToolRegistry()

	attempt := 0
	provider := &stubLoopProvider{
		completeFunc: func(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (CompletionResult, error) {
			attempt++
			if attempt == 1 {
				return CompletionResult{}, &contextWindowStub{}
			}
			if attempt == 2 {
				// summarization call: the prompt is the lone user message.
				if len(messages) != 1 || messages[0].Role != models.RoleUser {
					t.Fatalf("expected a single summarization prompt, got %+v", messages)
				}
				return CompletionResult{Text: "compacted summary"}, nil
			}
			// retried turn: history should now start with a system summary.
			if len(messages) == 0 || messages[0].Role != models.RoleSystem {
				t.Fatalf("expected history to lead with a summary message, got %+v", messages)
			}
			if !strings.Contains(messages[0].Text, "compacted summary") {
				t.Fatalf("expected summary content in system message, got %q", messages[0].Text)
			}
			return CompletionResult{Text: "done after compaction"}, nil
		},
	}

	loop := NewLoop(provider, registry)

	history := make([]models.ChatMessage, 0, 20)
	for i := 0; i < 20; i++ {
		history = append(history, models.NewUserMessage(strings.Repeat("x", 500)))
	}

	result, err := loop.RunCompactingWithWindow(context.Background(), history, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "done after compaction" {
		t.Fatalf("unexpected result text: %q", result.Text)
	}
	if attempt != 3 {
		t.Fatalf("expected 3 provider calls (fail, summarize, retry), got %d", attempt)
	}
}

func TestLoop_RunCompacting_PassesThroughOtherErrors(t *testing.T) {
	registry := NewToolRegistry()
	provider := &stubLoopProvider{
		completeFunc: func(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (CompletionResult, error) {
			return CompletionResult{}, errUnrelated
		},
	}

	loop := NewLoop(provider, registry)
	_, err := loop.RunCompacting(context.Background(), []models.ChatMessage{models.NewUserMessage("hi")})
	if err == nil {
		t.Fatal("expected an error to propagate")
	}
}

var errUnrelated = &mockErr{"boom"}

type mockErr struct{ msg string }

func (e *mockErr) Error() string { return e.msg }
