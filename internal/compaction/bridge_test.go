package compaction

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/agentcore/pkg/models"
)

func TestFromChatMessages(t *testing.T) {
	history := []models.ChatMessage{
		models.NewUserMessage("hello"),
		models.NewAssistantMessage("calling a tool", []models.ToolCall{
			{ID: "call-1", Name: "echo", Arguments: json.RawMessage(`{"x":1}`)},
		}),
		models.NewToolMessage("call-1", "tool output"),
	}

	out := FromChatMessages(history)
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	if out[0].Content != "hello" || out[0].Role != "user" {
		t.Errorf("unexpected first message: %+v", out[0])
	}
	if out[1].ToolCalls == "" {
		t.Error("expected serialized tool calls on the assistant message")
	}
	if out[2].ToolResults != "tool output" {
		t.Errorf("expected tool result content, got %q", out[2].ToolResults)
	}
}

func TestProviderSummarizer_GenerateSummary(t *testing.T) {
	var gotPrompt string
	summarizer := NewSummarizer(func(ctx context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "a short summary", nil
	})

	messages := []*Message{{Role: "user", Content: "long ago"}}
	summary, err := summarizer.GenerateSummary(context.Background(), messages, DefaultSummarizationConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "a short summary" {
		t.Fatalf("unexpected summary: %q", summary)
	}
	if gotPrompt == "" {
		t.Error("expected a non-empty prompt to be built for the summarizer")
	}
}
