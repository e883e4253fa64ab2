package failover

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/providers"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type stubProvider struct {
	name    string
	results []*providers.CompletionResult
	errs    []error
	calls   int

	events []agent.StreamEvent
	strErr error
}

func (s *stubProvider) Name() string          { return s.name }
func (s *stubProvider) ID() string            { return s.name }
func (s *stubProvider) ContextWindow() int    { return 1000 }
func (s *stubProvider) SupportsTools() bool   { return true }
func (s *stubProvider) SupportsVision() bool  { return false }

func (s *stubProvider) Complete(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (*providers.CompletionResult, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return &providers.CompletionResult{Text: "ok"}, nil
}

func (s *stubProvider) Stream(ctx context.Context, messages []models.ChatMessage) (<-chan agent.StreamEvent, error) {
	return s.StreamWithTools(ctx, messages, nil)
}

func (s *stubProvider) StreamWithTools(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (<-chan agent.StreamEvent, error) {
	if s.strErr != nil {
		return nil, s.strErr
	}
	ch := make(chan agent.StreamEvent, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func TestChain_FailsOverOnRetryableError(t *testing.T) {
	primary := &stubProvider{name: "primary", errs: []error{errors.New("503 service unavailable")}}
	backup := &stubProvider{name: "backup", results: []*providers.CompletionResult{{Text: "from backup"}}}

	chain, err := New(primary, backup)
	if err != nil {
		t.Fatal(err)
	}

	result, err := chain.Complete(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("expected success from backup, got %v", err)
	}
	if result.Text != "from backup" {
		t.Fatalf("expected backup response, got %q", result.Text)
	}
}

func TestChain_BubblesNonFailoverError(t *testing.T) {
	primary := &stubProvider{name: "primary", errs: []error{errors.New("400 bad request")}}
	backup := &stubProvider{name: "backup", results: []*providers.CompletionResult{{Text: "from backup"}}}

	chain, err := New(primary, backup)
	if err != nil {
		t.Fatal(err)
	}

	_, err = chain.Complete(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected invalid-request error to bubble up without failover")
	}
	if backup.calls != 0 {
		t.Fatal("backup should not have been tried for a non-failover-eligible error")
	}
}

func TestChain_AggregatesWhenAllFail(t *testing.T) {
	primary := &stubProvider{name: "primary", errs: []error{errors.New("429 rate limit")}}
	backup := &stubProvider{name: "backup", errs: []error{errors.New("503 service unavailable")}}

	chain, err := New(primary, backup)
	if err != nil {
		t.Fatal(err)
	}

	_, err = chain.Complete(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	var agg *AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("expected *AggregateError, got %T", err)
	}
	if len(agg.Failures) != 2 {
		t.Fatalf("expected 2 recorded failures, got %d", len(agg.Failures))
	}
}
