package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/providers"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type fakeProvider struct {
	name   string
	tools  bool
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) ID() string           { return f.name }
func (f *fakeProvider) ContextWindow() int   { return 1000 }
func (f *fakeProvider) SupportsTools() bool  { return f.tools }
func (f *fakeProvider) SupportsVision() bool { return false }
func (f *fakeProvider) Complete(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (*providers.CompletionResult, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeProvider) Stream(ctx context.Context, messages []models.ChatMessage) (<-chan agent.StreamEvent, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeProvider) StreamWithTools(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (<-chan agent.StreamEvent, error) {
	return nil, errors.New("not implemented")
}

func TestRegistry_FirstWithTools(t *testing.T) {
	r := New()
	r.Register("local", "tiny", &fakeProvider{name: "local", tools: false})
	r.Register("anthropic", "claude-sonnet-4", &fakeProvider{name: "anthropic", tools: true})

	p, ok := r.FirstWithTools()
	if !ok || p.Name() != "anthropic" {
		t.Fatalf("expected anthropic as first tool-capable provider, got %v, ok=%v", p, ok)
	}
}

func TestRegistry_FallbackAffinity(t *testing.T) {
	r := New()
	primary := &fakeProvider{name: "anthropic", tools: true}
	sameModelOtherLabel := &fakeProvider{name: "bedrock", tools: true}
	sameLabelOtherModel := &fakeProvider{name: "anthropic", tools: true}
	unrelated := &fakeProvider{name: "openai", tools: true}

	r.Register("anthropic", "claude-sonnet-4", primary)
	r.Register("bedrock", "claude-sonnet-4", sameModelOtherLabel)
	r.Register("anthropic", "claude-3-5-haiku", sameLabelOtherModel)
	r.Register("openai", "gpt-4o", unrelated)

	fallbacks := r.FallbackProvidersFor("claude-sonnet-4", "anthropic")
	if len(fallbacks) != 3 {
		t.Fatalf("expected 3 fallbacks, got %d", len(fallbacks))
	}
	if fallbacks[0] != providers.Provider(sameModelOtherLabel) {
		t.Fatalf("expected same-model-different-label first")
	}
	if fallbacks[1] != providers.Provider(sameLabelOtherModel) {
		t.Fatalf("expected same-label-different-model second")
	}
	if fallbacks[2] != providers.Provider(unrelated) {
		t.Fatalf("expected unrelated provider last")
	}
}

func TestIsChatModel(t *testing.T) {
	cases := map[string]bool{
		"gpt-4o":                  true,
		"claude-sonnet-4":         true,
		"text-embedding-3-large":  false,
		"whisper-1":               false,
		"dall-e-3":                false,
	}
	for name, want := range cases {
		if got := IsChatModel(name); got != want {
			t.Errorf("IsChatModel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDiscoverModels_FallsBackWhenFetchFails(t *testing.T) {
	ClearDiscoveryCache()
	fetch := func(ctx context.Context) ([]ModelInfo, error) {
		return nil, errors.New("network down")
	}
	fallback := StaticFallbackFor("anthropic")

	models, err := DiscoverModels(context.Background(), "test-fallback", fetch, fallback, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != len(fallback) {
		t.Fatalf("expected fallback catalog of %d models, got %d", len(fallback), len(models))
	}
}

func TestDiscoverModels_MergesAndFiltersLive(t *testing.T) {
	ClearDiscoveryCache()
	fetch := func(ctx context.Context) ([]ModelInfo, error) {
		return []ModelInfo{
			{ID: "gpt-5", Name: "GPT-5"},
			{ID: "text-embedding-3-large", Name: "embedding model"},
		}, nil
	}
	fallback := []ModelInfo{{ID: "gpt-4o", Name: "GPT-4o"}}

	results, err := DiscoverModels(context.Background(), "test-merge", fetch, fallback, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ids []string
	for _, m := range results {
		ids = append(ids, m.ID)
	}
	if !contains(ids, "gpt-5") || !contains(ids, "gpt-4o") {
		t.Fatalf("expected merged catalog to contain live and fallback models, got %v", ids)
	}
	if contains(ids, "text-embedding-3-large") {
		t.Fatalf("expected embedding model to be filtered out, got %v", ids)
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
