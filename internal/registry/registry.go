// Package registry builds and queries the roster of configured providers
// (spec.md §4.10): which ones are active, which is preferred for
// tool-using workloads, and which ones a failover chain should try next
// for a given primary.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/haasonsaas/agentcore/internal/providers"
	"github.com/haasonsaas/agentcore/internal/providers/venice"
)

// Entry pairs a constructed Provider with the label/model identity the
// registry tracked it under, so affinity rules (spec.md §4.7) can reason
// about "same model, different provider" and vice versa without re-deriving
// it from the Provider interface alone.
type Entry struct {
	Label    string // provider_label, e.g. "anthropic", "openai-eu"
	Model    string // model_id
	Provider providers.Provider
}

// Registry holds every constructed provider entry, in registration order.
type Registry struct {
	entries []Entry
}

// New builds an empty Registry. Callers populate it via Register, normally
// driven by Build.
func New() *Registry {
	return &Registry{}
}

// Register adds one entry. Call order is priority order (spec.md §4.10:
// "Registration order defines priority").
func (r *Registry) Register(label, model string, p providers.Provider) {
	r.entries = append(r.entries, Entry{Label: label, Model: model, Provider: p})
}

// All returns every registered entry's Provider, in registration order.
func (r *Registry) All() []providers.Provider {
	out := make([]providers.Provider, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Provider
	}
	return out
}

// FirstWithTools returns the highest-priority provider that supports tool
// calling — the primary for tool-using workloads (spec.md §4.10).
func (r *Registry) FirstWithTools() (providers.Provider, bool) {
	for _, e := range r.entries {
		if e.Provider.SupportsTools() {
			return e.Provider, true
		}
	}
	return nil, false
}

// FallbackProvidersFor returns the fallback order for a given primary
// (modelID, providerLabel), applying the affinity rules from spec.md §4.7:
//
//  1. Same model_id, different provider_label
//  2. Same provider_label, different model_id
//  3. Everything else
//
// The primary itself is excluded from the result.
func (r *Registry) FallbackProvidersFor(modelID, providerLabel string) []providers.Provider {
	var tier1, tier2, tier3 []providers.Provider

	for _, e := range r.entries {
		if e.Label == providerLabel && e.Model == modelID {
			continue // the primary itself
		}
		switch {
		case e.Model == modelID && e.Label != providerLabel:
			tier1 = append(tier1, e.Provider)
		case e.Label == providerLabel && e.Model != modelID:
			tier2 = append(tier2, e.Provider)
		default:
			tier3 = append(tier3, e.Provider)
		}
	}

	out := make([]providers.Provider, 0, len(tier1)+len(tier2)+len(tier3))
	out = append(out, tier1...)
	out = append(out, tier2...)
	out = append(out, tier3...)
	return out
}

// Build constructs a Registry from a Config, registering tool-capable
// providers before non-tool-capable ones (spec.md §4.10) so the first
// tool-capable entry is always FirstWithTools()'s pick. ctx bounds any
// network call a provider constructor makes up front (Gemini and Bedrock
// both validate credentials at construction time).
func Build(ctx context.Context, cfg *Config) (*Registry, error) {
	type built struct {
		label string
		model string
		prov  providers.Provider
	}
	var withTools, withoutTools []built

	for label, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}

		p, err := buildProvider(ctx, label, pc, cfg.Bedrock)
		if err != nil {
			return nil, fmt.Errorf("registry: building provider %q: %w", label, err)
		}
		if p == nil {
			continue
		}

		b := built{label: label, model: p.ID(), prov: p}
		if p.SupportsTools() {
			withTools = append(withTools, b)
		} else {
			withoutTools = append(withoutTools, b)
		}
	}

	// Stable order within each tier keeps Build deterministic across runs
	// even though Config.Providers is a map.
	sort.Slice(withTools, func(i, j int) bool { return withTools[i].label < withTools[j].label })
	sort.Slice(withoutTools, func(i, j int) bool { return withoutTools[i].label < withoutTools[j].label })

	reg := New()
	for _, b := range withTools {
		reg.Register(b.label, b.model, b.prov)
	}
	for _, b := range withoutTools {
		reg.Register(b.label, b.model, b.prov)
	}
	return reg, nil
}

// buildProvider constructs the backend named by label. The label is the
// registry key a caller chose in Config.Providers, not necessarily the wire
// API name — "openai-responses" selects the Responses API surface rather
// than Chat Completions, for callers that want newer reasoning models.
func buildProvider(ctx context.Context, label string, pc ProviderConfig, bedrockCfg BedrockConfig) (providers.Provider, error) {
	switch strings.ToLower(label) {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   pc.DefaultModel,
		})
	case "openai":
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   pc.DefaultModel,
		})
	case "openai-responses":
		return providers.NewOpenAIResponsesProvider(providers.ResponsesConfig{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   pc.DefaultModel,
		})
	case "gemini":
		return providers.NewGeminiProvider(ctx, providers.GeminiConfig{
			APIKey: pc.APIKey,
			Model:  pc.DefaultModel,
		})
	case "bedrock":
		return providers.NewBedrockProvider(ctx, providers.BedrockConfig{
			Region:        bedrockCfg.Region,
			Model:         pc.DefaultModel,
			ContextWindow: bedrockCfg.DefaultContextWindow,
		})
	case "ollama":
		return providers.NewOllamaProvider(providers.OllamaConfig{
			BaseURL: pc.BaseURL,
			Model:   pc.DefaultModel,
		}), nil
	case "venice":
		return venice.New(venice.Config{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unknown provider label %q", label)
	}
}

// discoveryTimeout bounds the live model-discovery HTTP call (spec.md
// §4.10: "bounded timeout (~8 s)").
const discoveryTimeout = 8 * time.Second

// nonChatModalitySubstrings filters a discovered model's name/ID against a
// deny list of non-chat modalities, per spec.md §4.10.
var nonChatModalitySubstrings = []string{
	"embedding", "image", "speech", "tts", "whisper", "moderation",
	"realtime", "transcribe", "dall-e", "vision-only",
}

// IsChatModel reports whether a discovered model name looks like a chat
// completion model rather than one of the excluded modalities.
func IsChatModel(name string) bool {
	lower := strings.ToLower(name)
	for _, bad := range nonChatModalitySubstrings {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	return true
}
