package registry

import "github.com/haasonsaas/agentcore/internal/providers/venice"

// staticFallback is the small built-in catalog merged with live discovery
// when a live Fetcher is in use (only "bedrock", when Bedrock.Enabled), and
// used alone otherwise (spec.md §4.10). Grounded on the teacher's internal/models.Catalog
// built-in registrations, trimmed to id/name since capability metadata
// (vision, tools, pricing, tiers) lives on the Provider implementations
// themselves in this module, not in a separate catalog.
var staticFallback = map[string][]ModelInfo{
	"anthropic": {
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4"},
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4"},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku"},
	},
	"openai": {
		{ID: "gpt-4o", Name: "GPT-4o"},
		{ID: "gpt-4o-mini", Name: "GPT-4o mini"},
		{ID: "o3-mini", Name: "o3-mini"},
	},
	"gemini": {
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash"},
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro"},
	},
	"bedrock": {
		{ID: "anthropic.claude-3-sonnet-20240229-v1:0", Name: "Claude 3 Sonnet (Bedrock)"},
		{ID: "meta.llama3-70b-instruct-v1:0", Name: "Llama 3 70B (Bedrock)"},
	},
	"venice": veniceCatalog(),
}

// veniceCatalog projects venice.Catalog into ModelInfo so Venice's static
// fallback is grounded in the same data the Provider itself uses, rather
// than a second hand-maintained model list.
func veniceCatalog() []ModelInfo {
	out := make([]ModelInfo, len(venice.Catalog))
	for i, entry := range venice.Catalog {
		out[i] = ModelInfo{ID: entry.ID, Name: entry.Name}
	}
	return out
}

// StaticFallbackFor returns the built-in model catalog for a provider
// label, or nil if the label has no known static catalog.
func StaticFallbackFor(label string) []ModelInfo {
	return staticFallback[label]
}
