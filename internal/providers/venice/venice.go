// Package venice provides a Venice AI backend for the Provider contract.
//
// Venice AI exposes an OpenAI-compatible Chat Completions API over a
// different base URL, with privacy-focused routing ("private": no logging,
// or "anonymized": proxied) to open and closed models alike. Because the
// wire format is OpenAI's, this provider is a thin wrapper around
// providers.OpenAIProvider rather than a second wire implementation.
package venice

import (
	"time"

	"github.com/haasonsaas/agentcore/internal/providers"
)

// BaseURL is the Venice AI API endpoint.
const BaseURL = "https://api.venice.ai/api/v1"

// DefaultModel is used when Config.DefaultModel is empty.
const DefaultModel = "llama-3.3-70b"

// ModelCatalogEntry describes a Venice model's capabilities, used both as
// documentation and as this provider's default context-window lookup.
type ModelCatalogEntry struct {
	ID            string
	Name          string
	Reasoning     bool
	Input         []string // "text", "image"
	ContextWindow int
	MaxTokens     int
	Privacy       string // "private" (no logging) or "anonymized" (via Venice proxy)
}

// Catalog lists Venice's notable models. Registry discovery (spec.md §4.10)
// uses it as Venice's static fallback catalog; no live `/models` request is
// made for Venice.
var Catalog = []ModelCatalogEntry{
	{ID: "llama-3.3-70b", Name: "Llama 3.3 70B", Input: []string{"text"}, ContextWindow: 131072, MaxTokens: 8192, Privacy: "private"},
	{ID: "llama-3.2-3b", Name: "Llama 3.2 3B", Input: []string{"text"}, ContextWindow: 131072, MaxTokens: 8192, Privacy: "private"},
	{ID: "qwen3-235b-a22b-thinking-2507", Name: "Qwen3 235B Thinking", Reasoning: true, Input: []string{"text"}, ContextWindow: 131072, MaxTokens: 8192, Privacy: "private"},
	{ID: "deepseek-v3.2", Name: "DeepSeek V3.2", Reasoning: true, Input: []string{"text"}, ContextWindow: 163840, MaxTokens: 8192, Privacy: "private"},
	{ID: "claude-opus-45", Name: "Claude Opus 4.5 (via Venice)", Reasoning: true, Input: []string{"text", "image"}, ContextWindow: 202752, MaxTokens: 8192, Privacy: "anonymized"},
	{ID: "openai-gpt-52", Name: "GPT-5.2 (via Venice)", Reasoning: true, Input: []string{"text"}, ContextWindow: 262144, MaxTokens: 8192, Privacy: "anonymized"},
}

// GetModelInfo returns detailed information about a specific model, or nil.
func GetModelInfo(modelID string) *ModelCatalogEntry {
	for _, entry := range Catalog {
		if entry.ID == modelID {
			return &entry
		}
	}
	return nil
}

// IsPrivateModel returns true if the model is fully private (no logging).
func IsPrivateModel(modelID string) bool {
	info := GetModelInfo(modelID)
	return info != nil && info.Privacy == "private"
}

// SupportsReasoning returns true if the model supports extended thinking.
func SupportsReasoning(modelID string) bool {
	info := GetModelInfo(modelID)
	return info != nil && info.Reasoning
}

// Config configures a Provider.
type Config struct {
	APIKey        string
	DefaultModel  string
	BaseURL       string
	MaxRetries    int
	RetryDelay    time.Duration
	ContextWindow int
}

// Provider implements providers.Provider against Venice's OpenAI-compatible
// Chat Completions endpoint by embedding providers.OpenAIProvider and
// overriding Name so failover affinity (spec.md §4.7) and registry
// bookkeeping (spec.md §4.10) see "venice", not "openai".
type Provider struct {
	*providers.OpenAIProvider
}

// New builds a Venice Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if cfg.ContextWindow <= 0 {
		if entry := GetModelInfo(cfg.DefaultModel); entry != nil {
			cfg.ContextWindow = entry.ContextWindow
		}
	}

	inner, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		Model:         cfg.DefaultModel,
		MaxRetries:    cfg.MaxRetries,
		RetryDelay:    cfg.RetryDelay,
		ContextWindow: cfg.ContextWindow,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{OpenAIProvider: inner}, nil
}

// Name identifies this provider as "venice" rather than the embedded
// OpenAIProvider's "openai", so failover affinity and registry labels key
// on the Venice identity.
func (p *Provider) Name() string { return "venice" }
