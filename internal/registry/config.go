package registry

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config describes the provider roster the registry builds from. It is
// grounded on the teacher's internal/config.LLMConfig, trimmed of the
// routing-rule and channel-specific fields that belong to the excluded
// product surface (spec.md Non-goals).
type Config struct {
	DefaultProvider string                    `yaml:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
	FallbackChain   []string                  `yaml:"fallback_chain"`
	Bedrock         BedrockConfig             `yaml:"bedrock"`
	AutoDiscover    AutoDiscoverConfig        `yaml:"auto_discover"`
}

// ProviderConfig is one entry in the registry's provider roster (spec.md
// §4.10: "{enabled, api_key, base_url, model?, alias?}").
type ProviderConfig struct {
	Enabled      bool   `yaml:"enabled"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	APIVersion   string `yaml:"api_version"`
	DefaultModel string `yaml:"default_model"`
	Alias        string `yaml:"alias"`
}

// BedrockConfig configures AWS Bedrock model discovery for the registry.
type BedrockConfig struct {
	Enabled              bool          `yaml:"enabled"`
	Region               string        `yaml:"region"`
	RefreshInterval      time.Duration `yaml:"refresh_interval"`
	ProviderFilter       []string      `yaml:"provider_filter"`
	DefaultContextWindow int           `yaml:"default_context_window"`
	DefaultMaxTokens     int           `yaml:"default_max_tokens"`
}

// AutoDiscoverConfig configures local provider discovery (e.g. a running
// Ollama daemon).
type AutoDiscoverConfig struct {
	Ollama OllamaDiscoverConfig `yaml:"ollama"`
}

type OllamaDiscoverConfig struct {
	Enabled        bool     `yaml:"enabled"`
	PreferLocal    bool     `yaml:"prefer_local"`
	ProbeLocations []string `yaml:"probe_locations"`
}

// wellKnownEnvVars maps a provider id to the environment variable that
// supplies its API key when the config file leaves APIKey empty (spec.md
// §4.10: "plus environment fallbacks").
var wellKnownEnvVars = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"bedrock":   "AWS_ACCESS_KEY_ID",
}

// LoadConfig reads a YAML registry config from path, expanding ${VAR}
// references against the process environment. A .env file in the current
// working directory is loaded first, best-effort: its absence is not an
// error.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("registry: parse config: %w", err)
	}

	cfg.applyEnvFallbacks()
	return &cfg, nil
}

// applyEnvFallbacks fills in an empty APIKey from the provider's well-known
// environment variable.
func (c *Config) applyEnvFallbacks() {
	if c.Providers == nil {
		return
	}
	for id, pc := range c.Providers {
		if pc.APIKey != "" {
			continue
		}
		envVar, ok := wellKnownEnvVars[strings.ToLower(id)]
		if !ok {
			continue
		}
		if v := os.Getenv(envVar); v != "" {
			pc.APIKey = v
			c.Providers[id] = pc
		}
	}
}
