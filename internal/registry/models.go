package registry

import (
	"context"
	"strings"
)

// ModelCatalogFor resolves label's chat-model catalog: a live Fetcher for
// providers that have one (currently just "bedrock", via BedrockFetcher)
// merged with the static fallback, or the fallback alone otherwise.
func ModelCatalogFor(ctx context.Context, label string, cfg *Config) ([]ModelInfo, error) {
	var fetch Fetcher
	if strings.EqualFold(label, "bedrock") && cfg.Bedrock.Enabled {
		fetch = BedrockFetcher(cfg.Bedrock)
	}
	return DiscoverModels(ctx, label, fetch, StaticFallbackFor(label), cfg.Bedrock.RefreshInterval)
}
