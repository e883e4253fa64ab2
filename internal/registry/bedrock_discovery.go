package registry

import (
	"context"

	"github.com/haasonsaas/agentcore/internal/providers/bedrock"
)

// BedrockFetcher adapts bedrock.DiscoverModels (AWS's ListFoundationModels,
// cached and deduplicated against concurrent callers) into a Fetcher, so
// ModelCatalogFor can pass it to DiscoverModels for the "bedrock" label instead of
// degrading straight to the static fallback catalog.
func BedrockFetcher(cfg BedrockConfig) Fetcher {
	return func(ctx context.Context) ([]ModelInfo, error) {
		models, err := bedrock.DiscoverModels(ctx, &bedrock.DiscoveryConfig{
			Region:               cfg.Region,
			RefreshInterval:      cfg.RefreshInterval,
			ProviderFilter:       cfg.ProviderFilter,
			DefaultContextWindow: cfg.DefaultContextWindow,
			DefaultMaxTokens:     cfg.DefaultMaxTokens,
		})
		if err != nil {
			return nil, err
		}
		out := make([]ModelInfo, len(models))
		for i, m := range models {
			out[i] = ModelInfo{ID: m.ID, Name: m.Name}
		}
		return out, nil
	}
}
