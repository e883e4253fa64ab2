package registry

import (
	"context"
	"testing"
)

func TestModelCatalogFor_NonBedrockUsesStaticOnly(t *testing.T) {
	ClearDiscoveryCache()
	models, err := ModelCatalogFor(context.Background(), "anthropic", &Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) == 0 {
		t.Fatal("expected the static anthropic fallback catalog")
	}
}

func TestModelCatalogFor_BedrockDisabledUsesStaticOnly(t *testing.T) {
	ClearDiscoveryCache()
	models, err := ModelCatalogFor(context.Background(), "bedrock", &Config{Bedrock: BedrockConfig{Enabled: false}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) == 0 {
		t.Fatal("expected the static bedrock fallback catalog")
	}
}
