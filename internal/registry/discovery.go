package registry

import (
	"context"
	"sync"
	"time"
)

// ModelInfo is one entry in a provider's chat-model catalog, whether
// discovered live or loaded from the static fallback list.
type ModelInfo struct {
	ID   string
	Name string
}

// Fetcher calls a provider's own "/models"-equivalent endpoint and returns
// its raw catalog, unfiltered.
type Fetcher func(ctx context.Context) ([]ModelInfo, error)

// discoveryCache holds one provider label's cached discovery result.
// Grounded on the teacher's providers/bedrock.discoveryCache: RWMutex guard,
// expiry timestamp, and an inFlight channel so concurrent callers during a
// refresh wait for the same request rather than issuing duplicates.
type discoveryCache struct {
	mu        sync.RWMutex
	models    []ModelInfo
	expiresAt time.Time
	inFlight  chan struct{}
}

var caches sync.Map // map[string]*discoveryCache

func cacheFor(label string) *discoveryCache {
	v, _ := caches.LoadOrStore(label, &discoveryCache{})
	return v.(*discoveryCache)
}

// DiscoverModels fetches label's live model catalog (bounded by
// discoveryTimeout per spec.md §4.10), merges it with a static fallback
// catalog, filters out non-chat modalities, and caches the merged result
// for refreshInterval. If the live fetch fails or credentials are absent
// (fetch == nil), the fallback catalog alone is returned.
func DiscoverModels(ctx context.Context, label string, fetch Fetcher, fallback []ModelInfo, refreshInterval time.Duration) ([]ModelInfo, error) {
	if refreshInterval <= 0 {
		refreshInterval = time.Hour
	}
	c := cacheFor(label)

	c.mu.RLock()
	if time.Now().Before(c.expiresAt) && len(c.models) > 0 {
		models := c.models
		c.mu.RUnlock()
		return models, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	if time.Now().Before(c.expiresAt) && len(c.models) > 0 {
		models := c.models
		c.mu.Unlock()
		return models, nil
	}
	if c.inFlight != nil {
		inFlight := c.inFlight
		c.mu.Unlock()
		select {
		case <-inFlight:
			c.mu.RLock()
			models := c.models
			c.mu.RUnlock()
			return models, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.inFlight = make(chan struct{})
	c.mu.Unlock()

	merged := mergeAndFilter(fetchLive(ctx, fetch), fallback)

	c.mu.Lock()
	c.models = merged
	c.expiresAt = time.Now().Add(refreshInterval)
	close(c.inFlight)
	c.inFlight = nil
	c.mu.Unlock()

	return merged, nil
}

// fetchLive bounds fetch to discoveryTimeout and swallows its error: a
// discovery failure degrades to the static fallback catalog rather than
// failing the caller (spec.md §4.10 treats live discovery as best-effort).
func fetchLive(ctx context.Context, fetch Fetcher) []ModelInfo {
	if fetch == nil {
		return nil
	}
	boundedCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	live, err := fetch(boundedCtx)
	if err != nil {
		return nil
	}
	return live
}

func mergeAndFilter(live, fallback []ModelInfo) []ModelInfo {
	seen := make(map[string]struct{}, len(live)+len(fallback))
	out := make([]ModelInfo, 0, len(live)+len(fallback))

	for _, m := range live {
		if !IsChatModel(m.ID) && !IsChatModel(m.Name) {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	for _, m := range fallback {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// ClearDiscoveryCache resets every cached discovery result, forcing the
// next DiscoverModels call for each label to refetch.
func ClearDiscoveryCache() {
	caches.Range(func(key, value any) bool {
		caches.Delete(key)
		return true
	})
}
