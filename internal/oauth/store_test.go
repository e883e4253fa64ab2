package oauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memStore struct {
	data map[string]Tokens
}

func newMemStore() *memStore { return &memStore{data: make(map[string]Tokens)} }

func (m *memStore) Load(ctx context.Context, providerKey string) (*Tokens, bool, error) {
	t, ok := m.data[providerKey]
	if !ok {
		return nil, false, nil
	}
	return &t, true, nil
}

func (m *memStore) Save(ctx context.Context, providerKey string, tokens Tokens) error {
	m.data[providerKey] = tokens
	return nil
}

type stubRefresher struct {
	result Tokens
	err    error
	calls  int
}

func (r *stubRefresher) Refresh(ctx context.Context, tokens Tokens) (Tokens, error) {
	r.calls++
	return r.result, r.err
}

func TestManager_GetValid_NoRefreshWhenFarFromExpiry(t *testing.T) {
	store := newMemStore()
	expiry := time.Now().Add(time.Hour)
	store.data["anthropic"] = Tokens{AccessToken: "fresh", ExpiresAt: &expiry}

	mgr := NewManager(store)
	refresher := &stubRefresher{}
	mgr.RegisterRefresher("anthropic", refresher)

	token, err := mgr.GetValid(context.Background(), "anthropic")
	if err != nil {
		t.Fatal(err)
	}
	if token != "fresh" {
		t.Fatalf("expected unchanged token, got %q", token)
	}
	if refresher.calls != 0 {
		t.Fatal("should not have refreshed a token far from expiry")
	}
}

func TestManager_GetValid_RefreshesWithinWindow(t *testing.T) {
	store := newMemStore()
	expiry := time.Now().Add(30 * time.Second)
	store.data["anthropic"] = Tokens{AccessToken: "stale", ExpiresAt: &expiry}

	mgr := NewManager(store)
	newExpiry := time.Now().Add(time.Hour)
	refresher := &stubRefresher{result: Tokens{AccessToken: "refreshed", ExpiresAt: &newExpiry}}
	mgr.RegisterRefresher("anthropic", refresher)

	token, err := mgr.GetValid(context.Background(), "anthropic")
	if err != nil {
		t.Fatal(err)
	}
	if token != "refreshed" {
		t.Fatalf("expected refreshed token, got %q", token)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected exactly 1 refresh call, got %d", refresher.calls)
	}

	stored, ok, err := store.Load(context.Background(), "anthropic")
	if err != nil || !ok {
		t.Fatalf("expected refreshed tokens to be persisted, ok=%v err=%v", ok, err)
	}
	if stored.AccessToken != "refreshed" {
		t.Fatalf("expected persisted access token to be updated, got %q", stored.AccessToken)
	}
}

func TestManager_GetValid_FallsBackOnRefreshFailure(t *testing.T) {
	store := newMemStore()
	expiry := time.Now().Add(10 * time.Second)
	store.data["anthropic"] = Tokens{AccessToken: "stale", ExpiresAt: &expiry}

	mgr := NewManager(store)
	refresher := &stubRefresher{err: errors.New("refresh endpoint down")}
	mgr.RegisterRefresher("anthropic", refresher)

	token, err := mgr.GetValid(context.Background(), "anthropic")
	if err != nil {
		t.Fatal(err)
	}
	if token != "stale" {
		t.Fatalf("expected fallback to stale token, got %q", token)
	}
}

func TestManager_GetValid_NoCredentials(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store)
	if _, err := mgr.GetValid(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}
