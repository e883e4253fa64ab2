// Package oauth implements the keyed token store OAuth-backed providers
// read from and write to (spec.md §6), plus proactive refresh of tokens
// nearing expiry.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Tokens is one provider's stored credential set.
type Tokens struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// expiringSoon reports whether ExpiresAt falls within the proactive-refresh
// window (spec.md §6: "refreshes tokens proactively when expiry is within a
// 5-minute window").
const refreshWindow = 5 * time.Minute

func (t Tokens) expiringSoon(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Sub(now) < refreshWindow
}

// Store is the keyed token store contract spec.md §6 names: load and save
// by provider key.
type Store interface {
	Load(ctx context.Context, providerKey string) (*Tokens, bool, error)
	Save(ctx context.Context, providerKey string, tokens Tokens) error
}

// Refresher exchanges a refresh token for a new access token. Providers
// that issue OAuth credentials (rather than static API keys) supply one of
// these; golang.org/x/oauth2 already knows how to do the exchange against a
// standard token endpoint.
type Refresher interface {
	Refresh(ctx context.Context, tokens Tokens) (Tokens, error)
}

// OAuth2Refresher adapts an oauth2.Config's token source into a Refresher.
type OAuth2Refresher struct {
	Config oauth2.Config
}

func (r OAuth2Refresher) Refresh(ctx context.Context, tokens Tokens) (Tokens, error) {
	if tokens.RefreshToken == "" {
		return Tokens{}, errors.New("oauth: no refresh token available")
	}
	src := r.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: tokens.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return Tokens{}, fmt.Errorf("oauth: refresh failed: %w", err)
	}
	refreshed := Tokens{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tokens.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		refreshed.ExpiresAt = &expiry
	}
	return refreshed, nil
}

// Manager wraps a Store with proactive refresh: when the stored token is
// within the refresh window, GetValid refreshes and persists it first. If no
// Refresher is registered or the refresh fails, it returns the stored token
// as is.
type Manager struct {
	store      Store
	refreshers map[string]Refresher
	mu         sync.Mutex
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, refreshers: make(map[string]Refresher)}
}

// RegisterRefresher associates a Refresher with a provider key.
func (m *Manager) RegisterRefresher(providerKey string, r Refresher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshers[providerKey] = r
}

// GetValid returns providerKey's current access token, refreshing it first
// if it is within 5 minutes of expiry and a Refresher is registered.
func (m *Manager) GetValid(ctx context.Context, providerKey string) (string, error) {
	tokens, ok, err := m.store.Load(ctx, providerKey)
	if err != nil {
		return "", fmt.Errorf("oauth: load %s: %w", providerKey, err)
	}
	if !ok {
		return "", fmt.Errorf("oauth: no credentials stored for %s", providerKey)
	}

	if !tokens.expiringSoon(time.Now()) {
		return tokens.AccessToken, nil
	}

	m.mu.Lock()
	refresher, hasRefresher := m.refreshers[providerKey]
	m.mu.Unlock()
	if !hasRefresher {
		return tokens.AccessToken, nil
	}

	refreshed, err := refresher.Refresh(ctx, *tokens)
	if err != nil {
		// A failed proactive refresh still leaves the caller a token to try;
		// the backend's own 401 handling is the backstop.
		return tokens.AccessToken, nil
	}
	if err := m.store.Save(ctx, providerKey, refreshed); err != nil {
		return refreshed.AccessToken, fmt.Errorf("oauth: save refreshed tokens for %s: %w", providerKey, err)
	}
	return refreshed.AccessToken, nil
}

// FileStore persists tokens as one JSON file per provider key under a base
// directory. Grounded on the teacher's preference for small JSON files over
// a database for single-process local state (see internal/config's file
// loading). Each provider key maps to exactly one file, and the FileStore's
// mutex serializes Load and Save within one process. There is no
// cross-process locking, and Manager does not serialize refreshes:
// concurrent GetValid calls for the same key may each refresh and save.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(providerKey string) string {
	return filepath.Join(s.dir, providerKey+".json")
}

func (s *FileStore) Load(ctx context.Context, providerKey string) (*Tokens, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(providerKey))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, false, fmt.Errorf("oauth: decode stored tokens: %w", err)
	}
	return &tokens, true, nil
}

func (s *FileStore) Save(ctx context.Context, providerKey string, tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(providerKey), data, 0o600)
}
