package venice

import (
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	p, err := New(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "venice" {
		t.Errorf("Name() = %q, want %q", p.Name(), "venice")
	}
	if p.ID() != DefaultModel {
		t.Errorf("ID() = %q, want %q", p.ID(), DefaultModel)
	}
	if p.ContextWindow() != 131072 {
		t.Errorf("ContextWindow() = %d, want 131072 (llama-3.3-70b)", p.ContextWindow())
	}
	if !p.SupportsTools() {
		t.Error("SupportsTools() = false, want true")
	}
}

func TestNew_CustomValues(t *testing.T) {
	p, err := New(Config{
		APIKey:        "test-key",
		BaseURL:       "https://custom.api.com/v1",
		DefaultModel:  "custom-model",
		MaxRetries:    5,
		RetryDelay:    2 * time.Second,
		ContextWindow: 4096,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID() != "custom-model" {
		t.Errorf("ID() = %q, want %q", p.ID(), "custom-model")
	}
	if p.ContextWindow() != 4096 {
		t.Errorf("ContextWindow() = %d, want 4096", p.ContextWindow())
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected an error when APIKey is empty")
	}
}

func TestGetModelInfo(t *testing.T) {
	tests := []struct {
		modelID     string
		wantNil     bool
		wantPrivacy string
	}{
		{"llama-3.3-70b", false, "private"},
		{"claude-opus-45", false, "anonymized"},
		{"nonexistent-model", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.modelID, func(t *testing.T) {
			info := GetModelInfo(tt.modelID)
			if (info == nil) != tt.wantNil {
				t.Fatalf("GetModelInfo(%q) = %v, wantNil %v", tt.modelID, info, tt.wantNil)
			}
			if !tt.wantNil && info.Privacy != tt.wantPrivacy {
				t.Errorf("GetModelInfo(%q).Privacy = %q, want %q", tt.modelID, info.Privacy, tt.wantPrivacy)
			}
		})
	}
}

func TestIsPrivateModel(t *testing.T) {
	tests := []struct {
		modelID     string
		wantPrivate bool
	}{
		{"llama-3.3-70b", true},
		{"deepseek-v3.2", true},
		{"claude-opus-45", false},
		{"openai-gpt-52", false},
		{"nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.modelID, func(t *testing.T) {
			if got := IsPrivateModel(tt.modelID); got != tt.wantPrivate {
				t.Errorf("IsPrivateModel(%q) = %v, want %v", tt.modelID, got, tt.wantPrivate)
			}
		})
	}
}

func TestSupportsReasoning(t *testing.T) {
	tests := []struct {
		modelID       string
		wantReasoning bool
	}{
		{"llama-3.3-70b", false},
		{"qwen3-235b-a22b-thinking-2507", true},
		{"deepseek-v3.2", true},
		{"claude-opus-45", true},
		{"nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.modelID, func(t *testing.T) {
			if got := SupportsReasoning(tt.modelID); got != tt.wantReasoning {
				t.Errorf("SupportsReasoning(%q) = %v, want %v", tt.modelID, got, tt.wantReasoning)
			}
		})
	}
}

func TestCatalog(t *testing.T) {
	if len(Catalog) == 0 {
		t.Fatal("Catalog is empty")
	}
	for _, entry := range Catalog {
		if entry.ID == "" {
			t.Error("catalog entry has empty ID")
		}
		if entry.ContextWindow <= 0 {
			t.Errorf("catalog entry %q has invalid ContextWindow: %d", entry.ID, entry.ContextWindow)
		}
		if entry.Privacy != "private" && entry.Privacy != "anonymized" {
			t.Errorf("catalog entry %q has invalid Privacy: %q", entry.ID, entry.Privacy)
		}
	}
}
