package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Session.Transport != "anthropic" {
		t.Fatalf("Transport = %q, want anthropic", cfg.Session.Transport)
	}
	if cfg.Session.MaxTokens != 8192 {
		t.Fatalf("MaxTokens = %d, want 8192", cfg.Session.MaxTokens)
	}
	if !cfg.MarkdownEnabled() {
		t.Fatal("markdown should default to enabled")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	SetConfigDir(dir)
	defer SetConfigDir("")

	cfg := DefaultConfig()
	cfg.Session.Model = "claude-opus-4-1"
	cfg.Providers.Anthropic = &ProviderConfig{APIKey: "sk-test"}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Session.Model != "claude-opus-4-1" {
		t.Fatalf("Model = %q", loaded.Session.Model)
	}
	if loaded.Providers.Anthropic.APIKey != "sk-test" {
		t.Fatalf("APIKey = %q", loaded.Providers.Anthropic.APIKey)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	SetConfigDir(dir)
	defer SetConfigDir("")

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("session:\n  transport: sse\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Session.Transport != "sse" {
		t.Fatalf("Transport = %q, want sse", cfg.Session.Transport)
	}
	if cfg.Session.MaxTokens != 8192 {
		t.Fatalf("MaxTokens = %d, want default 8192", cfg.Session.MaxTokens)
	}
	if cfg.UI.SpinnerMs != 120 {
		t.Fatalf("SpinnerMs = %d, want default 120", cfg.UI.SpinnerMs)
	}
}

func TestAPIKeyEnvFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.Anthropic = &ProviderConfig{}

	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	key, err := cfg.APIKey()
	if err != nil {
		t.Fatalf("APIKey() error: %v", err)
	}
	if key != "sk-env" {
		t.Fatalf("APIKey() = %q, want sk-env", key)
	}
}

func TestAPIKeyMissing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.Anthropic = &ProviderConfig{}
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := cfg.APIKey(); err == nil {
		t.Fatal("APIKey() should error without key")
	}
}
