package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromFileDefaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Run.MaxRetries != 2 {
		t.Fatalf("expected default max retries 2, got %d", cfg.Run.MaxRetries)
	}
	if cfg.Run.SoftPassThreshold != 0.85 {
		t.Fatalf("expected default soft-pass threshold 0.85, got %v", cfg.Run.SoftPassThreshold)
	}
	if cfg.Roles.Reader.Adapter != "anthropic" || cfg.Roles.Reader.Model == "" {
		t.Fatalf("expected default reader role, got %+v", cfg.Roles.Reader)
	}
}

func TestLoadFromFileMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `api_keys:
  anthropic: file-key
run:
  max_retries: 5
  job_timeout: 90s
roles:
  writer:
    adapter: openai
    model: gpt-4o-mini
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Run.MaxRetries != 5 {
		t.Fatalf("expected max retries 5, got %d", cfg.Run.MaxRetries)
	}
	if cfg.Run.JobTimeout != 90*time.Second {
		t.Fatalf("expected job timeout 90s, got %v", cfg.Run.JobTimeout)
	}
	// Unset fields keep their defaults.
	if cfg.Run.DiscoverConcurrency != 8 {
		t.Fatalf("expected default discover concurrency, got %d", cfg.Run.DiscoverConcurrency)
	}
	if cfg.Roles.Writer.Adapter != "openai" || cfg.Roles.Writer.Model != "gpt-4o-mini" {
		t.Fatalf("expected writer role from file, got %+v", cfg.Roles.Writer)
	}
	if cfg.Roles.Reader.Adapter != "anthropic" {
		t.Fatalf("expected default reader role, got %+v", cfg.Roles.Reader)
	}
}

func TestExplicitZeroRunValuesAreHonored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `run:
  max_retries: 0
  soft_pass_threshold: 0
  fallback_confidence: 0
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Run.MaxRetries != 0 {
		t.Fatalf("explicit zero retries must stick, got %d", cfg.Run.MaxRetries)
	}
	if cfg.Run.SoftPassThreshold != 0 {
		t.Fatalf("explicit zero threshold must stick, got %v", cfg.Run.SoftPassThreshold)
	}
	if cfg.Run.FallbackConfidence != 0 {
		t.Fatalf("explicit zero fallback must stick, got %v", cfg.Run.FallbackConfidence)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "api_keys:\n  anthropic: file-key\n  github: file-token\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	t.Setenv("GITHUB_TOKEN", "")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnthropicAPIKey != "env-key" {
		t.Fatalf("expected env key to win, got %q", cfg.AnthropicAPIKey)
	}
	if cfg.GitHubToken != "file-token" {
		t.Fatalf("expected file token when env empty, got %q", cfg.GitHubToken)
	}
}

func TestHasAdapter(t *testing.T) {
	cfg := &Config{AnthropicAPIKey: "x"}
	if !cfg.HasAdapter("anthropic") {
		t.Fatalf("expected anthropic configured")
	}
	if cfg.HasAdapter("openai") {
		t.Fatalf("expected openai not configured")
	}
	if cfg.HasAdapter("nonsense") {
		t.Fatalf("expected unknown adapter not configured")
	}
}
