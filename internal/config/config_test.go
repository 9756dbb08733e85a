package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Decomposer.MaxSubtasks != 8 {
		t.Errorf("expected max_subtasks 8, got %d", cfg.Decomposer.MaxSubtasks)
	}
	if cfg.Coordinator.MaxConcurrency != 5 {
		t.Errorf("expected max_concurrency 5, got %d", cfg.Coordinator.MaxConcurrency)
	}
	if cfg.Adapter.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.Adapter.Timeout)
	}
	if cfg.Adapter.MaxRetries != 2 {
		t.Errorf("expected 2 retries, got %d", cfg.Adapter.MaxRetries)
	}
	if cfg.Breaker.FailureThreshold != 5 {
		t.Errorf("expected failure threshold 5, got %d", cfg.Breaker.FailureThreshold)
	}
	if cfg.Breaker.Cooldown != 60*time.Second {
		t.Errorf("expected 60s cooldown, got %s", cfg.Breaker.Cooldown)
	}
	if cfg.Memory.Retention != 50 {
		t.Errorf("expected retention 50, got %d", cfg.Memory.Retention)
	}
	if cfg.Memory.IdleTTL != 30*time.Minute {
		t.Errorf("expected 30m idle TTL, got %s", cfg.Memory.IdleTTL)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
decomposer:
  max_subtasks: 4
coordinator:
  max_concurrency: 2
adapter:
  timeout: 5s
breaker:
  failure_threshold: 3
  cooldown: 10s
memory:
  retention: 10
  idle_ttl: 1m
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Decomposer.MaxSubtasks != 4 {
		t.Errorf("expected max_subtasks 4, got %d", cfg.Decomposer.MaxSubtasks)
	}
	if cfg.Coordinator.MaxConcurrency != 2 {
		t.Errorf("expected max_concurrency 2, got %d", cfg.Coordinator.MaxConcurrency)
	}
	if cfg.Adapter.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.Adapter.Timeout)
	}
	if cfg.Breaker.FailureThreshold != 3 {
		t.Errorf("expected failure threshold 3, got %d", cfg.Breaker.FailureThreshold)
	}
	if cfg.Memory.Retention != 10 {
		t.Errorf("expected retention 10, got %d", cfg.Memory.Retention)
	}

	// Unset keys keep defaults.
	if cfg.Adapter.MaxRetries != 2 {
		t.Errorf("expected default max_retries 2, got %d", cfg.Adapter.MaxRetries)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}
