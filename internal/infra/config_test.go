package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("WORKER_CONCURRENCY", "")
	t.Setenv("LLM_TIMEOUT_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WorkerConcurrency != 3 {
		t.Fatalf("WorkerConcurrency = %d, want 3", cfg.WorkerConcurrency)
	}
	if cfg.LLMTimeout != 90*time.Second {
		t.Fatalf("LLMTimeout = %v, want 90s", cfg.LLMTimeout)
	}
	if cfg.BatchDiscount != 0.15 {
		t.Fatalf("BatchDiscount = %v, want 0.15", cfg.BatchDiscount)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfigRejectsBadDiscount(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("BATCH_DISCOUNT", "1.5")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for out-of-range BATCH_DISCOUNT")
	}
}
