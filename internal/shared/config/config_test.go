package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LLM_PROVIDER", "ENRICH_TIMEOUT_SECONDS", "UPLOAD_CONCURRENCY", "ELASTICSEARCH_INDEX", "OBJECT_STORE"} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Fatalf("expected dev env, got %q", cfg.Env)
	}
	if cfg.LLMProvider != "placeholder" {
		t.Fatalf("expected placeholder provider, got %q", cfg.LLMProvider)
	}
	if cfg.EnrichTimeout != 90*time.Second {
		t.Fatalf("expected 90s enrich timeout, got %v", cfg.EnrichTimeout)
	}
	if cfg.UploadConcurrency != 4 {
		t.Fatalf("expected upload concurrency 4, got %d", cfg.UploadConcurrency)
	}
	if cfg.ElasticsearchIndex != "lease_chunks" {
		t.Fatalf("unexpected index %q", cfg.ElasticsearchIndex)
	}
	if cfg.ObjectStoreType != "local" {
		t.Fatalf("unexpected store type %q", cfg.ObjectStoreType)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "prod")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("ENRICH_TIMEOUT_SECONDS", "15")
	t.Setenv("UPLOAD_CONCURRENCY", "zero")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("expected production, got %q", cfg.Env)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected openai, got %q", cfg.LLMProvider)
	}
	if cfg.EnrichTimeout != 15*time.Second {
		t.Fatalf("expected 15s, got %v", cfg.EnrichTimeout)
	}
	if cfg.UploadConcurrency != 4 {
		t.Fatalf("expected fallback concurrency, got %d", cfg.UploadConcurrency)
	}
	if len(cfg.CORSAllowOrigin) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.CORSAllowOrigin)
	}
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("S3_PREFIX=from-file\nS3_BUCKET=file-bucket\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("S3_BUCKET", "env-bucket")
	t.Setenv("S3_PREFIX", "")
	os.Unsetenv("S3_PREFIX")

	cfg := Load()
	if cfg.S3Bucket != "env-bucket" {
		t.Fatalf("environment should win, got %q", cfg.S3Bucket)
	}
	if cfg.S3Prefix != "from-file" {
		t.Fatalf("expected value from .env, got %q", cfg.S3Prefix)
	}
}
