package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ImageProvider != ImageProviderReplicate {
		t.Fatalf("ImageProvider = %q, want %q", cfg.ImageProvider, ImageProviderReplicate)
	}
	if cfg.ReplicateBaseURL != "https://api.replicate.com/v1" {
		t.Fatalf("ReplicateBaseURL mismatch: %q", cfg.ReplicateBaseURL)
	}
	if cfg.HTTPReadTimeout != 15*time.Second {
		t.Fatalf("HTTPReadTimeout = %s, want 15s", cfg.HTTPReadTimeout)
	}
	if cfg.MaxConcurrentPipelines != 4 {
		t.Fatalf("MaxConcurrentPipelines = %d, want 4", cfg.MaxConcurrentPipelines)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is empty")
	}
}

func TestLoadConfigRejectsUnknownImageProvider(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("IMAGE_PROVIDER", "midjourney")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unsupported provider")
	}
}

func TestConfigCredentialHelpers(t *testing.T) {
	cfg := &Config{
		ReplicateAPIToken:  " r8_token ",
		TelegramBotToken:   "123:abc",
		CORSAllowedOrigins: "http://a.example, ,http://b.example",
	}
	if !cfg.ReplicateConfigured() {
		t.Fatalf("expected replicate to be configured")
	}
	if cfg.OpenAIConfigured() {
		t.Fatalf("expected openai to be unconfigured")
	}
	if cfg.TelegramConfigured() {
		t.Fatalf("telegram requires channel id as well")
	}
	origins := cfg.AllowedOrigins()
	if len(origins) != 2 || origins[0] != "http://a.example" || origins[1] != "http://b.example" {
		t.Fatalf("AllowedOrigins mismatch: %#v", origins)
	}
}
