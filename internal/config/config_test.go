package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "healthscand.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() with missing file error = %v", err)
	}
	if cfg.Environment != "dev" {
		t.Errorf("Environment = %q, want dev", cfg.Environment)
	}
	if cfg.HTTPAddress != ":8000" {
		t.Errorf("HTTPAddress = %q, want :8000", cfg.HTTPAddress)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Gemini.ChatModel != "gemini-2.5-flash" || cfg.Gemini.VisionModel != "gemini-2.5-flash" {
		t.Errorf("models = %q/%q", cfg.Gemini.ChatModel, cfg.Gemini.VisionModel)
	}
	if !cfg.Chat.FallbackOn() {
		t.Error("FallbackOn() = false by default")
	}
	if !cfg.RateLimit.On() {
		t.Error("RateLimit.On() = false by default")
	}
	if got := cfg.CORS.Origins(); len(got) != 1 || got[0] != "*" {
		t.Errorf("Origins() = %v, want [*]", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
environment: production
http_address: ":9090"
log_level: debug
gemini:
  api_key: file-key
  chat_model: gemini-2.5-pro
  request_timeout_seconds: 30
chat:
  tick_ms: 25
  fallback_enabled: false
cors:
  allowed_origins:
    - https://app.example.com
rate_limit:
  enabled: false
  requests_per_second: 2
  burst_size: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Environment != "production" || cfg.HTTPAddress != ":9090" {
		t.Errorf("core values = %q/%q", cfg.Environment, cfg.HTTPAddress)
	}
	if cfg.Gemini.APIKey != "file-key" || cfg.Gemini.ChatModel != "gemini-2.5-pro" {
		t.Errorf("gemini = %+v", cfg.Gemini)
	}
	if cfg.Gemini.RequestTimeout() != 30*time.Second {
		t.Errorf("RequestTimeout() = %v", cfg.Gemini.RequestTimeout())
	}
	if cfg.Chat.Tick() != 25*time.Millisecond {
		t.Errorf("Tick() = %v", cfg.Chat.Tick())
	}
	if cfg.Chat.FallbackOn() {
		t.Error("FallbackOn() = true, file disables it")
	}
	if cfg.RateLimit.On() {
		t.Error("RateLimit.On() = true, file disables it")
	}
	if got := cfg.CORS.Origins(); len(got) != 1 || got[0] != "https://app.example.com" {
		t.Errorf("Origins() = %v", got)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
http_address: ":9090"
gemini:
  api_key: file-key
`)
	t.Setenv("HEALTHSCAN_HTTP_ADDRESS", ":7070")
	t.Setenv("HEALTHSCAN_GEMINI_API_KEY", "env-key")
	t.Setenv("HEALTHSCAN_CHAT_FALLBACK_ENABLED", "false")
	t.Setenv("HEALTHSCAN_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddress != ":7070" {
		t.Errorf("HTTPAddress = %q, env must win", cfg.HTTPAddress)
	}
	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("APIKey = %q, env must win", cfg.Gemini.APIKey)
	}
	if cfg.Chat.FallbackOn() {
		t.Error("FallbackOn() = true, env disables it")
	}
	if got := cfg.CORS.Origins(); len(got) != 2 || got[1] != "https://b.example.com" {
		t.Errorf("Origins() = %v", got)
	}
}

func TestGeminiKeyFallbackEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "bare-key")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gemini.APIKey != "bare-key" {
		t.Errorf("APIKey = %q, want the unprefixed variable honored", cfg.Gemini.APIKey)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	if _, err := Load(writeConfig(t, "log_level: loud\n")); err == nil {
		t.Error("invalid log level accepted")
	}
	if _, err := Load(writeConfig(t, "rate_limit:\n  requests_per_second: -1\n")); err == nil {
		t.Error("negative rate limit accepted")
	}
	if _, err := Load(writeConfig(t, "log_level: [nested\n")); err == nil {
		t.Error("malformed YAML accepted")
	}
}
