package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no explicit path is given.
const DefaultPath = "config/healthscand.yaml"

// Config describes runtime options for the HealthScan service. Values are
// read from a YAML file and overridden by HEALTHSCAN_* environment variables.
type Config struct {
	Environment string `yaml:"environment"`
	HTTPAddress string `yaml:"http_address"`
	LogFile     string `yaml:"log_file"`
	LogLevel    string `yaml:"log_level"`

	Gemini    GeminiConfig    `yaml:"gemini"`
	Chat      ChatConfig      `yaml:"chat"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// GeminiConfig configures the upstream generation collaborator.
type GeminiConfig struct {
	APIKey                string `yaml:"api_key"`
	BaseURL               string `yaml:"base_url"`
	VisionModel           string `yaml:"vision_model"`
	ChatModel             string `yaml:"chat_model"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// RequestTimeout returns the configured upstream timeout.
func (g GeminiConfig) RequestTimeout() time.Duration {
	if g.RequestTimeoutSeconds <= 0 {
		return 0 // adapter default applies
	}
	return time.Duration(g.RequestTimeoutSeconds) * time.Second
}

// ChatConfig tunes the assistant surface.
type ChatConfig struct {
	// TickMs is the inter-fragment emission delay of the canned producer.
	TickMs int `yaml:"tick_ms"`
	// FallbackEnabled controls degradation to the canned producer when the
	// upstream is unreachable. Defaults to true.
	FallbackEnabled *bool `yaml:"fallback_enabled"`
}

// Tick returns the canned producer emission delay.
func (c ChatConfig) Tick() time.Duration {
	if c.TickMs <= 0 {
		return 0 // adapter default applies
	}
	return time.Duration(c.TickMs) * time.Millisecond
}

// FallbackOn reports whether canned degradation is active.
func (c ChatConfig) FallbackOn() bool {
	return c.FallbackEnabled == nil || *c.FallbackEnabled
}

// CORSConfig controls cross-origin access for the browser UI.
type CORSConfig struct {
	// AllowedOrigins defaults to ["*"]; tighten in production.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Origins returns the allowed origins with the open default applied.
func (c CORSConfig) Origins() []string {
	if len(c.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return c.AllowedOrigins
}

// RateLimitConfig configures per-client request limiting.
type RateLimitConfig struct {
	Enabled           *bool   `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         float64 `yaml:"burst_size"`
}

// On reports whether rate limiting is active. Defaults to true.
func (r RateLimitConfig) On() bool {
	return r.Enabled == nil || *r.Enabled
}

// Load reads the config file at path (DefaultPath when empty) and applies
// environment overrides. A missing file is not an error: the service can run
// entirely from environment variables.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only configuration
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Environment = stringFromEnv(cfg.Environment, "HEALTHSCAN_ENVIRONMENT")
	cfg.HTTPAddress = stringFromEnv(cfg.HTTPAddress, "HEALTHSCAN_HTTP_ADDRESS")
	cfg.LogFile = stringFromEnv(cfg.LogFile, "HEALTHSCAN_LOG_FILE")
	cfg.LogLevel = stringFromEnv(cfg.LogLevel, "HEALTHSCAN_LOG_LEVEL")

	cfg.Gemini.APIKey = stringFromEnv(cfg.Gemini.APIKey, "HEALTHSCAN_GEMINI_API_KEY", "GEMINI_API_KEY")
	cfg.Gemini.BaseURL = stringFromEnv(cfg.Gemini.BaseURL, "HEALTHSCAN_GEMINI_BASE_URL")
	cfg.Gemini.VisionModel = stringFromEnv(cfg.Gemini.VisionModel, "HEALTHSCAN_VISION_MODEL")
	cfg.Gemini.ChatModel = stringFromEnv(cfg.Gemini.ChatModel, "HEALTHSCAN_CHAT_MODEL")
	cfg.Gemini.RequestTimeoutSeconds = intFromEnv(cfg.Gemini.RequestTimeoutSeconds, "HEALTHSCAN_GEMINI_TIMEOUT_SECONDS")

	cfg.Chat.TickMs = intFromEnv(cfg.Chat.TickMs, "HEALTHSCAN_CHAT_TICK_MS")
	cfg.Chat.FallbackEnabled = boolFromEnv(cfg.Chat.FallbackEnabled, "HEALTHSCAN_CHAT_FALLBACK_ENABLED")

	if v := strings.TrimSpace(os.Getenv("HEALTHSCAN_CORS_ALLOWED_ORIGINS")); v != "" {
		cfg.CORS.AllowedOrigins = parseCSV(v)
	}

	cfg.RateLimit.Enabled = boolFromEnv(cfg.RateLimit.Enabled, "HEALTHSCAN_RATE_LIMIT_ENABLED")
	cfg.RateLimit.RequestsPerSecond = floatFromEnv(cfg.RateLimit.RequestsPerSecond, "HEALTHSCAN_RATE_LIMIT_RPS")
	cfg.RateLimit.BurstSize = floatFromEnv(cfg.RateLimit.BurstSize, "HEALTHSCAN_RATE_LIMIT_BURST")
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "dev"
	}
	if cfg.HTTPAddress == "" {
		cfg.HTTPAddress = ":8000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Gemini.VisionModel == "" {
		cfg.Gemini.VisionModel = "gemini-2.5-flash"
	}
	if cfg.Gemini.ChatModel == "" {
		cfg.Gemini.ChatModel = "gemini-2.5-flash"
	}
}

func (c Config) validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.BurstSize < 0 {
		return errors.New("rate_limit values must not be negative")
	}
	return nil
}

func stringFromEnv(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}

func intFromEnv(fallback int, keys ...string) int {
	for _, key := range keys {
		val := strings.TrimSpace(os.Getenv(key))
		if val == "" {
			continue
		}
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func floatFromEnv(fallback float64, keys ...string) float64 {
	for _, key := range keys {
		val := strings.TrimSpace(os.Getenv(key))
		if val == "" {
			continue
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func boolFromEnv(fallback *bool, keys ...string) *bool {
	for _, key := range keys {
		val, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true", "yes", "on":
			v := true
			return &v
		case "0", "false", "no", "off":
			v := false
			return &v
		}
	}
	return fallback
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
