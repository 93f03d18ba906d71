package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Browser    BrowserConfig
	Session    SessionConfig
	Stabilizer StabilizerConfig
	Pagination PaginationConfig
	Sources    SourcesConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Cache      CacheConfig
	Webhook    WebhookConfig
	Output     OutputConfig
	Log        LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the browser engine used by extraction sessions.
type BrowserConfig struct {
	// Engine selects the page implementation: "rod" (headless Chromium) or
	// "static" (plain HTTP fetch, no scripting).
	Engine string // default: "rod"

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// Bin overrides the Chromium binary path.
	Bin string

	// Proxy is the upstream proxy URL for all requests.
	Proxy string

	// Stealth injects anti-detection scripts into every page.
	Stealth bool // default: true

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds drops requests to known ad and tracker domains.
	BlockAds bool // default: true
}

// SessionConfig controls a single extraction session.
type SessionConfig struct {
	// DefaultTimeout bounds every page operation without its own deadline.
	DefaultTimeout time.Duration // default: 30s

	// NavigationTimeout bounds a single navigation.
	NavigationTimeout time.Duration // default: 30s

	// UserAgent identifies the session to remote origins.
	UserAgent string

	// RequestTimeout bounds one whole extraction, pagination included.
	RequestTimeout time.Duration // default: 5m
}

// StabilizerConfig bounds the scroll-until-stable loop.
type StabilizerConfig struct {
	StepDelay            time.Duration // default: 2s
	MaxIterations        int           // default: 30
	RequiredStableStreak int           // default: 3
	TailCycles           int           // default: 10
}

// PaginationConfig controls sequential listing walks.
type PaginationConfig struct {
	// DefaultPages is used by the CLI when --pages is not given.
	DefaultPages int // default: 1

	// MaxPages caps any requested page count.
	MaxPages int // default: 50
}

// SourcesConfig points at additional source definitions.
type SourcesConfig struct {
	// File is a YAML file of sources merged over the built-ins.
	File string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// CacheConfig controls the extracted record cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached records.
	MaxEntries int // default: 100
}

// WebhookConfig controls webhook delivery.
type WebhookConfig struct {
	// Secret signs webhook payloads with HMAC-SHA256. Empty disables signing.
	Secret string

	// Timeout bounds a single delivery attempt.
	Timeout time.Duration // default: 10s
}

// OutputConfig controls where the CLI writes records.
type OutputConfig struct {
	Dir    string // default: "output"
	Format string // "json" or "yaml"; default: "json"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("HARVEST_HOST", "0.0.0.0"),
			Port: envIntOr("HARVEST_PORT", 8080),
			Mode: envOr("HARVEST_MODE", "release"),
		},
		Browser: BrowserConfig{
			Engine:    envOr("HARVEST_ENGINE", "rod"),
			Headless:  envBoolOr("HARVEST_HEADLESS", true),
			NoSandbox: envBoolOr("HARVEST_NO_SANDBOX", true),
			Bin:       os.Getenv("HARVEST_BROWSER_BIN"),
			Proxy:     os.Getenv("HARVEST_PROXY"),
			Stealth:   envBoolOr("HARVEST_STEALTH", true),
			BlockedResourceTypes: envSliceOr("HARVEST_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockAds: envBoolOr("HARVEST_BLOCK_ADS", true),
		},
		Session: SessionConfig{
			DefaultTimeout:    envDurationOr("HARVEST_DEFAULT_TIMEOUT", 30*time.Second),
			NavigationTimeout: envDurationOr("HARVEST_NAV_TIMEOUT", 30*time.Second),
			UserAgent:         os.Getenv("HARVEST_USER_AGENT"),
			RequestTimeout:    envDurationOr("HARVEST_REQUEST_TIMEOUT", 5*time.Minute),
		},
		Stabilizer: StabilizerConfig{
			StepDelay:            envDurationOr("HARVEST_STABILIZE_STEP", 2*time.Second),
			MaxIterations:        envIntOr("HARVEST_STABILIZE_MAX_ITER", 30),
			RequiredStableStreak: envIntOr("HARVEST_STABILIZE_STREAK", 3),
			TailCycles:           envIntOr("HARVEST_STABILIZE_TAIL", 10),
		},
		Pagination: PaginationConfig{
			DefaultPages: envIntOr("HARVEST_PAGES", 1),
			MaxPages:     envIntOr("HARVEST_MAX_PAGES", 50),
		},
		Sources: SourcesConfig{
			File: os.Getenv("HARVEST_SOURCES_FILE"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("HARVEST_AUTH_ENABLED", true),
			APIKeys: envSliceOr("HARVEST_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("HARVEST_RATE_RPS", 1.0),
			Burst:             envIntOr("HARVEST_RATE_BURST", 3),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("HARVEST_CACHE_MAX_ENTRIES", 100),
		},
		Webhook: WebhookConfig{
			Secret:  os.Getenv("HARVEST_WEBHOOK_SECRET"),
			Timeout: envDurationOr("HARVEST_WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Output: OutputConfig{
			Dir:    envOr("HARVEST_OUTPUT_DIR", "output"),
			Format: envOr("HARVEST_OUTPUT_FORMAT", "json"),
		},
		Log: LogConfig{
			Level:  envOr("HARVEST_LOG_LEVEL", "info"),
			Format: envOr("HARVEST_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
