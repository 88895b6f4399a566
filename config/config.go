package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Render    RenderConfig
	Retrieval RetrievalConfig
	Search    SearchConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// RetrievalConfig controls the lightweight tier and the dispatcher.
type RetrievalConfig struct {
	// DefaultTimeout is the per-attempt timeout when a request sets none.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum per-attempt timeout accepted from clients.
	MaxTimeout time.Duration // default: 120s

	// Retries is the lightweight attempt budget.
	Retries int // default: 2

	// BackoffBase and BackoffMax bound the exponential retry delay.
	BackoffBase time.Duration // default: 500ms
	BackoffMax  time.Duration // default: 5s

	// InsecureTLS skips certificate verification on the lightweight tier.
	InsecureTLS bool // default: true

	// MaxBodyBytes caps decoded response bodies.
	MaxBodyBytes int64 // default: 10 MiB

	// DefenseDetection toggles edge-security page detection.
	DefenseDetection bool // default: true

	// RenderMemoryTTL routes defended domains straight to the renderer for
	// this long. Zero disables the memory.
	RenderMemoryTTL time.Duration // default: 0

	// Proxy is used by both tiers when a request carries none.
	Proxy string
}

// SearchConfig controls the paginated harvester and its providers.
type SearchConfig struct {
	// PageRetries is the per-page retry budget.
	PageRetries int // default: 10

	// RetryPause is the wait before retrying a page.
	RetryPause time.Duration // default: 1s

	// PageInterval spaces consecutive page fetches.
	PageInterval time.Duration // default: 1s

	// DefaultTarget is the link count a search stops at.
	DefaultTarget int // default: 10

	// MaxPages bounds the result pages one search walks.
	MaxPages int // default: 50

	SearxURL string // default: "https://searx.bndkt.io/search"
	BaiduURL string // default: "https://www.baidu.com/s"
	BingURL  string // default: "https://www.cn.bing.com/search"
}

// CacheConfig controls the retrieval response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 1000

	// TTL is how long an entry survives regardless of the client's max_age.
	TTL time.Duration // default: 1h
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Chromium instances launched by the renderer.
type BrowserConfig struct {
	// Enabled toggles the rendering tier. When false, escalations fail.
	Enabled bool // default: true

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// RenderConfig controls a single rendering run.
type RenderConfig struct {
	// NavigationTimeout bounds launch, navigation and extraction.
	NavigationTimeout time.Duration // default: 60s

	// IdleTimeout bounds the wait for network idle after navigation.
	IdleTimeout time.Duration // default: 10s

	// BlockedResourceTypes lists resource types to block.
	// Allowed: Image, Stylesheet, Font, Media, Script. default: none.
	BlockedResourceTypes []string

	// BlockAds blocks well-known ad and tracking domains.
	BlockAds bool // default: false
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
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
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
			Host: envOr("FETCHWISE_HOST", "0.0.0.0"),
			Port: envIntOr("FETCHWISE_PORT", 8080),
			Mode: envOr("FETCHWISE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Enabled:    envBoolOr("FETCHWISE_BROWSER_ENABLED", true),
			Headless:   envBoolOr("FETCHWISE_HEADLESS", true),
			NoSandbox:  envBoolOr("FETCHWISE_NO_SANDBOX", false),
			BrowserBin: os.Getenv("FETCHWISE_BROWSER_BIN"),
		},
		Render: RenderConfig{
			NavigationTimeout:    envDurationOr("FETCHWISE_NAV_TIMEOUT", 60*time.Second),
			IdleTimeout:          envDurationOr("FETCHWISE_IDLE_TIMEOUT", 10*time.Second),
			BlockedResourceTypes: envSliceOr("FETCHWISE_BLOCKED_RESOURCES", nil),
			BlockAds:             envBoolOr("FETCHWISE_BLOCK_ADS", false),
		},
		Retrieval: RetrievalConfig{
			DefaultTimeout:   envDurationOr("FETCHWISE_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:       envDurationOr("FETCHWISE_MAX_TIMEOUT", 120*time.Second),
			Retries:          envIntOr("FETCHWISE_RETRIES", 2),
			BackoffBase:      envDurationOr("FETCHWISE_BACKOFF_BASE", 500*time.Millisecond),
			BackoffMax:       envDurationOr("FETCHWISE_BACKOFF_MAX", 5*time.Second),
			InsecureTLS:      envBoolOr("FETCHWISE_INSECURE_TLS", true),
			MaxBodyBytes:     int64(envIntOr("FETCHWISE_MAX_BODY_BYTES", 10<<20)),
			DefenseDetection: envBoolOr("FETCHWISE_DEFENSE_DETECTION", true),
			RenderMemoryTTL:  envDurationOr("FETCHWISE_RENDER_MEMORY_TTL", 0),
			Proxy:            os.Getenv("FETCHWISE_PROXY"),
		},
		Search: SearchConfig{
			PageRetries:   envIntOr("FETCHWISE_SEARCH_PAGE_RETRIES", 10),
			RetryPause:    envDurationOr("FETCHWISE_SEARCH_RETRY_PAUSE", time.Second),
			PageInterval:  envDurationOr("FETCHWISE_SEARCH_PAGE_INTERVAL", time.Second),
			DefaultTarget: envIntOr("FETCHWISE_SEARCH_TARGET", 10),
			MaxPages:      envIntOr("FETCHWISE_SEARCH_MAX_PAGES", 50),
			SearxURL:      envOr("FETCHWISE_SEARX_URL", "https://searx.bndkt.io/search"),
			BaiduURL:      envOr("FETCHWISE_BAIDU_URL", "https://www.baidu.com/s"),
			BingURL:       envOr("FETCHWISE_BING_URL", "https://www.cn.bing.com/search"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("FETCHWISE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("FETCHWISE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("FETCHWISE_RATE_RPS", 5.0),
			Burst:             envIntOr("FETCHWISE_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("FETCHWISE_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("FETCHWISE_CACHE_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("FETCHWISE_LOG_LEVEL", "info"),
			Format: envOr("FETCHWISE_LOG_FORMAT", "json"),
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
