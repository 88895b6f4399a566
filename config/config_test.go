package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Browser.Enabled)
	assert.Equal(t, 2, cfg.Retrieval.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.Retrieval.BackoffBase)
	assert.Equal(t, 5*time.Second, cfg.Retrieval.BackoffMax)
	assert.Equal(t, int64(10<<20), cfg.Retrieval.MaxBodyBytes)
	assert.Equal(t, 10, cfg.Search.PageRetries)
	assert.Equal(t, 50, cfg.Search.MaxPages)
	assert.Empty(t, cfg.Render.BlockedResourceTypes)
	require.NoError(t, Validate(cfg))
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("FETCHWISE_PORT", "9090")
	t.Setenv("FETCHWISE_RETRIES", "4")
	t.Setenv("FETCHWISE_BACKOFF_BASE", "250ms")
	t.Setenv("FETCHWISE_BLOCKED_RESOURCES", "Image, Font")
	t.Setenv("FETCHWISE_INSECURE_TLS", "false")
	t.Setenv("FETCHWISE_PROXY", "socks5://127.0.0.1:1080")
	t.Setenv("FETCHWISE_RATE_RPS", "not-a-number")

	cfg := Load()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Retrieval.Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.Retrieval.BackoffBase)
	assert.Equal(t, []string{"Image", "Font"}, cfg.Render.BlockedResourceTypes)
	assert.False(t, cfg.Retrieval.InsecureTLS)
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.Retrieval.Proxy)
	assert.Equal(t, 5.0, cfg.RateLimit.RequestsPerSecond)
	require.NoError(t, Validate(cfg))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero retries", func(c *Config) { c.Retrieval.Retries = 0 }},
		{"backoff max below base", func(c *Config) { c.Retrieval.BackoffMax = time.Millisecond }},
		{"unsupported proxy scheme", func(c *Config) { c.Retrieval.Proxy = "ftp://proxy:21" }},
		{"unknown resource type", func(c *Config) { c.Render.BlockedResourceTypes = []string{"Video"} }},
		{"relative searx url", func(c *Config) { c.Search.SearxURL = "/search" }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"zero page retries", func(c *Config) { c.Search.PageRetries = 0 }},
		{"zero max pages", func(c *Config) { c.Search.MaxPages = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}
