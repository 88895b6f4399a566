package config

import (
	"fmt"
	"net/url"
)

var validResourceTypes = map[string]bool{
	"Image": true, "Stylesheet": true, "Font": true, "Media": true, "Script": true,
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", cfg.Server.Port)
	}

	if cfg.Retrieval.DefaultTimeout <= 0 {
		return fmt.Errorf("retrieval.default_timeout must be > 0")
	}
	if cfg.Retrieval.MaxTimeout < cfg.Retrieval.DefaultTimeout {
		return fmt.Errorf("retrieval.max_timeout must be >= retrieval.default_timeout")
	}
	if cfg.Retrieval.Retries < 1 {
		return fmt.Errorf("retrieval.retries must be >= 1, got %d", cfg.Retrieval.Retries)
	}
	if cfg.Retrieval.BackoffBase <= 0 || cfg.Retrieval.BackoffMax < cfg.Retrieval.BackoffBase {
		return fmt.Errorf("retrieval.backoff must satisfy 0 < base <= max")
	}
	if cfg.Retrieval.MaxBodyBytes <= 0 {
		return fmt.Errorf("retrieval.max_body_bytes must be > 0")
	}
	if cfg.Retrieval.RenderMemoryTTL < 0 {
		return fmt.Errorf("retrieval.render_memory_ttl must be >= 0")
	}
	if err := validateProxy(cfg.Retrieval.Proxy); err != nil {
		return err
	}

	if cfg.Render.NavigationTimeout <= 0 {
		return fmt.Errorf("render.navigation_timeout must be > 0")
	}
	if cfg.Render.IdleTimeout <= 0 {
		return fmt.Errorf("render.idle_timeout must be > 0")
	}
	for _, rt := range cfg.Render.BlockedResourceTypes {
		if !validResourceTypes[rt] {
			return fmt.Errorf("render.blocked_resources: unknown resource type %q", rt)
		}
	}

	if cfg.Search.PageRetries < 1 {
		return fmt.Errorf("search.page_retries must be >= 1, got %d", cfg.Search.PageRetries)
	}
	if cfg.Search.RetryPause < 0 || cfg.Search.PageInterval < 0 {
		return fmt.Errorf("search pauses must be >= 0")
	}
	if cfg.Search.MaxPages < 1 {
		return fmt.Errorf("search.max_pages must be >= 1, got %d", cfg.Search.MaxPages)
	}
	if cfg.Search.DefaultTarget < 1 {
		return fmt.Errorf("search.default_target must be >= 1, got %d", cfg.Search.DefaultTarget)
	}
	for name, raw := range map[string]string{
		"searx": cfg.Search.SearxURL, "baidu": cfg.Search.BaiduURL, "bing": cfg.Search.BingURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return fmt.Errorf("search.%s_url %q is not an absolute URL", name, raw)
		}
	}

	if cfg.RateLimit.RequestsPerSecond <= 0 || cfg.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit must have rps > 0 and burst >= 1")
	}

	if cfg.Cache.MaxEntries < 1 || cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache must have max_entries >= 1 and ttl > 0")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level %q is not supported (valid: debug, info, warn, error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("log.format must be 'json' or 'text', got %q", cfg.Log.Format)
	}
	return nil
}

func validateProxy(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid proxy URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
		return nil
	default:
		return fmt.Errorf("proxy URL %q: unsupported scheme %q", raw, u.Scheme)
	}
}
