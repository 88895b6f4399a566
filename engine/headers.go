package engine

import "strings"

// DefaultUserAgent is sent by both tiers unless the caller overrides it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Default header templates. Read-only after init; callers get copies.
var (
	lightweightGetHeaders = map[string]string{
		"User-Agent":                DefaultUserAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9,zh-CN;q=0.8",
		"Accept-Encoding":           "gzip, deflate, br",
		"Upgrade-Insecure-Requests": "1",
	}

	lightweightPostHeaders = map[string]string{
		"User-Agent":      DefaultUserAgent,
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.9,zh-CN;q=0.8",
		"Accept-Encoding": "gzip, deflate, br",
		"Content-Type":    "application/x-www-form-urlencoded",
	}

	renderGetHeaders = map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}

	renderPostHeaders = map[string]string{
		"Accept":       "*/*",
		"Content-Type": "application/x-www-form-urlencoded",
	}
)

// LightweightHeaders returns the header set the HTTP tier sends for req:
// the method defaults with the caller's headers layered on top.
func LightweightHeaders(req *FetchRequest) map[string]string {
	base := lightweightGetHeaders
	if req.Method == MethodPost {
		base = lightweightPostHeaders
	}
	return mergeHeaders(base, req.Headers)
}

// RenderHeaders returns the extra headers the browser tier sends for req.
// Caller headers replace the defaults entirely.
func RenderHeaders(req *FetchRequest) map[string]string {
	if len(req.Headers) > 0 {
		return copyMap(req.Headers)
	}
	if req.Method == MethodPost {
		return copyMap(renderPostHeaders)
	}
	return copyMap(renderGetHeaders)
}

// RenderUserAgent picks the browser user agent: explicit override, then a
// User-Agent header, then DefaultUserAgent.
func RenderUserAgent(req *FetchRequest) string {
	if req.UserAgent != "" {
		return req.UserAgent
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, "User-Agent") && v != "" {
			return v
		}
	}
	return DefaultUserAgent
}

// mergeHeaders overlays override onto base case-insensitively.
func mergeHeaders(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		for existing := range out {
			if strings.EqualFold(existing, k) {
				delete(out, existing)
			}
		}
		out[k] = v
	}
	return out
}
