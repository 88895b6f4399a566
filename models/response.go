package models

// RetrieveResponse is the response for POST /api/v1/retrieve.
type RetrieveResponse struct {
	// Success indicates whether the retrieval completed without errors.
	Success bool `json:"success"`

	// StatusCode is the HTTP status code of the final response.
	StatusCode int `json:"status_code"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url"`

	// Title is the document title, when the content is HTML.
	Title string `json:"title,omitempty"`

	// ContentType is the response Content-Type, when known.
	ContentType string `json:"content_type,omitempty"`

	// Content is the retrieved body in the requested format.
	Content string `json:"content"`

	// EngineUsed is the tier that produced the content ("http" or "rod").
	EngineUsed string `json:"engine_used,omitempty"`

	// Escalated is true when the HTTP tier handed over to the browser.
	Escalated bool `json:"escalated"`

	// Attempts is the number of HTTP-tier attempts made.
	Attempts int `json:"attempts,omitempty"`

	// Tokens provides token estimates for the content.
	Tokens TokenInfo `json:"tokens"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// SearchResponse is the response for POST /api/v1/search.
type SearchResponse struct {
	Success bool   `json:"success"`
	Engine  string `json:"engine"`
	Query   string `json:"query"`

	// State is the terminal harvester state: "reached_target" or "exhausted".
	State string `json:"state,omitempty"`

	// Pages is the number of result pages harvested.
	Pages int `json:"pages"`

	// Entries holds every extracted entry, valid link or not.
	Entries []SearchEntry `json:"entries"`

	// Links holds the absolute http(s) links, capped at the target.
	Links []string `json:"links"`

	// Log is the human-readable rendering of Entries.
	Log string `json:"log"`

	Timing TimingInfo   `json:"timing"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// SearchEntry is one extracted search result.
type SearchEntry struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// MarkdownResponse is the response for POST /api/v1/markdown.
type MarkdownResponse struct {
	Success  bool         `json:"success"`
	Markdown string       `json:"markdown"`
	Title    string       `json:"title,omitempty"`
	Tokens   TokenInfo    `json:"tokens"`
	Timing   TimingInfo   `json:"timing"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// TokenInfo provides before/after token estimates to show conversion efficacy.
type TokenInfo struct {
	// OriginalEstimate is the estimated token count of the raw body.
	OriginalEstimate int `json:"original_estimate"`

	// CleanedEstimate is the estimated token count of the returned content.
	CleanedEstimate int `json:"cleaned_estimate"`

	// SavingsPercent is the percentage of tokens removed (0-100).
	SavingsPercent float64 `json:"savings_percent"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// RetrievalMs is the time spent retrieving content.
	RetrievalMs int64 `json:"retrieval_ms"`

	// CleaningMs is the time spent converting to markdown.
	CleaningMs int64 `json:"cleaning_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string        `json:"status"` // "healthy" or "degraded"
	Uptime   string        `json:"uptime"`
	Renderer RendererStats `json:"renderer"`
	Version  string        `json:"version"`
}

// RendererStats reports the state of the browser tier.
type RendererStats struct {
	Enabled       bool  `json:"enabled"`
	ActiveRenders int   `json:"active_renders"`
	TotalRenders  int64 `json:"total_renders"`
	FailedRenders int64 `json:"failed_renders"`
}

// ErrorResponse is the body of requests rejected before reaching a handler.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
