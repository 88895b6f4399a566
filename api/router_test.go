package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/fetchwise/api"
	"github.com/use-agent/fetchwise/cache"
	"github.com/use-agent/fetchwise/cleaner"
	"github.com/use-agent/fetchwise/config"
	"github.com/use-agent/fetchwise/engine"
	"github.com/use-agent/fetchwise/models"
)

const testKey = "test-key"

// stubBackend answers every retrieval with respond.
type stubBackend struct {
	mu       sync.Mutex
	requests []*engine.FetchRequest
	respond  func(req *engine.FetchRequest) (*engine.Result, error)
	stats    models.RendererStats
}

func (s *stubBackend) NewRequest(rawURL string, opts ...engine.RequestOption) (*engine.FetchRequest, error) {
	return engine.NewFetchRequest(rawURL, opts...)
}

func (s *stubBackend) Retrieve(_ context.Context, req *engine.FetchRequest) (*engine.Result, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.respond(req)
}

func (s *stubBackend) Stats() models.RendererStats { return s.stats }

func (s *stubBackend) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *stubBackend) last() *engine.FetchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.Server.Mode = gin.TestMode
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []string{testKey}
	cfg.RateLimit.RequestsPerSecond = 1000
	cfg.RateLimit.Burst = 1000
	cfg.Search.PageInterval = 0
	cfg.Search.RetryPause = 0
	cfg.Search.PageRetries = 2
	cfg.Search.SearxURL = "https://searx.example.com/search"
	return cfg
}

func newTestRouter(t *testing.T, b *stubBackend, mutate ...func(*config.Config)) http.Handler {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	cc := cache.New(100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cc.Stop()
		cancel()
	})
	return api.NewRouter(ctx, api.Deps{
		Backend:   b,
		Cleaner:   cleaner.NewCleaner(nil),
		Cache:     cc,
		Config:    cfg,
		StartTime: time.Now(),
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("X-API-Key", testKey)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

var page = `<html><head><title>Fetched</title></head><body><h1>Hello</h1><p>World</p><script>track()</script></body></html>`

func okBackend() *stubBackend {
	return &stubBackend{
		respond: func(req *engine.FetchRequest) (*engine.Result, error) {
			return &engine.Result{
				Body:       page,
				Title:      "Fetched",
				StatusCode: 200,
				FinalURL:   req.URL,
				Engine:     "http",
				Attempts:   1,
			}, nil
		},
		stats: models.RendererStats{Enabled: true},
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	w := do(t, newTestRouter(t, okBackend()), http.MethodGet, "/api/v1/health", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.Renderer.Enabled)

	w = do(t, newTestRouter(t, &stubBackend{}), http.MethodGet, "/api/v1/health", nil, false)
	assert.Equal(t, "degraded", decode[models.HealthResponse](t, w).Status)
}

func TestAuth(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, okBackend())
	body := map[string]any{"url": "https://example.com"}

	w := do(t, h, http.MethodPost, "/api/v1/retrieve", body, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrCodeUnauthorized, decode[models.ErrorResponse](t, w).Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/retrieve", strings.NewReader(`{"url":"https://example.com"}`))
	req.Header.Set("Authorization", "Bearer "+testKey)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/retrieve", strings.NewReader(`{"url":"https://example.com"}`))
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, okBackend(), func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerSecond = 0.001
		cfg.RateLimit.Burst = 1
	})
	body := map[string]any{"url": "https://example.com"}

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/retrieve", body, true).Code)
	w := do(t, h, http.MethodPost, "/api/v1/retrieve", body, true)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, models.ErrCodeRateLimited, decode[models.ErrorResponse](t, w).Error.Code)
}

func TestRetrieve(t *testing.T) {
	t.Parallel()

	t.Run("raw output passes the request through", func(t *testing.T) {
		t.Parallel()

		b := okBackend()
		w := do(t, newTestRouter(t, b), http.MethodPost, "/api/v1/retrieve", map[string]any{
			"url":        "https://example.com/login",
			"form":       map[string]string{"user": "ada"},
			"params":     map[string]string{"lang": "en"},
			"timeout":    5,
			"retries":    4,
			"fetch_mode": "browser",
		}, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[models.RetrieveResponse](t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, page, resp.Content)
		assert.Equal(t, "Fetched", resp.Title)
		assert.Equal(t, "http", resp.EngineUsed)

		req := b.last()
		assert.Equal(t, engine.MethodPost, req.Method)
		assert.Equal(t, "ada", req.Form["user"])
		assert.Equal(t, "en", req.Params["lang"])
		assert.Equal(t, 5*time.Second, req.Timeout)
		assert.Equal(t, 4, req.Retries)
		assert.True(t, req.SkipLightweight)
	})

	t.Run("markdown output", func(t *testing.T) {
		t.Parallel()

		w := do(t, newTestRouter(t, okBackend()), http.MethodPost, "/api/v1/retrieve", map[string]any{
			"url":           "https://example.com",
			"output_format": "markdown",
		}, true)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[models.RetrieveResponse](t, w)
		assert.Equal(t, "# Hello\n\nWorld", resp.Content)
		assert.Greater(t, resp.Tokens.SavingsPercent, 0.0)
	})

	t.Run("cache serves repeated requests", func(t *testing.T) {
		t.Parallel()

		b := okBackend()
		h := newTestRouter(t, b)
		body := map[string]any{"url": "https://example.com/cached", "max_age": 60000}

		first := decode[models.RetrieveResponse](t, do(t, h, http.MethodPost, "/api/v1/retrieve", body, true))
		second := decode[models.RetrieveResponse](t, do(t, h, http.MethodPost, "/api/v1/retrieve", body, true))
		assert.Equal(t, "miss", first.CacheStatus)
		assert.Equal(t, "hit", second.CacheStatus)
		assert.Equal(t, first.Content, second.Content)
		assert.Equal(t, 1, b.calls())
	})

	t.Run("invalid payloads are rejected", func(t *testing.T) {
		t.Parallel()

		h := newTestRouter(t, okBackend())
		for _, body := range []map[string]any{
			{},
			{"url": "not a url"},
			{"url": "https://example.com", "method": "DELETE"},
			{"url": "https://example.com", "timeout": 500},
		} {
			w := do(t, h, http.MethodPost, "/api/v1/retrieve", body, true)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
			assert.Equal(t, models.ErrCodeInvalidInput, decode[models.RetrieveResponse](t, w).Error.Code)
		}
	})

	t.Run("retrieval errors map to statuses", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			code   string
			status int
		}{
			{models.ErrCodeTimeout, http.StatusGatewayTimeout},
			{models.ErrCodeRenderingFailed, http.StatusBadGateway},
			{models.ErrCodeBrowserCrash, http.StatusServiceUnavailable},
		}
		for _, tt := range tests {
			b := &stubBackend{respond: func(*engine.FetchRequest) (*engine.Result, error) {
				return nil, models.NewRetrievalError(tt.code, "failed", nil).WithKind(string(engine.ErrRenderingFailed))
			}}
			w := do(t, newTestRouter(t, b), http.MethodPost, "/api/v1/retrieve", map[string]any{"url": "https://example.com"}, true)
			assert.Equal(t, tt.status, w.Code, tt.code)

			resp := decode[models.RetrieveResponse](t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, string(engine.ErrRenderingFailed), resp.Error.Kind)
		}
	})
}

const searxPage = `<html><body>
	<article class="result result-default category-general">
		<a class="url_header" href="https://go.dev/">go.dev</a>
		<h3>The Go Programming Language</h3>
		<p class="content">Build simple, secure, scalable systems with Go.</p>
	</article>
	<article class="result result-default category-general">
		<a class="url_header" href="https://pkg.go.dev/">pkg.go.dev</a>
		<h3>Go Packages</h3>
		<p class="content">Discover packages.</p>
	</article>
</body></html>`

func TestSearch(t *testing.T) {
	t.Parallel()

	t.Run("collects links up to the target", func(t *testing.T) {
		t.Parallel()

		b := &stubBackend{respond: func(*engine.FetchRequest) (*engine.Result, error) {
			return &engine.Result{Body: searxPage}, nil
		}}
		w := do(t, newTestRouter(t, b), http.MethodPost, "/api/v1/search", map[string]any{"query": "golang", "target": 3}, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[models.SearchResponse](t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, "searx", resp.Engine)
		assert.Equal(t, "reached_target", resp.State)
		assert.Equal(t, 2, resp.Pages)
		assert.Equal(t, []string{"https://go.dev/", "https://pkg.go.dev/", "https://go.dev/"}, resp.Links)
		assert.True(t, strings.HasPrefix(resp.Log, "searx results:\nTitle: The Go Programming Language"))
		assert.Equal(t, "golang", b.last().Params["q"])
	})

	t.Run("exhaustion without links is reported", func(t *testing.T) {
		t.Parallel()

		b := &stubBackend{respond: func(*engine.FetchRequest) (*engine.Result, error) {
			return &engine.Result{Body: "<html><body>no results</body></html>"}, nil
		}}
		w := do(t, newTestRouter(t, b), http.MethodPost, "/api/v1/search", map[string]any{"query": "zzz"}, true)
		assert.Equal(t, http.StatusBadGateway, w.Code)

		resp := decode[models.SearchResponse](t, w)
		assert.Equal(t, "exhausted", resp.State)
		assert.Equal(t, models.ErrCodeSearchExhausted, resp.Error.Code)
		assert.Equal(t, 2, b.calls())
	})

	t.Run("unknown engine is rejected", func(t *testing.T) {
		t.Parallel()

		w := do(t, newTestRouter(t, okBackend()), http.MethodPost, "/api/v1/search", map[string]any{"query": "q", "engine": "altavista"}, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMarkdown(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, okBackend())

	w := do(t, h, http.MethodPost, "/api/v1/markdown", map[string]any{"html": page}, true)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.MarkdownResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "# Hello\n\nWorld", resp.Markdown)
	assert.Equal(t, "Fetched", resp.Title)

	w = do(t, h, http.MethodPost, "/api/v1/markdown", map[string]any{"html": page, "css_selector": "[[["}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/markdown", map[string]any{}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
