package scraper_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/fetchwise/config"
	"github.com/use-agent/fetchwise/engine"
	"github.com/use-agent/fetchwise/models"
	"github.com/use-agent/fetchwise/scraper"
)

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.Browser.Enabled = false
	cfg.Retrieval.Retries = 2
	cfg.Retrieval.BackoffBase = time.Millisecond
	cfg.Retrieval.BackoffMax = 2 * time.Millisecond
	cfg.Retrieval.MaxTimeout = 10 * time.Second
	cfg.Retrieval.Proxy = ""
	return cfg
}

func TestScraper_NewRequest(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Retrieval.Proxy = "socks5://127.0.0.1:1080"
	sc := scraper.NewScraper(cfg, nil)
	defer sc.Close()

	req, err := sc.NewRequest("https://example.com", engine.WithTimeout(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, req.Timeout)
	assert.Equal(t, 2, req.Retries)
	assert.Equal(t, "socks5://127.0.0.1:1080", req.Proxy)

	req, err = sc.NewRequest("https://example.com", engine.WithProxy("http://other:3128"), engine.WithRetries(5))
	require.NoError(t, err)
	assert.Equal(t, "http://other:3128", req.Proxy)
	assert.Equal(t, 5, req.Retries)
}

func TestScraper_Retrieve(t *testing.T) {
	t.Parallel()

	page := "<html><head><title>Static</title></head><body>" +
		strings.Repeat("<p>Rendered on the server.</p>", 10) + "</body></html>"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/static":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(page))
		default:
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		}
	}))
	defer server.Close()

	sc := scraper.NewScraper(testConfig(), nil)
	defer sc.Close()

	t.Run("static page is served by the http tier", func(t *testing.T) {
		req, err := sc.NewRequest(server.URL + "/static")
		require.NoError(t, err)

		res, err := sc.Retrieve(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, page, res.Body)
		assert.Equal(t, "Static", res.Title)
		assert.Equal(t, "http", res.Engine)
		assert.False(t, res.Escalated)
	})

	t.Run("escalation with the browser disabled fails", func(t *testing.T) {
		req, err := sc.NewRequest(server.URL + "/empty")
		require.NoError(t, err)

		res, err := sc.Retrieve(context.Background(), req)
		require.Error(t, err)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, engine.ErrRenderingDisabled)

		var re *models.RetrievalError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, models.ErrCodeRenderingFailed, re.Code)
	})

	t.Run("stats are empty without a browser", func(t *testing.T) {
		assert.Equal(t, models.RendererStats{}, sc.Stats())
	})
}
