//go:build integration

package scraper_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/fetchwise/config"
	"github.com/use-agent/fetchwise/engine"
	"github.com/use-agent/fetchwise/scraper"
)

func newIntegrationRenderer() *scraper.Renderer {
	return scraper.NewRenderer(
		config.BrowserConfig{Enabled: true, Headless: true, NoSandbox: true},
		config.RenderConfig{NavigationTimeout: 60 * time.Second, IdleTimeout: 5 * time.Second},
		nil,
	)
}

func TestRenderer_Render(t *testing.T) {
	t.Run("executes client-side scripts", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><title>SPA</title></head><body><div id="root"></div>
<script>document.getElementById("root").innerHTML = "<p>rendered by script</p>";</script></body></html>`))
		}))
		defer server.Close()

		req, err := engine.NewFetchRequest(server.URL)
		require.NoError(t, err)

		res := newIntegrationRenderer().Render(context.Background(), req)
		require.Equal(t, engine.StatusSuccess, res.Status, "err: %v", res.Err)
		assert.Contains(t, res.Body, "rendered by script")
		assert.Equal(t, "SPA", res.Meta.Title)
		assert.Equal(t, http.StatusOK, res.Meta.StatusCode)
	})

	t.Run("sends the form as a post", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"method":"` + r.Method + `","name":"` + r.PostForm.Get("name") + `"}`))
		}))
		defer server.Close()

		req, err := engine.NewFetchRequest(server.URL, engine.WithForm(map[string]string{"name": "ada"}))
		require.NoError(t, err)

		res := newIntegrationRenderer().Render(context.Background(), req)
		require.Equal(t, engine.StatusSuccess, res.Status, "err: %v", res.Err)
		assert.JSONEq(t, `{"method":"POST","name":"ada"}`, res.Body)
	})

	t.Run("unreachable host is a hard failure", func(t *testing.T) {
		req, err := engine.NewFetchRequest("http://non-existent-host.invalid/")
		require.NoError(t, err)

		res := newIntegrationRenderer().Render(context.Background(), req)
		assert.Equal(t, engine.StatusHardFailure, res.Status)
		assert.Equal(t, engine.ErrRenderingFailed, res.Reason)
	})
}
