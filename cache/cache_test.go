package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/fetchwise/cache"
	"github.com/use-agent/fetchwise/models"
)

func TestKey(t *testing.T) {
	t.Parallel()

	base := func() *models.RetrieveRequest {
		return &models.RetrieveRequest{
			URL:    "https://example.com/search",
			Method: "GET",
			Params: map[string]string{"q": "go", "page": "1"},
		}
	}

	a, b := base(), base()
	b.Params = map[string]string{"page": "1", "q": "go"}
	assert.Equal(t, cache.Key(a), cache.Key(b), "param order must not matter")

	c := base()
	c.Params["page"] = "2"
	assert.NotEqual(t, cache.Key(a), cache.Key(c))

	d := base()
	d.Method = "POST"
	d.Form = map[string]string{"q": "go"}
	assert.NotEqual(t, cache.Key(a), cache.Key(d))

	e := base()
	e.FetchMode = "browser"
	assert.NotEqual(t, cache.Key(a), cache.Key(e))

	alice, bob := base(), base()
	alice.Headers = map[string]string{"Cookie": "session=alice"}
	bob.Headers = map[string]string{"Cookie": "session=bob"}
	assert.NotEqual(t, cache.Key(alice), cache.Key(bob), "credentials must not share an entry")
	assert.NotEqual(t, cache.Key(a), cache.Key(alice))

	lower := base()
	lower.Headers = map[string]string{"cookie": "session=alice"}
	assert.Equal(t, cache.Key(alice), cache.Key(lower), "header names are case-insensitive")

	auth := base()
	auth.Headers = map[string]string{"Authorization": "Bearer token"}
	assert.NotEqual(t, cache.Key(a), cache.Key(auth))

	ua := base()
	ua.UserAgent = "Mozilla/5.0 (iPhone)"
	assert.NotEqual(t, cache.Key(a), cache.Key(ua))

	proxied := base()
	proxied.ProxyURL = "http://proxy.example.com:8080"
	assert.NotEqual(t, cache.Key(a), cache.Key(proxied))
}

func TestCache_GetSet(t *testing.T) {
	t.Parallel()

	c := cache.New(2, time.Hour)
	defer c.Stop()

	resp := &models.RetrieveResponse{Success: true, Content: "cached"}
	c.Set("k1", resp)

	_, hit := c.Get("k1", 0)
	assert.False(t, hit, "max_age 0 disables lookups")

	got, hit := c.Get("k1", 60_000)
	require.True(t, hit)
	assert.Same(t, resp, got)

	_, hit = c.Get("missing", 60_000)
	assert.False(t, hit)

	time.Sleep(5 * time.Millisecond)
	_, hit = c.Get("k1", 1)
	assert.False(t, hit, "entries older than max_age are misses")
}

func TestCache_Capacity(t *testing.T) {
	t.Parallel()

	c := cache.New(2, time.Hour)
	defer c.Stop()

	c.Set("a", &models.RetrieveResponse{})
	c.Set("b", &models.RetrieveResponse{})
	c.Set("b", &models.RetrieveResponse{})
	assert.Equal(t, 2, c.Len())

	c.Set("c", &models.RetrieveResponse{})
	assert.Equal(t, 2, c.Len())
	_, hit := c.Get("c", 60_000)
	assert.True(t, hit)
}

func TestCache_TTL(t *testing.T) {
	t.Parallel()

	c := cache.New(10, 20*time.Millisecond)
	defer c.Stop()

	c.Set("a", &models.RetrieveResponse{})
	time.Sleep(40 * time.Millisecond)
	_, hit := c.Get("a", 60_000)
	assert.False(t, hit)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 10*time.Millisecond)
}
