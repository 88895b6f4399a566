package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/use-agent/fetchwise/models"
)

// entry holds a cached response with its creation timestamp.
type entry struct {
	response  *models.RetrieveResponse
	createdAt time.Time
}

// Cache is an in-memory cache of successful retrieval responses.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// New creates a Cache holding at most maxEntries responses. A background
// goroutine evicts entries older than ttl; call Stop to end it.
func New(maxEntries int, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		stopCh:     make(chan struct{}),
	}

	go c.cleanupLoop(min(ttl, 5*time.Minute))
	return c
}

// Key identifies a retrieval by everything that changes its result: method,
// URL, query params, form fields, caller headers (names folded to canonical
// case), user agent, proxy, fetch mode and output shaping. Requests carrying
// different credentials never share an entry.
func Key(req *models.RetrieveRequest) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	writeMap := func(m map[string]string) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			write(k)
			write(m[k])
		}
		write("|")
	}

	headers := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		headers[http.CanonicalHeaderKey(k)] = v
	}

	write(req.Method)
	write(req.URL)
	writeMap(req.Params)
	writeMap(req.Form)
	writeMap(headers)
	write(req.UserAgent)
	write(req.ProxyURL)
	write(req.FetchMode)
	write(req.OutputFormat)
	write(req.ExtractMode)
	write(req.CSSSelector)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response for key if it is younger than maxAgeMs
// milliseconds. No lookup happens when maxAgeMs <= 0.
func (c *Cache) Get(key string, maxAgeMs int64) (*models.RetrieveResponse, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if time.Since(e.createdAt) > maxAge || time.Since(e.createdAt) > c.ttl {
		return nil, false
	}

	return e.response, true
}

// Set stores resp. At capacity, an arbitrary entry is evicted first.
func (c *Cache) Set(key string, resp *models.RetrieveResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		response:  resp,
		createdAt: time.Now(),
	}
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := time.Now().Add(-c.ttl)
	c.mu.Lock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}
