package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/fetchwise/engine"
	"golang.org/x/time/rate"
)

const (
	DefaultPageRetries  = 10
	DefaultRetryPause   = time.Second
	DefaultPageInterval = time.Second
	DefaultMaxPages     = 50
)

// Retriever builds and runs retrievals. *scraper.Scraper implements it.
type Retriever interface {
	NewRequest(rawURL string, opts ...engine.RequestOption) (*engine.FetchRequest, error)
	Retrieve(ctx context.Context, req *engine.FetchRequest) (*engine.Result, error)
}

// State is the harvester's position in its page loop.
type State int

const (
	StateFetching State = iota
	StateExtracting
	StateReachedTarget
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateReachedTarget:
		return "reached_target"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Query is one harvesting job.
type Query struct {
	Text   string
	Target int // number of valid links to collect
}

// Harvest is the outcome of a harvesting job.
type Harvest struct {
	Provider string
	Query    string
	State    State
	Pages    int // result pages that yielded entries

	// Entries holds every extracted entry in page order.
	Entries []ResultEntry
	// Links holds the absolute http(s) links, at most Query.Target.
	Links []string
}

// Log renders the harvest as a provider header followed by one block per entry.
func (h *Harvest) Log() string {
	var b strings.Builder
	b.WriteString(h.Provider)
	b.WriteString(" results:")
	for _, e := range h.Entries {
		b.WriteString("\n")
		b.WriteString(e.String())
	}
	return b.String()
}

// Harvester walks a provider's result pages one at a time until enough
// valid links are collected or a page stays empty through its retry budget.
//
// A Harvester is safe for concurrent use; each Harvest call paces its own
// pages.
type Harvester struct {
	retriever    Retriever
	pageInterval time.Duration
	pageRetries  int
	maxPages     int
	retryPause   time.Duration
	logger       *slog.Logger
}

// HarvesterOption configures a Harvester.
type HarvesterOption func(*Harvester)

// WithPageInterval spaces the page fetches of one harvest at least d apart.
// Zero disables spacing.
func WithPageInterval(d time.Duration) HarvesterOption {
	return func(h *Harvester) { h.pageInterval = d }
}

func WithPageRetries(n int) HarvesterOption {
	return func(h *Harvester) {
		if n > 0 {
			h.pageRetries = n
		}
	}
}

// WithMaxPages bounds how many result pages one harvest walks.
func WithMaxPages(n int) HarvesterOption {
	return func(h *Harvester) {
		if n > 0 {
			h.maxPages = n
		}
	}
}

func WithRetryPause(d time.Duration) HarvesterOption {
	return func(h *Harvester) { h.retryPause = d }
}

func WithLogger(l *slog.Logger) HarvesterOption {
	return func(h *Harvester) { h.logger = l }
}

// NewHarvester creates a Harvester over r.
func NewHarvester(r Retriever, opts ...HarvesterOption) *Harvester {
	h := &Harvester{
		retriever:    r,
		pageInterval: DefaultPageInterval,
		pageRetries:  DefaultPageRetries,
		maxPages:     DefaultMaxPages,
		retryPause:   DefaultRetryPause,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "harvester")
	return h
}

// Harvest runs q against p. Running out of retries on a page, or walking
// past the page limit, is not an error: the harvest comes back with
// StateExhausted and whatever was collected. Errors are returned only for
// invalid queries and cancellation.
func (h *Harvester) Harvest(ctx context.Context, p Provider, q Query) (*Harvest, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, errors.New("search: empty query")
	}
	if q.Target < 1 {
		return nil, fmt.Errorf("search: target must be >= 1, got %d", q.Target)
	}

	res := &Harvest{Provider: p.Name(), Query: q.Text, State: StateFetching}
	limiter := h.newLimiter()
	page := 1
	retries := 0

	for {
		if page > h.maxPages {
			res.State = StateExhausted
			h.logger.Info("search hit page limit", "provider", p.Name(), "maxPages", h.maxPages, "links", len(res.Links))
			return res, nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return res, fmt.Errorf("search: %w", err)
		}

		res.State = StateFetching
		entries, err := h.fetchPage(ctx, p, q.Text, page)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("search: %w", ctxErr)
		}

		if err != nil || len(entries) == 0 {
			retries++
			h.logger.Info("page yielded no entries",
				"provider", p.Name(),
				"page", page,
				"retry", retries,
				"budget", h.pageRetries,
				"error", err,
			)
			if retries >= h.pageRetries {
				res.State = StateExhausted
				h.logger.Info("search exhausted", "provider", p.Name(), "page", page, "links", len(res.Links))
				return res, nil
			}
			if err := h.pause(ctx); err != nil {
				return res, fmt.Errorf("search: %w", err)
			}
			continue
		}

		res.State = StateExtracting
		res.Pages++
		for _, e := range entries {
			res.Entries = append(res.Entries, e)
			if isValidLink(e.Link) {
				res.Links = append(res.Links, e.Link)
			}
			if len(res.Links) >= q.Target {
				res.State = StateReachedTarget
				h.logger.Info("search reached target", "provider", p.Name(), "pages", res.Pages, "links", len(res.Links))
				return res, nil
			}
		}

		h.logger.Debug("page harvested",
			"provider", p.Name(),
			"page", page,
			"entries", len(entries),
			"links", len(res.Links),
		)
		page++
		retries = 0
	}
}

// newLimiter paces one harvest's page fetches.
func (h *Harvester) newLimiter() *rate.Limiter {
	if h.pageInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(h.pageInterval), 1)
}

// fetchPage retrieves and extracts one result page.
func (h *Harvester) fetchPage(ctx context.Context, p Provider, query string, page int) ([]ResultEntry, error) {
	pr := p.PageRequest(query, page)
	req, err := h.retriever.NewRequest(pr.URL,
		engine.WithParams(pr.Params),
		engine.WithHeaders(pr.Headers),
		engine.WithSkipLightweight(pr.SkipLightweight),
	)
	if err != nil {
		return nil, err
	}

	result, err := h.retriever.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(result.Body))
	if err != nil {
		return nil, fmt.Errorf("search: parse page: %w", err)
	}
	return p.Extract(doc), nil
}

func (h *Harvester) pause(ctx context.Context) error {
	if h.retryPause <= 0 {
		return nil
	}
	timer := time.NewTimer(h.retryPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isValidLink reports whether link is an absolute http(s) URL with a host.
func isValidLink(link string) bool {
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		return false
	}
	u, err := url.Parse(link)
	return err == nil && u.Host != ""
}
