package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/fetchwise/models"
)

// Result is the content returned by a completed retrieval.
type Result struct {
	Body        string
	Title       string
	StatusCode  int
	FinalURL    string
	ContentType string
	Engine      string
	Escalated   bool
	Attempts    int
	Elapsed     time.Duration
}

// Dispatcher runs the lightweight tier first and escalates to the renderer
// at most once. Tiers never run concurrently for one request.
type Dispatcher struct {
	lightweight Engine
	renderer    Engine
	memory      *DomainMemory
	logger      *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRenderMemory makes domains that served a defense page skip the
// lightweight tier until the entry expires. A nil memory disables this.
func WithRenderMemory(m *DomainMemory) DispatcherOption {
	return func(d *Dispatcher) { d.memory = m }
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a Dispatcher over the two tiers.
func NewDispatcher(lightweight, renderer Engine, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		lightweight: lightweight,
		renderer:    renderer,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Retrieve returns the content of req. A failed retrieval always carries a
// non-nil *models.RetrievalError; an empty Body never means failure.
func (d *Dispatcher) Retrieve(ctx context.Context, req *FetchRequest) (*Result, error) {
	start := time.Now()
	domain := extractDomain(req.URL)

	skip := req.SkipLightweight
	if !skip && d.memory != nil && d.memory.Get(domain) != "" {
		d.logger.Debug("render memory hit, skipping lightweight tier", "domain", domain)
		skip = true
	}

	if !skip {
		res := d.lightweight.Fetch(ctx, req)
		if res.Succeeded() {
			return toResult(res, false, start), nil
		}

		d.logger.Info("escalating to renderer",
			"url", req.URL,
			"status", res.Status.String(),
			"reason", string(res.Reason),
			"attempts", res.Meta.Attempts,
		)
		if res.Reason == ErrDefenseDetected && d.memory != nil {
			d.memory.Set(domain, d.renderer.Name())
		}
	}

	res := d.renderer.Fetch(ctx, req)
	if res.Succeeded() {
		d.logger.Info("renderer succeeded", "url", req.URL, "elapsed", time.Since(start))
		return toResult(res, !skip, start), nil
	}

	d.logger.Warn("retrieval failed",
		"url", req.URL,
		"reason", string(res.Reason),
		"error", res.Err,
	)
	return nil, toError(req, res)
}

func toResult(res *AttemptResult, escalated bool, start time.Time) *Result {
	return &Result{
		Body:        res.Body,
		Title:       res.Meta.Title,
		StatusCode:  res.Meta.StatusCode,
		FinalURL:    res.Meta.FinalURL,
		ContentType: res.Meta.ContentType,
		Engine:      res.Meta.Engine,
		Escalated:   escalated,
		Attempts:    res.Meta.Attempts,
		Elapsed:     time.Since(start),
	}
}

// toError converts a terminal attempt into a RetrievalError, keeping a
// RetrievalError produced by the engine itself.
func toError(req *FetchRequest, res *AttemptResult) error {
	var re *models.RetrievalError
	if errors.As(res.Err, &re) {
		if re.Kind == "" {
			re.Kind = string(res.Reason)
		}
		return re
	}

	code := models.ErrCodeRenderingFailed
	switch {
	case errors.Is(res.Err, context.DeadlineExceeded):
		code = models.ErrCodeTimeout
	case res.Reason == ErrInvalidRequest:
		code = models.ErrCodeInvalidInput
	}

	err := res.Err
	if err == nil {
		err = fmt.Errorf("%s", res.Status)
	}
	return models.NewRetrievalError(code, fmt.Sprintf("failed to retrieve %s", req.URL), err).
		WithKind(string(res.Reason))
}

// extractDomain parses the lowercased hostname from a URL string.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.ToLower(u.Hostname())
}
