package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/fetchwise/config"
	"github.com/use-agent/fetchwise/engine"
	"github.com/use-agent/fetchwise/models"
)

// Scraper wires the lightweight tier, the renderer and the dispatcher from
// configuration. It is safe for concurrent use.
type Scraper struct {
	cfg         *config.Config
	lightweight *engine.Lightweight
	renderer    *Renderer // nil when the browser is disabled
	dispatcher  *engine.Dispatcher
	memory      *engine.DomainMemory
	startTime   time.Time
}

// NewScraper builds both tiers. No browser is launched until a request
// escalates.
func NewScraper(cfg *config.Config, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}

	var detector *engine.Detector
	if cfg.Retrieval.DefenseDetection {
		detector = engine.DefaultDetector()
	}

	lw := engine.NewLightweight(
		engine.TLSConfig{InsecureSkipVerify: cfg.Retrieval.InsecureTLS},
		engine.WithDetector(detector),
		engine.WithBackoff(engine.NewBackoff(cfg.Retrieval.BackoffBase, cfg.Retrieval.BackoffMax)),
		engine.WithMaxBodyBytes(cfg.Retrieval.MaxBodyBytes),
		engine.WithLogger(logger),
	)

	s := &Scraper{
		cfg:         cfg,
		lightweight: lw,
		startTime:   time.Now(),
	}

	var renderTier engine.Engine = engine.DisabledRenderer()
	if cfg.Browser.Enabled {
		s.renderer = NewRenderer(cfg.Browser, cfg.Render, logger)
		renderTier = s.renderer
	}

	opts := []engine.DispatcherOption{
		engine.WithDispatcherLogger(logger.With("component", "dispatcher")),
	}
	if cfg.Retrieval.RenderMemoryTTL > 0 {
		s.memory = engine.NewDomainMemory(cfg.Retrieval.RenderMemoryTTL)
		opts = append(opts, engine.WithRenderMemory(s.memory))
	}
	s.dispatcher = engine.NewDispatcher(lw, renderTier, opts...)

	logger.Info("scraper initialised",
		"browser", cfg.Browser.Enabled,
		"retries", cfg.Retrieval.Retries,
		"defenseDetection", cfg.Retrieval.DefenseDetection,
		"renderMemoryTTL", cfg.Retrieval.RenderMemoryTTL,
	)
	return s
}

// NewRequest builds a FetchRequest with the configured defaults applied
// before opts. The timeout is clamped to Retrieval.MaxTimeout.
func (s *Scraper) NewRequest(rawURL string, opts ...engine.RequestOption) (*engine.FetchRequest, error) {
	defaults := []engine.RequestOption{
		engine.WithTimeout(s.cfg.Retrieval.DefaultTimeout),
		engine.WithRetries(s.cfg.Retrieval.Retries),
		engine.WithProxy(s.cfg.Retrieval.Proxy),
	}
	clamp := func(r *engine.FetchRequest) {
		if r.Timeout > s.cfg.Retrieval.MaxTimeout {
			r.Timeout = s.cfg.Retrieval.MaxTimeout
		}
	}
	all := append(append(defaults, opts...), clamp)
	return engine.NewFetchRequest(rawURL, all...)
}

// Retrieve runs req through the dispatcher.
func (s *Scraper) Retrieve(ctx context.Context, req *engine.FetchRequest) (*engine.Result, error) {
	return s.dispatcher.Retrieve(ctx, req)
}

// Stats returns a snapshot of the renderer's state.
func (s *Scraper) Stats() models.RendererStats {
	if s.renderer == nil {
		return models.RendererStats{}
	}
	return s.renderer.Stats()
}

// Uptime returns how long the scraper has been running.
func (s *Scraper) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Close stops background goroutines. Browsers are torn down per render, so
// there is no process to kill here.
func (s *Scraper) Close() {
	if s.memory != nil {
		s.memory.Stop()
	}
	slog.Info("scraper shutdown complete")
}
