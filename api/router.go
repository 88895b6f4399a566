package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/fetchwise/api/handler"
	"github.com/use-agent/fetchwise/api/middleware"
	"github.com/use-agent/fetchwise/cache"
	"github.com/use-agent/fetchwise/cleaner"
	"github.com/use-agent/fetchwise/config"
	"github.com/use-agent/fetchwise/models"
	"github.com/use-agent/fetchwise/search"
)

// Backend is what the router needs from the retrieval layer.
// *scraper.Scraper implements it.
type Backend interface {
	search.Retriever
	Stats() models.RendererStats
}

// Deps bundles the router's collaborators.
type Deps struct {
	Backend   Backend
	Cleaner   *cleaner.Cleaner
	Cache     *cache.Cache // optional
	Config    *config.Config
	Logger    *slog.Logger
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work. ctx bounds
// the rate limiter's background sweeper.
func NewRouter(ctx context.Context, d Deps) *gin.Engine {
	gin.SetMode(d.Config.Server.Mode)
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(d.Backend, d.StartTime))

	protected := v1.Group("")
	if d.Config.Auth.Enabled {
		protected.Use(middleware.Auth(d.Config.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, d.Config.RateLimit))

	protected.POST("/retrieve", handler.Retrieve(d.Backend, d.Cleaner, d.Cache))
	protected.POST("/search", handler.Search(d.Backend, d.Config.Search, d.Logger))
	protected.POST("/markdown", handler.Markdown(d.Cleaner))

	return r
}
