package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/fetchwise/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// StatsSource reports renderer state. *scraper.Scraper implements it.
type StatsSource interface {
	Stats() models.RendererStats
}

// Health returns a handler for GET /api/v1/health.
//
// Status is "degraded" when the rendering tier is disabled, since every
// escalation will then fail.
func Health(src StatsSource, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := src.Stats()

		status := "healthy"
		if !stats.Enabled {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:   status,
			Uptime:   time.Since(startTime).Round(time.Second).String(),
			Renderer: stats,
			Version:  Version,
		})
	}
}
