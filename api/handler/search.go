package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/fetchwise/config"
	"github.com/use-agent/fetchwise/models"
	"github.com/use-agent/fetchwise/search"
)

// Search returns a handler for POST /api/v1/search.
//
// A harvest that runs out of retries still answers 200 with whatever it
// collected; only a harvest that found no links at all is reported as
// SEARCH_EXHAUSTED.
func Search(rt search.Retriever, cfg config.SearchConfig, logger *slog.Logger) gin.HandlerFunc {
	harvester := search.NewHarvester(rt,
		search.WithPageInterval(cfg.PageInterval),
		search.WithPageRetries(cfg.PageRetries),
		search.WithMaxPages(cfg.MaxPages),
		search.WithRetryPause(cfg.RetryPause),
		search.WithLogger(logger),
	)

	return func(c *gin.Context) {
		start := time.Now()

		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.SearchResponse{Error: invalidInput(err)})
			return
		}
		req.Defaults(cfg.DefaultTarget)

		provider, err := search.NewProvider(req.Engine, cfg)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.SearchResponse{Error: invalidInput(err)})
			return
		}

		h, err := harvester.Harvest(c.Request.Context(), provider, search.Query{Text: req.Query, Target: req.Target})
		resp := toSearchResponse(req, h)
		resp.Timing = models.TimingInfo{
			TotalMs:     time.Since(start).Milliseconds(),
			RetrievalMs: time.Since(start).Milliseconds(),
		}

		if err != nil {
			code, msg := models.ErrCodeInvalidInput, err.Error()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				code, msg = models.ErrCodeTimeout, "search interrupted"
			}
			respondError(c, models.NewRetrievalError(code, msg, err), func(d *models.ErrorDetail) any {
				resp.Success = false
				resp.Error = d
				return resp
			})
			return
		}
		if h.State == search.StateExhausted && len(h.Links) == 0 {
			respondError(c, models.NewRetrievalError(models.ErrCodeSearchExhausted, "no results before the retry budget ran out", nil), func(d *models.ErrorDetail) any {
				resp.Success = false
				resp.Error = d
				return resp
			})
			return
		}

		resp.Success = true
		c.JSON(http.StatusOK, resp)
	}
}

func toSearchResponse(req models.SearchRequest, h *search.Harvest) models.SearchResponse {
	resp := models.SearchResponse{
		Engine:  req.Engine,
		Query:   req.Query,
		Entries: []models.SearchEntry{},
		Links:   []string{},
	}
	if h == nil {
		return resp
	}
	resp.State = h.State.String()
	resp.Pages = h.Pages
	for _, e := range h.Entries {
		resp.Entries = append(resp.Entries, models.SearchEntry{Title: e.Title, Link: e.Link, Snippet: e.Snippet})
	}
	resp.Links = append(resp.Links, h.Links...)
	resp.Log = h.Log()
	return resp
}
