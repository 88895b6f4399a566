package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/fetchwise/cache"
	"github.com/use-agent/fetchwise/cleaner"
	"github.com/use-agent/fetchwise/engine"
	"github.com/use-agent/fetchwise/models"
	"github.com/use-agent/fetchwise/search"
)

// Retrieve returns a handler for POST /api/v1/retrieve.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup when max_age > 0.
//  3. Retriever.Retrieve → body + metadata    (records retrieval_ms)
//  4. Cleaner.Convert when markdown is asked (records cleaning_ms)
//  5. Fill timing, store in cache, return 200.
func Retrieve(rt search.Retriever, cl *cleaner.Cleaner, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.RetrieveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.RetrieveResponse{Error: invalidInput(err)})
			return
		}
		req.Defaults()

		fail := func(timing models.TimingInfo) func(*models.ErrorDetail) any {
			return func(d *models.ErrorDetail) any {
				timing.TotalMs = time.Since(totalStart).Milliseconds()
				return models.RetrieveResponse{Error: d, Timing: timing}
			}
		}

		// ── 2. Cache lookup ─────────────────────────────────────────
		cacheKey := cache.Key(&req)
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				out := *cached
				out.CacheStatus = "hit"
				out.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
				c.JSON(http.StatusOK, out)
				return
			}
		}

		// ── 3. Retrieve ─────────────────────────────────────────────
		fr, err := rt.NewRequest(req.URL, requestOptions(&req)...)
		if err != nil {
			respondError(c, models.NewRetrievalError(models.ErrCodeInvalidInput, err.Error(), err), fail(models.TimingInfo{}))
			return
		}

		retrievalStart := time.Now()
		result, err := rt.Retrieve(c.Request.Context(), fr)
		retrievalMs := time.Since(retrievalStart).Milliseconds()
		if err != nil {
			respondError(c, err, fail(models.TimingInfo{RetrievalMs: retrievalMs}))
			return
		}

		resp := &models.RetrieveResponse{
			Success:     true,
			StatusCode:  result.StatusCode,
			FinalURL:    result.FinalURL,
			Title:       result.Title,
			ContentType: result.ContentType,
			Content:     result.Body,
			EngineUsed:  result.Engine,
			Escalated:   result.Escalated,
			Attempts:    result.Attempts,
		}

		// ── 4. Markdown ─────────────────────────────────────────────
		var cleaningMs int64
		if req.OutputFormat == "markdown" {
			cleanStart := time.Now()
			out, err := cl.Convert(result.Body, cleaner.Options{
				Preprocess: true,
				Mode:       req.ExtractMode,
				Selector:   req.CSSSelector,
				SourceURL:  result.FinalURL,
			})
			cleaningMs = time.Since(cleanStart).Milliseconds()
			if err != nil {
				respondError(c, err, fail(models.TimingInfo{RetrievalMs: retrievalMs, CleaningMs: cleaningMs}))
				return
			}
			resp.Content = out.Markdown
			resp.Tokens = out.Tokens
			if out.Title != "" {
				resp.Title = out.Title
			}
		} else {
			n := cleaner.EstimateTokens(result.Body)
			resp.Tokens = cleaner.Savings(n, n)
		}

		// ── 5. Timing, cache store, respond ─────────────────────────
		resp.Timing = models.TimingInfo{
			TotalMs:     time.Since(totalStart).Milliseconds(),
			RetrievalMs: retrievalMs,
			CleaningMs:  cleaningMs,
		}
		if cc != nil && req.MaxAge > 0 {
			cc.Set(cacheKey, resp)
			out := *resp
			out.CacheStatus = "miss"
			c.JSON(http.StatusOK, out)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// requestOptions translates the API payload into engine options. Unset
// fields are left to the retriever's defaults.
func requestOptions(req *models.RetrieveRequest) []engine.RequestOption {
	opts := []engine.RequestOption{
		engine.WithMethod(req.Method),
		engine.WithParams(req.Params),
		engine.WithHeaders(req.Headers),
		engine.WithSkipLightweight(req.FetchMode == "browser"),
		engine.WithUserAgent(req.UserAgent),
	}
	if len(req.Form) > 0 {
		opts = append(opts, engine.WithForm(req.Form))
	}
	if req.ProxyURL != "" {
		opts = append(opts, engine.WithProxy(req.ProxyURL))
	}
	if req.Timeout > 0 {
		opts = append(opts, engine.WithTimeout(time.Duration(req.Timeout)*time.Second))
	}
	if req.Retries > 0 {
		opts = append(opts, engine.WithRetries(req.Retries))
	}
	return opts
}
