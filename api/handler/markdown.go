package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/fetchwise/cleaner"
	"github.com/use-agent/fetchwise/models"
)

// Markdown returns a handler for POST /api/v1/markdown. It converts HTML the
// caller already holds; nothing is retrieved.
func Markdown(cl *cleaner.Cleaner) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.MarkdownRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.MarkdownResponse{Error: invalidInput(err)})
			return
		}
		req.Defaults()

		out, err := cl.Convert(req.HTML, cleaner.Options{
			Preprocess: *req.Preprocess,
			Mode:       req.ExtractMode,
			Selector:   req.CSSSelector,
			SourceURL:  req.SourceURL,
		})
		elapsed := time.Since(start).Milliseconds()
		if err != nil {
			respondError(c, err, func(d *models.ErrorDetail) any {
				return models.MarkdownResponse{Error: d, Timing: models.TimingInfo{TotalMs: elapsed, CleaningMs: elapsed}}
			})
			return
		}

		c.JSON(http.StatusOK, models.MarkdownResponse{
			Success:  true,
			Markdown: out.Markdown,
			Title:    out.Title,
			Tokens:   out.Tokens,
			Timing:   models.TimingInfo{TotalMs: elapsed, CleaningMs: elapsed},
		})
	}
}
