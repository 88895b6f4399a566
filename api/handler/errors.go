package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/fetchwise/models"
)

// asRetrievalError unwraps err to a RetrievalError, wrapping unknown
// errors as internal.
func asRetrievalError(err error) *models.RetrievalError {
	var re *models.RetrievalError
	if errors.As(err, &re) {
		return re
	}
	return models.NewRetrievalError(models.ErrCodeInternal, err.Error(), err)
}

// respondError maps err to an HTTP status and writes body, whose Error field
// the caller has already populated via fill.
func respondError(c *gin.Context, err error, fill func(*models.ErrorDetail) any) {
	re := asRetrievalError(err)
	c.JSON(mapErrorToStatus(re), fill(re.ToDetail()))
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.RetrievalError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeRenderingFailed, models.ErrCodeSearchExhausted:
		return http.StatusBadGateway // 502
	case models.ErrCodeBrowserCrash:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}

func invalidInput(err error) *models.ErrorDetail {
	return &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()}
}
