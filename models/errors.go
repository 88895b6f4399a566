package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout         = "RETRIEVAL_TIMEOUT"
	ErrCodeNavigation      = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash    = "BROWSER_CRASH"
	ErrCodeRenderingFailed = "RENDERING_FAILED"
	ErrCodeConversion      = "CONVERSION_FAILED"
	ErrCodeSearchExhausted = "SEARCH_EXHAUSTED"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// RetrievalError is the internal error type carrying an error code and the
// engine-level failure kind. It supports error wrapping via Unwrap.
type RetrievalError struct {
	Code    string
	Kind    string // engine.ErrorKind of the terminal attempt, if any
	Message string
	Err     error // wrapped original error
}

func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// NewRetrievalError creates a new RetrievalError.
func NewRetrievalError(code, message string, err error) *RetrievalError {
	return &RetrievalError{Code: code, Message: message, Err: err}
}

// WithKind returns e with Kind set.
func (e *RetrievalError) WithKind(kind string) *RetrievalError {
	e.Kind = kind
	return e
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *RetrievalError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Kind: e.Kind, Message: e.Message}
}
