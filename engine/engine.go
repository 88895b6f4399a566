package engine

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Engine is the interface that all retrieval tiers implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "rod").
	Name() string

	// Fetch runs one retrieval of req and reports its outcome. It never
	// returns nil.
	Fetch(ctx context.Context, req *FetchRequest) *AttemptResult
}

// Request methods supported by both tiers.
const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 2
)

// FetchRequest contains everything an engine needs to retrieve one URL.
// Built once by NewFetchRequest; engines read it and never mutate it.
type FetchRequest struct {
	URL     string
	Method  string
	Params  map[string]string // appended to the query string
	Form    map[string]string // POST payload, form-encoded
	Headers map[string]string // override the method's default header set
	Proxy   string            // http, https, socks5 or socks5h URL
	Timeout time.Duration     // per attempt
	Retries int               // lightweight attempt budget

	// SkipLightweight sends the request straight to the renderer.
	SkipLightweight bool

	// UserAgent overrides the renderer's user agent.
	UserAgent string
}

// RequestOption configures a FetchRequest.
type RequestOption func(*FetchRequest)

func WithMethod(method string) RequestOption {
	return func(r *FetchRequest) { r.Method = strings.ToUpper(method) }
}

func WithParams(params map[string]string) RequestOption {
	return func(r *FetchRequest) { r.Params = copyMap(params) }
}

// WithForm sets the POST payload and switches the method to POST.
func WithForm(form map[string]string) RequestOption {
	return func(r *FetchRequest) {
		r.Form = copyMap(form)
		r.Method = MethodPost
	}
}

func WithHeaders(headers map[string]string) RequestOption {
	return func(r *FetchRequest) { r.Headers = copyMap(headers) }
}

func WithProxy(proxy string) RequestOption {
	return func(r *FetchRequest) { r.Proxy = proxy }
}

func WithTimeout(d time.Duration) RequestOption {
	return func(r *FetchRequest) {
		if d > 0 {
			r.Timeout = d
		}
	}
}

func WithRetries(n int) RequestOption {
	return func(r *FetchRequest) { r.Retries = n }
}

func WithSkipLightweight(skip bool) RequestOption {
	return func(r *FetchRequest) { r.SkipLightweight = skip }
}

func WithUserAgent(ua string) RequestOption {
	return func(r *FetchRequest) { r.UserAgent = ua }
}

// NewFetchRequest validates rawURL and builds an immutable request.
func NewFetchRequest(rawURL string, opts ...RequestOption) (*FetchRequest, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("engine: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("engine: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("engine: url %q has no host", rawURL)
	}

	req := &FetchRequest{
		URL:     rawURL,
		Method:  MethodGet,
		Timeout: DefaultTimeout,
		Retries: DefaultRetries,
	}
	for _, opt := range opts {
		opt(req)
	}

	switch req.Method {
	case MethodGet, MethodPost:
	default:
		return nil, fmt.Errorf("engine: unsupported method %q", req.Method)
	}
	if req.Retries < 1 {
		req.Retries = 1
	}
	return req, nil
}

// TargetURL returns URL with Params appended to its query string.
func (r *FetchRequest) TargetURL() (string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", err
	}
	if len(r.Params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, v := range r.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// EncodedForm returns the form-encoded POST payload.
func (r *FetchRequest) EncodedForm() string {
	vals := url.Values{}
	for k, v := range r.Form {
		vals.Set(k, v)
	}
	return vals.Encode()
}

// Host returns the lowercased host of the request URL, or "" if unparseable.
func (r *FetchRequest) Host() string {
	return extractDomain(r.URL)
}

// Status is the outcome variant of a single retrieval.
type Status int

const (
	// StatusSuccess carries non-empty, accepted content.
	StatusSuccess Status = iota + 1
	// StatusSoftFailure is retryable within the same tier.
	StatusSoftFailure
	// StatusEscalate hands the request to the rendering tier.
	StatusEscalate
	// StatusHardFailure terminates the retrieval.
	StatusHardFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSoftFailure:
		return "soft_failure"
	case StatusEscalate:
		return "escalate"
	case StatusHardFailure:
		return "hard_failure"
	default:
		return "unknown"
	}
}

// ErrorKind categorizes why an attempt did not succeed.
type ErrorKind string

const (
	ErrTransport         ErrorKind = "transport"
	ErrHTTPStatus        ErrorKind = "http_status"
	ErrContentInvalid    ErrorKind = "content_invalid"
	ErrRequiresRendering ErrorKind = "requires_rendering"
	ErrDefenseDetected   ErrorKind = "defense_detected"
	ErrRenderingFailed   ErrorKind = "rendering_failed"
	ErrInvalidRequest    ErrorKind = "invalid_request"
)

// Metadata describes the response behind an AttemptResult.
type Metadata struct {
	StatusCode  int
	FinalURL    string
	ContentType string
	Title       string
	Elapsed     time.Duration
	Attempts    int
	Engine      string
}

// AttemptResult is the outcome of one engine Fetch.
type AttemptResult struct {
	Status Status
	Body   string // non-empty only when Status is StatusSuccess
	Meta   Metadata
	Reason ErrorKind
	Err    error
}

// Succeeded reports whether the attempt carries content.
func (a *AttemptResult) Succeeded() bool {
	return a != nil && a.Status == StatusSuccess && a.Body != ""
}

func success(body string, meta Metadata) *AttemptResult {
	return &AttemptResult{Status: StatusSuccess, Body: body, Meta: meta}
}

func failure(status Status, kind ErrorKind, meta Metadata, err error) *AttemptResult {
	return &AttemptResult{Status: status, Meta: meta, Reason: kind, Err: err}
}

// NewSuccess builds a successful result for engines outside this package.
func NewSuccess(body string, meta Metadata) *AttemptResult {
	if body == "" {
		return failure(StatusHardFailure, ErrRenderingFailed, meta, fmt.Errorf("empty document"))
	}
	return success(body, meta)
}

// NewHardFailure builds a terminal result for engines outside this package.
func NewHardFailure(kind ErrorKind, meta Metadata, err error) *AttemptResult {
	return failure(StatusHardFailure, kind, meta, err)
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
