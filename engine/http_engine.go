package engine

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"
)

const (
	// DefaultMaxBodyBytes caps the decoded response body.
	DefaultMaxBodyBytes = 10 << 20
	maxRedirects        = 10
)

// TLSConfig is the immutable TLS policy of a Lightweight engine.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification, matching the
	// browser tier which ignores certificate errors.
	InsecureSkipVerify bool
}

// Lightweight is the Layer 1 engine: plain HTTP requests with a Chrome-like
// TLS fingerprint, retried with backoff and escalated when the content
// needs a real browser.
type Lightweight struct {
	tlsCfg     TLSConfig
	classifier *Classifier
	detector   *Detector
	backoff    *Backoff
	maxBody    int64
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[string]*http.Client // proxy URL ("" = direct) -> client
}

// LightweightOption configures a Lightweight engine.
type LightweightOption func(*Lightweight)

func WithClassifier(c *Classifier) LightweightOption {
	return func(e *Lightweight) { e.classifier = c }
}

// WithDetector sets the defense detector; nil disables detection.
func WithDetector(d *Detector) LightweightOption {
	return func(e *Lightweight) { e.detector = d }
}

func WithBackoff(b *Backoff) LightweightOption {
	return func(e *Lightweight) { e.backoff = b }
}

func WithMaxBodyBytes(n int64) LightweightOption {
	return func(e *Lightweight) {
		if n > 0 {
			e.maxBody = n
		}
	}
}

func WithLogger(l *slog.Logger) LightweightOption {
	return func(e *Lightweight) { e.logger = l }
}

// NewLightweight creates the HTTP tier. tlsCfg is copied and never changes.
func NewLightweight(tlsCfg TLSConfig, opts ...LightweightOption) *Lightweight {
	e := &Lightweight{
		tlsCfg:     tlsCfg,
		classifier: DefaultClassifier(),
		detector:   DefaultDetector(),
		backoff:    NewBackoff(DefaultBackoffBase, DefaultBackoffMax),
		maxBody:    DefaultMaxBodyBytes,
		logger:     slog.Default(),
		clients:    make(map[string]*http.Client),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "lightweight")
	return e
}

func (e *Lightweight) Name() string { return "http" }

// retryState tracks one Fetch call's progress through its attempt budget.
type retryState struct {
	attempt  int
	budget   int
	strategy string
	started  time.Time
	last     *AttemptResult
}

func (s *retryState) finish(res *AttemptResult) *AttemptResult {
	res.Meta.Attempts = s.attempt
	res.Meta.Elapsed = time.Since(s.started)
	res.Meta.Engine = s.strategy
	return res
}

// Fetch runs up to req.Retries attempts. It returns Success, Escalate, or
// HardFailure for a request that cannot be built; it never gives up with a
// soft failure.
func (e *Lightweight) Fetch(ctx context.Context, req *FetchRequest) *AttemptResult {
	state := &retryState{
		budget:   max(req.Retries, 1),
		strategy: e.Name(),
		started:  time.Now(),
	}

	client, err := e.clientFor(req.Proxy)
	if err != nil {
		return state.finish(failure(StatusHardFailure, ErrInvalidRequest, Metadata{}, err))
	}

	for state.attempt = 1; state.attempt <= state.budget; state.attempt++ {
		res := e.attempt(ctx, client, req)

		switch res.Status {
		case StatusSuccess, StatusEscalate, StatusHardFailure:
			e.logger.Debug("lightweight attempt finished",
				"url", req.URL,
				"attempt", state.attempt,
				"status", res.Status.String(),
				"reason", string(res.Reason),
			)
			return state.finish(res)
		}

		state.last = res
		e.logger.Debug("lightweight attempt failed, retrying",
			"url", req.URL,
			"attempt", state.attempt,
			"budget", state.budget,
			"reason", string(res.Reason),
			"error", res.Err,
		)

		if state.attempt < state.budget {
			if err := e.backoff.Wait(ctx, state.attempt); err != nil {
				break
			}
		}
	}

	if state.attempt > state.budget {
		state.attempt = state.budget
	}
	last := state.last
	e.logger.Info("lightweight budget exhausted, escalating",
		"url", req.URL,
		"attempts", state.attempt,
		"reason", string(last.Reason),
	)
	return state.finish(failure(StatusEscalate, last.Reason, last.Meta, last.Err))
}

// attempt performs a single request and classifies the response.
func (e *Lightweight) attempt(ctx context.Context, client *http.Client, req *FetchRequest) *AttemptResult {
	attemptCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	httpReq, err := buildHTTPRequest(attemptCtx, req)
	if err != nil {
		return failure(StatusHardFailure, ErrInvalidRequest, Metadata{}, err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return failure(StatusSoftFailure, ErrTransport, Metadata{}, fmt.Errorf("http_engine: do request: %w", err))
	}
	defer resp.Body.Close()

	meta := Metadata{
		StatusCode:  resp.StatusCode,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}

	body, err := readBody(resp, e.maxBody)
	if errors.Is(err, errBodyTooLarge) {
		// Another attempt returns the same oversized body.
		return failure(StatusEscalate, ErrContentInvalid, meta, fmt.Errorf("http_engine: %w", err))
	}
	if err != nil {
		return failure(StatusSoftFailure, ErrTransport, meta, fmt.Errorf("http_engine: read body: %w", err))
	}

	if e.detector.IsDefended(resp.Header, body) {
		return failure(StatusEscalate, ErrDefenseDetected, meta,
			fmt.Errorf("http_engine: %s from %s", VerdictDefenseDetected, meta.FinalURL))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(StatusSoftFailure, ErrHTTPStatus, meta,
			fmt.Errorf("http_engine: unexpected status %d", resp.StatusCode))
	}

	switch verdict := e.classifier.Classify(meta.ContentType, body); verdict {
	case VerdictValid:
		if isHTMLContentType(meta.ContentType) {
			meta.Title = extractTitle(body)
		}
		return success(body, meta)
	case VerdictRequiresRendering:
		return failure(StatusEscalate, ErrRequiresRendering, meta,
			fmt.Errorf("http_engine: page requires client-side rendering"))
	default:
		return failure(StatusSoftFailure, ErrContentInvalid, meta,
			fmt.Errorf("http_engine: content %s (%d bytes, content-type: %s)", verdict, len(body), meta.ContentType))
	}
}

// buildHTTPRequest builds a GET with params appended or a form-encoded POST.
func buildHTTPRequest(ctx context.Context, req *FetchRequest) (*http.Request, error) {
	target, err := req.TargetURL()
	if err != nil {
		return nil, fmt.Errorf("http_engine: build url: %w", err)
	}

	var body io.Reader
	if req.Method == MethodPost {
		body = strings.NewReader(req.EncodedForm())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("http_engine: build request: %w", err)
	}
	for k, v := range LightweightHeaders(req) {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// clientFor returns the shared client for a proxy, creating it on first use.
func (e *Lightweight) clientFor(proxyURL string) (*http.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.clients[proxyURL]; ok {
		return c, nil
	}
	transport, err := newTransport(e.tlsCfg, proxyURL)
	if err != nil {
		return nil, err
	}
	c := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	e.clients[proxyURL] = c
	return c, nil
}

// newTransport builds a transport whose TLS handshakes carry a Chrome-like
// fingerprint. ALPN is locked to http/1.1 to avoid the HTTP/2 framing
// mismatch that occurs when utls negotiates h2 but Go's http.Transport only
// speaks h1.
func newTransport(cfg TLSConfig, proxyURL string) (*http.Transport, error) {
	var dial func(ctx context.Context, network, addr string) (net.Conn, error)
	base := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	dial = base.DialContext

	transport := &http.Transport{
		ForceAttemptHTTP2:   false,
		DisableCompression:  true,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		// Used for TLS through an HTTP CONNECT proxy.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
	}

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("http_engine: parse proxy: %w", err)
		}
		switch u.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		case "socks5", "socks5h":
			d, err := proxy.FromURL(u, base)
			if err != nil {
				return nil, fmt.Errorf("http_engine: socks proxy: %w", err)
			}
			cd, ok := d.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("http_engine: socks dialer does not support contexts")
			}
			dial = cd.DialContext
		default:
			return nil, fmt.Errorf("http_engine: unsupported proxy scheme %q", u.Scheme)
		}
	}

	transport.DialContext = dial
	if transport.Proxy == nil {
		transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dial(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := utls.UClient(conn, &utls.Config{
				ServerName:         host,
				InsecureSkipVerify: cfg.InsecureSkipVerify,
			}, utls.HelloCustom)
			spec, err := chromeH1Spec()
			if err != nil {
				conn.Close()
				return nil, err
			}
			if err := tlsConn.ApplyPreset(&spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		}
	}
	return transport, nil
}

// chromeH1Spec returns a fresh Chrome ClientHello spec with ALPN forced to
// http/1.1. A new spec per connection keeps handshakes from sharing
// extension state.
func chromeH1Spec() (utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(utls.HelloChrome_Auto)
	if err != nil {
		return spec, fmt.Errorf("http_engine: chrome tls spec: %w", err)
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	return spec, nil
}

// errBodyTooLarge marks a body that exceeds the cap, raw or decoded.
var errBodyTooLarge = errors.New("body exceeds size limit")

// readBody decodes the Content-Encoding and converts text bodies to UTF-8.
// Bodies over limit bytes, before or after decoding, fail with
// errBodyTooLarge rather than being cut short.
func readBody(resp *http.Response, limit int64) (string, error) {
	raw, err := readCapped(resp.Body, limit)
	if err != nil {
		return "", err
	}

	decoder, err := decompressReader(resp.Header.Get("Content-Encoding"), raw)
	if err != nil {
		return "", err
	}
	decoded, err := readCapped(decoder, limit)
	if err != nil {
		return "", err
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(strings.ToLower(ct), "text/") && !isHTMLContentType(ct) {
		return string(decoded), nil
	}
	cr, err := charset.NewReader(bytes.NewReader(decoded), ct)
	if err != nil {
		return string(decoded), nil
	}
	out, err := io.ReadAll(cr)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	return string(out), nil
}

// readCapped reads r fully, failing once more than limit bytes arrive.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", errBodyTooLarge, limit)
	}
	return b, nil
}

// decompressReader wraps raw according to the Content-Encoding header.
func decompressReader(encoding string, raw []byte) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		return gzip.NewReader(bytes.NewReader(raw))
	case "deflate":
		// Servers send either zlib-wrapped or raw deflate streams.
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			return zr, nil
		}
		return flate.NewReader(bytes.NewReader(raw)), nil
	case "br":
		return brotli.NewReader(bytes.NewReader(raw)), nil
	default:
		return bytes.NewReader(raw), nil
	}
}

// extractTitle uses the Go HTML tokenizer to find the first <title> element.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
