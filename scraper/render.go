package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/fetchwise/config"
	"github.com/use-agent/fetchwise/engine"
	"github.com/use-agent/fetchwise/models"
	"github.com/ysmood/gson"
)

const (
	// idleWindow is the quiet period that counts as network idle.
	idleWindow   = 500 * time.Millisecond
	closeTimeout = 5 * time.Second
)

// Renderer is the Layer 2 engine: every call launches an isolated Chromium,
// renders one page and tears everything down again. No state is shared
// between calls.
type Renderer struct {
	browserCfg config.BrowserConfig
	renderCfg  config.RenderConfig
	logger     *slog.Logger

	active atomic.Int32
	total  atomic.Int64
	failed atomic.Int64
}

var _ engine.Engine = (*Renderer)(nil)

// NewRenderer creates a Renderer. A nil logger falls back to slog.Default().
func NewRenderer(browserCfg config.BrowserConfig, renderCfg config.RenderConfig, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		browserCfg: browserCfg,
		renderCfg:  renderCfg,
		logger:     logger.With("component", "renderer"),
	}
}

func (r *Renderer) Name() string { return "rod" }

// Fetch implements engine.Engine.
func (r *Renderer) Fetch(ctx context.Context, req *engine.FetchRequest) *engine.AttemptResult {
	return r.Render(ctx, req)
}

// Stats returns a snapshot of the renderer's counters.
func (r *Renderer) Stats() models.RendererStats {
	return models.RendererStats{
		Enabled:       true,
		ActiveRenders: int(r.active.Load()),
		TotalRenders:  r.total.Load(),
		FailedRenders: r.failed.Load(),
	}
}

// Render loads req in a fresh browser and returns the rendered document.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Timeout guard      – hard deadline on launch, navigation and extraction
//  2. Launch + connect   – isolated Chromium with automation flags removed
//  3. DEFER: teardown    – page, browser and process on every path
//  4. Stealth page       – navigator.webdriver masking etc. (before navigation!)
//  5. Headers + UA       – extra headers and user agent override
//  6. Hijack mount       – POST conversion and resource blocking (before navigation!)
//  7. Idle listener      – registered before Navigate to capture all requests
//  8. Navigate
//  9. Wait               – network idle, bounded by IdleTimeout
//  10. Extract           – document, status code, title, final URL
func (r *Renderer) Render(ctx context.Context, req *engine.FetchRequest) (res *engine.AttemptResult) {
	start := time.Now()
	r.active.Add(1)
	r.total.Add(1)
	defer func() {
		r.active.Add(-1)
		if !res.Succeeded() {
			r.failed.Add(1)
		}
		res.Meta.Engine = r.Name()
		res.Meta.Elapsed = time.Since(start)
	}()

	target, err := req.TargetURL()
	if err != nil {
		return engine.NewHardFailure(engine.ErrInvalidRequest, engine.Metadata{},
			models.NewRetrievalError(models.ErrCodeInvalidInput, "invalid target URL", err))
	}

	// ── 1. Timeout guard ──────────────────────────────────────────────
	timeout := r.renderCfg.NavigationTimeout
	if req.Timeout > timeout {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// ── 2. Launch + connect ───────────────────────────────────────────
	l := r.newLauncher(ctx, req.Proxy)
	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return r.fail(categorizeLaunchError(err, "failed to launch browser"))
	}

	// ── 3. DEFER: teardown (runs last) ───────────────────────────────
	defer func() {
		l.Kill()
		l.Cleanup()
	}()

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return r.fail(categorizeLaunchError(err, "failed to connect to browser"))
	}
	defer func() { _ = browser.Timeout(closeTimeout).Close() }()

	if err := browser.IgnoreCertErrors(true); err != nil {
		r.logger.Warn("failed to ignore certificate errors", "error", err)
	}

	// ── 4. Stealth page ───────────────────────────────────────────────
	page, err := stealth.Page(browser)
	if err != nil {
		return r.fail(categorizeLaunchError(err, "failed to open page"))
	}
	defer func() { _ = page.Timeout(closeTimeout).Close() }()

	// ── 5. Headers + UA ───────────────────────────────────────────────
	headers := engine.RenderHeaders(req)
	for k := range headers {
		if strings.EqualFold(k, "User-Agent") {
			delete(headers, k)
		}
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent: engine.RenderUserAgent(req),
	}); err != nil {
		r.logger.Warn("failed to set user agent", "error", err)
	}
	if len(headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}).Call(page); err != nil {
			r.logger.Warn("failed to set extra headers", "error", err)
		}
	}

	// ── 6. Mount hijack router ────────────────────────────────────────
	plan := newHijackPlan(r.renderCfg, req, r.logger)
	router := setupHijack(page, plan)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 7. Bind context, set up network idle waiter BEFORE navigation ─
	// NOTE: WaitRequestIdle conflicts with HijackRequests on Chromium 145+,
	// so pages with a router wait for DOM stability instead.
	p := page.Context(ctx)
	var waitIdle func()
	if router == nil {
		waitIdle = p.WaitRequestIdle(idleWindow, nil, nil, nil)
	}

	// ── 8. Navigate ───────────────────────────────────────────────────
	r.logger.Debug("navigating", "url", target, "method", req.Method)
	if err := p.Navigate(target); err != nil {
		return r.fail(categorizeError(err, "navigation to target URL failed"))
	}

	// ── 9. Wait strategy ──────────────────────────────────────────────
	r.waitForIdle(ctx, p, waitIdle)

	// ── 10. Extract ───────────────────────────────────────────────────
	meta := engine.Metadata{
		StatusCode:  navigationStatus(p),
		ContentType: evalStringOrEmpty(p, `() => document.contentType || ""`),
		Title:       evalStringOrEmpty(p, `() => document.title`),
		FinalURL:    evalStringOrEmpty(p, `() => window.location.href`),
	}
	if meta.FinalURL == "" {
		meta.FinalURL = target
	}

	body, err := r.readDocument(p, meta.ContentType)
	if err != nil {
		return r.fail(categorizeError(err, "failed to extract page content"))
	}
	if strings.TrimSpace(body) == "" {
		return engine.NewHardFailure(engine.ErrRenderingFailed, meta,
			models.NewRetrievalError(models.ErrCodeRenderingFailed, "rendered document is empty", nil))
	}

	r.logger.Debug("render complete", "url", meta.FinalURL, "status", meta.StatusCode, "bytes", len(body))
	return engine.NewSuccess(body, meta)
}

// newLauncher builds a launcher for one isolated browser process.
func (r *Renderer) newLauncher(ctx context.Context, proxy string) *launcher.Launcher {
	l := launcher.New().
		Context(ctx).
		Headless(r.browserCfg.Headless).
		NoSandbox(r.browserCfg.NoSandbox)

	if r.browserCfg.BrowserBin != "" {
		l = l.Bin(r.browserCfg.BrowserBin)
	}
	if proxy != "" {
		l = l.Proxy(proxyServer(proxy))
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("ignore-certificate-errors"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	return l
}

// waitForIdle waits for network idle (or DOM stability when requests are
// hijacked) and proceeds after IdleTimeout regardless.
func (r *Renderer) waitForIdle(ctx context.Context, p *rod.Page, waitIdle func()) {
	bound := r.renderCfg.IdleTimeout

	if waitIdle == nil {
		sp := p.Timeout(bound)
		if err := sp.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			r.logger.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
		}
		sp.CancelTimeout()
		return
	}

	done := make(chan struct{})
	go func() {
		waitIdle()
		close(done)
	}()

	timer := time.NewTimer(bound)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		r.logger.Debug("network idle wait timed out, proceeding with current DOM", "bound", bound)
	case <-ctx.Done():
	}
}

// readDocument returns the serialized DOM for HTML documents and the body
// text for everything else (JSON, plain text).
func (r *Renderer) readDocument(p *rod.Page, contentType string) (string, error) {
	ct := strings.ToLower(contentType)
	if ct == "" || strings.Contains(ct, "html") || strings.Contains(ct, "xml") {
		return p.HTML()
	}
	res, err := p.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (r *Renderer) fail(err *models.RetrievalError) *engine.AttemptResult {
	r.logger.Warn("render failed", "code", err.Code, "error", err.Err)
	return engine.NewHardFailure(engine.ErrRenderingFailed, engine.Metadata{}, err)
}

// navigationStatus reads the HTTP status of the main document without CDP
// event listeners.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) used by the network domain.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// proxyServer strips credentials from a proxy URL; Chromium's
// --proxy-server flag does not accept them.
func proxyServer(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
}

// categorizeError wraps raw errors into typed RetrievalErrors so the API
// layer can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.RetrievalError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewRetrievalError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewRetrievalError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewRetrievalError(models.ErrCodeNavigation, msg, err)
	}
}

func categorizeLaunchError(err error, msg string) *models.RetrievalError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return categorizeError(err, msg)
	}
	return models.NewRetrievalError(models.ErrCodeBrowserCrash, msg, err)
}
