package scraper

import (
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/fetchwise/config"
	"github.com/use-agent/fetchwise/engine"
)

// configToProto maps human-readable config strings to Rod protocol resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// adDomains is a set of well-known ad and tracking domains to block
// when BlockAds is enabled.
var adDomains = map[string]struct{}{
	"doubleclick.net":                {},
	"googlesyndication.com":          {},
	"googleadservices.com":           {},
	"google-analytics.com":           {},
	"googletagmanager.com":           {},
	"googletagservices.com":          {},
	"facebook.net":                   {},
	"connect.facebook.net":           {},
	"facebook.com":                   {},
	"fbcdn.net":                      {},
	"adnxs.com":                      {},
	"adsrvr.org":                     {},
	"amazon-adsystem.com":            {},
	"criteo.com":                     {},
	"criteo.net":                     {},
	"outbrain.com":                   {},
	"taboola.com":                    {},
	"moatads.com":                    {},
	"pubmatic.com":                   {},
	"rubiconproject.com":             {},
	"scorecardresearch.com":          {},
	"quantserve.com":                 {},
	"hotjar.com":                     {},
	"mixpanel.com":                   {},
	"segment.io":                     {},
	"segment.com":                    {},
	"analytics.twitter.com":          {},
	"ads-twitter.com":                {},
	"static.ads-twitter.com":         {},
	"chartbeat.com":                  {},
	"chartbeat.net":                  {},
	"optimizely.com":                 {},
	"zedo.com":                       {},
	"media.net":                      {},
	"contextweb.com":                 {},
	"bidswitch.net":                  {},
	"openx.net":                      {},
	"casalemedia.com":                {},
	"demdex.net":                     {},
	"krxd.net":                       {},
	"bluekai.com":                    {},
	"exelator.com":                   {},
	"turn.com":                       {},
	"mathtag.com":                    {},
	"serving-sys.com":                {},
	"eyeota.net":                     {},
	"agkn.com":                       {},
	"rlcdn.com":                      {},
	"sharethis.com":                  {},
	"addthis.com":                    {},
	"consensu.org":                   {},
}

// isAdDomain checks if a hostname (or any parent domain) is in the ad blocklist.
func isAdDomain(host string) bool {
	host = strings.ToLower(host)
	// Check exact match first.
	if _, ok := adDomains[host]; ok {
		return true
	}
	// Check parent domains (e.g., "pagead2.googlesyndication.com" → "googlesyndication.com").
	for {
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
		if _, ok := adDomains[host]; ok {
			return true
		}
	}
	return false
}

// hijackPlan describes what the request interceptor of one render does.
type hijackPlan struct {
	blocked  map[proto.NetworkResourceType]struct{}
	blockAds bool

	// post converts the first document request into a form POST.
	post     bool
	postData string
	postType string

	logger *slog.Logger
}

// newHijackPlan builds the interception plan for req.
func newHijackPlan(cfg config.RenderConfig, req *engine.FetchRequest, logger *slog.Logger) *hijackPlan {
	plan := &hijackPlan{
		blocked:  make(map[proto.NetworkResourceType]struct{}, len(cfg.BlockedResourceTypes)),
		blockAds: cfg.BlockAds,
		logger:   logger,
	}
	// Build O(1) lookup set from config strings
	for _, name := range cfg.BlockedResourceTypes {
		if rt, ok := configToProto[name]; ok {
			plan.blocked[rt] = struct{}{}
		}
	}
	if req.Method == engine.MethodPost {
		plan.post = true
		plan.postData = req.EncodedForm()
		plan.postType = "application/x-www-form-urlencoded"
		for k, v := range req.Headers {
			if strings.EqualFold(k, "Content-Type") {
				plan.postType = v
			}
		}
	}
	return plan
}

// needed reports whether the page requires an interceptor at all.
func (h *hijackPlan) needed() bool {
	return h.post || h.blockAds || len(h.blocked) > 0
}

// setupHijack installs a request interceptor on the page that sends the
// first document request as a POST when the plan asks for it, blocks the
// configured resource types and optionally blocks requests to known
// ad/tracking domains. Every intercepted request is logged at debug level.
//
// Returns the running HijackRouter so the caller can defer router.Stop().
// Returns nil if there is nothing to intercept.
func setupHijack(page *rod.Page, plan *hijackPlan) *rod.HijackRouter {
	if !plan.needed() {
		return nil
	}

	router := page.HijackRequests()
	var posted atomic.Bool

	// Pattern "*" + empty resourceType = intercept ALL requests, then
	// decide per-request whether to block, rewrite or continue.
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		reqType := ctx.Request.Type()
		plan.logger.Debug("page request",
			"method", ctx.Request.Method(),
			"url", ctx.Request.URL().String(),
			"type", reqType,
		)

		// Rewrite the navigation into a POST, once.
		if plan.post && reqType == proto.NetworkResourceTypeDocument && posted.CompareAndSwap(false, true) {
			ctx.ContinueRequest(&proto.FetchContinueRequest{
				Method:   "POST",
				PostData: []byte(plan.postData),
				Headers:  postHeaders(ctx.Request.Headers(), plan.postType),
			})
			return
		}

		// Block by resource type.
		if _, shouldBlock := plan.blocked[reqType]; shouldBlock {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}

		// Block by ad domain.
		if plan.blockAds {
			if u, err := url.Parse(ctx.Request.URL().String()); err == nil {
				if isAdDomain(u.Hostname()) {
					ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
					return
				}
			}
		}

		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks, so it must live in its own goroutine.
	// It will exit when router.Stop() is called.
	go router.Run()

	return router
}

// postHeaders copies the original request headers, replacing Content-Type.
func postHeaders(original proto.NetworkHeaders, contentType string) []*proto.FetchHeaderEntry {
	entries := make([]*proto.FetchHeaderEntry, 0, len(original)+1)
	for k, v := range original {
		if strings.EqualFold(k, "Content-Type") {
			continue
		}
		entries = append(entries, &proto.FetchHeaderEntry{Name: k, Value: v.Str()})
	}
	return append(entries, &proto.FetchHeaderEntry{Name: "Content-Type", Value: contentType})
}
