package engine

import (
	"regexp"
	"strings"
)

// Verdict is the classifier's judgement of a response body.
type Verdict int

const (
	VerdictValid Verdict = iota
	VerdictInvalidEmpty
	VerdictInvalidStructure
	VerdictRequiresRendering
	VerdictDefenseDetected
)

func (v Verdict) String() string {
	switch v {
	case VerdictValid:
		return "valid"
	case VerdictInvalidEmpty:
		return "invalid_empty"
	case VerdictInvalidStructure:
		return "invalid_structure"
	case VerdictRequiresRendering:
		return "requires_rendering"
	case VerdictDefenseDetected:
		return "defense_detected"
	default:
		return "unknown"
	}
}

// Classifier decides whether a lightweight response body is usable.
type Classifier struct {
	MinHTML  int
	MinJSON  int
	MinOther int

	// RenderingMarkers flag client-side rendering when they co-occur with a
	// <script tag. Matched against the lowercased body.
	RenderingMarkers []string
}

// DefaultClassifier returns the classifier used by the HTTP tier.
func DefaultClassifier() *Classifier {
	return &Classifier{
		MinHTML:  150,
		MinJSON:  2,
		MinOther: 50,
		RenderingMarkers: []string{
			"loading",
			"document.write",
			"app-root",
			`<div id="root"></div>`,
			`<div id="app"></div>`,
			`<div id="__next"></div>`,
		},
	}
}

// loadingAttrRe matches the lazy-loading attribute on img/iframe, which is
// not a client-side loading indicator.
var loadingAttrRe = regexp.MustCompile(`loading\s*=\s*["']?(?:lazy|eager|auto)`)

// Classify applies the rules in priority order: length, HTML structure,
// rendering markers, then JSON and everything else.
func (c *Classifier) Classify(contentType, body string) Verdict {
	ct := strings.ToLower(contentType)
	trimmed := strings.TrimSpace(body)

	if len(trimmed) < c.minLength(ct) {
		return VerdictInvalidEmpty
	}

	if !isHTMLContentType(ct) {
		return VerdictValid
	}

	lower := strings.ToLower(trimmed)
	if !strings.Contains(lower, "<html") || !strings.Contains(lower, "</html>") {
		return VerdictInvalidStructure
	}

	if strings.Contains(lower, "<script") && c.hasRenderingMarker(lower) {
		return VerdictRequiresRendering
	}
	return VerdictValid
}

func (c *Classifier) minLength(ct string) int {
	switch {
	case isHTMLContentType(ct):
		return c.MinHTML
	case isJSONContentType(ct):
		return c.MinJSON
	default:
		return c.MinOther
	}
}

func (c *Classifier) hasRenderingMarker(lower string) bool {
	for _, m := range c.RenderingMarkers {
		if m == "loading" {
			if strings.Count(lower, "loading") > len(loadingAttrRe.FindAllStringIndex(lower, -1)) {
				return true
			}
			continue
		}
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// isHTMLContentType returns true if the Content-Type header indicates HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

func isJSONContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}
