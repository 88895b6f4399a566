package engine

import (
	"net/http"
	"strings"
)

// Detector recognizes edge-security challenge and denial pages.
type Detector struct {
	// ServerSignatures are matched against the lowercased Server header.
	ServerSignatures []string
	// ChallengeHeaders trigger detection by presence alone.
	ChallengeHeaders []string
	// BodyPhrases are matched against the lowercased body.
	BodyPhrases []string
}

// DefaultDetector returns the signatures of the common edge providers.
func DefaultDetector() *Detector {
	return &Detector{
		ServerSignatures: []string{"cloudflare", "ddos-guard", "sucuri", "akamaighost"},
		ChallengeHeaders: []string{"CF-Ray", "CF-Mitigated", "X-Sucuri-ID"},
		// Challenge phrasing only; bare vendor names also appear in
		// ordinary asset URLs such as cdnjs.cloudflare.com.
		BodyPhrases: []string{
			"access denied",
			"attention required! | cloudflare",
			"just a moment...",
			"checking your browser",
			"cf-browser-verification",
			"cf-challenge",
			"/cdn-cgi/challenge-platform",
			"ddos protection by",
		},
	}
}

// IsDefended reports whether the response looks like a defense page.
// A nil Detector never detects anything.
func (d *Detector) IsDefended(headers http.Header, body string) bool {
	if d == nil {
		return false
	}

	server := strings.ToLower(headers.Get("Server"))
	if server != "" {
		for _, sig := range d.ServerSignatures {
			if strings.Contains(server, sig) {
				return true
			}
		}
	}

	for _, h := range d.ChallengeHeaders {
		if headers.Get(h) != "" {
			return true
		}
	}

	lower := strings.ToLower(body)
	for _, phrase := range d.BodyPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
