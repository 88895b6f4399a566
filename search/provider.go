package search

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Placeholders recorded for entries missing a field.
const (
	NoTitle   = "No title"
	NoLink    = "No link"
	NoContent = "No content"
)

// ResultEntry is one extracted search result. Entries are not deduplicated.
type ResultEntry struct {
	Title   string
	Link    string
	Snippet string
}

// String renders the entry in the harvest log format.
func (e ResultEntry) String() string {
	return fmt.Sprintf("Title: %s\nLink: %s\nContent: %s\n%s", e.Title, e.Link, e.Snippet, strings.Repeat("-", 20))
}

// PageRequest describes how to retrieve one result page.
type PageRequest struct {
	URL     string
	Params  map[string]string
	Headers map[string]string

	// SkipLightweight sends the page straight to the renderer.
	SkipLightweight bool
}

// Provider knows one search engine's page parameters and result markup.
type Provider interface {
	Name() string

	// PageRequest returns the request for a 1-based result page.
	PageRequest(query string, page int) PageRequest

	// Extract returns the result entries on a parsed page, in order.
	Extract(doc *goquery.Document) []ResultEntry
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}
