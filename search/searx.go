package search

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Searx queries a SearXNG instance's HTML frontend.
type Searx struct {
	BaseURL  string
	Language string
}

// NewSearx returns a Searx provider for baseURL (the instance's /search endpoint).
func NewSearx(baseURL string) *Searx {
	return &Searx{BaseURL: baseURL, Language: "auto"}
}

func (s *Searx) Name() string { return "searx" }

func (s *Searx) PageRequest(query string, page int) PageRequest {
	return PageRequest{
		URL: s.BaseURL,
		Params: map[string]string{
			"q":          query,
			"categories": "general",
			"language":   s.Language,
			"time_range": "",
			"safesearch": "0",
			"theme":      "simple",
			"pageno":     strconv.Itoa(page),
		},
		Headers: map[string]string{
			"Accept":         "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Sec-Fetch-Dest": "document",
			"Sec-Fetch-Mode": "navigate",
			"Sec-Fetch-Site": "same-origin",
		},
	}
}

func (s *Searx) Extract(doc *goquery.Document) []ResultEntry {
	var entries []ResultEntry
	doc.Find("article.result.result-default.category-general").Each(func(_ int, article *goquery.Selection) {
		link, _ := article.Find("a.url_header").First().Attr("href")
		entries = append(entries, ResultEntry{
			Title:   orPlaceholder(strings.TrimSpace(article.Find("h3").First().Text()), NoTitle),
			Link:    orPlaceholder(link, NoLink),
			Snippet: orPlaceholder(strings.TrimSpace(article.Find("p.content").First().Text()), NoContent),
		})
	})
	return entries
}
