package search

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// maxBingSnippet is the snippet length cap, in runes.
const maxBingSnippet = 200

// Bing queries cn.bing.com. Its anti-bot checks reject plain HTTP clients,
// so pages always go to the renderer.
type Bing struct {
	BaseURL string
}

func NewBing(baseURL string) *Bing {
	return &Bing{BaseURL: baseURL}
}

func (b *Bing) Name() string { return "bing" }

func (b *Bing) PageRequest(query string, page int) PageRequest {
	return PageRequest{
		URL: b.BaseURL,
		Params: map[string]string{
			"q":     query,
			"first": strconv.Itoa((max(page, 1)-1)*10 + 1),
			"FORM":  "PERE",
		},
		SkipLightweight: true,
	}
}

const (
	bingResultXPath  = `//li[contains(concat(' ', normalize-space(@class), ' '), ' b_algo ')]`
	bingCaptionXPath = `.//*[contains(concat(' ', normalize-space(@class), ' '), ' b_caption ')]//p`
	bingSlugXPath    = `.//*[contains(concat(' ', normalize-space(@class), ' '), ' b_algoSlug ')]`
)

func (b *Bing) Extract(doc *goquery.Document) []ResultEntry {
	if len(doc.Nodes) == 0 {
		return nil
	}
	items, err := htmlquery.QueryAll(doc.Nodes[0], bingResultXPath)
	if err != nil {
		return nil
	}

	entries := make([]ResultEntry, 0, len(items))
	for _, item := range items {
		title := strings.TrimSpace(innerText(queryOne(item, ".//h2")))

		link := ""
		if a := queryOne(item, ".//a"); a != nil {
			link = htmlquery.SelectAttr(a, "href")
		}

		summaryNode := queryOne(item, bingCaptionXPath)
		if summaryNode == nil {
			summaryNode = queryOne(item, bingSlugXPath)
		}
		summary := truncateRunes(strings.TrimSpace(innerText(summaryNode)), maxBingSnippet)

		entries = append(entries, ResultEntry{
			Title:   orPlaceholder(title, NoTitle),
			Link:    orPlaceholder(link, NoLink),
			Snippet: orPlaceholder(summary, NoContent),
		})
	}
	return entries
}

func queryOne(n *html.Node, expr string) *html.Node {
	found, err := htmlquery.Query(n, expr)
	if err != nil {
		return nil
	}
	return found
}

func innerText(n *html.Node) string {
	if n == nil {
		return ""
	}
	return htmlquery.InnerText(n)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
