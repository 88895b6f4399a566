package search

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Baidu queries www.baidu.com. Result links are Baidu redirect URLs.
type Baidu struct {
	BaseURL string
}

func NewBaidu(baseURL string) *Baidu {
	return &Baidu{BaseURL: baseURL}
}

func (b *Baidu) Name() string { return "baidu" }

func (b *Baidu) PageRequest(query string, page int) PageRequest {
	return PageRequest{
		URL: b.BaseURL,
		Params: map[string]string{
			"wd": query,
			"pn": strconv.Itoa((max(page, 1) - 1) * 10),
			"ie": "utf-8",
		},
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Encoding": "identity",
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
			"Referer":         b.BaseURL + "?wd=" + url.QueryEscape(query),
		},
	}
}

const baiduResultSelector = "div.result-op.c-container.new-pmd, div.result.c-container.xpath-log.new-pmd"

func (b *Baidu) Extract(doc *goquery.Document) []ResultEntry {
	var entries []ResultEntry
	doc.Find(baiduResultSelector).Each(func(_ int, div *goquery.Selection) {
		title := strings.TrimSpace(div.Find("h3").First().Text())
		link, _ := div.Find("a[href]").First().Attr("href")

		var parts []string
		for _, s := range strippedStrings(div) {
			if s != title {
				parts = append(parts, s)
			}
		}

		entries = append(entries, ResultEntry{
			Title:   orPlaceholder(title, NoTitle),
			Link:    orPlaceholder(link, NoLink),
			Snippet: normalizeBaiduTimes(strings.Join(parts, " ")),
		})
	})
	return entries
}

var (
	// "UTC+812345:67:89" style run-together timestamps.
	utcRunRe = regexp.MustCompile(`UTC\+8(\d{5}:\d{2}:\d{2})`)
	// "12:342024-01-02": time glued to a date.
	timeDateRe = regexp.MustCompile(`(\d{2}:\d{2})(\d{4}-\d{2}-\d{2})`)
	// "12 34 : 56 78 : 90 12": digits split by the text walker.
	splitClockRe = regexp.MustCompile(`(\d{2}) (\d{2}) : (\d{2}) (\d{2}) : (\d{2}) (\d{2})`)
)

// normalizeBaiduTimes repairs the timestamp fragments left by joining
// Baidu's text nodes.
func normalizeBaiduTimes(s string) string {
	s = utcRunRe.ReplaceAllStringFunc(s, func(m string) string {
		digits := utcRunRe.FindStringSubmatch(m)[1]
		var chunks []string
		for i := 0; i < len(digits); i += 2 {
			chunks = append(chunks, digits[i:min(i+2, len(digits))])
		}
		return "UTC+8 " + strings.TrimLeft(strings.Join(chunks, ":"), ":")
	})
	s = timeDateRe.ReplaceAllString(s, "$1 $2")
	return splitClockRe.ReplaceAllString(s, "$1:$3:$5")
}

// strippedStrings returns the trimmed, non-empty text nodes under sel in
// document order, skipping script and style content.
func strippedStrings(sel *goquery.Selection) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				out = append(out, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return out
}
