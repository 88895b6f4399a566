package search

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/fetchwise/config"
)

func parse(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestSearx(t *testing.T) {
	t.Parallel()

	s := NewSearx("https://searx.example.com/search")
	pr := s.PageRequest("go generics", 3)
	assert.Equal(t, "https://searx.example.com/search", pr.URL)
	assert.Equal(t, "go generics", pr.Params["q"])
	assert.Equal(t, "3", pr.Params["pageno"])
	assert.Equal(t, "auto", pr.Params["language"])
	assert.False(t, pr.SkipLightweight)

	doc := parse(t, `<html><body>
		<article class="result result-default category-general">
			<a class="url_header" href="https://go.dev/doc/tutorial/generics">go.dev</a>
			<h3><a href="https://go.dev/doc/tutorial/generics">Tutorial: Getting started with generics</a></h3>
			<p class="content">This tutorial introduces the basics of generics in Go.</p>
		</article>
		<article class="result result-default category-general">
			<h3></h3>
		</article>
		<article class="result result-images category-images">
			<h3>ignored</h3>
		</article>
	</body></html>`)

	entries := s.Extract(doc)
	require.Len(t, entries, 2)
	assert.Equal(t, ResultEntry{
		Title:   "Tutorial: Getting started with generics",
		Link:    "https://go.dev/doc/tutorial/generics",
		Snippet: "This tutorial introduces the basics of generics in Go.",
	}, entries[0])
	assert.Equal(t, ResultEntry{Title: NoTitle, Link: NoLink, Snippet: NoContent}, entries[1])
}

func TestBaidu(t *testing.T) {
	t.Parallel()

	b := NewBaidu("https://www.baidu.com/s")
	pr := b.PageRequest("golang", 2)
	assert.Equal(t, "golang", pr.Params["wd"])
	assert.Equal(t, "10", pr.Params["pn"])
	assert.Equal(t, "identity", pr.Headers["Accept-Encoding"])
	assert.Equal(t, "https://www.baidu.com/s?wd=golang", pr.Headers["Referer"])
	assert.Equal(t, "0", b.PageRequest("golang", 1).Params["pn"])

	doc := parse(t, `<html><body>
		<div class="result c-container xpath-log new-pmd">
			<h3><a href="http://www.baidu.com/link?url=abc">Go 语言</a></h3>
			<span>官方网站</span>
			<script>var x = 1;</script>
			<span>2024-01-02</span>
		</div>
		<div class="result-op c-container new-pmd">
			<h3>No anchor here</h3>
		</div>
		<div class="c-container">ignored</div>
	</body></html>`)

	entries := b.Extract(doc)
	require.Len(t, entries, 2)
	assert.Equal(t, "Go 语言", entries[0].Title)
	assert.Equal(t, "http://www.baidu.com/link?url=abc", entries[0].Link)
	assert.Equal(t, "官方网站 2024-01-02", entries[0].Snippet)
	assert.Equal(t, "No anchor here", entries[1].Title)
	assert.Equal(t, NoLink, entries[1].Link)
}

func TestNormalizeBaiduTimes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"untouched", "plain snippet", "plain snippet"},
		{"time glued to date", "updated 12:342024-01-02", "updated 12:34 2024-01-02"},
		{"split clock", "at 12 34 : 56 78 : 90 12 today", "at 12:56:90 today"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, normalizeBaiduTimes(tt.in))
		})
	}
}

func TestBing(t *testing.T) {
	t.Parallel()

	b := NewBing("https://cn.bing.com/search")
	pr := b.PageRequest("golang", 3)
	assert.Equal(t, "21", pr.Params["first"])
	assert.Equal(t, "PERE", pr.Params["FORM"])
	assert.True(t, pr.SkipLightweight)

	long := strings.Repeat("字", 250)
	doc := parse(t, `<html><body><ol id="b_results">
		<li class="b_algo">
			<h2><a href="https://go.dev/">The Go Programming Language</a></h2>
			<div class="b_caption"><p>Go is an open source programming language.</p></div>
		</li>
		<li class="b_algo extra">
			<h2><a href="https://pkg.go.dev/">Go Packages</a></h2>
			<div class="b_algoSlug">`+long+`</div>
		</li>
		<li class="b_ad"><h2>sponsored</h2></li>
	</ol></body></html>`)

	entries := b.Extract(doc)
	require.Len(t, entries, 2)
	assert.Equal(t, ResultEntry{
		Title:   "The Go Programming Language",
		Link:    "https://go.dev/",
		Snippet: "Go is an open source programming language.",
	}, entries[0])
	assert.Equal(t, "https://pkg.go.dev/", entries[1].Link)
	assert.Equal(t, 200, len([]rune(entries[1].Snippet)))
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	cfg := config.SearchConfig{
		SearxURL: "https://searx.example.com/search",
		BaiduURL: "https://www.baidu.com/s",
		BingURL:  "https://cn.bing.com/search",
	}
	for _, name := range Providers {
		p, err := NewProvider(name, cfg)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}
	_, err := NewProvider("altavista", cfg)
	require.Error(t, err)
}

func TestIsValidLink(t *testing.T) {
	t.Parallel()

	assert.True(t, isValidLink("https://go.dev/doc"))
	assert.True(t, isValidLink("http://example.com"))
	assert.False(t, isValidLink(NoLink))
	assert.False(t, isValidLink("/relative/path"))
	assert.False(t, isValidLink("ftp://example.com"))
	assert.False(t, isValidLink("https://"))
}
