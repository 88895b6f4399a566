package cleaner

import (
	"regexp"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
)

// newMarkdownConverter creates a reusable, goroutine-safe Converter:
//
//   - base plugin: drops script, style, iframe, noscript, head and comments.
//   - commonmark plugin: headings, lists, links, emphasis, fenced code.
//   - table plugin: keeps tables as pipe tables with minimal cell padding.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

var (
	defaultConverter     *converter.Converter
	defaultConverterOnce sync.Once
)

// ToMarkdown converts an HTML document to Markdown. With preprocess set,
// script and style elements are removed and conversion is narrowed to
// <body> when the document has one.
func ToMarkdown(htmlContent string, preprocess bool) (string, error) {
	defaultConverterOnce.Do(func() { defaultConverter = newMarkdownConverter() })
	if preprocess {
		htmlContent = Preprocess(htmlContent)
	}
	return convert(defaultConverter, htmlContent, "")
}

// Preprocess strips script and style elements and returns the outer HTML of
// <body>, or the whole document when there is no body. Unparseable input is
// returned unchanged.
func Preprocess(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}
	doc.Find("script, style").Remove()

	if body := doc.Find("body").First(); body.Length() > 0 {
		if out, err := goquery.OuterHtml(body); err == nil {
			return out
		}
	}
	out, err := doc.Html()
	if err != nil {
		return rawHTML
	}
	return out
}

// convert runs conv and tidies the result. domain, when set, resolves
// relative links and image sources.
func convert(conv *converter.Converter, htmlContent, domain string) (string, error) {
	var opts []converter.ConvertOptionFunc
	if domain != "" {
		opts = append(opts, converter.WithDomain(domain))
	}
	md, err := conv.ConvertString(htmlContent, opts...)
	if err != nil {
		return "", err
	}
	return postProcess(md), nil
}

var (
	codeOpenRe  = regexp.MustCompile(`(?im)^\s*\[code\]\s*`)
	codeCloseRe = regexp.MustCompile(`(?im)\s*\[/code\]\s*$`)
)

// postProcess rewrites [code]...[/code] markers into fenced blocks and trims
// surrounding whitespace.
func postProcess(md string) string {
	md = codeOpenRe.ReplaceAllString(md, "```\n")
	md = codeCloseRe.ReplaceAllString(md, "\n```")
	return strings.TrimSpace(md)
}
