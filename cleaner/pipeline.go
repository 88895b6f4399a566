package cleaner

import (
	"log/slog"
	"math"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/fetchwise/models"
)

// Extraction modes.
const (
	ModeRaw     = "raw"
	ModeArticle = "article"
)

// Cleaner turns retrieved HTML into Markdown. It only ever sees content the
// retrieval engine has already validated and performs no network I/O.
//
// The converter is created once and shared; Cleaner is safe for concurrent use.
type Cleaner struct {
	mdConverter *converter.Converter
	logger      *slog.Logger
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
		logger:      logger.With("component", "cleaner"),
	}
}

// Options controls one conversion.
type Options struct {
	// Preprocess strips script/style and narrows to <body> in raw mode.
	Preprocess bool

	// Mode is ModeRaw (default) or ModeArticle.
	Mode string

	// Selector, when set, narrows the document to the matching elements first.
	Selector string

	// SourceURL resolves relative links. Optional.
	SourceURL string
}

// Output is the result of a conversion.
type Output struct {
	Markdown string
	Title    string
	Tokens   models.TokenInfo
}

// Convert runs the pipeline:
//
//  1. Estimate tokens of the raw HTML.
//  2. Narrow to Selector, if any.
//  3. Article mode: go-readability extracts the main content, falling back
//     to the full document when extraction fails.
//     Raw mode: optional script/style stripping and <body> narrowing.
//  4. Convert to Markdown and tidy code fences.
//  5. Estimate tokens of the result.
func (c *Cleaner) Convert(rawHTML string, opts Options) (*Output, error) {
	originalTokens := EstimateTokens(rawHTML)
	title := documentTitle(rawHTML)

	htmlContent := rawHTML
	if opts.Selector != "" {
		narrowed, err := ApplyCSSSelector(htmlContent, opts.Selector)
		if err != nil {
			return nil, models.NewRetrievalError(models.ErrCodeInvalidInput, "invalid css selector", err)
		}
		htmlContent = narrowed
	}

	switch opts.Mode {
	case ModeArticle:
		article, ok := ExtractContent(c.logger, htmlContent, opts.SourceURL)
		if ok && article.Title != "" {
			title = article.Title
		}
		htmlContent = article.Content
	default:
		if opts.Preprocess {
			htmlContent = Preprocess(htmlContent)
		}
	}

	md, err := convert(c.mdConverter, htmlContent, opts.SourceURL)
	if err != nil {
		return nil, models.NewRetrievalError(models.ErrCodeConversion, "markdown conversion failed", err)
	}

	return &Output{
		Markdown: md,
		Title:    title,
		Tokens:   Savings(originalTokens, EstimateTokens(md)),
	}, nil
}

// Savings builds a TokenInfo, rounding the percentage to two decimals.
func Savings(original, cleaned int) models.TokenInfo {
	pct := 0.0
	if original > 0 {
		pct = float64(original-cleaned) / float64(original) * 100
		pct = math.Round(pct*100) / 100
	}
	return models.TokenInfo{
		OriginalEstimate: original,
		CleanedEstimate:  cleaned,
		SavingsPercent:   pct,
	}
}

func documentTitle(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
