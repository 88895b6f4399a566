package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the shortest readability TextContent accepted before
// falling back to the full document.
const minContentLength = 50

// ExtractContent runs the Mozilla Readability algorithm on rawHTML.
//
// Conversion never fails because readability did. When the source URL does
// not parse, extraction errors, or the extracted text is shorter than
// minContentLength, the full document comes back in Content and ok is false.
func ExtractContent(logger *slog.Logger, rawHTML string, sourceURL string) (readability.Article, bool) {
	var parsedURL *nurl.URL
	if sourceURL != "" {
		u, err := nurl.Parse(sourceURL)
		if err != nil {
			logger.Warn("readability: invalid source URL, using full document",
				"url", sourceURL, "error", err,
			)
			return fallbackArticle(rawHTML), false
		}
		parsedURL = u
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		logger.Warn("readability: extraction failed, using full document",
			"url", sourceURL, "error", err,
		)
		return fallbackArticle(rawHTML), false
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		logger.Debug("readability: extracted content too short, using full document",
			"url", sourceURL, "length", len(article.TextContent),
		)
		return fallbackArticle(rawHTML), false
	}

	return article, true
}

func fallbackArticle(rawHTML string) readability.Article {
	return readability.Article{
		Content:     Preprocess(rawHTML),
		TextContent: rawHTML,
	}
}
