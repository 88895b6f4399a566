package engine_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/fetchwise/engine"
)

func htmlPage(body string) string {
	return "<html><head><title>Test</title></head><body>" + body + "</body></html>"
}

func TestClassifier_Classify(t *testing.T) {
	t.Parallel()

	c := engine.DefaultClassifier()
	filler := strings.Repeat("plain server-rendered paragraph text. ", 10)

	tests := []struct {
		name        string
		contentType string
		body        string
		want        engine.Verdict
	}{
		{
			name:        "short html is empty",
			contentType: "text/html; charset=utf-8",
			body:        "<html><body>hi</body></html>",
			want:        engine.VerdictInvalidEmpty,
		},
		{
			name:        "whitespace does not count toward length",
			contentType: "text/plain",
			body:        strings.Repeat(" ", 100) + "short" + strings.Repeat("\n", 100),
			want:        engine.VerdictInvalidEmpty,
		},
		{
			name:        "json meeting the threshold is valid",
			contentType: "application/json",
			body:        "ok",
			want:        engine.VerdictValid,
		},
		{
			name:        "single byte json is empty",
			contentType: "application/json",
			body:        "1",
			want:        engine.VerdictInvalidEmpty,
		},
		{
			name:        "vendor json types use the json threshold",
			contentType: "application/problem+json",
			body:        "{}",
			want:        engine.VerdictValid,
		},
		{
			name:        "html missing closing tag is invalid structure",
			contentType: "text/html",
			body:        "<html><body>" + filler,
			want:        engine.VerdictInvalidStructure,
		},
		{
			name:        "structure check is case-insensitive",
			contentType: "text/html",
			body:        "<HTML><BODY>" + filler + "</BODY></HTML>",
			want:        engine.VerdictValid,
		},
		{
			name:        "document.write with script requires rendering",
			contentType: "text/html",
			body:        htmlPage(filler[:120] + "<script>document.write('x')</script>"),
			want:        engine.VerdictRequiresRendering,
		},
		{
			name:        "loading indicator with script requires rendering",
			contentType: "text/html",
			body:        htmlPage(filler + `<div class="loading">Loading...</div><script src="/app.js"></script>`),
			want:        engine.VerdictRequiresRendering,
		},
		{
			name:        "empty spa mount point requires rendering",
			contentType: "text/html",
			body:        htmlPage(filler + `<div id="root"></div><script src="/bundle.js"></script>`),
			want:        engine.VerdictRequiresRendering,
		},
		{
			name:        "markers without script are valid",
			contentType: "text/html",
			body:        htmlPage(filler + `<p>document.write is discussed here</p>`),
			want:        engine.VerdictValid,
		},
		{
			name:        "lazy image loading attribute is not a marker",
			contentType: "text/html",
			body:        htmlPage(filler + `<img src="a.png" loading="lazy"><script>var x = 1;</script>`),
			want:        engine.VerdictValid,
		},
		{
			name:        "plain text meeting the threshold is valid",
			contentType: "text/plain",
			body:        filler,
			want:        engine.VerdictValid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, c.Classify(tt.contentType, tt.body))
		})
	}
}

func TestClassifier_ShortBodiesAreEmptyRegardlessOfType(t *testing.T) {
	t.Parallel()

	c := engine.DefaultClassifier()
	cases := map[string]int{
		"text/html":        c.MinHTML,
		"application/json": c.MinJSON,
		"text/plain":       c.MinOther,
		"":                 c.MinOther,
	}
	for ct, minLen := range cases {
		for n := 0; n < minLen; n++ {
			assert.Equal(t, engine.VerdictInvalidEmpty, c.Classify(ct, strings.Repeat("a", n)), "content-type %q length %d", ct, n)
		}
	}
}

func TestClassifier_CustomThresholds(t *testing.T) {
	t.Parallel()

	c := &engine.Classifier{MinHTML: 10, MinJSON: 10, MinOther: 10}
	assert.Equal(t, engine.VerdictInvalidEmpty, c.Classify("application/json", `{"a":1}`))
	assert.Equal(t, engine.VerdictValid, c.Classify("text/html", "<html><script>document.write(1)</script></html>"))
}
