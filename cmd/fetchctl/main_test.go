package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePairs(t *testing.T) {
	got, err := parsePairs([]string{"q=golang", "empty=", "eq=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q": "golang", "empty": "", "eq": "a=b"}, got)

	got, err = parsePairs(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parsePairs([]string{"novalue"})
	require.Error(t, err)
	_, err = parsePairs([]string{"=x"})
	require.Error(t, err)
}

func TestMarkdownCmd(t *testing.T) {
	cmd := markdownCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(`<html><body><h1>Title</h1><script>x()</script></body></html>`))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "# Title\n", out.String())
}

func TestSummarize(t *testing.T) {
	ur := urlResult{URL: "https://example.com", Runs: []runResult{
		{Success: true, ElapsedMs: 100},
		{Success: true, ElapsedMs: 300, Escalated: true},
		{Error: "timeout"},
	}}
	summarize(&ur)
	assert.Equal(t, 2, ur.Successes)
	assert.Equal(t, 1, ur.Escalated)
	assert.InDelta(t, 200.0, ur.AvgMs, 0.001)

	var out bytes.Buffer
	printTable(&out, []urlResult{ur, {URL: "https://down.example.com", Runs: []runResult{{Error: "x"}}}})
	assert.Contains(t, out.String(), "200ms")
	assert.Contains(t, out.String(), "2/3")
	assert.Contains(t, out.String(), "FAILED")
}

func TestTruncateURL(t *testing.T) {
	assert.Equal(t, "short", truncateURL("short", 10))
	assert.Equal(t, "https:/...", truncateURL("https://example.com/long", 10))
}
