package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/fetchwise/models"
	"github.com/use-agent/fetchwise/search"
)

// Default targets cover a static page, docs, a news front and a
// script-heavy app.
var benchURLs = []string{
	"https://example.com",
	"https://go.dev/doc/effective_go",
	"https://www.bbc.com/news",
	"https://github.com/go-rod/rod",
}

var (
	benchRuns   int
	benchOutput string
)

type runResult struct {
	Run        int    `json:"run"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	StatusCode int    `json:"status_code"`
	Engine     string `json:"engine"`
	Escalated  bool   `json:"escalated"`
	Attempts   int    `json:"attempts"`
	BodyLength int    `json:"body_length"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

type urlResult struct {
	URL       string      `json:"url"`
	Runs      []runResult `json:"runs"`
	AvgMs     float64     `json:"avg_ms"`
	Escalated int         `json:"escalated"`
	Successes int         `json:"successes"`
}

type benchReport struct {
	Timestamp  string      `json:"timestamp"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func benchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench [url...]",
		Short: "Measure retrieval latency and escalation rate",
		RunE:  runBench,
	}
	cmd.Flags().IntVar(&benchRuns, "runs", 3, "runs per URL")
	cmd.Flags().StringVarP(&benchOutput, "output", "o", "", "write a JSON report to this path")
	return cmd
}

func runBench(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	sc, _, err := newScraper(logger)
	if err != nil {
		return err
	}
	defer sc.Close()

	urls := args
	if len(urls) == 0 {
		urls = benchURLs
	}
	if benchRuns < 1 {
		return fmt.Errorf("--runs must be >= 1")
	}

	out := cmd.OutOrStdout()
	report := benchReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RunsPerURL: benchRuns,
	}

	for _, u := range urls {
		fmt.Fprintf(out, "Benchmarking %s ...\n", u)
		ur := urlResult{URL: u}
		for i := 1; i <= benchRuns; i++ {
			rr := benchOnce(cmd.Context(), sc, u, i)
			if rr.Success {
				fmt.Fprintf(out, "  run %d: %dms via %s\n", i, rr.ElapsedMs, rr.Engine)
			} else {
				fmt.Fprintf(out, "  run %d: FAILED: %s\n", i, rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}
		summarize(&ur)
		report.Results = append(report.Results, ur)
	}

	printTable(out, report.Results)

	if benchOutput == "" {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(benchOutput, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(out, "\nDetailed results written to %s\n", benchOutput)
	return nil
}

func benchOnce(ctx context.Context, sc search.Retriever, rawURL string, run int) runResult {
	rr := runResult{Run: run}
	req, err := sc.NewRequest(rawURL)
	if err != nil {
		rr.Error = err.Error()
		return rr
	}

	start := time.Now()
	res, err := sc.Retrieve(ctx, req)
	rr.ElapsedMs = time.Since(start).Milliseconds()
	if err != nil {
		rr.Error = err.Error()
		var re *models.RetrievalError
		if errors.As(err, &re) {
			rr.Error = re.Code + ": " + re.Message
		}
		return rr
	}

	rr.Success = true
	rr.StatusCode = res.StatusCode
	rr.Engine = res.Engine
	rr.Escalated = res.Escalated
	rr.Attempts = res.Attempts
	rr.BodyLength = len(res.Body)
	return rr
}

func summarize(ur *urlResult) {
	var total int64
	for _, r := range ur.Runs {
		if !r.Success {
			continue
		}
		ur.Successes++
		total += r.ElapsedMs
		if r.Escalated {
			ur.Escalated++
		}
	}
	if ur.Successes > 0 {
		ur.AvgMs = float64(total) / float64(ur.Successes)
	}
}

func printTable(out io.Writer, results []urlResult) {
	fmt.Fprintln(out, strings.Repeat("─", 80))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tOK\tEscalated\n")
	fmt.Fprintf(w, "───\t───────────\t──\t─────────\n")
	for _, r := range results {
		if r.Successes == 0 {
			fmt.Fprintf(w, "%s\tFAILED\t0/%d\t-\n", truncateURL(r.URL, 40), len(r.Runs))
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%d/%d\t%d\n",
			truncateURL(r.URL, 40), int64(r.AvgMs), r.Successes, len(r.Runs), r.Escalated)
	}
	w.Flush()
	fmt.Fprintln(out, strings.Repeat("─", 80))
}

func truncateURL(u string, n int) string {
	if len(u) <= n {
		return u
	}
	return u[:n-3] + "..."
}
