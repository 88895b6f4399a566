// Command fetchctl runs retrievals, searches and conversions in-process,
// without the HTTP server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/fetchwise/config"
	"github.com/use-agent/fetchwise/scraper"
)

var (
	logLevel  string
	noBrowser bool
	proxyURL  string
	timeout   time.Duration
	retries   int
)

func main() {
	root := &cobra.Command{
		Use:           "fetchctl",
		Short:         "Adaptive content retrieval from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&noBrowser, "no-browser", false, "disable the browser tier")
	root.PersistentFlags().StringVar(&proxyURL, "proxy", "", "proxy URL (http, https, socks5, socks5h)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-attempt timeout (default from config)")
	root.PersistentFlags().IntVar(&retries, "retries", 0, "lightweight attempt budget (default from config)")

	root.AddCommand(getCmd(), postCmd(), searchCmd(), markdownCmd(), benchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setupLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// newScraper builds a scraper from the environment configuration and the
// global flags.
func newScraper(logger *slog.Logger) (*scraper.Scraper, *config.Config, error) {
	cfg := config.Load()
	if noBrowser {
		cfg.Browser.Enabled = false
	}
	if proxyURL != "" {
		cfg.Retrieval.Proxy = proxyURL
	}
	if timeout > 0 {
		cfg.Retrieval.DefaultTimeout = timeout
		cfg.Retrieval.MaxTimeout = max(cfg.Retrieval.MaxTimeout, timeout)
	}
	if retries > 0 {
		cfg.Retrieval.Retries = retries
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	return scraper.NewScraper(cfg, logger), cfg, nil
}

// parsePairs turns key=value arguments into a map.
func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[k] = v
	}
	return out, nil
}
