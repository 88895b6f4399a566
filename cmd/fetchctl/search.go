package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/use-agent/fetchwise/search"
)

var (
	searchEngine string
	searchTarget int
	searchLinks  bool
)

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Harvest search result links page by page",
		Long: `Query a search provider and walk its result pages until enough links are
collected or a page stays empty through its retry budget.

Providers: ` + strings.Join(search.Providers, ", "),
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().StringVarP(&searchEngine, "engine", "e", "searx", "search provider")
	cmd.Flags().IntVarP(&searchTarget, "target", "n", 0, "links to collect (default from config)")
	cmd.Flags().BoolVar(&searchLinks, "links-only", false, "print only the collected links")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	sc, cfg, err := newScraper(logger)
	if err != nil {
		return err
	}
	defer sc.Close()

	provider, err := search.NewProvider(searchEngine, cfg.Search)
	if err != nil {
		return err
	}
	target := searchTarget
	if target <= 0 {
		target = cfg.Search.DefaultTarget
	}

	h := search.NewHarvester(sc,
		search.WithPageInterval(cfg.Search.PageInterval),
		search.WithPageRetries(cfg.Search.PageRetries),
		search.WithMaxPages(cfg.Search.MaxPages),
		search.WithRetryPause(cfg.Search.RetryPause),
		search.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := h.Harvest(ctx, provider, search.Query{Text: strings.Join(args, " "), Target: target})
	if err != nil {
		return err
	}

	if searchLinks {
		for _, l := range res.Links {
			fmt.Println(l)
		}
	} else {
		fmt.Println(res.Log())
	}
	fmt.Fprintf(os.Stderr, "%s: %d links from %d pages\n", res.State, len(res.Links), res.Pages)
	return nil
}
