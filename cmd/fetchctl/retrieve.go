package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/use-agent/fetchwise/cleaner"
	"github.com/use-agent/fetchwise/engine"
)

type retrieveFlags struct {
	params    []string
	headers   []string
	form      []string
	browser   bool
	markdown  bool
	article   bool
	userAgent string
	verbose   bool
}

func (f *retrieveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "query parameter key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "request header key=value (repeatable)")
	cmd.Flags().BoolVar(&f.browser, "browser", false, "skip the lightweight tier")
	cmd.Flags().BoolVar(&f.markdown, "markdown", false, "print the body as Markdown")
	cmd.Flags().BoolVar(&f.article, "article", false, "extract the main article before Markdown conversion")
	cmd.Flags().StringVar(&f.userAgent, "user-agent", "", "browser user agent override")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print retrieval metadata to stderr")
}

func getCmd() *cobra.Command {
	f := &retrieveFlags{}
	cmd := &cobra.Command{
		Use:   "get [url]",
		Short: "Retrieve a page with GET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetrieve(cmd.Context(), args[0], f)
		},
	}
	f.register(cmd)
	return cmd
}

func postCmd() *cobra.Command {
	f := &retrieveFlags{}
	cmd := &cobra.Command{
		Use:   "post [url]",
		Short: "Submit a form-encoded POST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(f.form) == 0 {
				return fmt.Errorf("post needs at least one --form field")
			}
			return runRetrieve(cmd.Context(), args[0], f)
		},
	}
	f.register(cmd)
	cmd.Flags().StringArrayVarP(&f.form, "form", "f", nil, "form field key=value (repeatable)")
	return cmd
}

func runRetrieve(parent context.Context, rawURL string, f *retrieveFlags) error {
	logger := setupLogger()
	sc, _, err := newScraper(logger)
	if err != nil {
		return err
	}
	defer sc.Close()

	params, err := parsePairs(f.params)
	if err != nil {
		return fmt.Errorf("--param: %w", err)
	}
	headers, err := parsePairs(f.headers)
	if err != nil {
		return fmt.Errorf("--header: %w", err)
	}
	form, err := parsePairs(f.form)
	if err != nil {
		return fmt.Errorf("--form: %w", err)
	}

	opts := []engine.RequestOption{
		engine.WithParams(params),
		engine.WithHeaders(headers),
		engine.WithSkipLightweight(f.browser),
		engine.WithUserAgent(f.userAgent),
	}
	if len(form) > 0 {
		opts = append(opts, engine.WithForm(form))
	}
	req, err := sc.NewRequest(rawURL, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := sc.Retrieve(ctx, req)
	if err != nil {
		return err
	}
	if f.verbose {
		fmt.Fprintf(os.Stderr, "status=%d engine=%s escalated=%t attempts=%d elapsed=%s url=%s\n",
			res.StatusCode, res.Engine, res.Escalated, res.Attempts, res.Elapsed, res.FinalURL)
	}

	body := res.Body
	if f.markdown || f.article {
		mode := cleaner.ModeRaw
		if f.article {
			mode = cleaner.ModeArticle
		}
		out, err := cleaner.NewCleaner(logger).Convert(body, cleaner.Options{
			Preprocess: true,
			Mode:       mode,
			SourceURL:  res.FinalURL,
		})
		if err != nil {
			return err
		}
		body = out.Markdown
	}

	fmt.Println(body)
	return nil
}
