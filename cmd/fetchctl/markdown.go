package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/use-agent/fetchwise/cleaner"
)

var markdownRaw bool

func markdownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markdown [file]",
		Short: "Convert an HTML file (or stdin) to Markdown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			raw, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			md, err := cleaner.ToMarkdown(string(raw), !markdownRaw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), md)
			return nil
		},
	}
	cmd.Flags().BoolVar(&markdownRaw, "no-preprocess", false, "keep script/style and convert the whole document")
	return cmd
}
