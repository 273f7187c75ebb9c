package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-sumbench/internal/domain"
)

type compareOptions struct {
	file      string
	providers []string
	maxWords  int
	format    string
}

func newCompareCommand(a *app) *cobra.Command {
	opts := &compareOptions{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare summaries of a text across providers",
		Long: `Summarize the input text with every --provider, score each summary with
the evaluator model and print the report.

The text is read from --file, or from stdin when no file is given.`,
		Example: `  sumbench compare -f article.txt -p gpt-4o -p claude-3-5-haiku-20241022
  cat article.txt | sumbench compare -p gpt-4 -p gemini-1.5-pro --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompare(cmd, a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "File holding the text to summarize (default stdin)")
	cmd.Flags().StringArrayVarP(&opts.providers, "provider", "p", nil, "Model id to compare; repeat for each provider")
	cmd.Flags().IntVar(&opts.maxWords, "max-words", 0, "Target summary length in words (default from config)")
	cmd.Flags().StringVar(&opts.format, "format", formatTable, "Output format: json, yaml or table")
	return cmd
}

func runCompare(cmd *cobra.Command, a *app, opts *compareOptions) error {
	if err := checkFormat(opts.format, formatJSON, formatYAML, formatTable); err != nil {
		return err
	}
	text, err := readText(cmd, opts.file)
	if err != nil {
		return err
	}

	svc, _, err := a.service()
	if err != nil {
		return err
	}

	result, err := svc.Compare(cmd.Context(), domain.ComparisonRequest{
		Text:      text,
		Providers: opts.providers,
		MaxWords:  opts.maxWords,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == formatTable {
		return writeComparisonTable(out, result)
	}
	return writeStructured(out, opts.format, result)
}

// readText reads the source text from path, or from the command's stdin
// when path is empty or "-".
func readText(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
