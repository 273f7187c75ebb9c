package main

import (
	"github.com/spf13/cobra"

	"github.com/ahrav/go-sumbench/internal/application"
)

type summarizeOptions struct {
	file        string
	model       string
	maxWords    int
	temperature float64
	format      string
}

func newSummarizeCommand(a *app) *cobra.Command {
	opts := &summarizeOptions{}
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Produce a single summary with one model",
		Long: `Ask one model for one summary, without evaluation. Useful for checking
credentials and prompt output before running a full comparison.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(opts.format, formatJSON, formatYAML); err != nil {
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

			result, err := svc.SummarizeOnce(cmd.Context(), application.SingleSummaryRequest{
				Text:        text,
				Model:       opts.model,
				MaxWords:    opts.maxWords,
				Temperature: opts.temperature,
			})
			if err != nil {
				return err
			}
			return writeStructured(cmd.OutOrStdout(), opts.format, result)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "File holding the text to summarize (default stdin)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "gpt-3.5-turbo", "Model id")
	cmd.Flags().IntVar(&opts.maxWords, "max-words", 0, "Target summary length in words (default from config)")
	cmd.Flags().Float64Var(&opts.temperature, "temperature", 0.7, "Sampling temperature, 0 to 2")
	cmd.Flags().StringVar(&opts.format, "format", formatYAML, "Output format: json or yaml")
	return cmd
}
