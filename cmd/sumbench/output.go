package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-sumbench/internal/domain"
)

// Output formats.
const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q: must be one of %s", format, strings.Join(allowed, ", "))
}

// writeStructured renders v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// writeComparisonTable prints one row per provider followed by the winner
// and the narrative.
func writeComparisonTable(w io.Writer, result *domain.ComparisonResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tSTATUS\tSUCCESS\tAVERAGE\tBEST\tWORST\tCONSISTENCY")

	success := make(map[string]string, len(result.Results))
	for _, set := range result.Results {
		success[set.Provider] = fmt.Sprintf("%d/%d", set.SuccessCount, len(set.Slots))
	}
	for _, s := range result.Evaluations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%d\t%.2f\n",
			s.Provider, s.Status, success[s.Provider], s.Average, s.Best, s.Worst, s.Consistency)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nWinner: %s\n", result.Winner)
	if result.BestSummary != "" {
		fmt.Fprintf(w, "Best summary: %s\n", result.BestSummary)
	}
	if result.Usage != nil {
		fmt.Fprintf(w, "Usage: %d calls, ~%d tokens\n", result.Usage.Calls, result.Usage.Tokens)
	}
	fmt.Fprintf(w, "Elapsed: %s\n\n%s\n", result.Elapsed.Round(time.Millisecond), result.Narrative)
	return nil
}
