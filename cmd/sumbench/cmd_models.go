package main

import "github.com/spf13/cobra"

func newModelsCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models available for comparison",
		Long:  "List model ids per provider family. Families without an API key are omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, formatJSON, formatYAML); err != nil {
				return err
			}
			svc, _, err := a.service()
			if err != nil {
				return err
			}
			return writeStructured(cmd.OutOrStdout(), format, svc.Models())
		},
	}
	cmd.Flags().StringVar(&format, "format", formatYAML, "Output format: json or yaml")
	return cmd
}
