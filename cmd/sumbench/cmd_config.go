package main

import (
	"github.com/spf13/cobra"

	"github.com/ahrav/go-sumbench/internal/application"
)

const redacted = "[redacted]"

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration after merging defaults, the config file,
environment variables and flags. API keys are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeStructured(cmd.OutOrStdout(), formatYAML, redactKeys(*a.cfg))
		},
	}
}

// redactKeys returns a copy of cfg with every non-empty API key masked.
func redactKeys(cfg application.AppConfig) application.AppConfig {
	for _, creds := range []*application.ProviderCredentials{
		&cfg.Providers.OpenAI, &cfg.Providers.Anthropic, &cfg.Providers.Google,
	} {
		if creds.APIKey != "" {
			creds.APIKey = redacted
		}
	}
	return cfg
}
