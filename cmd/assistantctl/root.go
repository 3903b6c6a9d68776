package main

import (
	"github.com/futig/admissions-assistant/internal/builder"
	"github.com/spf13/cobra"
)

var (
	environment string
	logLevel    string

	// built before any subcommand runs
	services *builder.Services
)

var rootCmd = &cobra.Command{
	Use:          "assistantctl",
	Short:        "Operate the admissions assistant knowledge base",
	Long:         `Ingest and remove documents, inspect the vector index and ask test questions against the configured storage.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		services, err = builder.BuildServices(cmd.Context(), environment, logLevel)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&environment, "env", "local", "Environment whose .env file is loaded (local, prod, or custom)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}
