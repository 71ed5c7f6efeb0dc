package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "ingest",
		Short:         "Health file ingestion CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path")
	flags.StringVar(&ctx.dbPath, "db", "", "SQLite database path (default ingest.db)")
	flags.StringVar(&ctx.storageRoot, "storage-root", "", "Local blob directory (default data/blobs)")
	flags.BoolVarP(&ctx.verbose, "verbose", "v", false, "Log pipeline activity to stderr")

	rootCmd.AddCommand(newParseCommand(ctx))
	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newQuotaCommand(ctx))
	rootCmd.AddCommand(newUploadsCommand(ctx))

	return rootCmd
}
