package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:   "majdl",
		Short: "Download and decode game records",
		Long: "majdl downloads every game record of the logged-in account into one JSON document per\n" +
			"record, then fetches and decodes each record's detail payload into a details list.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, ctx)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&flags.outputDir, "output", "", "Directory for record JSON documents")
	rootCmd.PersistentFlags().StringVar(&flags.rawDir, "output-pb", "", "Directory for raw protobuf dumps of fetched records")
	rootCmd.PersistentFlags().StringVar(&flags.memoizeFile, "memoize", "", "File listing records already downloaded; listed records are never fetched again")
	rootCmd.Flags().BoolVarP(&flags.noNewRecords, "no-new-records", "N", false, "Decode existing records only; nothing is downloaded")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newLoginCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newSchemaCommand(ctx))

	return rootCmd
}
