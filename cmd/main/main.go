package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// -----------------------------------------------------------------------------

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// -----------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sentiment-observer",
		Short:        "Ingest a live ticker feed and roll it up into per-minute price and sentiment buckets",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/default.yaml", "path to config file (empty for env only)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run feed ingestion, the aggregation scheduler and the ops servers",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPipeline(cmd.Context(), true, true)
			},
		},
		&cobra.Command{
			Use:   "ingest",
			Short: "Run feed ingestion only",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPipeline(cmd.Context(), true, false)
			},
		},
		&cobra.Command{
			Use:   "aggregate",
			Short: "Run a single aggregation cycle over the trailing buckets and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return aggregateOnce(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create missing tables and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := setupCore(configPath)
				if err != nil {
					return err
				}
				defer app.Close()
				app.Logger.Info("Schema is up to date (%s)", app.Config.Storage.DBType)
				return nil
			},
		},
	)
	return root
}
