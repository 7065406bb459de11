package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aleph-Alpha/screensim/pkg/config"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "screensim",
	Short: "Screenshot similarity search - ingest screenshots and find visually similar ones",
	Long: `screensim normalizes screenshots stored in MinIO, embeds them through the
embedding service and indexes the vectors in Qdrant. The same index answers
"find screenshots similar to this one" queries.

Example usage:
  screensim serve                                   # Run the HTTP API
  screensim ingest --tsv screens_meta.tsv           # Index keys listed in a TSV
  screensim ingest --prefix shots/ --include '**/*.png'
  screensim backfill-titles --tsv screens_meta.tsv  # Repair point titles`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return cfg.Validate()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $"+config.PathEnv+")")
}
