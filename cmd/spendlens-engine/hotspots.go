package main

import (
	"github.com/spf13/cobra"

	"github.com/spendlens/spendlens-engine/internal/config"
	"github.com/spendlens/spendlens-engine/internal/patterns"
	"github.com/spendlens/spendlens-engine/internal/store"
	"github.com/spendlens/spendlens-engine/internal/utils"
)

var hotspotsLimit int

var hotspotsCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "Summarize recurring anomaly hotspots from finished investigations",
	RunE:  runHotspots,
}

func init() {
	hotspotsCmd.Flags().IntVar(&hotspotsLimit, "limit", 100, "number of recent investigations to mine")
}

func runHotspots(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	summarizer := patterns.NewSummarizer(db, logger)
	hotspots, err := summarizer.Summarize(cmd.Context(), hotspotsLimit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), hotspots)
}
