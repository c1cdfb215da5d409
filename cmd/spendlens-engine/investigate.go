package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/spendlens/spendlens-engine/internal/config"
	"github.com/spendlens/spendlens-engine/internal/metrics"
	"github.com/spendlens/spendlens-engine/internal/utils"
)

var (
	recordsFile string
	pollEvery   time.Duration
)

var investigateCmd = &cobra.Command{
	Use:   "investigate <query>",
	Short: "Run a single investigation and print the result as JSON",
	Long: "Runs one investigation to completion and prints the final record.\n" +
		"With --records the engine analyzes a local JSON file instead of the\n" +
		"configured spending-records API.",
	Args: cobra.ExactArgs(1),
	RunE: runInvestigate,
}

func init() {
	investigateCmd.Flags().StringVar(&recordsFile, "records", "", "path to a JSON file of spending records")
	investigateCmd.Flags().DurationVar(&pollEvery, "poll", 200*time.Millisecond, "status poll interval")
}

func runInvestigate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	if err := metrics.Register(prometheus.NewRegistry()); err != nil {
		return err
	}

	app, err := buildApp(cfg, logger, recordsFile)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	id, err := app.engine.SubmitInvestigation(ctx, args[0], nil)
	if err != nil {
		return err
	}
	logger.Info("investigation submitted", slog.String("investigation_id", id))

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			app.engine.CancelInvestigation(id)
			return ctx.Err()
		case <-ticker.C:
		}
		inv, err := app.engine.GetInvestigationStatus(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status.Terminal() {
			return printJSON(cmd.OutOrStdout(), inv)
		}
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
