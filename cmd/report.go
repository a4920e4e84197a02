package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pvis-group/procure-cli/internal/metrics"
	"github.com/pvis-group/procure-cli/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export an Excel workbook of the latest analytics",
	Long: `Writes an .xlsx workbook with the latest supplier risk scores, recent
FX forecasts and the monthly spend aggregation.

Examples:
  procure-cli report
  procure-cli report --output q1_review.xlsx`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("output", "", "output path (default from config)")
	reportCmd.Flags().Int("forecasts", 20, "number of recent forecasts to include")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	output, _ := cmd.Flags().GetString("output")
	forecasts, _ := cmd.Flags().GetInt("forecasts")
	if output == "" {
		output = cfg.Report.OutputPath
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	scores, err := st.LatestScores(ctx)
	if err != nil {
		return err
	}

	sims, err := st.ListSimulations(ctx, "", forecasts)
	if err != nil {
		return err
	}

	facts, err := st.LoadFacts(ctx)
	if err != nil {
		return err
	}
	spend := metrics.NewExtractor(cfg.Analytics.BaseCurrency).MonthlySpend(facts)

	wb := report.Workbook{Scores: scores, Simulations: sims, Spend: spend}
	if err := report.Write(output, wb); err != nil {
		return err
	}

	fmt.Printf("report written to %s (%d scores, %d forecasts, %d spend rows)\n",
		output, len(scores), len(sims), len(spend))
	return nil
}
