package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pvis-group/procure-cli/internal/model"
	"github.com/pvis-group/procure-cli/internal/risk"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute composite supplier risk scores",
	Long: `Computes a weighted composite risk score per supplier from lead-time,
defect, on-time-delivery, FX-exposure and cost-variance signals, normalized
across the supplier population. Scores fall in [0, 100]; higher is riskier.

Weights come from configuration (analytics.w_lead, w_defect, w_otd, w_fx,
w_cost) and must sum to 1.0.

Examples:
  procure-cli score
  procure-cli score --limit 10
  procure-cli score --format csv --output scores.csv
  procure-cli score --no-save`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.Int("limit", 0, "emit only the top N riskiest suppliers (0 = all)")
	f.String("format", "table", "output format: table or csv")
	f.String("output", "", "write csv output to a file instead of stdout")
	f.Bool("no-save", false, "compute and print without persisting the run")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	noSave, _ := cmd.Flags().GetBool("no-save")

	if format != "table" && format != "csv" {
		return eris.Errorf("score: unknown format %q (want table or csv)", format)
	}

	scorer, err := risk.NewScorer(cfg.Analytics)
	if err != nil {
		return err
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	facts, err := st.LoadFacts(ctx)
	if err != nil {
		return err
	}

	scores, err := scorer.ScoreSuppliers(facts)
	if err != nil {
		return err
	}
	if len(scores) == 0 {
		fmt.Println("no suppliers with orders to score")
		return nil
	}

	if !noSave {
		if err := st.SaveScores(ctx, scores); err != nil {
			return eris.Wrap(err, "score: persist run")
		}
	}

	if limit > 0 && limit < len(scores) {
		scores = scores[:limit]
	}

	if format == "csv" {
		return writeScoresCSV(scores, output)
	}
	printScores(scores)
	return nil
}

func printScores(scores []model.CompositeRiskScore) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSUPPLIER\tSCORE\tFLAGS")
	for i, sc := range scores {
		flags := ""
		if sc.LowConfidence {
			flags = "low-confidence"
		}
		fmt.Fprintf(w, "%d\t%s (%d)\t%.2f\t%s\n", i+1, sc.SupplierName, sc.SupplierID, sc.Score, flags)
	}
	w.Flush() //nolint:errcheck

	fmt.Printf("\nrun %s: %d suppliers scored\n", scores[0].RunID, len(scores))
}

func writeScoresCSV(scores []model.CompositeRiskScore, output string) error {
	out := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return eris.Wrapf(err, "score: create %s", output)
		}
		defer f.Close() //nolint:errcheck
		out = f
	}

	w := csv.NewWriter(out)
	header := []string{"run_id", "supplier_id", "supplier_name", "score",
		"lead_time", "defect_rate", "otd", "fx_exposure", "cost_variance", "low_confidence"}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "score: write csv header")
	}
	for _, sc := range scores {
		rec := []string{
			sc.RunID,
			strconv.FormatInt(sc.SupplierID, 10),
			sc.SupplierName,
			strconv.FormatFloat(sc.Score, 'f', 2, 64),
			strconv.FormatFloat(sc.Components["lead_time"], 'f', 4, 64),
			strconv.FormatFloat(sc.Components["defect_rate"], 'f', 4, 64),
			strconv.FormatFloat(sc.Components["otd"], 'f', 4, 64),
			strconv.FormatFloat(sc.Components["fx_exposure"], 'f', 4, 64),
			strconv.FormatFloat(sc.Components["cost_variance"], 'f', 4, 64),
			strconv.FormatBool(sc.LowConfidence),
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrap(err, "score: write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "score: flush csv")
}
