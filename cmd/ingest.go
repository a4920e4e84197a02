package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pvis-group/procure-cli/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <kind> <file>...",
	Short: "Load CSV extracts into the warehouse",
	Long: `Loads one or more CSV extracts of a single kind into the warehouse.

Kinds:
  suppliers   supplier dimension (upserted by supplier_id)
  materials   material dimension (upserted by material_id)
  orders      purchase order lines (append-only)
  incidents   quality incidents (append-only)
  fx-rates    exchange rate observations (upserted by currency+date)

Load dimensions before facts so references resolve.

Examples:
  procure-cli ingest suppliers suppliers.csv
  procure-cli ingest fx-rates rates_2025q1.csv rates_2025q2.csv`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind := ingest.Kind(args[0])
		if !validKind(kind) {
			return eris.Errorf("unknown extract kind %q (want one of %s)", args[0], kindList())
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		loader := ingest.NewLoader(st)

		var total int64
		for _, path := range args[1:] {
			n, err := loader.LoadFile(ctx, kind, path)
			if err != nil {
				return err
			}
			total += n
		}

		fmt.Printf("loaded %d %s rows from %d file(s)\n", total, kind, len(args)-1)
		return nil
	},
}

func validKind(k ingest.Kind) bool {
	for _, known := range ingest.Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

func kindList() string {
	var names []string
	for _, k := range ingest.Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
