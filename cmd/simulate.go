package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pvis-group/procure-cli/internal/fx"
	"github.com/pvis-group/procure-cli/internal/model"
	"github.com/pvis-group/procure-cli/internal/store"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Forecast FX rates with Monte Carlo simulation",
	Long: `Simulates geometric Brownian motion paths for a currency's rate against
the base currency, calibrated from historical log returns, and reports the
P5/median/P95 terminal distribution over the horizon.

Examples:
  procure-cli simulate --currency EUR
  procure-cli simulate --currency EUR --horizon 180 --paths 20000
  procure-cli simulate --all --seed 42
  procure-cli simulate --currency JPY --window 252 --no-save`,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.String("currency", "", "currency to simulate")
	f.Bool("all", false, "simulate every currency with rate history")
	f.Int("horizon", 0, "forecast horizon in days (default from config)")
	f.Int("paths", 0, "number of Monte Carlo paths (default from config)")
	f.Int("window", 0, "trailing observations for return estimation (0 = full history)")
	f.Uint64("seed", 0, "random seed for reproducible runs")
	f.Bool("no-save", false, "print results without persisting them")
	simulateCmd.MarkFlagsMutuallyExclusive("currency", "all")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	currency, _ := cmd.Flags().GetString("currency")
	all, _ := cmd.Flags().GetBool("all")
	horizon, _ := cmd.Flags().GetInt("horizon")
	paths, _ := cmd.Flags().GetInt("paths")
	window, _ := cmd.Flags().GetInt("window")
	noSave, _ := cmd.Flags().GetBool("no-save")

	if currency == "" && !all {
		return eris.New("simulate: --currency or --all is required")
	}

	if horizon == 0 {
		horizon = cfg.Analytics.DefaultHorizonDays
	}
	if paths == 0 {
		paths = cfg.Analytics.DefaultPathCount
	}

	params := fx.Params{HorizonDays: horizon, PathCount: paths, Window: window}
	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetUint64("seed")
		params.Seed = &seed
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	sim := fx.NewSimulator(fx.BoundsFromConfig(cfg.Analytics))

	var results []*model.SimulationResult
	if all {
		results, err = simulateAll(cmd, st, sim, params)
	} else {
		results, err = simulateOne(cmd, st, sim, params, currency)
	}
	if err != nil {
		return err
	}

	for _, res := range results {
		if !noSave {
			if err := st.SaveSimulation(ctx, res); err != nil {
				return err
			}
		}
		printSimulation(res)
	}
	return nil
}

func simulateOne(cmd *cobra.Command, st store.Store, sim *fx.Simulator, params fx.Params, currency string) ([]*model.SimulationResult, error) {
	series, err := st.RateHistory(cmd.Context(), currency)
	if err != nil {
		return nil, err
	}
	res, err := sim.Run(series, params)
	if err != nil {
		return nil, err
	}
	return []*model.SimulationResult{res}, nil
}

func simulateAll(cmd *cobra.Command, st store.Store, sim *fx.Simulator, params fx.Params) ([]*model.SimulationResult, error) {
	ctx := cmd.Context()

	currencies, err := st.Currencies(ctx)
	if err != nil {
		return nil, err
	}
	if len(currencies) == 0 {
		return nil, eris.New("simulate: no rate history in warehouse")
	}

	series := make(map[string]model.RateSeries, len(currencies))
	for _, c := range currencies {
		s, err := st.RateHistory(ctx, c)
		if err != nil {
			return nil, err
		}
		series[c] = s
	}

	return sim.SimulateAll(ctx, series, params)
}

func printSimulation(res *model.SimulationResult) {
	fmt.Printf("%s: spot %.6f -> median %.6f (%+.2f%%) over %d days, %d paths\n",
		res.Currency, res.CurrentRate, res.Median, res.ExpectedChangePct(), res.HorizonDays, res.PathCount)
	fmt.Printf("  P5 %.6f  P95 %.6f  drift %.6f  vol %.6f\n",
		res.P5, res.P95, res.Drift, res.Volatility)
}
