package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pvis-group/procure-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "procure-cli",
	Short: "Procurement analytics warehouse and risk toolkit",
	Long:  "Ingests procurement extracts into a warehouse, scores supplier risk from delivery, quality, cost and FX signals, and forecasts exchange rates with Monte Carlo simulation.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
