package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pvis-group/procure-cli/internal/config"
)

func init() {
	// Replace global logger with a no-op to avoid nil pointer panics in tests.
	zap.ReplaceGlobals(zap.NewNop())
}

// testConfig mirrors the shipped defaults against a temp SQLite warehouse.
func testConfig(dbPath string) *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: dbPath},
		Analytics: config.AnalyticsConfig{
			BaseCurrency:       "USD",
			WeightLeadTime:     0.30,
			WeightDefect:       0.35,
			WeightOTD:          0.25,
			WeightFX:           0.10,
			DefaultHorizonDays: 90,
			DefaultPathCount:   10000,
			MinHorizonDays:     30,
			MaxHorizonDays:     1095,
			MinPathCount:       1000,
			MaxPathCount:       50000,
		},
		Report: config.ReportConfig{OutputPath: "procurement_report.xlsx"},
		Log:    config.LogConfig{Level: "info", Format: "json"},
	}
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"migrate", "ingest", "score", "simulate", "report"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "procure-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestScoreCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"limit", "format", "output", "no-save"} {
		flag := scoreCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "score should have --%s flag", flagName)
	}
}

func TestSimulateCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"currency", "all", "horizon", "paths", "window", "seed", "no-save"} {
		flag := simulateCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "simulate should have --%s flag", flagName)
	}
}

func TestReportCommand_Flags(t *testing.T) {
	flag := reportCmd.Flags().Lookup("output")
	require.NotNil(t, flag)
	flag = reportCmd.Flags().Lookup("forecasts")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
}

func TestIngestCommand_RejectsUnknownKind(t *testing.T) {
	assert.False(t, validKind("parquet"))
	assert.True(t, validKind("fx-rates"))
	assert.Contains(t, kindList(), "suppliers")
}
