// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Analytics AnalyticsConfig `yaml:"analytics" mapstructure:"analytics"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the warehouse backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnalyticsConfig holds the risk-scoring weights and simulation bounds.
// Weights are a configuration surface, not constants: the five-factor
// variant is selected by giving cost variance a non-zero weight and
// rebalancing the others so the sum stays 1.0.
type AnalyticsConfig struct {
	BaseCurrency string `yaml:"base_currency" mapstructure:"base_currency"`

	WeightLeadTime float64 `yaml:"w_lead" mapstructure:"w_lead"`
	WeightDefect   float64 `yaml:"w_defect" mapstructure:"w_defect"`
	WeightOTD      float64 `yaml:"w_otd" mapstructure:"w_otd"`
	WeightFX       float64 `yaml:"w_fx" mapstructure:"w_fx"`
	WeightCostVar  float64 `yaml:"w_cost" mapstructure:"w_cost"`

	DefaultHorizonDays int `yaml:"default_horizon_days" mapstructure:"default_horizon_days"`
	DefaultPathCount   int `yaml:"default_path_count" mapstructure:"default_path_count"`
	MinHorizonDays     int `yaml:"min_horizon_days" mapstructure:"min_horizon_days"`
	MaxHorizonDays     int `yaml:"max_horizon_days" mapstructure:"max_horizon_days"`
	MinPathCount       int `yaml:"min_path_count" mapstructure:"min_path_count"`
	MaxPathCount       int `yaml:"max_path_count" mapstructure:"max_path_count"`
}

// ReportConfig configures workbook export.
type ReportConfig struct {
	OutputPath string `yaml:"output_path" mapstructure:"output_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// weightSumTolerance absorbs float error when checking that weights sum to 1.
const weightSumTolerance = 1e-9

// Weights returns the named weight map used for component scoring.
// Cost variance is included only when its weight is non-zero.
func (c AnalyticsConfig) Weights() map[string]float64 {
	w := map[string]float64{
		"lead_time":   c.WeightLeadTime,
		"defect_rate": c.WeightDefect,
		"otd":         c.WeightOTD,
		"fx_exposure": c.WeightFX,
	}
	if c.WeightCostVar != 0 {
		w["cost_variance"] = c.WeightCostVar
	}
	return w
}

// Validate checks weights and simulation bounds. Invalid configuration is
// rejected before any computation begins.
func (c AnalyticsConfig) Validate() error {
	var errs []string

	sum := 0.0
	for name, w := range c.Weights() {
		if w < 0 {
			errs = append(errs, name+" weight must be >= 0")
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		errs = append(errs, "weights must sum to 1.0")
	}

	if c.BaseCurrency == "" {
		errs = append(errs, "base_currency is required")
	}
	if c.MinHorizonDays <= 0 {
		errs = append(errs, "min_horizon_days must be > 0")
	}
	if c.MaxHorizonDays < c.MinHorizonDays {
		errs = append(errs, "max_horizon_days must be >= min_horizon_days")
	}
	if c.MinPathCount <= 0 {
		errs = append(errs, "min_path_count must be > 0")
	}
	if c.MaxPathCount < c.MinPathCount {
		errs = append(errs, "max_path_count must be >= min_path_count")
	}
	if c.DefaultHorizonDays < c.MinHorizonDays || c.DefaultHorizonDays > c.MaxHorizonDays {
		errs = append(errs, "default_horizon_days outside configured bounds")
	}
	if c.DefaultPathCount < c.MinPathCount || c.DefaultPathCount > c.MaxPathCount {
		errs = append(errs, "default_path_count outside configured bounds")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: analytics validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PVIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("report.output_path", "procurement_report.xlsx")
	v.SetDefault("analytics.base_currency", "USD")
	v.SetDefault("analytics.w_lead", 0.30)
	v.SetDefault("analytics.w_defect", 0.35)
	v.SetDefault("analytics.w_otd", 0.25)
	v.SetDefault("analytics.w_fx", 0.10)
	v.SetDefault("analytics.w_cost", 0.0)
	v.SetDefault("analytics.default_horizon_days", 90)
	v.SetDefault("analytics.default_path_count", 10000)
	v.SetDefault("analytics.min_horizon_days", 30)
	v.SetDefault("analytics.max_horizon_days", 1095)
	v.SetDefault("analytics.min_path_count", 1000)
	v.SetDefault("analytics.max_path_count", 50000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
