package model

import "time"

// SupplierMetricSnapshot holds the raw per-supplier statistics derived from
// the fact tables on a single scoring run. Recomputed wholesale each run;
// persisted only as a cache, never as a source of truth.
type SupplierMetricSnapshot struct {
	SupplierID      int64  `json:"supplier_id"`
	SupplierName    string `json:"supplier_name"`
	OrderCount      int    `json:"order_count"`
	CompletedOrders int    `json:"completed_orders"`

	AvgLeadTimeDays   float64 `json:"avg_lead_time_days"`
	LeadTimeStdDev    float64 `json:"lead_time_stddev"`
	DefectRate        float64 `json:"defect_rate"`         // [0,1]
	OnTimeRatio       float64 `json:"on_time_ratio"`       // [0,1]
	CostVarianceRatio float64 `json:"cost_variance_ratio"` // above-standard spend / total spend
	FXExposureRatio   float64 `json:"fx_exposure_ratio"`   // non-base spend fraction, USD-equivalent

	// LowConfidence marks suppliers without enough completed orders for a
	// stable lead-time estimate. They stay in the comparative population;
	// downstream consumers decide whether to filter.
	LowConfidence bool `json:"low_confidence"`
}

// CompositeRiskScore is one supplier's weighted risk score for a run.
// Records are never patched in place; each run produces a fresh set.
type CompositeRiskScore struct {
	RunID         string             `json:"run_id"`
	SupplierID    int64              `json:"supplier_id"`
	SupplierName  string             `json:"supplier_name"`
	Score         float64            `json:"score"` // [0,100]
	Components    map[string]float64 `json:"components"`
	LowConfidence bool               `json:"low_confidence"`
	ComputedAt    time.Time          `json:"computed_at"`
}

// MonthlySpend is one bucket of the time-bucketed spend aggregation.
type MonthlySpend struct {
	SupplierID int64   `json:"supplier_id"`
	Category   string  `json:"category"`
	Year       int     `json:"year"`
	Month      int     `json:"month"`
	SpendBase  float64 `json:"spend_base"` // base-currency equivalent
}

// SimulationResult summarizes the terminal-rate distribution of one Monte
// Carlo invocation. Immutable after creation; superseded by newer runs.
type SimulationResult struct {
	ID          string    `json:"id"`
	Currency    string    `json:"currency"`
	AsOfDate    time.Time `json:"as_of_date"` // date of the latest observation used
	HorizonDays int       `json:"horizon_days"`
	PathCount   int       `json:"path_count"`
	Seed        *uint64   `json:"seed,omitempty"` // nil when unseeded

	CurrentRate float64 `json:"current_rate"`
	P5          float64 `json:"p5_rate"`
	Median      float64 `json:"median_rate"`
	P95         float64 `json:"p95_rate"`

	Drift      float64 `json:"drift"`      // daily-scale mu used
	Volatility float64 `json:"volatility"` // daily-scale sigma used

	CreatedAt time.Time `json:"created_at"`
}

// ExpectedChangePct returns the median move from the current rate in percent.
func (r *SimulationResult) ExpectedChangePct() float64 {
	if r.CurrentRate == 0 {
		return 0
	}
	return (r.Median - r.CurrentRate) / r.CurrentRate * 100
}
