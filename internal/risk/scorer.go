package risk

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pvis-group/procure-cli/internal/config"
	"github.com/pvis-group/procure-cli/internal/metrics"
	"github.com/pvis-group/procure-cli/internal/model"
)

// Scorer produces one composite risk score per supplier with at least one
// order. Each call is a pure function of its inputs; concurrent runs with
// different configurations do not interact.
type Scorer struct {
	cfg       config.AnalyticsConfig
	extractor *metrics.Extractor
}

// NewScorer validates the configuration and returns a scorer. Invalid
// weights are rejected here, before any computation.
func NewScorer(cfg config.AnalyticsConfig) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg, extractor: metrics.NewExtractor(cfg.BaseCurrency)}, nil
}

// ScoreSuppliers extracts metric snapshots from the fact set, normalizes each
// metric column across the full population, and combines them per the
// configured weights. Low-confidence suppliers stay in the population,
// since dropping them would shift everyone else's min/max; they carry a
// flag for downstream filtering.
func (s *Scorer) ScoreSuppliers(facts *model.FactSet) ([]model.CompositeRiskScore, error) {
	snaps := s.extractor.Extract(facts)
	if len(snaps) == 0 {
		return nil, nil
	}

	runID := uuid.NewString()
	now := time.Now().UTC()
	components := s.components(snaps)
	weights := s.cfg.Weights()

	scores := make([]model.CompositeRiskScore, len(snaps))
	for i, snap := range snaps {
		var total float64
		comp := make(map[string]float64, len(components))
		for name, col := range components {
			comp[name] = col[i]
			total += weights[name] * col[i] // absent weights contribute 0
		}

		// The formula cannot leave [0,1] on valid inputs; clamp anyway
		// against pathological normalization edge cases.
		total = math.Min(math.Max(total*100, 0), 100)

		scores[i] = model.CompositeRiskScore{
			RunID:         runID,
			SupplierID:    snap.SupplierID,
			SupplierName:  snap.SupplierName,
			Score:         math.Round(total*100) / 100, // 2 decimal places
			Components:    comp,
			LowConfidence: snap.LowConfidence,
			ComputedAt:    now,
		}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].SupplierID < scores[j].SupplierID
	})

	zap.L().Info("risk: scored suppliers",
		zap.String("run_id", runID),
		zap.Int("suppliers", len(scores)),
		zap.Int("low_confidence", countLowConfidence(scores)),
	)
	return scores, nil
}

// components builds the normalized risk-contribution columns. All columns
// are oriented so that a higher value means higher risk: on-time delivery is
// the one higher-is-better metric and gets inverted here. Getting this
// backwards would silently invert the whole ranking, so it is pinned by
// TestDirectionality in the package tests.
func (s *Scorer) components(snaps []model.SupplierMetricSnapshot) map[string][]float64 {
	n := len(snaps)
	lead := make([]float64, n)
	defect := make([]float64, n)
	otd := make([]float64, n)
	fx := make([]float64, n)
	costVar := make([]float64, n)

	for i, snap := range snaps {
		lead[i] = snap.AvgLeadTimeDays
		defect[i] = snap.DefectRate
		otd[i] = snap.OnTimeRatio
		fx[i] = snap.FXExposureRatio
		costVar[i] = snap.CostVarianceRatio
	}

	normOTD := MinMax(otd)
	otdRisk := make([]float64, n)
	for i, v := range normOTD {
		otdRisk[i] = 1 - v
	}

	return map[string][]float64{
		"lead_time":     MinMax(lead),
		"defect_rate":   MinMax(defect),
		"otd":           otdRisk,
		"fx_exposure":   MinMax(fx),
		"cost_variance": MinMax(costVar),
	}
}

func countLowConfidence(scores []model.CompositeRiskScore) int {
	n := 0
	for i := range scores {
		if scores[i].LowConfidence {
			n++
		}
	}
	return n
}
