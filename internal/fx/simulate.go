package fx

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pvis-group/procure-cli/internal/config"
	"github.com/pvis-group/procure-cli/internal/model"
)

// ErrInvalidParameter means horizon, path count or window is outside the
// configured bounds. The request is rejected before any computation.
var ErrInvalidParameter = eris.New("fx: invalid simulation parameter")

// tradingDaysPerYear is the standard day-count convention for the daily
// GBM time step dt = 1/252.
const tradingDaysPerYear = 252

// Params configures one simulation invocation.
type Params struct {
	HorizonDays int     `json:"horizon_days"`
	PathCount   int     `json:"path_count"`
	Window      int     `json:"window,omitempty"` // trailing observations for estimation; 0 = full history
	Seed        *uint64 `json:"seed,omitempty"`   // nil draws a fresh seed per run
}

// Bounds are the configured validity ranges for simulation parameters.
type Bounds struct {
	MinHorizonDays int
	MaxHorizonDays int
	MinPathCount   int
	MaxPathCount   int
}

// BoundsFromConfig lifts the analytics configuration into simulation bounds.
func BoundsFromConfig(cfg config.AnalyticsConfig) Bounds {
	return Bounds{
		MinHorizonDays: cfg.MinHorizonDays,
		MaxHorizonDays: cfg.MaxHorizonDays,
		MinPathCount:   cfg.MinPathCount,
		MaxPathCount:   cfg.MaxPathCount,
	}
}

// Validate rejects out-of-bounds parameters with ErrInvalidParameter.
// Below the minimum path count percentile estimates become unstable; above
// the maximum the marginal accuracy is not worth the compute.
func (b Bounds) Validate(p Params) error {
	if p.HorizonDays < b.MinHorizonDays || p.HorizonDays > b.MaxHorizonDays {
		return eris.Wrapf(ErrInvalidParameter, "horizon_days %d outside [%d, %d]",
			p.HorizonDays, b.MinHorizonDays, b.MaxHorizonDays)
	}
	if p.PathCount < b.MinPathCount || p.PathCount > b.MaxPathCount {
		return eris.Wrapf(ErrInvalidParameter, "path_count %d outside [%d, %d]",
			p.PathCount, b.MinPathCount, b.MaxPathCount)
	}
	if p.Window < 0 {
		return eris.Wrapf(ErrInvalidParameter, "window %d must be >= 0", p.Window)
	}
	return nil
}

// Simulator runs Monte Carlo GBM forecasts. It holds no mutable state;
// concurrent Run calls do not interact.
type Simulator struct {
	bounds Bounds
}

// NewSimulator creates a simulator with the given parameter bounds.
func NewSimulator(bounds Bounds) *Simulator {
	return &Simulator{bounds: bounds}
}

// Run simulates PathCount independent daily GBM paths HorizonDays forward
// from the latest observed rate:
//
//	S[t+1] = S[t] * exp((mu - sigma^2/2)*dt + sigma*sqrt(dt)*Z)
//
// and summarizes the terminal distribution as P5/median/P95. Percentiles use
// linear interpolation between adjacent order statistics (gonum LinInterp);
// the rule is fixed so runs stay comparable. A set Seed makes the output
// fully reproducible for identical inputs.
func (s *Simulator) Run(series model.RateSeries, p Params) (*model.SimulationResult, error) {
	if err := s.bounds.Validate(p); err != nil {
		return nil, err
	}

	est, err := EstimateReturns(series, p.Window)
	if err != nil {
		return nil, err
	}

	s0 := series.Latest()
	asOf := series.Points[len(series.Points)-1].Date

	seed := p.Seed
	if seed == nil {
		fresh := rand.Uint64()
		seed = &fresh
	}
	src := rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	dt := 1.0 / tradingDaysPerYear
	drift := (est.Mu - 0.5*est.Sigma*est.Sigma) * dt
	diffusion := est.Sigma * math.Sqrt(dt)

	terminals := make([]float64, p.PathCount)
	for i := range terminals {
		rate := s0
		for t := 0; t < p.HorizonDays; t++ {
			rate *= math.Exp(drift + diffusion*normal.Rand())
		}
		terminals[i] = rate
	}
	sort.Float64s(terminals)

	result := &model.SimulationResult{
		ID:          uuid.NewString(),
		Currency:    series.Currency,
		AsOfDate:    asOf,
		HorizonDays: p.HorizonDays,
		PathCount:   p.PathCount,
		Seed:        p.Seed, // record only caller-supplied seeds
		CurrentRate: s0,
		P5:          stat.Quantile(0.05, stat.LinInterp, terminals, nil),
		Median:      stat.Quantile(0.50, stat.LinInterp, terminals, nil),
		P95:         stat.Quantile(0.95, stat.LinInterp, terminals, nil),
		Drift:       est.Mu,
		Volatility:  est.Sigma,
		CreatedAt:   time.Now().UTC(),
	}

	zap.L().Info("fx: simulation complete",
		zap.String("currency", series.Currency),
		zap.Int("horizon_days", p.HorizonDays),
		zap.Int("path_count", p.PathCount),
		zap.Float64("current_rate", s0),
		zap.Float64("median_rate", result.Median),
	)
	return result, nil
}
