// Package fx estimates log-return parameters from exchange-rate history and
// simulates forward rate distributions with geometric Brownian motion.
package fx

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/pvis-group/procure-cli/internal/model"
)

// ErrInsufficientHistory means a rate series is too short to estimate
// volatility. This is fatal to the simulation request: silently simulating
// with a made-up sigma would misrepresent risk as certainty.
var ErrInsufficientHistory = eris.New("fx: insufficient rate history")

// ReturnEstimate holds daily-scale drift and volatility of log returns.
// Annualization, if wanted, is the consumer's concern.
type ReturnEstimate struct {
	Mu           float64 `json:"mu"`    // arithmetic mean of daily log returns
	Sigma        float64 `json:"sigma"` // sample standard deviation (N-1)
	Observations int     `json:"observations"`
}

// EstimateReturns computes drift and volatility over the series, or over the
// trailing window observations when window > 0. The sample standard
// deviation needs two returns, so at least three observations are required;
// shorter series return ErrInsufficientHistory.
func EstimateReturns(series model.RateSeries, window int) (ReturnEstimate, error) {
	s := series.Tail(window)
	if len(s.Points) < 3 {
		return ReturnEstimate{}, eris.Wrapf(ErrInsufficientHistory,
			"currency %s: %d observations, need at least 3", series.Currency, len(s.Points))
	}

	returns := make([]float64, 0, len(s.Points)-1)
	for i := 1; i < len(s.Points); i++ {
		returns = append(returns, math.Log(s.Points[i].Rate/s.Points[i-1].Rate))
	}

	return ReturnEstimate{
		Mu:           stat.Mean(returns, nil),
		Sigma:        stat.StdDev(returns, nil),
		Observations: len(s.Points),
	}, nil
}
