package fx

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pvis-group/procure-cli/internal/model"
)

// SimulateAll runs one simulation per currency in parallel. GBM paths have
// no cross-path or cross-currency dependencies, so the fan-out needs no
// coordination beyond collecting results. Output is ordered by currency
// code. When a seed is set, each currency gets a distinct derived seed so
// the whole batch stays reproducible without repeating draws across
// currencies.
func (s *Simulator) SimulateAll(ctx context.Context, series map[string]model.RateSeries, p Params) ([]*model.SimulationResult, error) {
	currencies := make([]string, 0, len(series))
	for cur := range series {
		currencies = append(currencies, cur)
	}
	sort.Strings(currencies)

	results := make([]*model.SimulationResult, len(currencies))
	g, ctx := errgroup.WithContext(ctx)

	for i, cur := range currencies {
		params := p
		if p.Seed != nil {
			derived := *p.Seed + uint64(i)
			params.Seed = &derived
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.Run(series[cur], params)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
