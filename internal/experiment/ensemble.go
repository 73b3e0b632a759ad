package experiment

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/phasecube/internal/config"
	"github.com/san-kum/phasecube/internal/metrics"
)

// Ensemble runs one config under consecutive seeds in parallel. Each member
// owns its swarm, random sources and metric accumulators.
type Ensemble struct {
	base      *config.Config
	numRuns   int
	seedStart int64
	workers   int
	metrics   func() []metrics.Metric
}

func NewEnsemble(base *config.Config, numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{
		base:      base,
		numRuns:   numRuns,
		seedStart: seedStart,
		workers:   runtime.GOMAXPROCS(0),
		metrics:   metrics.Defaults,
	}
}

func (e *Ensemble) SetWorkers(n int) {
	if n > 0 {
		e.workers = n
	}
}

// SetMetrics replaces the per-run metric factory.
func (e *Ensemble) SetMetrics(f func() []metrics.Metric) { e.metrics = f }

// Run returns results in seed order. The first failing run cancels the rest.
func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := 0; i < e.numRuns; i++ {
		idx := i
		g.Go(func() error {
			cfg := *e.base
			cfg.Seed = e.seedStart + int64(idx)

			exp, err := New(&cfg)
			if err != nil {
				return err
			}
			for _, m := range e.metrics() {
				exp.AddMetric(m)
			}
			res, err := exp.Run(ctx)
			if err != nil {
				return err
			}
			results[idx] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
