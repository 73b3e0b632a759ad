package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/phasecube/internal/config"
	"github.com/san-kum/phasecube/internal/experiment"
	"github.com/san-kum/phasecube/internal/metrics"
)

// Axis is one config path and the values tried for it.
type Axis struct {
	Path   string
	Values []float64
}

// Trial is one evaluated combination.
type Trial struct {
	Params map[string]float64 `json:"params"`
	Score  float64            `json:"score"`
	Err    string             `json:"error,omitempty"`
}

// GridSearch runs every combination of axis values over a base config and
// scores each run by one summary metric.
type GridSearch struct {
	base     *config.Config
	axes     []Axis
	metric   string
	maximize bool
	metrics  func() []metrics.Metric
}

func NewGridSearch(base *config.Config, axes []Axis, metric string) *GridSearch {
	return &GridSearch{base: base, axes: axes, metric: metric, metrics: metrics.Defaults}
}

// Maximize flips the objective. The default keeps the lowest score.
func (g *GridSearch) Maximize(v bool) { g.maximize = v }

func (g *GridSearch) SetMetrics(f func() []metrics.Metric) { g.metrics = f }

// Search returns the best parameters, their score and every trial in the
// order tried. Combinations the config rejects are recorded with their
// error and skipped. It fails only on cancellation or when no trial
// produced the metric.
func (g *GridSearch) Search(ctx context.Context) (map[string]float64, float64, []Trial, error) {
	for _, a := range g.axes {
		if a.Path == "" || len(a.Values) == 0 {
			return nil, 0, nil, fmt.Errorf("grid search: axis %q has no values", a.Path)
		}
	}

	best := math.Inf(1)
	if g.maximize {
		best = math.Inf(-1)
	}
	var bestParams map[string]float64
	var trials []Trial

	err := g.searchRecursive(ctx, 0, make(map[string]float64), func(t Trial) {
		trials = append(trials, t)
		if t.Err != "" {
			return
		}
		if (g.maximize && t.Score > best) || (!g.maximize && t.Score < best) {
			best = t.Score
			bestParams = t.Params
		}
	})
	if err != nil {
		return bestParams, best, trials, err
	}
	if bestParams == nil {
		return nil, 0, trials, fmt.Errorf("grid search: no trial produced %s", g.metric)
	}
	return bestParams, best, trials, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, record func(Trial)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.axes) {
		params := make(map[string]float64, len(current))
		for k, v := range current {
			params[k] = v
		}
		score, err := g.evaluate(ctx, params)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			record(Trial{Params: params, Err: err.Error()})
			return nil
		}
		record(Trial{Params: params, Score: score})
		return nil
	}

	axis := g.axes[depth]
	for _, val := range axis.Values {
		current[axis.Path] = val
		if err := g.searchRecursive(ctx, depth+1, current, record); err != nil {
			return err
		}
	}
	delete(current, axis.Path)
	return nil
}

func (g *GridSearch) evaluate(ctx context.Context, params map[string]float64) (float64, error) {
	cfg, err := g.base.Clone()
	if err != nil {
		return 0, err
	}
	for _, a := range g.axes {
		if err := cfg.Set(a.Path, params[a.Path]); err != nil {
			return 0, err
		}
	}
	exp, err := experiment.New(cfg)
	if err != nil {
		return 0, err
	}
	for _, m := range g.metrics() {
		exp.AddMetric(m)
	}
	result, err := exp.Run(ctx)
	if err != nil {
		return 0, err
	}
	if len(result.Errors) > 0 {
		return 0, result.Errors[0]
	}
	v, ok := result.Metrics[g.metric]
	if !ok {
		return 0, fmt.Errorf("unknown metric: %s", g.metric)
	}
	return v, nil
}
