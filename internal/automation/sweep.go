package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/phasecube/internal/config"
	"github.com/san-kum/phasecube/internal/experiment"
	"github.com/san-kum/phasecube/internal/metrics"
)

// Sweep runs a base config across values of one config path, each value
// under Seeds consecutive seeds.
type Sweep struct {
	Param     string    `yaml:"param"`
	Values    []float64 `yaml:"values"`
	Min       float64   `yaml:"min"`
	Max       float64   `yaml:"max"`
	Steps     int       `yaml:"steps"`
	Seeds     int       `yaml:"seeds"`
	SeedStart int64     `yaml:"seed_start"`
	Workers   int       `yaml:"workers"`
}

// LoadSweep reads a sweep definition. Unknown keys are rejected.
func LoadSweep(path string) (Sweep, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sweep{}, err
	}
	defer f.Close()
	var sw Sweep
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&sw); err != nil {
		return Sweep{}, fmt.Errorf("sweep %s: %w", path, err)
	}
	return sw, nil
}

// Points returns the explicit values or Steps values spanning [Min,Max].
func (s Sweep) Points() []float64 {
	if len(s.Values) > 0 {
		return s.Values
	}
	n := s.Steps
	if n < 2 {
		n = 2
	}
	out := make([]float64, n)
	floats.Span(out, s.Min, s.Max)
	return out
}

type SweepPoint struct {
	Value   float64              `json:"value"`
	Seeds   int                  `json:"seeds"`
	Mean    map[string]float64   `json:"mean"`
	StdDev  map[string]float64   `json:"std_dev"`
	Results []*experiment.Result `json:"-"`
}

// MetricNames returns the summary metric names in sorted order.
func (p SweepPoint) MetricNames() []string {
	names := make([]string, 0, len(p.Mean))
	for k := range p.Mean {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type SweepOptions struct {
	Logger  *slog.Logger
	Metrics func() []metrics.Metric
}

func RunSweep(ctx context.Context, base *config.Config, sw Sweep, opts SweepOptions) ([]SweepPoint, error) {
	if sw.Param == "" {
		return nil, fmt.Errorf("sweep: param is required")
	}
	seeds := sw.Seeds
	if seeds < 1 {
		seeds = 1
	}
	seedStart := sw.SeedStart
	if seedStart == 0 {
		seedStart = base.Seed
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	values := sw.Points()
	out := make([]SweepPoint, 0, len(values))
	for i, v := range values {
		cfg, err := base.Clone()
		if err != nil {
			return out, err
		}
		if err := cfg.Set(sw.Param, v); err != nil {
			return out, err
		}
		if err := cfg.Validate(); err != nil {
			return out, fmt.Errorf("%s=%g: %w", sw.Param, v, err)
		}

		ens := experiment.NewEnsemble(cfg, seeds, seedStart)
		ens.SetWorkers(sw.Workers)
		if opts.Metrics != nil {
			ens.SetMetrics(opts.Metrics)
		}
		results, err := ens.Run(ctx)
		if err != nil {
			return out, fmt.Errorf("%s=%g: %w", sw.Param, v, err)
		}

		pt := aggregate(v, results)
		out = append(out, pt)
		log.Info("sweep point", "index", i+1, "of", len(values), "param", sw.Param, "value", v)
	}
	return out, nil
}

func aggregate(v float64, results []*experiment.Result) SweepPoint {
	pt := SweepPoint{
		Value:   v,
		Seeds:   len(results),
		Mean:    make(map[string]float64),
		StdDev:  make(map[string]float64),
		Results: results,
	}
	series := make(map[string][]float64)
	for _, r := range results {
		for name, val := range r.Metrics {
			series[name] = append(series[name], val)
		}
	}
	for name, xs := range series {
		if len(xs) == 1 {
			pt.Mean[name], pt.StdDev[name] = xs[0], 0
			continue
		}
		pt.Mean[name], pt.StdDev[name] = stat.MeanStdDev(xs, nil)
	}
	return pt
}
