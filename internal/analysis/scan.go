package analysis

import (
	"context"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/phasecube/internal/lattice"
	"github.com/san-kum/phasecube/internal/swarm"
)

// ScanPoint holds the late-time samples recorded for one parameter value.
type ScanPoint struct {
	Param   float64   `json:"param"`
	Values  []float64 `json:"values"`
	Summary Summary   `json:"summary"`
}

// ScanOptions describes a one-parameter scan. Set writes the parameter into a
// copy of Base; Observe picks the value recorded from each report.
type ScanOptions struct {
	Base      swarm.Config
	Seed      int64
	Set       func(cfg *swarm.Config, v float64)
	Min, Max  float64
	Steps     int
	Transient int
	Record    int
	Observe   func(swarm.Report) float64
}

// Scan steps a fresh swarm for every parameter value, discards Transient
// ticks and records Record samples. Values where the config is rejected
// are reported as errors.
func Scan(ctx context.Context, opts ScanOptions) ([]ScanPoint, error) {
	steps := opts.Steps
	if steps < 2 {
		steps = 2
	}
	if opts.Set == nil || opts.Observe == nil {
		return nil, lattice.Invalid("scan", nil, "set and observe are required")
	}
	params := make([]float64, steps)
	floats.Span(params, opts.Min, opts.Max)

	out := make([]ScanPoint, 0, steps)
	for _, v := range params {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		cfg := opts.Base
		opts.Set(&cfg, v)
		s, err := swarm.New(cfg, lattice.NewSource(opts.Seed))
		if err != nil {
			return out, err
		}
		for t := 0; t < opts.Transient; t++ {
			s.Step()
		}
		pt := ScanPoint{Param: v, Values: make([]float64, 0, opts.Record)}
		for t := 0; t < opts.Record; t++ {
			pt.Values = append(pt.Values, opts.Observe(s.Step()))
		}
		pt.Summary = Summarize(pt.Values)
		out = append(out, pt)
	}
	return out, nil
}
