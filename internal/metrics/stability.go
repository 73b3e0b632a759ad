package metrics

import (
	"github.com/san-kum/phasecube/internal/swarm"
)

// Stability is the fraction of ticks whose aggregate dispersion stays at or
// below the threshold.
type Stability struct {
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return "stability"
}

func (s *Stability) Observe(r swarm.Report) {
	s.samples++
	if r.Raw.Dispersion > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Forgiveness is the mean number of forgiveness events per tick across all
// grids.
type Forgiveness struct {
	acc mean
}

func NewForgiveness() *Forgiveness {
	return &Forgiveness{}
}

func (f *Forgiveness) Name() string { return "forgiveness_rate" }

func (f *Forgiveness) Observe(r swarm.Report) {
	events := 0
	for _, g := range r.Grids {
		events += g.ForgivenessEvents
	}
	f.acc.add(float64(events))
}

func (f *Forgiveness) Value() float64 { return f.acc.value() }

func (f *Forgiveness) Reset() { f.acc.reset() }

// PathB is the mean fraction of cells that took the divergence branch.
type PathB struct {
	acc mean
}

func NewPathB() *PathB {
	return &PathB{}
}

func (p *PathB) Name() string { return "path_b_fraction" }

func (p *PathB) Observe(r swarm.Report) {
	for _, g := range r.Grids {
		p.acc.add(g.PathBFraction)
	}
}

func (p *PathB) Value() float64 { return p.acc.value() }

func (p *PathB) Reset() { p.acc.reset() }
