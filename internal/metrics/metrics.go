package metrics

import "github.com/san-kum/phasecube/internal/swarm"

// Metric accumulates a run-level number from per-tick reports.
type Metric interface {
	Name() string
	Observe(r swarm.Report)
	Value() float64
	Reset()
}

// Defaults returns the metrics recorded for every run.
func Defaults() []Metric {
	return []Metric{
		NewEnergy(),
		NewEnergyDrift(),
		NewCoherence(),
		NewStability(0.25),
		NewForgiveness(),
		NewPathB(),
	}
}

func Summarize(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

type mean struct {
	sum     float64
	samples int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.samples++
}

func (m *mean) value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *mean) reset() { *m = mean{} }
