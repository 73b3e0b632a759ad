package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/phasecube/internal/drive"
	"github.com/san-kum/phasecube/internal/lattice"
	"github.com/san-kum/phasecube/internal/metrics"
)

// Registry resolves metric and driver names used on the command line and in
// scenario files.
type Registry struct {
	metrics map[string]func() metrics.Metric
	drivers map[string]func(drive.Config, lattice.Source) drive.Driver
}

func NewRegistry() *Registry {
	r := &Registry{
		metrics: make(map[string]func() metrics.Metric),
		drivers: make(map[string]func(drive.Config, lattice.Source) drive.Driver),
	}

	r.metrics["energy"] = func() metrics.Metric { return metrics.NewEnergy() }
	r.metrics["energy_drift"] = func() metrics.Metric { return metrics.NewEnergyDrift() }
	r.metrics["coherence"] = func() metrics.Metric { return metrics.NewCoherence() }
	r.metrics["stability"] = func() metrics.Metric { return metrics.NewStability(0.25) }
	r.metrics["forgiveness_rate"] = func() metrics.Metric { return metrics.NewForgiveness() }
	r.metrics["path_b_fraction"] = func() metrics.Metric { return metrics.NewPathB() }

	r.drivers["none"] = func(drive.Config, lattice.Source) drive.Driver { return drive.None{} }
	r.drivers["pulses"] = func(c drive.Config, rng lattice.Source) drive.Driver {
		return drive.NewPulses(c.Pulses, rng)
	}
	r.drivers["wave"] = func(c drive.Config, _ lattice.Source) drive.Driver {
		return drive.NewWave(c.Wave)
	}

	return r
}

func (r *Registry) GetMetric(name string) (metrics.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetDriver(name string, c drive.Config, rng lattice.Source) (drive.Driver, error) {
	fn, ok := r.drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown driver: %s", name)
	}
	return fn(c, rng), nil
}

// Metrics resolves a list of names; an empty list yields the defaults.
func (r *Registry) Metrics(names []string) ([]metrics.Metric, error) {
	if len(names) == 0 {
		return metrics.Defaults(), nil
	}
	out := make([]metrics.Metric, 0, len(names))
	for _, name := range names {
		m, err := r.GetMetric(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Registry) ListMetrics() []string {
	return sortedKeys(r.metrics)
}

func (r *Registry) ListDrivers() []string {
	return sortedKeys(r.drivers)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
