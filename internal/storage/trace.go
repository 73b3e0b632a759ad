package storage

import "github.com/san-kum/phasecube/internal/swarm"

// Columns is the metrics.csv header.
var Columns = []string{
	"tick",
	"energy", "dispersion", "coherence", "divergence",
	"smoothed_energy", "smoothed_dispersion", "smoothed_coherence",
	"path_b", "damping", "bias_gain", "forgiveness", "forgiveness_threshold",
	"cross_talk_gain", "noise_scale",
	"bias_energy", "echo_energy", "forgiveness_events",
}

// Row flattens a report in Columns order.
func Row(r swarm.Report) []float64 {
	events := 0
	for _, g := range r.Grids {
		events += g.ForgivenessEvents
	}
	b := r.Bundle
	return []float64{
		float64(r.Tick),
		r.Raw.Energy, r.Raw.Dispersion, r.Raw.Coherence, r.Raw.Divergence,
		r.Smoothed.Energy, r.Smoothed.Dispersion, r.Smoothed.Coherence,
		b.PathB, b.Damping, b.BiasGain, b.Forgiveness, b.ForgivenessThreshold,
		b.CrossTalkGain, b.NoiseScale,
		r.BiasEnergy, r.EchoEnergy, float64(events),
	}
}

// Trace is a loaded metrics.csv.
type Trace struct {
	Columns []string
	Rows    [][]float64
}

// Column returns one named series, or nil.
func (t *Trace) Column(name string) []float64 {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			out = append(out, row[idx])
		}
	}
	return out
}

// ColumnIndex returns the position of name in Columns, or -1.
func ColumnIndex(name string) int {
	for i, c := range Columns {
		if c == name {
			return i
		}
	}
	return -1
}
