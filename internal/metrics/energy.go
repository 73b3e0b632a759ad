package metrics

import (
	"math"

	"github.com/san-kum/phasecube/internal/swarm"
)

// Energy is the mean aggregate liquid energy over the run.
type Energy struct {
	acc mean
}

func NewEnergy() *Energy {
	return &Energy{}
}

func (e *Energy) Name() string { return "energy" }

func (e *Energy) Observe(r swarm.Report) {
	e.acc.add(r.Raw.Energy)
}

func (e *Energy) Value() float64 { return e.acc.value() }

func (e *Energy) Reset() { e.acc.reset() }

// EnergyDrift is the largest relative departure from the first observed
// energy.
type EnergyDrift struct {
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{}
}

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(r swarm.Report) {
	energy := r.Raw.Energy
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

type Coherence struct {
	acc mean
}

func NewCoherence() *Coherence {
	return &Coherence{}
}

func (c *Coherence) Name() string { return "coherence" }

func (c *Coherence) Observe(r swarm.Report) {
	c.acc.add(r.Raw.Coherence)
}

func (c *Coherence) Value() float64 { return c.acc.value() }

func (c *Coherence) Reset() { c.acc.reset() }
