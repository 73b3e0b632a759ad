package swarm

import (
	"github.com/san-kum/phasecube/internal/bias"
	"github.com/san-kum/phasecube/internal/delay"
	"github.com/san-kum/phasecube/internal/lattice"
	"github.com/san-kum/phasecube/internal/lens"
	"github.com/san-kum/phasecube/internal/phase"
)

type Role string

const (
	RoleCore   Role = "core"
	RoleEcho   Role = "echo"
	RoleMemory Role = "memory"
)

// Coupling weights the three bias sources a grid sees, and the grid's share
// of the composite pushed into the delay line.
type Coupling struct {
	Base      float64 `yaml:"base" json:"base"`
	Cross     float64 `yaml:"cross" json:"cross"`
	Memory    float64 `yaml:"memory" json:"memory"`
	Composite float64 `yaml:"composite" json:"composite"`
}

type Couplings struct {
	Core   Coupling `yaml:"core"`
	Echo   Coupling `yaml:"echo"`
	Memory Coupling `yaml:"memory"`
}

func (c Couplings) For(r Role) Coupling {
	switch r {
	case RoleEcho:
		return c.Echo
	case RoleMemory:
		return c.Memory
	default:
		return c.Core
	}
}

type Config struct {
	Size  int `yaml:"size"`
	Grids int `yaml:"grids"`

	Phase phase.Params `yaml:"phase"`
	Bias  bias.Params  `yaml:"bias"`
	Delay delay.Params `yaml:"delay"`
	Lens  lens.Params  `yaml:"lens"`

	Couplings Couplings `yaml:"couplings"`

	// MetricSmoothing is the EMA blend toward each new aggregate, in (0,1].
	MetricSmoothing float64 `yaml:"metric_smoothing"`
	// FeedbackLatency is how many extra ticks old the metrics read by the
	// lens are. The aggregate is taken before the grids step, so 0 already
	// feeds the state left by the previous tick and 1 lags two steps.
	FeedbackLatency int `yaml:"feedback_latency"`
	// Sequential lets later grids see cross-talk from grids already stepped
	// this tick instead of the shared pre-step snapshot.
	Sequential bool `yaml:"sequential"`
	// Prior seeds the EMA and stands in until the latency history fills.
	Prior Metrics `yaml:"prior"`
}

func DefaultConfig() Config {
	return Config{
		Size:  10,
		Grids: 3,
		Phase: phase.DefaultParams(),
		Bias:  bias.DefaultParams(),
		Delay: delay.DefaultParams(),
		Lens:  lens.DefaultParams(),
		Couplings: Couplings{
			Core:   Coupling{Base: 1, Cross: 1, Memory: 0.35, Composite: 0.15},
			Echo:   Coupling{Base: 0.5, Cross: 1, Memory: 0.35, Composite: 0.15},
			Memory: Coupling{Base: 0.3, Cross: 0.25, Memory: 0.7, Composite: 0.25},
		},
		MetricSmoothing: 0.2,
		FeedbackLatency: 1,
		Prior: Metrics{
			Metrics:    lens.Metrics{Energy: 0.2, Dispersion: 0.2, Coherence: 0.5},
			Divergence: 0.2,
		},
	}
}

func (c Config) Roles() []Role {
	if c.Grids == 2 {
		return []Role{RoleCore, RoleEcho}
	}
	return []Role{RoleCore, RoleEcho, RoleMemory}
}

func (c Config) Validate() error {
	if c.Size < 2 {
		return lattice.Invalid("swarm.size", c.Size, "must be at least 2")
	}
	if c.Grids != 2 && c.Grids != 3 {
		return lattice.Invalid("swarm.grids", c.Grids, "expected 2 or 3")
	}
	if !(c.MetricSmoothing > 0 && c.MetricSmoothing <= 1) {
		return lattice.Invalid("swarm.metric_smoothing", c.MetricSmoothing, "must be within (0,1]")
	}
	if c.FeedbackLatency < 0 {
		return lattice.Invalid("swarm.feedback_latency", c.FeedbackLatency, "must not be negative")
	}
	for _, r := range c.Roles() {
		k := c.Couplings.For(r)
		for _, v := range []float64{k.Base, k.Cross, k.Memory, k.Composite} {
			if lattice.Finite(v, -1) < 0 {
				return lattice.Invalid("swarm.couplings."+string(r), k, "weights must be finite and non-negative")
			}
		}
	}
	if err := c.Phase.Validate(); err != nil {
		return err
	}
	if err := c.Bias.Validate(); err != nil {
		return err
	}
	if err := c.Delay.Validate(); err != nil {
		return err
	}
	return c.Lens.Validate()
}
