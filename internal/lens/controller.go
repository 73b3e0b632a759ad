package lens

import (
	"math"

	"github.com/san-kum/phasecube/internal/lattice"
)

// Metrics is the aggregate feedback the controller reads.
type Metrics struct {
	Energy     float64 `json:"energy"`
	Dispersion float64 `json:"dispersion"`
	Coherence  float64 `json:"coherence"`
}

// Bounded is a base coefficient and its output range.
type Bounded struct {
	Base float64 `yaml:"base"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
}

func (b Bounded) clamp(v float64) float64 {
	return lattice.Clamp(v, b.Min, b.Max)
}

func (b Bounded) validate(name string) error {
	if err := lattice.CheckRange("lens."+name, b.Min, b.Max); err != nil {
		return err
	}
	if math.IsNaN(b.Base) || math.IsInf(b.Base, 0) {
		return lattice.Invalid("lens."+name+".base", b.Base, "must be finite")
	}
	return nil
}

type Params struct {
	Weights map[string]float64 `yaml:"weights"`

	PathB       Bounded `yaml:"path_b"`
	PathAlpha   float64 `yaml:"path_alpha"`
	PathBeta    float64 `yaml:"path_beta"`
	Damping     Bounded `yaml:"damping"`
	DampingGain float64 `yaml:"damping_gain"`
	BiasGain    Bounded `yaml:"bias_gain"`
	Threshold   Bounded `yaml:"forgiveness_threshold"`
	Forgiveness Bounded `yaml:"forgiveness"`
	Boost       float64 `yaml:"forgiveness_boost"`
	CrossTalk   Bounded `yaml:"cross_talk"`
	Noise       Bounded `yaml:"noise"`

	Schedule *Schedule `yaml:"schedule,omitempty"`
}

func DefaultParams() Params {
	return Params{
		Weights:     Uniform().Map(),
		PathB:       Bounded{Base: 0.65, Min: 0.05, Max: 0.95},
		PathAlpha:   0.3,
		PathBeta:    0.4,
		Damping:     Bounded{Base: 0.9, Min: 0.35, Max: 1},
		DampingGain: 0.8,
		BiasGain:    Bounded{Base: 0.45, Min: 0, Max: 0.65},
		Threshold:   Bounded{Base: 0.32, Min: 0.05, Max: 0.8},
		Forgiveness: Bounded{Base: 0.55, Min: 0, Max: 0.85},
		Boost:       0.35,
		CrossTalk:   Bounded{Base: 0.18, Min: 0, Max: 0.3},
		Noise:       Bounded{Base: 1, Min: 0, Max: 2},
	}
}

func (p Params) Validate() error {
	checks := []struct {
		name string
		b    Bounded
	}{
		{"path_b", p.PathB},
		{"damping", p.Damping},
		{"bias_gain", p.BiasGain},
		{"forgiveness_threshold", p.Threshold},
		{"forgiveness", p.Forgiveness},
		{"cross_talk", p.CrossTalk},
		{"noise", p.Noise},
	}
	for _, c := range checks {
		if err := c.b.validate(c.name); err != nil {
			return err
		}
	}
	if p.PathB.Min < 0 || p.PathB.Max > 1 {
		return lattice.Invalid("lens.path_b", [2]float64{p.PathB.Min, p.PathB.Max}, "must lie within [0,1]")
	}
	if p.Damping.Max > 1 {
		return lattice.Invalid("lens.damping.max", p.Damping.Max, "must not exceed 1")
	}
	if p.Forgiveness.Min < 0 || p.Forgiveness.Max > 1 {
		return lattice.Invalid("lens.forgiveness", [2]float64{p.Forgiveness.Min, p.Forgiveness.Max}, "must lie within [0,1]")
	}
	if p.CrossTalk.Min < 0 {
		return lattice.Invalid("lens.cross_talk.min", p.CrossTalk.Min, "must not be negative")
	}
	if p.Noise.Min < 0 {
		return lattice.Invalid("lens.noise.min", p.Noise.Min, "must not be negative")
	}
	if p.Schedule != nil {
		if err := p.Schedule.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Bundle is the per-tick control output. Every field lies within its
// configured bounds.
type Bundle struct {
	PathB                float64 `json:"path_b"`
	Damping              float64 `json:"damping"`
	BiasGain             float64 `json:"bias_gain"`
	Forgiveness          float64 `json:"forgiveness"`
	ForgivenessThreshold float64 `json:"forgiveness_threshold"`
	CrossTalkGain        float64 `json:"cross_talk_gain"`
	NoiseScale           float64 `json:"noise_scale"`
}

// Controller fuses lens weights and live metrics into a Bundle.
type Controller struct {
	p Params
	w Weights
}

func NewController(p Params) (*Controller, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Controller{p: p, w: FromMap(p.Weights).Normalize()}, nil
}

func (c *Controller) Params() Params { return c.p }

// SetParams swaps the live coefficients; weights are kept.
func (c *Controller) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.p = p
	return nil
}

// Weights returns the current normalized weights.
func (c *Controller) Weights() Weights { return c.w }

// SetWeights replaces the weights, normalizing them first.
func (c *Controller) SetWeights(w Weights) { c.w = w.Normalize() }

// Evaluate derives a bounded Bundle from m. Inputs are sanitized and
// saturated into [0,1] before use.
func (c *Controller) Evaluate(m Metrics) Bundle {
	p := c.p
	e := lattice.Clamp01(lattice.Finite(m.Energy, 0))
	d := lattice.Clamp01(lattice.Finite(m.Dispersion, 0))
	k := lattice.Clamp01(lattice.Finite(m.Coherence, 0))
	h, pr, s, hm := c.w.Human, c.w.Predictive, c.w.Systemic, c.w.Harmonic

	return Bundle{
		PathB:                p.PathB.clamp(p.PathB.Base + p.PathAlpha*pr*(1-d) - p.PathBeta*hm*d),
		Damping:              p.Damping.clamp(p.Damping.Base - p.DampingGain*hm*d + 0.1*s*k),
		BiasGain:             p.BiasGain.clamp(p.BiasGain.Base*(0.9+0.3*h+0.2*pr) + 0.1*(s*e+pr*d)),
		ForgivenessThreshold: p.Threshold.clamp(p.Threshold.Base * (0.9 + 0.4*hm)),
		Forgiveness:          p.Forgiveness.clamp(p.Forgiveness.Base + p.Boost*hm*(1-k) + 0.5*p.Boost*s*d),
		CrossTalkGain:        p.CrossTalk.clamp(p.CrossTalk.Base + 0.5*hm*k + 0.5*s*d),
		NoiseScale:           p.Noise.clamp(p.Noise.Base + pr*d - hm*k),
	}
}
