package lens

import (
	"github.com/san-kum/phasecube/internal/lattice"
)

// Schedule cycles named weight presets. Each segment lasts Cadence ticks;
// the first BlendWidth ticks of a segment interpolate from the previous
// preset into the current one.
type Schedule struct {
	Cadence    int                           `yaml:"cadence"`
	BlendWidth int                           `yaml:"blend_width"`
	Sequence   []string                      `yaml:"sequence"`
	Presets    map[string]map[string]float64 `yaml:"presets"`
}

func DefaultSchedule() Schedule {
	return Schedule{
		Cadence:    48,
		BlendWidth: 8,
		Sequence:   []string{"harmonic", "exploratory", "stable"},
		Presets: map[string]map[string]float64{
			"harmonic":    {Human: 0.24, Predictive: 0.18, Systemic: 0.18, Harmonic: 0.40},
			"exploratory": {Human: 0.20, Predictive: 0.38, Systemic: 0.22, Harmonic: 0.20},
			"stable":      {Human: 0.26, Predictive: 0.20, Systemic: 0.22, Harmonic: 0.32},
		},
	}
}

func (s Schedule) Validate() error {
	if s.Cadence < 1 {
		return lattice.Invalid("lens.schedule.cadence", s.Cadence, "must be at least 1")
	}
	if s.BlendWidth < 0 || s.BlendWidth > s.Cadence {
		return lattice.Invalid("lens.schedule.blend_width", s.BlendWidth, "must be within [0, cadence]")
	}
	if len(s.Sequence) == 0 {
		return lattice.Invalid("lens.schedule.sequence", s.Sequence, "requires at least one preset")
	}
	for _, name := range s.Sequence {
		if _, ok := s.Presets[name]; !ok {
			return lattice.Invalid("lens.schedule.sequence", name, "unknown preset")
		}
	}
	return nil
}

// Scheduler resolves the active weights for a tick.
type Scheduler struct {
	s       Schedule
	weights []Weights
}

func NewScheduler(s Schedule) (*Scheduler, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	w := make([]Weights, len(s.Sequence))
	for i, name := range s.Sequence {
		w[i] = FromMap(s.Presets[name]).Normalize()
	}
	return &Scheduler{s: s, weights: w}, nil
}

// Segment returns the preset name active at tick.
func (sc *Scheduler) Segment(tick int) string {
	return sc.s.Sequence[sc.index(tick)]
}

func (sc *Scheduler) index(tick int) int {
	if tick < 0 {
		tick = 0
	}
	return (tick / sc.s.Cadence) % len(sc.weights)
}

// Weights returns the normalized weights for tick.
func (sc *Scheduler) Weights(tick int) Weights {
	if tick < 0 {
		tick = 0
	}
	idx := sc.index(tick)
	cur := sc.weights[idx]
	within := tick % sc.s.Cadence
	// the very first segment has nothing to blend from
	if tick < sc.s.Cadence || within >= sc.s.BlendWidth {
		return cur
	}
	prev := sc.weights[(idx+len(sc.weights)-1)%len(sc.weights)]
	return prev.Lerp(cur, float64(within)/float64(sc.s.BlendWidth))
}
