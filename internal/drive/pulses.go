package drive

import (
	"github.com/san-kum/phasecube/internal/bias"
	"github.com/san-kum/phasecube/internal/lattice"
)

const (
	PatternWalk   = "walk"
	PatternRandom = "random"
)

type PulseConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Every    int     `yaml:"every"`
	Strength float64 `yaml:"strength"`
	Radius   float64 `yaml:"radius"`
	Pattern  string  `yaml:"pattern"`
}

// Pulses emits one pulse every Every ticks. The walk pattern visits
// (k, 2k, 3k) mod N; random draws the centre and a signed strength.
type Pulses struct {
	cfg PulseConfig
	rng lattice.Source
}

func NewPulses(cfg PulseConfig, rng lattice.Source) *Pulses {
	if cfg.Every < 1 {
		cfg.Every = 1
	}
	if rng == nil {
		cfg.Pattern = PatternWalk
	}
	return &Pulses{cfg: cfg, rng: rng}
}

func (p *Pulses) Drive(tick int, t Target) {
	if tick%p.cfg.Every != 0 {
		return
	}
	n := t.Size()
	pulse := bias.Pulse{Radius: p.cfg.Radius, Strength: p.cfg.Strength}
	if p.cfg.Pattern == PatternRandom {
		pulse.Center = lattice.Coord{X: p.rng.Intn(n), Y: p.rng.Intn(n), Z: p.rng.Intn(n)}
		pulse.Strength = lattice.Signed(p.rng, p.cfg.Strength)
	} else {
		pulse.Center = lattice.Coord{X: tick % n, Y: (2 * tick) % n, Z: (3 * tick) % n}
	}
	t.Inject(pulse)
}

// Manual queues pulses from an interactive source and flushes them on the
// next Drive.
type Manual struct {
	queue []bias.Pulse
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Push(p bias.Pulse) {
	m.queue = append(m.queue, p)
}

func (m *Manual) Pending() int { return len(m.queue) }

func (m *Manual) Drive(_ int, t Target) {
	for _, p := range m.queue {
		t.Inject(p)
	}
	m.queue = m.queue[:0]
}
