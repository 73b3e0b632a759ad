package drive

import (
	"github.com/san-kum/phasecube/internal/bias"
	"github.com/san-kum/phasecube/internal/lattice"
)

// Target receives external influence. *swarm.Swarm satisfies it.
type Target interface {
	Size() int
	Inject(p bias.Pulse)
	InjectField(v lattice.View, gain float64)
}

// Driver queues influence onto a target before each tick.
type Driver interface {
	Drive(tick int, t Target)
}

type Config struct {
	Pulses PulseConfig `yaml:"pulses"`
	Wave   WaveConfig  `yaml:"wave"`
}

func DefaultConfig() Config {
	return Config{
		Pulses: PulseConfig{
			Enabled:  true,
			Every:    3,
			Strength: 0.72,
			Radius:   1,
			Pattern:  PatternWalk,
		},
		Wave: WaveConfig{
			Amplitude:  0.05,
			Wavelength: 8,
			Period:     64,
			Axis:       "x",
		},
	}
}

func (c Config) Validate() error {
	if c.Pulses.Enabled {
		if c.Pulses.Every < 1 {
			return lattice.Invalid("drive.pulses.every", c.Pulses.Every, "must be at least 1")
		}
		switch c.Pulses.Pattern {
		case PatternWalk, PatternRandom:
		default:
			return lattice.Invalid("drive.pulses.pattern", c.Pulses.Pattern, "expected walk or random")
		}
	}
	if c.Wave.Enabled {
		if !(c.Wave.Wavelength > 0) || !(c.Wave.Period > 0) {
			return lattice.Invalid("drive.wave", c.Wave, "wavelength and period must be positive")
		}
		if _, ok := axes[c.Wave.Axis]; !ok {
			return lattice.Invalid("drive.wave.axis", c.Wave.Axis, "expected x, y or z")
		}
	}
	return nil
}

// Build assembles the enabled drivers. With nothing enabled it returns None.
func (c Config) Build(rng lattice.Source) (Driver, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var chain Chain
	if c.Pulses.Enabled {
		chain = append(chain, NewPulses(c.Pulses, rng))
	}
	if c.Wave.Enabled {
		chain = append(chain, NewWave(c.Wave))
	}
	switch len(chain) {
	case 0:
		return None{}, nil
	case 1:
		return chain[0], nil
	}
	return chain, nil
}

// Chain runs drivers in order.
type Chain []Driver

func (c Chain) Drive(tick int, t Target) {
	for _, d := range c {
		d.Drive(tick, t)
	}
}

type None struct{}

func (None) Drive(int, Target) {}
