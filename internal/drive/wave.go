package drive

import (
	"math"

	"github.com/san-kum/phasecube/internal/lattice"
)

var axes = map[string]int{"x": 0, "y": 1, "z": 2}

type WaveConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Amplitude  float64 `yaml:"amplitude"`
	Wavelength float64 `yaml:"wavelength"`
	Period     float64 `yaml:"period"`
	Axis       string  `yaml:"axis"`
}

// Wave adds a plane sine wave travelling along one axis every tick.
type Wave struct {
	cfg  WaveConfig
	axis int
	buf  lattice.Field
}

func NewWave(cfg WaveConfig) *Wave {
	return &Wave{cfg: cfg, axis: axes[cfg.Axis]}
}

// Field evaluates the wave on an n³ lattice at tick.
func (w *Wave) Field(tick, n int) lattice.Field {
	cells := n * n * n
	if len(w.buf) != cells {
		w.buf = lattice.NewField(cells)
	}
	phase := float64(tick) / w.cfg.Period
	for i := range w.buf {
		c := [3]int{i % n, (i / n) % n, i / (n * n)}
		w.buf[i] = w.cfg.Amplitude * math.Sin(2*math.Pi*(float64(c[w.axis])/w.cfg.Wavelength-phase))
	}
	return w.buf
}

func (w *Wave) Drive(tick int, t Target) {
	t.InjectField(w.Field(tick, t.Size()).View(), 1)
}
