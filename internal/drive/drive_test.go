package drive

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/phasecube/internal/bias"
	"github.com/san-kum/phasecube/internal/lattice"
)

type recorder struct {
	size   int
	pulses []bias.Pulse
	fields []lattice.Field
}

func (r *recorder) Size() int { return r.size }

func (r *recorder) Inject(p bias.Pulse) { r.pulses = append(r.pulses, p) }

func (r *recorder) InjectField(v lattice.View, gain float64) {
	r.fields = append(r.fields, v.Clone())
}

func TestNone(t *testing.T) {
	r := &recorder{size: 4}
	None{}.Drive(0, r)
	if len(r.pulses) != 0 || len(r.fields) != 0 {
		t.Error("None should not inject")
	}
}

func TestPulses_Walk(t *testing.T) {
	r := &recorder{size: 5}
	p := NewPulses(PulseConfig{Every: 3, Strength: 0.5, Radius: 1, Pattern: PatternWalk}, nil)
	for tick := 0; tick < 7; tick++ {
		p.Drive(tick, r)
	}
	if len(r.pulses) != 3 {
		t.Fatalf("expected 3 pulses, got %d", len(r.pulses))
	}
	want := lattice.Coord{X: 3, Y: 1, Z: 4}
	if r.pulses[1].Center != want {
		t.Errorf("tick 3 centre = %+v, want %+v", r.pulses[1].Center, want)
	}
}

func TestPulses_RandomStaysInLattice(t *testing.T) {
	r := &recorder{size: 4}
	p := NewPulses(PulseConfig{Every: 1, Strength: 2, Radius: 1, Pattern: PatternRandom}, lattice.NewSource(1))
	for tick := 0; tick < 50; tick++ {
		p.Drive(tick, r)
	}
	for _, pl := range r.pulses {
		c := pl.Center
		if c.X < 0 || c.X >= 4 || c.Y < 0 || c.Y >= 4 || c.Z < 0 || c.Z >= 4 {
			t.Fatalf("centre out of lattice: %+v", c)
		}
		if math.Abs(pl.Strength) > 2 {
			t.Fatalf("strength %f exceeds configured magnitude", pl.Strength)
		}
	}
}

func TestWave(t *testing.T) {
	w := NewWave(WaveConfig{Amplitude: 1, Wavelength: 4, Period: 8, Axis: "x"})
	f := w.Field(0, 4)
	if math.Abs(f[1]-1) > 1e-12 {
		t.Errorf("x=1 should be a crest, got %f", f[1])
	}
	if f[0] != f[4] {
		t.Error("wave along x should be constant across y")
	}
	r := &recorder{size: 4}
	w.Drive(2, r)
	if len(r.fields) != 1 {
		t.Fatalf("expected one field, got %d", len(r.fields))
	}
	// a quarter period later the origin sits in a trough
	if got := r.fields[0][0]; math.Abs(got+1) > 1e-12 {
		t.Errorf("origin at tick 2 = %f, want -1", got)
	}
}

func TestManual(t *testing.T) {
	m := NewManual()
	m.Push(bias.Pulse{Strength: 1})
	m.Push(bias.Pulse{Strength: 2})
	r := &recorder{size: 3}
	m.Drive(0, r)
	if len(r.pulses) != 2 || m.Pending() != 0 {
		t.Errorf("manual flushed %d, pending %d", len(r.pulses), m.Pending())
	}
}

func TestBuild(t *testing.T) {
	cfg := DefaultConfig()
	d, err := cfg.Build(lattice.NewSource(1))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(*Pulses); !ok {
		t.Errorf("default config should build pulses, got %T", d)
	}

	cfg.Wave.Enabled = true
	d, _ = cfg.Build(lattice.NewSource(1))
	if c, ok := d.(Chain); !ok || len(c) != 2 {
		t.Errorf("expected chain of 2, got %T", d)
	}

	cfg = Config{}
	d, _ = cfg.Build(nil)
	if _, ok := d.(None); !ok {
		t.Errorf("empty config should build None, got %T", d)
	}

	cfg = DefaultConfig()
	cfg.Wave = WaveConfig{Enabled: true, Axis: "w", Wavelength: 1, Period: 1}
	if _, err := cfg.Build(nil); !errors.Is(err, lattice.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
