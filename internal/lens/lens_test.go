package lens

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/phasecube/internal/lattice"
)

const eps = 1e-12

func within(v float64, b Bounded) bool {
	return v >= b.Min && v <= b.Max
}

func checkBounds(t *testing.T, p Params, b Bundle) {
	t.Helper()
	fields := []struct {
		name string
		v    float64
		b    Bounded
	}{
		{"PathB", b.PathB, p.PathB},
		{"Damping", b.Damping, p.Damping},
		{"BiasGain", b.BiasGain, p.BiasGain},
		{"ForgivenessThreshold", b.ForgivenessThreshold, p.Threshold},
		{"Forgiveness", b.Forgiveness, p.Forgiveness},
		{"CrossTalkGain", b.CrossTalkGain, p.CrossTalk},
		{"NoiseScale", b.NoiseScale, p.Noise},
	}
	for _, f := range fields {
		if !within(f.v, f.b) {
			t.Errorf("%s = %v outside [%v, %v]", f.name, f.v, f.b.Min, f.b.Max)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]float64
		want Weights
	}{
		{"empty", nil, Uniform()},
		{"all zero", map[string]float64{Human: 0, Harmonic: 0}, Uniform()},
		{"negative dropped", map[string]float64{Human: -3, Harmonic: 1}, Weights{Harmonic: 1}},
		{"nan dropped", map[string]float64{Predictive: math.NaN(), Systemic: 2}, Weights{Systemic: 1}},
		{"alias", map[string]float64{"Cognitive": 1, Predictive: 1}, Weights{Human: 0.5, Predictive: 0.5}},
		{"unknown ignored", map[string]float64{"intuitive": 5, Harmonic: 2}, Weights{Harmonic: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromMap(tt.in).Normalize()
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWeightsGetWith(t *testing.T) {
	w := Uniform().With("cognitive", 1)
	if v, ok := w.Get(Human); !ok || v != 1 {
		t.Errorf("With via alias did not set human: %+v", w)
	}
	if v, ok := Uniform().With(" Harmonic", 2).Get("HARMONIC"); !ok || v != 2 {
		t.Errorf("With should ignore case and spacing, got %v", v)
	}
	if _, ok := w.Get("missing"); ok {
		t.Error("Get on unknown channel reported ok")
	}
}

func TestEvaluate_AdversarialInputsStayBounded(t *testing.T) {
	p := DefaultParams()
	c, err := NewController(p)
	if err != nil {
		t.Fatal(err)
	}
	inputs := []Metrics{
		{Energy: -50, Dispersion: 1000, Coherence: 2},
		{Energy: math.NaN(), Dispersion: math.NaN(), Coherence: math.NaN()},
		{Energy: math.Inf(1), Dispersion: math.Inf(-1), Coherence: -1},
		{},
	}
	weightSets := []Weights{
		Uniform(),
		{Harmonic: 1},
		{Predictive: 1},
		{Systemic: 1},
		{Human: math.NaN(), Predictive: math.Inf(1)},
	}
	for _, w := range weightSets {
		c.SetWeights(w)
		for _, m := range inputs {
			checkBounds(t, p, c.Evaluate(m))
		}
	}
}

func TestEvaluate_HarmonicOnly(t *testing.T) {
	p := DefaultParams()
	p.Weights = map[string]float64{Harmonic: 1}
	c, err := NewController(p)
	if err != nil {
		t.Fatal(err)
	}
	b := c.Evaluate(Metrics{Energy: 0.5, Dispersion: 1, Coherence: 0})

	// base 0.9 - 0.8 lands below the floor
	if math.Abs(b.Damping-p.Damping.Min) > eps {
		t.Errorf("Damping = %v, want floor %v", b.Damping, p.Damping.Min)
	}
	// base 0.55 + 0.35 exceeds the ceiling
	if math.Abs(b.Forgiveness-p.Forgiveness.Max) > eps {
		t.Errorf("Forgiveness = %v, want max %v", b.Forgiveness, p.Forgiveness.Max)
	}
	if want := p.PathB.Base - p.PathBeta; math.Abs(b.PathB-want) > eps {
		t.Errorf("PathB = %v, want %v", b.PathB, want)
	}
}

func TestEvaluate_Formulas(t *testing.T) {
	p := DefaultParams()
	c, err := NewController(p)
	if err != nil {
		t.Fatal(err)
	}
	m := Metrics{Energy: 0.4, Dispersion: 0.2, Coherence: 0.6}
	b := c.Evaluate(m)
	q := 0.25

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"PathB", b.PathB, 0.65 + 0.3*q*0.8 - 0.4*q*0.2},
		{"Damping", b.Damping, 0.9 - 0.8*q*0.2 + 0.1*q*0.6},
		{"BiasGain", b.BiasGain, 0.45*(0.9+0.3*q+0.2*q) + 0.1*(q*0.4+q*0.2)},
		{"ForgivenessThreshold", b.ForgivenessThreshold, 0.32 * (0.9 + 0.4*q)},
		{"Forgiveness", b.Forgiveness, 0.55 + 0.35*q*0.4 + 0.5*0.35*q*0.2},
		{"NoiseScale", b.NoiseScale, 1 + q*0.2 - q*0.6},
	}
	for _, tt := range tests {
		if math.Abs(tt.got-tt.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestNewController_InvalidBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"inverted path_b", func(p *Params) { p.PathB.Min, p.PathB.Max = 0.9, 0.1 }},
		{"path_b above one", func(p *Params) { p.PathB.Max = 1.5 }},
		{"damping above one", func(p *Params) { p.Damping.Max = 1.2 }},
		{"nan base", func(p *Params) { p.BiasGain.Base = math.NaN() }},
		{"negative noise", func(p *Params) { p.Noise.Min = -1 }},
		{"bad schedule", func(p *Params) { p.Schedule = &Schedule{Cadence: 0} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			if _, err := NewController(p); !errors.Is(err, lattice.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestScheduler(t *testing.T) {
	s := Schedule{
		Cadence:    4,
		BlendWidth: 2,
		Sequence:   []string{"a", "b"},
		Presets: map[string]map[string]float64{
			"a": {Human: 1},
			"b": {Harmonic: 1},
		},
	}
	sc, err := NewScheduler(s)
	if err != nil {
		t.Fatal(err)
	}

	if w := sc.Weights(0); w != (Weights{Human: 1}) {
		t.Errorf("tick 0 = %+v", w)
	}
	if got := sc.Segment(5); got != "b" {
		t.Errorf("Segment(5) = %q, want b", got)
	}
	if w := sc.Weights(4); w != (Weights{Human: 1}) {
		t.Errorf("blend start should equal previous preset, got %+v", w)
	}
	w := sc.Weights(5)
	if math.Abs(w.Human-0.5) > eps || math.Abs(w.Harmonic-0.5) > eps {
		t.Errorf("mid blend = %+v", w)
	}
	if w := sc.Weights(6); w != (Weights{Harmonic: 1}) {
		t.Errorf("after blend = %+v", w)
	}
	if got := sc.Segment(8); got != "a" {
		t.Errorf("sequence did not cycle: %q", got)
	}
}

func TestScheduler_DefaultIsValid(t *testing.T) {
	sc, err := NewScheduler(DefaultSchedule())
	if err != nil {
		t.Fatal(err)
	}
	for tick := 0; tick < 200; tick++ {
		w := sc.Weights(tick)
		sum := w.Human + w.Predictive + w.Systemic + w.Harmonic
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("tick %d: weights sum to %v", tick, sum)
		}
	}
}
