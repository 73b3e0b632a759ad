package lens

import (
	"math"
	"sort"
	"strings"
)

// Channel names. "cognitive" is accepted as an alias of human.
const (
	Human      = "human"
	Predictive = "predictive"
	Systemic   = "systemic"
	Harmonic   = "harmonic"
)

var aliases = map[string]string{
	"cognitive": Human,
}

// Weights are the four fused lens channels. Normalized weights sum to 1.
type Weights struct {
	Human      float64 `json:"human" yaml:"human"`
	Predictive float64 `json:"predictive" yaml:"predictive"`
	Systemic   float64 `json:"systemic" yaml:"systemic"`
	Harmonic   float64 `json:"harmonic" yaml:"harmonic"`
}

// Uniform returns equal weights.
func Uniform() Weights {
	return Weights{0.25, 0.25, 0.25, 0.25}
}

// channel resolves a channel name or alias, ignoring case and spacing.
func channel(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[name]; ok {
		return a
	}
	return name
}

// FromMap reads a named mapping, resolving aliases. Unknown keys are ignored.
func FromMap(m map[string]float64) Weights {
	var w Weights
	for k, v := range m {
		switch channel(k) {
		case Human:
			w.Human += v
		case Predictive:
			w.Predictive += v
		case Systemic:
			w.Systemic += v
		case Harmonic:
			w.Harmonic += v
		}
	}
	return w
}

func (w Weights) Map() map[string]float64 {
	return map[string]float64{
		Human:      w.Human,
		Predictive: w.Predictive,
		Systemic:   w.Systemic,
		Harmonic:   w.Harmonic,
	}
}

// Get returns a channel by name or alias.
func (w Weights) Get(name string) (float64, bool) {
	v, ok := w.Map()[channel(name)]
	return v, ok
}

// With returns a copy with one channel set.
func (w Weights) With(name string, v float64) Weights {
	m := w.Map()
	name = channel(name)
	if _, ok := m[name]; ok {
		m[name] = v
	}
	return FromMap(m)
}

// Normalize drops negative and non-finite entries and rescales to sum 1.
// An empty mapping normalizes to Uniform.
func (w Weights) Normalize() Weights {
	f := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0
		}
		return v
	}
	n := Weights{f(w.Human), f(w.Predictive), f(w.Systemic), f(w.Harmonic)}
	sum := n.Human + n.Predictive + n.Systemic + n.Harmonic
	if !(sum > 0) || math.IsInf(sum, 0) {
		return Uniform()
	}
	return Weights{n.Human / sum, n.Predictive / sum, n.Systemic / sum, n.Harmonic / sum}
}

// Lerp blends toward o by t and normalizes.
func (w Weights) Lerp(o Weights, t float64) Weights {
	mix := func(a, b float64) float64 { return (1-t)*a + t*b }
	return Weights{
		mix(w.Human, o.Human),
		mix(w.Predictive, o.Predictive),
		mix(w.Systemic, o.Systemic),
		mix(w.Harmonic, o.Harmonic),
	}.Normalize()
}

// Channels lists the canonical channel names in sorted order.
func Channels() []string {
	names := []string{Human, Predictive, Systemic, Harmonic}
	sort.Strings(names)
	return names
}
