package delay

import (
	"math"

	"github.com/san-kum/phasecube/internal/lattice"
)

// Weighting selects which end of the buffer carries weight decay^0.
type Weighting string

const (
	// OldestFirst weights the i-th oldest snapshot by decay^i.
	OldestFirst Weighting = "oldest_first"
	// NewestFirst weights the i-th newest snapshot by decay^i.
	NewestFirst Weighting = "newest_first"
)

// Source selects what the swarm feeds into the line each tick.
type Source string

const (
	SourceComposite Source = "composite"
	SourceCore      Source = "core"
)

type Params struct {
	Capacity  int       `yaml:"capacity"`
	Decay     float64   `yaml:"decay"`
	Normalize bool      `yaml:"normalize"`
	Weighting Weighting `yaml:"weighting"`
	Source    Source    `yaml:"source"`
}

func DefaultParams() Params {
	return Params{
		Capacity:  6,
		Decay:     0.82,
		Weighting: OldestFirst,
		Source:    SourceComposite,
	}
}

func (p Params) Validate() error {
	if p.Capacity < 1 {
		return lattice.Invalid("delay.capacity", p.Capacity, "must be at least 1")
	}
	if err := lattice.CheckUnitOpen("delay.decay", p.Decay); err != nil {
		return err
	}
	switch p.Weighting {
	case OldestFirst, NewestFirst:
	default:
		return lattice.Invalid("delay.weighting", p.Weighting, "expected oldest_first or newest_first")
	}
	switch p.Source {
	case SourceComposite, SourceCore:
	default:
		return lattice.Invalid("delay.source", p.Source, "expected composite or core")
	}
	return nil
}

// Line is a fixed-capacity ring of owned field snapshots.
type Line struct {
	p      Params
	length int
	ring   []lattice.Field
	head   int // slot of the oldest snapshot
	count  int
}

// New builds a line for fields of the given length.
func New(length int, p Params) (*Line, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if length <= 0 {
		return nil, lattice.Invalid("delay.length", length, "must be positive")
	}
	ring := make([]lattice.Field, p.Capacity)
	for i := range ring {
		ring[i] = lattice.NewField(length)
	}
	return &Line{p: p, length: length, ring: ring}, nil
}

func (l *Line) Params() Params { return l.p }
func (l *Line) Len() int       { return l.count }
func (l *Line) Cap() int       { return len(l.ring) }

// SetDecay adjusts the recombination decay live; out-of-range values are ignored.
func (l *Line) SetDecay(d float64) {
	if d >= 0 && d < 1 {
		l.p.Decay = d
	}
}

// Push copies src into the ring, evicting the oldest snapshot when full.
// Shorter sources are zero-padded, longer ones truncated.
func (l *Line) Push(src lattice.View) {
	var slot int
	if l.count < len(l.ring) {
		slot = (l.head + l.count) % len(l.ring)
		l.count++
	} else {
		slot = l.head
		l.head = (l.head + 1) % len(l.ring)
	}
	dst := l.ring[slot]
	n := src.CopyTo(dst)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// Compose returns Σ snapshot_i·decay^i over buffered snapshots, ordered per
// the configured weighting. An empty line composes to the zero field.
func (l *Line) Compose() lattice.Field {
	out := lattice.NewField(l.length)
	l.ComposeInto(out)
	return out
}

// ComposeInto writes the composition into dst, which must have the line's length.
func (l *Line) ComposeInto(dst lattice.Field) {
	dst.Zero()
	if l.count == 0 {
		return
	}
	w, total := 1.0, 0.0
	for k := 0; k < l.count; k++ {
		age := k
		if l.p.Weighting == NewestFirst {
			age = l.count - 1 - k
		}
		dst.AddScaled(w, l.ring[(l.head+age)%len(l.ring)])
		total += w
		w *= l.p.Decay
	}
	if l.p.Normalize && total > 0 {
		inv := 1 / total
		for i := range dst {
			dst[i] *= inv
		}
	}
}

// Weights returns the per-snapshot weights from the decay^0 end.
func (l *Line) Weights() []float64 {
	out := make([]float64, l.count)
	for i := range out {
		out[i] = math.Pow(l.p.Decay, float64(i))
	}
	return out
}

func (l *Line) Reset() {
	for _, f := range l.ring {
		f.Zero()
	}
	l.head, l.count = 0, 0
}
