package bias

import "github.com/san-kum/phasecube/internal/lattice"

// Pulse is a discrete localized injection request.
type Pulse struct {
	Center   lattice.Coord `json:"center" yaml:"center"`
	Radius   float64       `json:"radius" yaml:"radius"`
	Strength float64       `json:"strength" yaml:"strength"`
}

// Apply injects p, falling back to the configured radius and strength for
// zero fields.
func (b *Field) Apply(p Pulse) int {
	r, s := p.Radius, p.Strength
	if r == 0 {
		r = b.p.Radius
	}
	if s == 0 {
		s = b.p.Strength
	}
	return b.Inject(p.Center, r, s)
}
