package bias

import (
	"math"

	"github.com/san-kum/phasecube/internal/lattice"
)

// Kernel selects the radial falloff of an injection.
type Kernel string

const (
	KernelGaussian Kernel = "gaussian"
	KernelLinear   Kernel = "linear"
)

// Mode selects how a tick combines decay and diffusion.
type Mode string

const (
	// ModeSplit decays, then diffuses with curr·(1−rate) + mean·rate.
	ModeSplit Mode = "split"
	// ModeFused applies curr·decay + mean·diffusion in one pass.
	ModeFused Mode = "fused"
)

type Params struct {
	Decay        float64 `yaml:"decay"`
	Diffusion    float64 `yaml:"diffusion"`
	Mode         Mode    `yaml:"mode"`
	MaxMagnitude float64 `yaml:"max_magnitude"`
	Radius       float64 `yaml:"radius"`
	Strength     float64 `yaml:"strength"`
	Kernel       Kernel  `yaml:"kernel"`
	Sharpness    float64 `yaml:"sharpness"`
}

func DefaultParams() Params {
	return Params{
		Decay:        0.9,
		Diffusion:    0.12,
		Mode:         ModeSplit,
		MaxMagnitude: 2.0,
		Radius:       1.5,
		Strength:     0.9,
		Kernel:       KernelGaussian,
		Sharpness:    1.0,
	}
}

func (p Params) Validate() error {
	if !(p.Decay > 0 && p.Decay < 1) {
		return lattice.Invalid("bias.decay", p.Decay, "must be within (0,1)")
	}
	if err := lattice.CheckProbability("bias.diffusion", p.Diffusion); err != nil {
		return err
	}
	if !(p.MaxMagnitude > 0) {
		return lattice.Invalid("bias.max_magnitude", p.MaxMagnitude, "must be positive")
	}
	if !(p.Radius > 0) {
		return lattice.Invalid("bias.radius", p.Radius, "must be positive")
	}
	if !(p.Sharpness > 0) {
		return lattice.Invalid("bias.sharpness", p.Sharpness, "must be positive")
	}
	switch p.Mode {
	case ModeSplit, ModeFused:
	default:
		return lattice.Invalid("bias.mode", p.Mode, "expected split or fused")
	}
	switch p.Kernel {
	case KernelGaussian, KernelLinear:
	default:
		return lattice.Invalid("bias.kernel", p.Kernel, "expected gaussian or linear")
	}
	return nil
}

// Field is an influence-only overlay: it nudges grid state and is never
// written by a grid.
type Field struct {
	p    Params
	topo *lattice.Topology
	cur  lattice.Field
	next lattice.Field
}

func New(size int, p Params) (*Field, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	topo, err := lattice.NewTopology(size)
	if err != nil {
		return nil, err
	}
	return &Field{
		p:    p,
		topo: topo,
		cur:  lattice.NewField(topo.Cells()),
		next: lattice.NewField(topo.Cells()),
	}, nil
}

func (b *Field) Params() Params { return b.p }

// SetParams replaces the live coefficients; invalid values are rejected.
func (b *Field) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	b.p = p
	return nil
}

func (b *Field) Topology() *lattice.Topology { return b.topo }

func (b *Field) View() lattice.View { return b.cur.View() }

func (b *Field) Len() int { return len(b.cur) }

// Energy returns Σ|v|.
func (b *Field) Energy() float64 { return b.cur.L1() }

func (b *Field) Reset() {
	b.cur.Zero()
	b.next.Zero()
}

func (b *Field) Decay() {
	d := b.p.Decay
	for i := range b.cur {
		b.cur[i] *= d
	}
}

// Diffuse relaxes each cell toward its neighbour mean from a full snapshot.
func (b *Field) Diffuse(rate float64) {
	rate = lattice.Clamp01(rate)
	for i := range b.cur {
		b.next[i] = b.cur[i]*(1-rate) + b.topo.NeighborMean(b.cur, i)*rate
	}
	b.swap()
}

// DiffuseFused applies decay and diffusion weights in one snapshot pass.
func (b *Field) DiffuseFused() {
	d, k := b.p.Decay, b.p.Diffusion
	for i := range b.cur {
		b.next[i] = b.clamp(b.cur[i]*d + b.topo.NeighborMean(b.cur, i)*k)
	}
	b.swap()
}

func (b *Field) swap() {
	b.cur, b.next = b.next, b.cur
}

func (b *Field) clamp(v float64) float64 {
	m := b.p.MaxMagnitude
	return lattice.Clamp(v, -m, m)
}

// Inject adds strength·kernel(d) to every cell within toroidal distance
// radius of center and returns the number of touched cells. Each cell is
// touched at most once even when the radius exceeds half the lattice.
func (b *Field) Inject(center lattice.Coord, radius, strength float64) int {
	if math.IsNaN(strength) || math.IsInf(strength, 0) {
		return 0
	}
	c := b.topo.IndexOf(center)
	if !(radius > 0) {
		b.cur[c] = b.clamp(b.cur[c] + strength)
		return 1
	}

	n := b.topo.Size()
	// no offset farther than the side is ever visited
	reach := n
	if radius < float64(n) {
		reach = int(math.Ceil(radius))
	}
	lo := -minInt(reach, (n-1)/2)
	hi := minInt(reach, n/2)

	touched := 0
	for dz := lo; dz <= hi; dz++ {
		for dy := lo; dy <= hi; dy++ {
			for dx := lo; dx <= hi; dx++ {
				d := math.Sqrt(float64(dx*dx + dy*dy + dz*dz))
				if d > radius {
					continue
				}
				i := b.topo.Index(center.X+dx, center.Y+dy, center.Z+dz)
				b.cur[i] = b.clamp(b.cur[i] + strength*b.kernel(d, radius))
				touched++
			}
		}
	}
	return touched
}

func (b *Field) kernel(d, r float64) float64 {
	if b.p.Kernel == KernelLinear {
		return 1 - d/r
	}
	return math.Exp(-b.p.Sharpness * d * d)
}

// AddField adds gain·src cell-wise, for continuous precomputed influence.
func (b *Field) AddField(src lattice.View, gain float64) {
	if math.IsNaN(gain) || math.IsInf(gain, 0) {
		return
	}
	n := src.Len()
	if n > len(b.cur) {
		n = len(b.cur)
	}
	for i := 0; i < n; i++ {
		v := src.At(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		b.cur[i] = b.clamp(b.cur[i] + v*gain)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
