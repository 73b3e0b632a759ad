package phase

import (
	"math"

	"github.com/san-kum/phasecube/internal/lattice"
	"github.com/san-kum/phasecube/internal/lens"
)

type Params struct {
	Alpha                 float64 `yaml:"alpha"`
	PlasmaDecay           float64 `yaml:"plasma_decay"`
	PlasmaNoise           float64 `yaml:"plasma_noise"`
	ParityOffset          float64 `yaml:"parity_offset"`
	FlipProbability       float64 `yaml:"flip_probability"`
	ParityProbability     float64 `yaml:"parity_probability"`
	ParityBiasCoupling    float64 `yaml:"parity_bias_coupling"`
	KickSize              float64 `yaml:"kick_size"`
	PlasticityProbability float64 `yaml:"plasticity_probability"`
	SeedScale             float64 `yaml:"seed_scale"`
	Rule                  Rule    `yaml:"rule"`
}

func DefaultParams() Params {
	return Params{
		Alpha:              0.18,
		PlasmaDecay:        0.25,
		PlasmaNoise:        0.01,
		ParityOffset:       0.13,
		FlipProbability:    0.02,
		ParityProbability:  0.01,
		ParityBiasCoupling: 0.5,
		KickSize:           0.125,
		SeedScale:          1,
		Rule:               Rules["canonical"],
	}
}

func (p Params) Validate() error {
	probs := []struct {
		name string
		v    float64
	}{
		{"phase.alpha", p.Alpha},
		{"phase.plasma_decay", p.PlasmaDecay},
		{"phase.flip_probability", p.FlipProbability},
		{"phase.parity_probability", p.ParityProbability},
		{"phase.plasticity_probability", p.PlasticityProbability},
		{"phase.seed_scale", p.SeedScale},
	}
	for _, c := range probs {
		if err := lattice.CheckProbability(c.name, c.v); err != nil {
			return err
		}
	}
	nonNeg := []struct {
		name string
		v    float64
	}{
		{"phase.plasma_noise", p.PlasmaNoise},
		{"phase.parity_offset", p.ParityOffset},
		{"phase.parity_bias_coupling", p.ParityBiasCoupling},
		{"phase.kick_size", p.KickSize},
	}
	for _, c := range nonNeg {
		if !(c.v >= 0) || math.IsInf(c.v, 0) {
			return lattice.Invalid(c.name, c.v, "must be finite and non-negative")
		}
	}
	return p.Rule.Validate()
}

// Report summarizes one Step.
type Report struct {
	lens.Metrics
	PathBFraction     float64 `json:"path_b_fraction"`
	ForgivenessEvents int     `json:"forgiveness_events"`
	MeanBias          float64 `json:"mean_bias"`
	Rewired           bool    `json:"rewired"`
}

// Grid is one 3-D lattice of coupled plasma, liquid and solid phases with
// a parity flag per cell. Steps are synchronous: every cell reads the frozen
// snapshot and writes into the back buffers.
type Grid struct {
	p    Params
	topo *lattice.Topology
	rng  lattice.Source

	plasma, liquid, solid lattice.Field
	parity                []uint8

	nextPlasma, nextLiquid, nextSolid lattice.Field
	nextParity                        []uint8

	forgiveTotal int
}

// New seeds a grid of side size from rng. The grid keeps rng and draws every
// later stochastic decision from it.
func New(size int, p Params, rng lattice.Source) (*Grid, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, lattice.Invalid("phase.rng", nil, "random source is required")
	}
	topo, err := lattice.NewTopology(size)
	if err != nil {
		return nil, err
	}
	n := topo.Cells()
	g := &Grid{
		p:          p,
		topo:       topo,
		rng:        rng,
		plasma:     lattice.NewField(n),
		liquid:     lattice.NewField(n),
		solid:      lattice.NewField(n),
		parity:     make([]uint8, n),
		nextPlasma: lattice.NewField(n),
		nextLiquid: lattice.NewField(n),
		nextSolid:  lattice.NewField(n),
		nextParity: make([]uint8, n),
	}
	g.seed()
	return g, nil
}

func (g *Grid) seed() {
	s := g.p.SeedScale
	for i := range g.plasma {
		g.plasma[i] = g.rng.Float64() * s
		g.liquid[i] = g.rng.Float64() * s
		g.solid[i] = g.rng.Float64() * s
		if lattice.Bernoulli(g.rng, 0.5) {
			g.parity[i] = 1
		}
	}
}

// Load replaces the grid state. Values are bounded under the grid's rule.
func (g *Grid) Load(plasma, liquid, solid []float64, parity []uint8) error {
	n := g.topo.Cells()
	if len(plasma) != n || len(liquid) != n || len(solid) != n || len(parity) != n {
		return lattice.Invalid("phase.state", n, "every buffer must hold one value per cell")
	}
	for i := 0; i < n; i++ {
		g.plasma[i] = g.p.Rule.bound(plasma[i])
		g.liquid[i] = g.p.Rule.bound(liquid[i])
		g.solid[i] = g.p.Rule.bound(solid[i])
		g.parity[i] = parity[i] & 1
	}
	return nil
}

func (g *Grid) Params() Params { return g.p }

// SetParams replaces the live coefficients; state is kept.
func (g *Grid) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	g.p = p
	return nil
}

func (g *Grid) Topology() *lattice.Topology { return g.topo }
func (g *Grid) Size() int                   { return g.topo.Size() }
func (g *Grid) Cells() int                  { return g.topo.Cells() }
func (g *Grid) Plasma() lattice.View        { return g.plasma.View() }
func (g *Grid) Liquid() lattice.View        { return g.liquid.View() }
func (g *Grid) Solid() lattice.View         { return g.solid.View() }

func (g *Grid) Parity(i int) bool { return g.parity[i] == 1 }

// ForgivenessTotal is the number of forgiveness events since construction.
func (g *Grid) ForgivenessTotal() int { return g.forgiveTotal }

// Perturb kicks plasma with probability FlipProbability·scale per cell.
func (g *Grid) Perturb(scale float64) int {
	prob := lattice.Clamp01(g.p.FlipProbability * lattice.Finite(scale, 0))
	if prob == 0 || g.p.KickSize == 0 {
		return 0
	}
	kicked := 0
	for i, v := range g.plasma {
		if lattice.Bernoulli(g.rng, prob) {
			g.plasma[i] = g.p.Rule.bound(v + lattice.Signed(g.rng, g.p.KickSize))
			kicked++
		}
	}
	return kicked
}

// rewire moves one random edge. A self-loop target is redrawn once.
func (g *Grid) rewire() bool {
	if !lattice.Bernoulli(g.rng, g.p.PlasticityProbability) {
		return false
	}
	n := g.topo.Cells()
	cell := g.rng.Intn(n)
	slot := g.rng.Intn(lattice.Degree)
	target := g.rng.Intn(n)
	if target == cell {
		target = g.rng.Intn(n)
	}
	return g.topo.Rewire(cell, slot, target) == nil
}

// Step advances every cell once against bias under the control bundle b.
// A bias view shorter than the grid reads as zero past its end.
func (g *Grid) Step(bias lattice.View, b lens.Bundle) Report {
	var rep Report
	if g.p.PlasticityProbability > 0 {
		rep.Rewired = g.rewire()
	}

	p := g.p
	rule := p.Rule
	pathB, biasSum := 0, 0.0
	events := 0

	for i := range g.plasma {
		pl, lq, so := g.plasma[i], g.liquid[i], g.solid[i]
		nAvg := g.topo.NeighborMean(g.plasma, i)

		consensus := (pl + lq + so) / 3
		if rule.ConsensusNeighbors {
			consensus = (pl + lq + so + nAvg) / 4
		}

		div := math.Abs(pl - nAvg)
		if g.parity[i] == 1 {
			if rule.ParityMode == ParityMultiplicative {
				div *= 1 + p.ParityOffset
			} else {
				div += p.ParityOffset
			}
		}

		var term float64
		if lattice.Bernoulli(g.rng, b.PathB) {
			term = div * b.Damping
			pathB++
		} else {
			term = consensus
		}

		bi := 0.0
		if i < bias.Len() {
			bi = lattice.Finite(bias.At(i), 0)
		}
		biasSum += bi
		mix := term + bi*b.BiasGain

		if math.Abs(div-consensus) > b.ForgivenessThreshold {
			ref := consensus
			if rule.ForgiveToward == ForgiveSolid {
				ref = so
			}
			mix += (ref - mix) * b.Forgiveness
			events++
		}

		lq2 := rule.bound(mix)
		src := lq2
		if rule.SolidSource == SolidFromMix {
			src = mix
		}
		g.nextLiquid[i] = lq2
		g.nextSolid[i] = rule.bound(so*(1-p.Alpha) + src*p.Alpha)

		np := pl*(1-p.PlasmaDecay) + mix*p.PlasmaDecay
		if p.PlasmaNoise > 0 {
			np += lattice.Signed(g.rng, p.PlasmaNoise)
		}
		g.nextPlasma[i] = rule.bound(np)

		par := g.parity[i]
		if p.ParityProbability > 0 {
			flip := lattice.Clamp01(p.ParityProbability * (1 + p.ParityBiasCoupling*math.Abs(bi)))
			if lattice.Bernoulli(g.rng, flip) {
				par ^= 1
			}
		}
		g.nextParity[i] = par
	}

	g.plasma, g.nextPlasma = g.nextPlasma, g.plasma
	g.liquid, g.nextLiquid = g.nextLiquid, g.liquid
	g.solid, g.nextSolid = g.nextSolid, g.solid
	g.parity, g.nextParity = g.nextParity, g.parity
	g.forgiveTotal += events

	n := float64(len(g.plasma))
	rep.Metrics = g.Metrics()
	rep.PathBFraction = float64(pathB) / n
	rep.ForgivenessEvents = events
	rep.MeanBias = biasSum / n
	return rep
}

// Metrics reads energy, dispersion and coherence off the liquid phase.
func (g *Grid) Metrics() lens.Metrics {
	mean, variance := g.liquid.MeanVariance()
	if variance < 0 {
		variance = 0
	}
	return lens.Metrics{
		Energy:     mean,
		Dispersion: math.Sqrt(variance),
		Coherence:  1 - math.Min(variance*4, 1),
	}
}

// Validate reports the first non-finite cell in any phase buffer.
func (g *Grid) Validate() error {
	if err := g.plasma.Check("plasma"); err != nil {
		return err
	}
	if err := g.liquid.Check("liquid"); err != nil {
		return err
	}
	return g.solid.Check("solid")
}
