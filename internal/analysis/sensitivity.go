package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/phasecube/internal/lattice"
	"github.com/san-kum/phasecube/internal/phase"
	"github.com/san-kum/phasecube/internal/swarm"
)

// SensitivityResult holds the per-tick mean liquid separation between two
// swarms and its fitted exponential growth rate per tick.
type SensitivityResult struct {
	Separation []float64 `json:"separation"`
	Rate       float64   `json:"rate"`
}

// Sensitivity runs two swarms from the same seed, shifts one liquid cell of
// the copy's core grid by eps, and tracks how far the liquid phases drift
// apart. A positive rate means small differences grow.
//
// The rate is the slope of ln(separation) over ticks, fitted until the
// separation first reaches saturate (or across the whole run).
func Sensitivity(cfg swarm.Config, seed int64, eps float64, ticks int, saturate float64) (SensitivityResult, error) {
	if eps <= 0 || math.IsNaN(eps) {
		return SensitivityResult{}, lattice.Invalid("eps", eps, "must be positive")
	}
	ref, err := swarm.New(cfg, lattice.NewSource(seed))
	if err != nil {
		return SensitivityResult{}, err
	}
	alt, err := swarm.New(cfg, lattice.NewSource(seed))
	if err != nil {
		return SensitivityResult{}, err
	}
	if err := nudge(alt.Grid(swarm.RoleCore), eps); err != nil {
		return SensitivityResult{}, fmt.Errorf("perturb: %w", err)
	}

	res := SensitivityResult{Separation: make([]float64, 0, ticks)}
	var xs, ys []float64
	fitting := true
	for t := 0; t < ticks; t++ {
		ref.Step()
		alt.Step()

		sep := separation(ref, alt)
		res.Separation = append(res.Separation, sep)
		if !fitting {
			continue
		}
		if sep > 0 {
			xs = append(xs, float64(t))
			ys = append(ys, math.Log(sep))
		}
		if saturate > 0 && sep >= saturate {
			fitting = false
		}
	}

	if len(xs) >= 2 {
		_, res.Rate = stat.LinearRegression(xs, ys, nil, false)
	}
	return res, nil
}

func nudge(g *phase.Grid, eps float64) error {
	liquid := g.Liquid().Clone()
	if liquid[0]+eps <= 1 {
		liquid[0] += eps
	} else {
		liquid[0] -= eps
	}
	parity := make([]uint8, g.Cells())
	for i := range parity {
		if g.Parity(i) {
			parity[i] = 1
		}
	}
	return g.Load(g.Plasma().Clone(), liquid, g.Solid().Clone(), parity)
}

func separation(a, b *swarm.Swarm) float64 {
	total, n := 0.0, 0
	for _, r := range a.Roles() {
		la, lb := a.Grid(r).Liquid(), b.Grid(r).Liquid()
		for i := 0; i < la.Len(); i++ {
			total += math.Abs(la.At(i) - lb.At(i))
		}
		n += la.Len()
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
