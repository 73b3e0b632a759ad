package lattice

import "math/rand"

// Source is the random source threaded through every stochastic call.
// *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// NewSource returns a seeded source owned by one simulation instance.
func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Bernoulli draws one sample with success probability p.
func Bernoulli(rng Source, p float64) bool {
	return rng.Float64() < p
}

// Signed returns a uniform draw in [-mag, mag).
func Signed(rng Source, mag float64) float64 {
	return (rng.Float64()*2 - 1) * mag
}
