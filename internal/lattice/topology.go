package lattice

import "fmt"

// Degree is the fixed number of edges per cell.
const Degree = 6

// Coord is an integer lattice position. Components may lie outside [0,N);
// they are wrapped on use.
type Coord struct {
	X, Y, Z int
}

// Topology is an N×N×N torus with a cached neighbour arena.
type Topology struct {
	size    int
	cells   int
	edges   []int
	rewired int
}

func NewTopology(size int) (*Topology, error) {
	if size <= 0 {
		return nil, Invalid("size", size, "must be positive")
	}
	n := size * size * size
	t := &Topology{
		size:  size,
		cells: n,
		edges: make([]int, n*Degree),
	}
	t.Reset()
	return t, nil
}

// Wrap folds coord into [0,size).
func Wrap(coord, size int) int {
	m := coord % size
	if m < 0 {
		m += size
	}
	return m
}

func (t *Topology) Size() int  { return t.size }
func (t *Topology) Cells() int { return t.cells }

// Rewired returns how many edges have been reassigned since the last Reset.
func (t *Topology) Rewired() int { return t.rewired }

func (t *Topology) Index(x, y, z int) int {
	n := t.size
	return Wrap(x, n) + Wrap(y, n)*n + Wrap(z, n)*n*n
}

func (t *Topology) IndexOf(c Coord) int {
	return t.Index(c.X, c.Y, c.Z)
}

func (t *Topology) Coord(i int) Coord {
	n := t.size
	return Coord{X: i % n, Y: (i / n) % n, Z: i / (n * n)}
}

// Center returns the middle cell coordinate.
func (t *Topology) Center() Coord {
	h := t.size / 2
	return Coord{X: h, Y: h, Z: h}
}

// Reset restores pure axis-aligned toroidal edges.
func (t *Topology) Reset() {
	n := t.size
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				base := t.Index(x, y, z) * Degree
				t.edges[base+0] = t.Index(x+1, y, z)
				t.edges[base+1] = t.Index(x-1, y, z)
				t.edges[base+2] = t.Index(x, y+1, z)
				t.edges[base+3] = t.Index(x, y-1, z)
				t.edges[base+4] = t.Index(x, y, z+1)
				t.edges[base+5] = t.Index(x, y, z-1)
			}
		}
	}
	t.rewired = 0
}

// Neighbors6 returns a copy of the cell's six edges.
func (t *Topology) Neighbors6(i int) [Degree]int {
	var out [Degree]int
	copy(out[:], t.edges[i*Degree:(i+1)*Degree])
	return out
}

// NeighborMean averages f over the cell's edges.
func (t *Topology) NeighborMean(f Field, i int) float64 {
	base := i * Degree
	sum := 0.0
	for _, j := range t.edges[base : base+Degree] {
		sum += f[j]
	}
	return sum / Degree
}

// Rewire replaces one edge with an arbitrary target. Degree is preserved;
// self-loops and duplicate edges are accepted.
func (t *Topology) Rewire(cell, slot, target int) error {
	if cell < 0 || cell >= t.cells {
		return fmt.Errorf("rewire cell %d: %w", cell, ErrOutOfRange)
	}
	if slot < 0 || slot >= Degree {
		return fmt.Errorf("rewire slot %d: %w", slot, ErrOutOfRange)
	}
	if target < 0 || target >= t.cells {
		return fmt.Errorf("rewire target %d: %w", target, ErrOutOfRange)
	}
	t.edges[cell*Degree+slot] = target
	t.rewired++
	return nil
}

// SliceZ copies the x-y plane at depth z (wrapped) of f, row-major in y.
func (t *Topology) SliceZ(f View, z int) []float64 {
	n := t.size
	out := make([]float64, n*n)
	if f.Len() < t.cells {
		return out
	}
	base := Wrap(z, n) * n * n
	for i := range out {
		out[i] = f.At(base + i)
	}
	return out
}
