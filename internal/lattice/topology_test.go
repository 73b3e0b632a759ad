package lattice

import (
	"errors"
	"math"
	"testing"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		coord, size, want int
	}{
		{0, 4, 0},
		{3, 4, 3},
		{4, 4, 0},
		{-1, 4, 3},
		{-5, 4, 3},
		{9, 4, 1},
		{-8, 4, 0},
	}

	for _, tt := range tests {
		if got := Wrap(tt.coord, tt.size); got != tt.want {
			t.Errorf("Wrap(%d, %d) = %d, want %d", tt.coord, tt.size, got, tt.want)
		}
	}
}

func TestNewTopology_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -3} {
		_, err := NewTopology(size)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("size %d: expected ErrInvalidConfig, got %v", size, err)
		}
	}
}

func TestNeighbors6_Toroidal(t *testing.T) {
	topo, err := NewTopology(4)
	if err != nil {
		t.Fatal(err)
	}

	got := topo.Neighbors6(topo.Index(0, 0, 0))
	want := [Degree]int{
		topo.Index(1, 0, 0),
		topo.Index(3, 0, 0),
		topo.Index(0, 1, 0),
		topo.Index(0, 3, 0),
		topo.Index(0, 0, 1),
		topo.Index(0, 0, 3),
	}
	if got != want {
		t.Errorf("Neighbors6(origin) = %v, want %v", got, want)
	}
}

func TestNeighbors6_Symmetric(t *testing.T) {
	topo, _ := NewTopology(5)
	for i := 0; i < topo.Cells(); i++ {
		for _, j := range topo.Neighbors6(i) {
			found := false
			for _, k := range topo.Neighbors6(j) {
				if k == i {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("edge %d->%d has no reverse edge", i, j)
			}
		}
	}
}

func TestIndexCoordRoundTrip(t *testing.T) {
	topo, _ := NewTopology(3)
	for i := 0; i < topo.Cells(); i++ {
		if got := topo.IndexOf(topo.Coord(i)); got != i {
			t.Errorf("IndexOf(Coord(%d)) = %d", i, got)
		}
	}
}

func TestRewire(t *testing.T) {
	topo, _ := NewTopology(4)

	if err := topo.Rewire(5, 2, 40); err != nil {
		t.Fatalf("rewire failed: %v", err)
	}
	if got := topo.Neighbors6(5)[2]; got != 40 {
		t.Errorf("slot 2 = %d, want 40", got)
	}
	if topo.Rewired() != 1 {
		t.Errorf("Rewired() = %d, want 1", topo.Rewired())
	}

	// Self-loops are accepted; degree stays fixed.
	if err := topo.Rewire(5, 0, 5); err != nil {
		t.Fatalf("self-loop rejected: %v", err)
	}
	if len(topo.Neighbors6(5)) != Degree {
		t.Error("degree changed after rewire")
	}

	topo.Reset()
	if topo.Rewired() != 0 {
		t.Error("Reset did not clear rewire count")
	}
	if got := topo.Neighbors6(5)[2]; got != topo.Index(1, 2, 0) {
		t.Errorf("Reset did not restore edge, got %d", got)
	}
}

func TestRewire_OutOfRange(t *testing.T) {
	topo, _ := NewTopology(2)

	tests := []struct {
		name               string
		cell, slot, target int
	}{
		{"negative cell", -1, 0, 0},
		{"cell too large", 8, 0, 0},
		{"slot too large", 0, 6, 0},
		{"target too large", 0, 0, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := topo.Rewire(tt.cell, tt.slot, tt.target); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("expected ErrOutOfRange, got %v", err)
			}
		})
	}
}

func TestNeighborMean(t *testing.T) {
	topo, _ := NewTopology(3)
	f := NewField(topo.Cells())
	for _, j := range topo.Neighbors6(0) {
		f[j] = 1
	}
	if got := topo.NeighborMean(f, 0); math.Abs(got-1) > 1e-12 {
		t.Errorf("NeighborMean = %f, want 1", got)
	}
}

func TestSliceZ(t *testing.T) {
	topo, err := NewTopology(3)
	if err != nil {
		t.Fatal(err)
	}
	f := NewField(topo.Cells())
	for i := range f {
		f[i] = float64(i)
	}
	s := topo.SliceZ(f.View(), 4)
	if len(s) != 9 {
		t.Fatalf("slice has %d cells", len(s))
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			if want := float64(topo.Index(x, y, 1)); s[y*3+x] != want {
				t.Errorf("(%d,%d) = %v, want %v", x, y, s[y*3+x], want)
			}
		}
	}
	if s := topo.SliceZ(View{}, 0); s[0] != 0 {
		t.Error("short view should read as zero")
	}
}
