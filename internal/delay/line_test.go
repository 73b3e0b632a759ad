package delay

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/phasecube/internal/lattice"
)

func newLine(t *testing.T, length int, mutate func(*Params)) *Line {
	t.Helper()
	p := DefaultParams()
	if mutate != nil {
		mutate(&p)
	}
	l, err := New(length, p)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return l
}

func TestCompose_Empty(t *testing.T) {
	l := newLine(t, 5, nil)
	out := l.Compose()
	if out == nil {
		t.Fatal("empty compose returned nil")
	}
	if len(out) != 5 {
		t.Fatalf("expected length 5, got %d", len(out))
	}
	for i, v := range out {
		if v != 0 {
			t.Errorf("out[%d] = %f, want 0", i, v)
		}
	}
}

func TestCompose_Recombination(t *testing.T) {
	l := newLine(t, 2, func(p *Params) {
		p.Capacity = 3
		p.Decay = 0.5
	})
	l.Push(lattice.Field{1, 1}.View())
	l.Push(lattice.Field{0.5, 0.5}.View())

	out := l.Compose()
	want := 1 + 0.5*0.5
	if math.Abs(out[0]-want) > 1e-12 {
		t.Errorf("compose[0] = %f, want %f", out[0], want)
	}
}

func TestCompose_NewestFirst(t *testing.T) {
	l := newLine(t, 2, func(p *Params) {
		p.Capacity = 3
		p.Decay = 0.5
		p.Weighting = NewestFirst
	})
	l.Push(lattice.Field{1, 1}.View())
	l.Push(lattice.Field{0.5, 0.5}.View())

	out := l.Compose()
	want := 0.5 + 1*0.5
	if math.Abs(out[1]-want) > 1e-12 {
		t.Errorf("compose[1] = %f, want %f", out[1], want)
	}
}

func TestCompose_Normalized(t *testing.T) {
	l := newLine(t, 1, func(p *Params) {
		p.Capacity = 2
		p.Decay = 0.5
		p.Normalize = true
	})
	l.Push(lattice.Field{2}.View())
	l.Push(lattice.Field{2}.View())

	if got := l.Compose()[0]; math.Abs(got-2) > 1e-12 {
		t.Errorf("normalized compose of constant = %f, want 2", got)
	}
}

func TestPush_EvictsOldest(t *testing.T) {
	l := newLine(t, 1, func(p *Params) {
		p.Capacity = 2
		p.Decay = 0.5
	})
	l.Push(lattice.Field{100}.View())
	l.Push(lattice.Field{1}.View())
	l.Push(lattice.Field{2}.View())

	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
	// oldest surviving is 1 (weight 1), newest is 2 (weight 0.5)
	if got := l.Compose()[0]; math.Abs(got-2) > 1e-12 {
		t.Errorf("compose = %f, want 2", got)
	}
}

func TestPush_CopiesSnapshot(t *testing.T) {
	l := newLine(t, 2, nil)
	src := lattice.Field{1, 2}
	l.Push(src.View())
	src[0] = 50

	if got := l.Compose()[0]; got != 1 {
		t.Errorf("snapshot aliased source: got %f", got)
	}
}

func TestPush_LengthMismatch(t *testing.T) {
	l := newLine(t, 3, func(p *Params) { p.Capacity = 1 })
	l.Push(lattice.Field{1, 1, 1}.View())
	l.Push(lattice.Field{4}.View())
	out := l.Compose()
	if out[0] != 4 || out[1] != 0 || out[2] != 0 {
		t.Errorf("short push not zero-padded: %v", out)
	}
	l.Push(lattice.Field{1, 2, 3, 4, 5}.View())
	if out := l.Compose(); len(out) != 3 || out[2] != 3 {
		t.Errorf("long push not truncated: %v", out)
	}
}

func TestReset(t *testing.T) {
	l := newLine(t, 2, nil)
	l.Push(lattice.Field{1, 1}.View())
	l.Reset()
	if l.Len() != 0 {
		t.Error("Reset did not empty the line")
	}
	if l.Compose()[0] != 0 {
		t.Error("Reset left residual values")
	}
}

func TestWeights(t *testing.T) {
	l := newLine(t, 1, func(p *Params) { p.Decay = 0.5 })
	for i := 0; i < 3; i++ {
		l.Push(lattice.Field{0}.View())
	}
	w := l.Weights()
	want := []float64{1, 0.5, 0.25}
	for i := range want {
		if w[i] != want[i] {
			t.Errorf("w[%d] = %f, want %f", i, w[i], want[i])
		}
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		length int
		mutate func(*Params)
	}{
		{"zero capacity", 4, func(p *Params) { p.Capacity = 0 }},
		{"decay one", 4, func(p *Params) { p.Decay = 1 }},
		{"negative decay", 4, func(p *Params) { p.Decay = -0.1 }},
		{"zero length", 0, nil},
		{"bad weighting", 4, func(p *Params) { p.Weighting = "middle" }},
		{"bad source", 4, func(p *Params) { p.Source = "echo" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			if _, err := New(tt.length, p); !errors.Is(err, lattice.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
