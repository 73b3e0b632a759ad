package lattice

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Field holds one scalar per lattice cell.
type Field []float64

func NewField(n int) Field {
	return make(Field, n)
}

func (f Field) Clone() Field {
	c := make(Field, len(f))
	copy(c, f)
	return c
}

// IsValid reports whether every value is finite.
func (f Field) IsValid() bool {
	return f.firstNonFinite() < 0
}

func (f Field) firstNonFinite() int {
	for i, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}

// Check returns a *FieldError naming the first non-finite cell.
func (f Field) Check(name string) error {
	if i := f.firstNonFinite(); i >= 0 {
		return &FieldError{Buffer: name, Cell: i, Value: f[i]}
	}
	return nil
}

func (f Field) Zero() {
	for i := range f {
		f[i] = 0
	}
}

// AddScaled accumulates alpha·src into f. Shorter sources touch a prefix.
func (f Field) AddScaled(alpha float64, src Field) {
	n := len(f)
	if len(src) < n {
		n = len(src)
	}
	floats.AddScaled(f[:n], alpha, src[:n])
}

// L1 returns Σ|v|.
func (f Field) L1() float64 {
	if len(f) == 0 {
		return 0
	}
	return floats.Norm(f, 1)
}

func (f Field) Mean() float64 {
	if len(f) == 0 {
		return 0
	}
	return floats.Sum(f) / float64(len(f))
}

// MeanVariance returns the mean and population variance.
func (f Field) MeanVariance() (mean, variance float64) {
	if len(f) == 0 {
		return 0, 0
	}
	return stat.PopMeanVariance(f, nil)
}

// View is a read-only window onto a Field.
type View struct {
	f Field
}

func (f Field) View() View {
	return View{f: f}
}

func (v View) Len() int { return len(v.f) }

func (v View) At(i int) float64 { return v.f[i] }

// CopyTo copies the viewed values into dst and returns the count copied.
func (v View) CopyTo(dst Field) int {
	return copy(dst, v.f)
}

// Clone returns an owned copy of the viewed values.
func (v View) Clone() Field {
	return v.f.Clone()
}

func (v View) IsZero() bool { return v.f == nil }

func (v View) L1() float64 { return v.f.L1() }

func (v View) Mean() float64 { return v.f.Mean() }

func (v View) MeanVariance() (float64, float64) { return v.f.MeanVariance() }

// Clamp limits v to [lo,hi]; NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Wrap01 folds v into [0,1); non-finite values map to 0.
func Wrap01(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	w := math.Mod(v, 1)
	if w < 0 {
		w++
	}
	if w >= 1 {
		w = 0
	}
	return w
}

// Finite returns v, or fallback when v is NaN or Inf.
func Finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
