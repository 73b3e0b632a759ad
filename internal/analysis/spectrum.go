package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PowerSpectrum returns the magnitude of each non-negative frequency bin of
// data with its mean removed. Bin k has period len(data)/k ticks.
func PowerSpectrum(data []float64) []float64 {
	n := len(data)
	if n < 2 {
		return nil
	}
	centered := make([]float64, n)
	copy(centered, data)
	floats.AddConst(-stat.Mean(data, nil), centered)

	spectrum := fft.FFTReal(centered)

	ps := make([]float64, n/2+1)
	for i := range ps {
		ps[i] = cmplx.Abs(spectrum[i])
	}
	return ps
}

// DominantPeriod returns the period in ticks of the strongest oscillation in
// data and that bin's share of the total spectral power. A flat trace yields
// (0, 0).
func DominantPeriod(data []float64) (float64, float64) {
	ps := PowerSpectrum(data)
	if len(ps) < 2 {
		return 0, 0
	}
	total := floats.Sum(ps[1:])
	if total == 0 || math.IsNaN(total) {
		return 0, 0
	}
	k := floats.MaxIdx(ps[1:]) + 1
	return float64(len(data)) / float64(k), ps[k] / total
}

// Autocorrelation returns the Pearson correlation between data and itself
// shifted by lag ticks.
func Autocorrelation(data []float64, lag int) float64 {
	if lag < 0 || lag >= len(data)-1 {
		return 0
	}
	a, b := data[:len(data)-lag], data[lag:]
	if stat.Variance(a, nil) == 0 || stat.Variance(b, nil) == 0 {
		return 0
	}
	return stat.Correlation(a, b, nil)
}

// Summary is the spread of one trace.
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func Summarize(data []float64) Summary {
	if len(data) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(data, nil)
	if len(data) == 1 {
		std = 0
	}
	return Summary{Mean: mean, StdDev: std, Min: floats.Min(data), Max: floats.Max(data)}
}
