package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/phasecube/internal/swarm"
)

func sine(n int, period float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 + 0.3*math.Sin(2*math.Pi*float64(i)/period)
	}
	return out
}

func TestDominantPeriod(t *testing.T) {
	tests := []struct {
		name   string
		data   []float64
		period float64
	}{
		{"period 16", sine(64, 16), 16},
		{"period 8", sine(64, 8), 8},
		{"odd length", sine(60, 12), 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			period, share := DominantPeriod(tt.data)
			if math.Abs(period-tt.period) > 1e-9 {
				t.Errorf("period = %v, want %v", period, tt.period)
			}
			if share < 0.9 {
				t.Errorf("pure sine should dominate the spectrum, share = %v", share)
			}
		})
	}
}

func TestDominantPeriod_Flat(t *testing.T) {
	flat := make([]float64, 32)
	for i := range flat {
		flat[i] = 0.4
	}
	if p, s := DominantPeriod(flat); p != 0 || s != 0 {
		t.Errorf("flat trace gave period %v share %v", p, s)
	}
	if PowerSpectrum([]float64{1}) != nil {
		t.Error("single sample should have no spectrum")
	}
}

func TestAutocorrelation(t *testing.T) {
	data := sine(64, 16)
	if r := Autocorrelation(data, 16); r < 0.99 {
		t.Errorf("full-period lag correlation = %v", r)
	}
	if r := Autocorrelation(data, 8); r > -0.99 {
		t.Errorf("half-period lag correlation = %v", r)
	}
	if r := Autocorrelation(data, 100); r != 0 {
		t.Errorf("out of range lag = %v", r)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4})
	if s.Mean != 2.5 || s.Min != 1 || s.Max != 4 {
		t.Errorf("unexpected summary %+v", s)
	}
	if Summarize(nil) != (Summary{}) {
		t.Error("empty summary should be zero")
	}
	if Summarize([]float64{3}).StdDev != 0 {
		t.Error("single sample has no spread")
	}
}

func smallSwarm() swarm.Config {
	cfg := swarm.DefaultConfig()
	cfg.Size = 4
	return cfg
}

func TestSensitivity(t *testing.T) {
	res, err := Sensitivity(smallSwarm(), 3, 1e-3, 30, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Separation) != 30 {
		t.Fatalf("got %d samples", len(res.Separation))
	}
	for i, s := range res.Separation {
		if math.IsNaN(s) || s < 0 || s > 1 {
			t.Fatalf("separation %d out of range: %v", i, s)
		}
	}
	if math.IsNaN(res.Rate) || math.IsInf(res.Rate, 0) {
		t.Errorf("rate not finite: %v", res.Rate)
	}

	if _, err := Sensitivity(smallSwarm(), 3, 0, 10, 0); err == nil {
		t.Error("expected error for zero eps")
	}
}

func TestScan(t *testing.T) {
	pts, err := Scan(context.Background(), ScanOptions{
		Base:      smallSwarm(),
		Seed:      1,
		Set:       func(c *swarm.Config, v float64) { c.Phase.Alpha = v },
		Min:       0.1,
		Max:       0.3,
		Steps:     3,
		Transient: 5,
		Record:    4,
		Observe:   func(r swarm.Report) float64 { return r.Raw.Energy },
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 3 {
		t.Fatalf("got %d points", len(pts))
	}
	if pts[0].Param != 0.1 || math.Abs(pts[2].Param-0.3) > 1e-12 {
		t.Errorf("params = %v, %v", pts[0].Param, pts[2].Param)
	}
	for _, p := range pts {
		if len(p.Values) != 4 {
			t.Errorf("param %v recorded %d values", p.Param, len(p.Values))
		}
		if p.Summary.Min > p.Summary.Mean || p.Summary.Mean > p.Summary.Max {
			t.Errorf("summary out of order: %+v", p.Summary)
		}
	}

	_, err = Scan(context.Background(), ScanOptions{
		Base:    smallSwarm(),
		Set:     func(c *swarm.Config, v float64) { c.MetricSmoothing = v },
		Min:     -1,
		Max:     0,
		Steps:   2,
		Observe: func(r swarm.Report) float64 { return 0 },
	})
	if err == nil {
		t.Error("expected invalid smoothing to be rejected")
	}
}
