package experiment

import (
	"fmt"

	"github.com/san-kum/phasecube/internal/swarm"
)

// Observer sees every tick report in order.
type Observer interface {
	OnTick(r swarm.Report)
}

type ObserverFunc func(r swarm.Report)

func (f ObserverFunc) OnTick(r swarm.Report) { f(r) }

// SimError records a tick at which validation failed.
type SimError struct {
	Tick    int
	Message string
	Err     error
}

func (e SimError) Error() string {
	return fmt.Sprintf("tick %d: %s", e.Tick, e.Message)
}

func (e SimError) Unwrap() error { return e.Err }

type Result struct {
	Seed    int64              `json:"seed"`
	Ticks   int                `json:"ticks"`
	Reports []swarm.Report     `json:"-"`
	Metrics map[string]float64 `json:"metrics"`
	Errors  []error            `json:"-"`
}

// Final returns the last recorded report.
func (r *Result) Final() (swarm.Report, bool) {
	if len(r.Reports) == 0 {
		return swarm.Report{}, false
	}
	return r.Reports[len(r.Reports)-1], true
}

// Trace extracts one series from the recorded reports.
func (r *Result) Trace(f func(swarm.Report) float64) []float64 {
	out := make([]float64, len(r.Reports))
	for i, rep := range r.Reports {
		out[i] = f(rep)
	}
	return out
}
