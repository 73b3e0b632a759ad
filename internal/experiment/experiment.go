package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/phasecube/internal/config"
	"github.com/san-kum/phasecube/internal/drive"
	"github.com/san-kum/phasecube/internal/lattice"
	"github.com/san-kum/phasecube/internal/metrics"
	"github.com/san-kum/phasecube/internal/swarm"
)

// driveSeedOffset keeps the driver stream apart from the swarm stream.
const driveSeedOffset = 7919

type Experiment struct {
	cfg       *config.Config
	swarm     *swarm.Swarm
	driver    drive.Driver
	metrics   []metrics.Metric
	observers []Observer
}

// New validates cfg and builds the swarm and drivers from cfg.Seed.
func New(cfg *config.Config) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sw, err := swarm.New(cfg.Swarm, lattice.NewSource(cfg.Seed))
	if err != nil {
		return nil, err
	}
	d, err := cfg.Drive.Build(lattice.NewSource(cfg.Seed + driveSeedOffset))
	if err != nil {
		return nil, err
	}
	return &Experiment{cfg: cfg, swarm: sw, driver: d}, nil
}

func (e *Experiment) AddMetric(m metrics.Metric) { e.metrics = append(e.metrics, m) }
func (e *Experiment) AddObserver(o Observer)     { e.observers = append(e.observers, o) }

// AddDriver runs d after the configured drivers each tick.
func (e *Experiment) AddDriver(d drive.Driver) {
	e.driver = drive.Chain{e.driver, d}
}

func (e *Experiment) Config() *config.Config { return e.cfg }

// Swarm returns the underlying swarm for live inspection.
func (e *Experiment) Swarm() *swarm.Swarm { return e.swarm }

// Step drives and advances the swarm once, feeding metrics and observers.
func (e *Experiment) Step() swarm.Report {
	e.driver.Drive(e.swarm.Tick(), e.swarm)
	rep := e.swarm.Step()
	for _, m := range e.metrics {
		m.Observe(rep)
	}
	for _, o := range e.observers {
		o.OnTick(rep)
	}
	return rep
}

// Run advances cfg.Ticks ticks, keeping every SampleEvery-th report. It
// stops early with a SimError when ValidateState is set and the state goes
// non-finite, and returns ctx.Err() with the partial result on cancellation.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		Seed:    e.cfg.Seed,
		Reports: make([]swarm.Report, 0, e.cfg.Ticks/e.cfg.SampleEvery+1),
		Metrics: make(map[string]float64),
	}
	for _, m := range e.metrics {
		m.Reset()
	}

	for i := 0; i < e.cfg.Ticks; i++ {
		select {
		case <-ctx.Done():
			e.summarize(result)
			return result, ctx.Err()
		default:
		}

		rep := e.Step()
		result.Ticks++
		if i%e.cfg.SampleEvery == 0 || i == e.cfg.Ticks-1 {
			result.Reports = append(result.Reports, rep)
		}

		if e.cfg.ValidateState {
			if err := e.swarm.Validate(); err != nil {
				result.Errors = append(result.Errors, SimError{Tick: rep.Tick, Message: "invalid state (NaN/Inf)", Err: err})
				break
			}
		}
	}

	e.summarize(result)
	return result, nil
}

func (e *Experiment) summarize(result *Result) {
	for name, v := range metrics.Summarize(e.metrics) {
		result.Metrics[name] = v
	}
}

// RunWithCallback steps until the callback returns false, ctx ends or the
// configured tick count is reached. A zero tick budget runs unbounded.
func (e *Experiment) RunWithCallback(ctx context.Context, ticks int, callback func(swarm.Report) bool) error {
	for i := 0; ticks <= 0 || i < ticks; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rep := e.Step()
		if !callback(rep) {
			return nil
		}
		if e.cfg.ValidateState {
			if err := e.swarm.Validate(); err != nil {
				return fmt.Errorf("invalid state at tick %d: %w", rep.Tick, err)
			}
		}
	}
	return nil
}
