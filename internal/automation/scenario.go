package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/phasecube/internal/bias"
	"github.com/san-kum/phasecube/internal/config"
	"github.com/san-kum/phasecube/internal/experiment"
	"github.com/san-kum/phasecube/internal/lattice"
	"github.com/san-kum/phasecube/internal/lens"
	"github.com/san-kum/phasecube/internal/metrics"
	"github.com/san-kum/phasecube/internal/swarm"
)

// Scenario is a scripted run: a base config plus events applied at fixed
// ticks before the swarm steps.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Preset      string         `yaml:"preset"`
	Seed        int64          `yaml:"seed"`
	Ticks       int            `yaml:"ticks"`
	Set         map[string]any `yaml:"set"`
	Events      []Event        `yaml:"events"`
	SaveAs      string         `yaml:"save_as"`
}

// Event changes the running swarm. Set keys are config paths; only the
// swarm.phase, swarm.bias and swarm.lens sections can change live.
type Event struct {
	At      int                `yaml:"at"`
	Note    string             `yaml:"note"`
	Inject  []bias.Pulse       `yaml:"inject"`
	Weights map[string]float64 `yaml:"weights"`
	Set     map[string]any     `yaml:"set"`
	Reset   bool               `yaml:"reset"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Config resolves the scenario's base configuration.
func (sc *Scenario) Config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if sc.Preset != "" {
		if cfg = config.GetPreset(sc.Preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", sc.Preset)
		}
	}
	if sc.Seed != 0 {
		cfg.Seed = sc.Seed
	}
	if sc.Ticks > 0 {
		cfg.Ticks = sc.Ticks
	}
	if err := applySet(cfg, sc.Set); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for i, ev := range sc.Events {
		if ev.At < 0 || ev.At >= cfg.Ticks {
			return nil, lattice.Invalid(fmt.Sprintf("events[%d].at", i), ev.At, fmt.Sprintf("must be within [0,%d)", cfg.Ticks))
		}
	}
	return cfg, nil
}

func applySet(cfg *config.Config, set map[string]any) error {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := cfg.Set(k, set[k]); err != nil {
			return err
		}
	}
	return nil
}

// Runner executes scenarios.
type Runner struct {
	Logger    *slog.Logger
	Metrics   func() []metrics.Metric
	Observers []experiment.Observer
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Runner) Run(ctx context.Context, sc *Scenario) (*config.Config, *experiment.Result, error) {
	cfg, err := sc.Config()
	if err != nil {
		return nil, nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	exp, err := experiment.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	mfn := r.Metrics
	if mfn == nil {
		mfn = metrics.Defaults
	}
	ms := mfn()
	for _, m := range ms {
		exp.AddMetric(m)
	}
	for _, o := range r.Observers {
		exp.AddObserver(o)
	}

	events := make([]Event, len(sc.Events))
	copy(events, sc.Events)
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })

	// live holds the mutable sections events write into.
	live, err := cfg.Clone()
	if err != nil {
		return nil, nil, err
	}

	result := &experiment.Result{Seed: cfg.Seed, Metrics: make(map[string]float64)}
	next := 0
	for tick := 0; tick < cfg.Ticks; tick++ {
		if err := ctx.Err(); err != nil {
			result.Metrics = metrics.Summarize(ms)
			return cfg, result, err
		}
		for next < len(events) && events[next].At == tick {
			if err := r.apply(exp.Swarm(), live, events[next]); err != nil {
				return cfg, result, fmt.Errorf("event at tick %d: %w", tick, err)
			}
			next++
		}

		rep := exp.Step()
		result.Ticks++
		if tick%cfg.SampleEvery == 0 || tick == cfg.Ticks-1 {
			result.Reports = append(result.Reports, rep)
		}
		if cfg.ValidateState {
			if err := exp.Swarm().Validate(); err != nil {
				result.Errors = append(result.Errors, experiment.SimError{Tick: rep.Tick, Message: "invalid state (NaN/Inf)", Err: err})
				break
			}
		}
	}
	result.Metrics = metrics.Summarize(ms)
	return cfg, result, nil
}

var liveSections = []string{"swarm.phase", "swarm.bias", "swarm.lens"}

func isLivePath(path string) bool {
	for _, sec := range liveSections {
		if path == sec || strings.HasPrefix(path, sec+".") {
			return true
		}
	}
	return false
}

func (r *Runner) apply(s *swarm.Swarm, live *config.Config, ev Event) error {
	log := r.logger().With("tick", ev.At)
	if ev.Note != "" {
		log.Info("scenario event", "note", ev.Note)
	}
	if ev.Reset {
		s.Reset()
		log.Debug("reset bias and history")
	}
	if len(ev.Set) > 0 {
		weighted := false
		for k := range ev.Set {
			if !isLivePath(k) {
				return lattice.Invalid(k, ev.Set[k], "only swarm.phase, swarm.bias and swarm.lens can change live")
			}
			weighted = weighted || strings.HasPrefix(k, "swarm.lens.weights")
		}
		if err := applySet(live, ev.Set); err != nil {
			return err
		}
		if err := s.SetPhaseParams(live.Swarm.Phase); err != nil {
			return err
		}
		if err := s.SetBiasParams(live.Swarm.Bias); err != nil {
			return err
		}
		if err := s.SetLensParams(live.Swarm.Lens); err != nil {
			return err
		}
		if weighted {
			s.SetWeights(lens.FromMap(live.Swarm.Lens.Weights))
		}
		log.Debug("updated live parameters", "keys", len(ev.Set))
	}
	if len(ev.Weights) > 0 {
		w := lens.FromMap(ev.Weights)
		s.SetWeights(w)
		log.Debug("lens weights", "weights", w.Normalize())
	}
	for _, p := range ev.Inject {
		s.Inject(p)
	}
	return nil
}
