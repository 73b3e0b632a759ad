package swarm

import (
	"fmt"
	"math"
	"reflect"

	"github.com/san-kum/phasecube/internal/bias"
	"github.com/san-kum/phasecube/internal/delay"
	"github.com/san-kum/phasecube/internal/lattice"
	"github.com/san-kum/phasecube/internal/lens"
	"github.com/san-kum/phasecube/internal/phase"
)

// Metrics aggregates grid metrics across the swarm.
type Metrics struct {
	lens.Metrics `yaml:",inline"`
	Divergence   float64 `yaml:"divergence" json:"divergence"`
}

type GridReport struct {
	Role Role `json:"role"`
	phase.Report
}

// Report is everything observable about one tick.
type Report struct {
	Tick       int          `json:"tick"`
	Weights    lens.Weights `json:"weights"`
	Bundle     lens.Bundle  `json:"bundle"`
	Raw        Metrics      `json:"raw"`
	Smoothed   Metrics      `json:"smoothed"`
	Feedback   Metrics      `json:"feedback"`
	Grids      []GridReport `json:"grids"`
	BiasEnergy float64      `json:"bias_energy"`
	EchoEnergy float64      `json:"echo_energy"`
	Kicked     int          `json:"kicked"`
	Pulses     int          `json:"pulses"`
}

type queuedField struct {
	f    lattice.Field
	gain float64
}

type member struct {
	role  Role
	grid  *phase.Grid
	k     Coupling
	cross lattice.Field
}

// Swarm steps two or three coupled grids against one shared bias field and
// delay line under a single lens controller. It is not safe for concurrent
// use; callers serialize access.
type Swarm struct {
	cfg  Config
	rng  lattice.Source
	bias *bias.Field
	line *delay.Line
	ctl  *lens.Controller

	sched        *lens.Scheduler
	manualLenses bool

	members []*member
	echo    lattice.Field
	scratch lattice.Field

	pulses []bias.Pulse
	fields []queuedField

	ema     Metrics
	history []Metrics
	tick    int
}

func New(cfg Config, rng lattice.Source) (*Swarm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, lattice.Invalid("swarm.rng", nil, "random source is required")
	}
	bf, err := bias.New(cfg.Size, cfg.Bias)
	if err != nil {
		return nil, fmt.Errorf("bias field: %w", err)
	}
	n := bf.Len()
	line, err := delay.New(n, cfg.Delay)
	if err != nil {
		return nil, fmt.Errorf("delay line: %w", err)
	}
	ctl, err := lens.NewController(cfg.Lens)
	if err != nil {
		return nil, fmt.Errorf("lens: %w", err)
	}
	s := &Swarm{
		cfg:     cfg,
		rng:     rng,
		bias:    bf,
		line:    line,
		ctl:     ctl,
		echo:    lattice.NewField(n),
		scratch: lattice.NewField(n),
		ema:     cfg.Prior,
	}
	if cfg.Lens.Schedule != nil {
		if s.sched, err = lens.NewScheduler(*cfg.Lens.Schedule); err != nil {
			return nil, fmt.Errorf("lens schedule: %w", err)
		}
	}
	for _, r := range cfg.Roles() {
		g, err := phase.New(cfg.Size, cfg.Phase, rng)
		if err != nil {
			return nil, fmt.Errorf("%s grid: %w", r, err)
		}
		s.members = append(s.members, &member{
			role:  r,
			grid:  g,
			k:     cfg.Couplings.For(r),
			cross: lattice.NewField(n),
		})
	}
	return s, nil
}

func (s *Swarm) Config() Config { return s.cfg }
func (s *Swarm) Tick() int      { return s.tick }
func (s *Swarm) Size() int      { return s.cfg.Size }

func (s *Swarm) Roles() []Role {
	out := make([]Role, len(s.members))
	for i, m := range s.members {
		out[i] = m.role
	}
	return out
}

// Grid returns the grid with the given role, or nil.
func (s *Swarm) Grid(r Role) *phase.Grid {
	for _, m := range s.members {
		if m.role == r {
			return m.grid
		}
	}
	return nil
}

func (s *Swarm) Bias() lattice.View { return s.bias.View() }
func (s *Swarm) Echo() lattice.View { return s.echo.View() }

func (s *Swarm) Weights() lens.Weights { return s.ctl.Weights() }

// SetWeights overrides the lens weights. A configured schedule stops driving
// the weights from then on.
func (s *Swarm) SetWeights(w lens.Weights) {
	s.manualLenses = true
	s.ctl.SetWeights(w)
}

// SetLensParams replaces the controller bounds and gains. The current weights
// are kept. A changed schedule is installed and resumes driving the weights
// even after SetWeights.
func (s *Swarm) SetLensParams(p lens.Params) error {
	var sched *lens.Scheduler
	if p.Schedule != nil {
		var err error
		if sched, err = lens.NewScheduler(*p.Schedule); err != nil {
			return fmt.Errorf("lens schedule: %w", err)
		}
	}
	if err := s.ctl.SetParams(p); err != nil {
		return err
	}
	if !reflect.DeepEqual(p.Schedule, s.cfg.Lens.Schedule) {
		s.manualLenses = false
	}
	s.sched = sched
	s.cfg.Lens = p
	return nil
}

func (s *Swarm) SetPhaseParams(p phase.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for _, m := range s.members {
		if err := m.grid.SetParams(p); err != nil {
			return err
		}
	}
	s.cfg.Phase = p
	return nil
}

func (s *Swarm) SetBiasParams(p bias.Params) error {
	if err := s.bias.SetParams(p); err != nil {
		return err
	}
	s.cfg.Bias = p
	return nil
}

// Inject queues a pulse for the next tick.
func (s *Swarm) Inject(p bias.Pulse) {
	s.pulses = append(s.pulses, p)
}

// InjectField queues a continuous influence for the next tick. The view is
// copied.
func (s *Swarm) InjectField(v lattice.View, gain float64) {
	s.fields = append(s.fields, queuedField{f: v.Clone(), gain: gain})
}

// Reset clears the bias field, delay line, smoothing state and queues.
// Grid state and the tick counter are kept.
func (s *Swarm) Reset() {
	s.bias.Reset()
	s.line.Reset()
	s.echo.Zero()
	s.pulses = s.pulses[:0]
	s.fields = s.fields[:0]
	s.ema = s.cfg.Prior
	s.history = s.history[:0]
}

// Validate checks every grid and the bias field for non-finite values.
func (s *Swarm) Validate() error {
	for _, m := range s.members {
		if err := m.grid.Validate(); err != nil {
			return fmt.Errorf("%s: %w", m.role, err)
		}
	}
	return s.bias.View().Clone().Check("bias")
}

func (s *Swarm) applyQueued() int {
	touched := 0
	for _, p := range s.pulses {
		if s.bias.Apply(p) > 0 {
			touched++
		}
	}
	for _, q := range s.fields {
		s.bias.AddField(q.f.View(), q.gain)
	}
	s.pulses = s.pulses[:0]
	s.fields = s.fields[:0]
	return touched
}

// crossInto writes the mean liquid of every member other than self.
func (s *Swarm) crossInto(dst lattice.Field, self int) {
	dst.Zero()
	others := 0
	for j, m := range s.members {
		if j == self {
			continue
		}
		others++
		liquid := m.grid.Liquid()
		for i := range dst {
			dst[i] += liquid.At(i)
		}
	}
	if others > 1 {
		inv := 1 / float64(others)
		for i := range dst {
			dst[i] *= inv
		}
	}
}

func (s *Swarm) aggregate() Metrics {
	var agg Metrics
	for _, m := range s.members {
		gm := m.grid.Metrics()
		agg.Energy += gm.Energy
		agg.Dispersion += gm.Dispersion
		agg.Coherence += gm.Coherence
	}
	n := float64(len(s.members))
	agg.Energy /= n
	agg.Dispersion /= n
	agg.Coherence /= n

	pairs := 0
	for a := 0; a < len(s.members); a++ {
		for b := a + 1; b < len(s.members); b++ {
			agg.Divergence += meanAbsDiff(s.members[a].grid.Liquid(), s.members[b].grid.Liquid())
			pairs++
		}
	}
	if pairs > 0 {
		agg.Divergence /= float64(pairs)
	}
	return agg
}

func meanAbsDiff(a, b lattice.View) float64 {
	if a.Len() == 0 {
		return 0
	}
	acc := 0.0
	for i := 0; i < a.Len(); i++ {
		acc += math.Abs(a.At(i) - b.At(i))
	}
	return math.Min(acc/float64(a.Len()), 1)
}

func (s *Swarm) smooth(raw Metrics) Metrics {
	a := s.cfg.MetricSmoothing
	blend := func(prev, cur float64) float64 { return prev + a*(cur-prev) }
	s.ema = Metrics{
		Metrics: lens.Metrics{
			Energy:     blend(s.ema.Energy, raw.Energy),
			Dispersion: blend(s.ema.Dispersion, raw.Dispersion),
			Coherence:  blend(s.ema.Coherence, raw.Coherence),
		},
		Divergence: blend(s.ema.Divergence, raw.Divergence),
	}
	return s.ema
}

// feedback records smoothed and returns the metrics FeedbackLatency ticks
// old, or the prior while the history is short.
func (s *Swarm) feedback(smoothed Metrics) Metrics {
	lag := s.cfg.FeedbackLatency
	s.history = append(s.history, smoothed)
	if len(s.history) > lag+1 {
		s.history = s.history[len(s.history)-(lag+1):]
	}
	if len(s.history) <= lag {
		return s.cfg.Prior
	}
	return s.history[len(s.history)-1-lag]
}

func (s *Swarm) compose(dst lattice.Field, m *member, crossGain float64) {
	field := s.bias.View()
	k := m.k
	for i := range dst {
		dst[i] = k.Base*field.At(i) + k.Cross*crossGain*m.cross[i] + k.Memory*s.echo[i]
	}
}

func (s *Swarm) pushComposite() {
	s.scratch.Zero()
	for _, m := range s.members {
		if m.k.Composite == 0 {
			continue
		}
		liquid := m.grid.Liquid()
		for i := range s.scratch {
			s.scratch[i] += m.k.Composite * liquid.At(i)
		}
	}
	s.line.Push(s.scratch.View())
}

// Step advances the swarm by one tick.
func (s *Swarm) Step() Report {
	rep := Report{Tick: s.tick}

	if s.cfg.Bias.Mode == bias.ModeFused {
		rep.Pulses = s.applyQueued()
		s.bias.DiffuseFused()
	} else {
		s.bias.Decay()
		rep.Pulses = s.applyQueued()
		s.bias.Diffuse(s.cfg.Bias.Diffusion)
	}

	if s.cfg.Delay.Source == delay.SourceCore {
		s.line.Push(s.members[0].grid.Liquid())
	}
	s.line.ComposeInto(s.echo)

	for j, m := range s.members {
		s.crossInto(m.cross, j)
	}

	rep.Raw = s.aggregate()
	rep.Smoothed = s.smooth(rep.Raw)
	rep.Feedback = s.feedback(rep.Smoothed)

	if s.sched != nil && !s.manualLenses {
		s.ctl.SetWeights(s.sched.Weights(s.tick))
	}
	rep.Weights = s.ctl.Weights()
	b := s.ctl.Evaluate(rep.Feedback.Metrics)
	rep.Bundle = b

	for _, m := range s.members {
		rep.Kicked += m.grid.Perturb(b.NoiseScale)
	}

	for j, m := range s.members {
		if s.cfg.Sequential && j > 0 {
			s.crossInto(m.cross, j)
		}
		s.compose(s.scratch, m, b.CrossTalkGain)
		gr := m.grid.Step(s.scratch.View(), b)
		rep.Grids = append(rep.Grids, GridReport{Role: m.role, Report: gr})
	}

	if s.cfg.Delay.Source == delay.SourceComposite {
		s.pushComposite()
	}

	rep.BiasEnergy = s.bias.Energy()
	rep.EchoEnergy = s.echo.L1()
	s.tick++
	return rep
}
