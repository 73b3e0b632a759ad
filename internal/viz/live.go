package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/phasecube/internal/bias"
	"github.com/san-kum/phasecube/internal/drive"
	"github.com/san-kum/phasecube/internal/experiment"
	"github.com/san-kum/phasecube/internal/lattice"
	"github.com/san-kum/phasecube/internal/lens"
	"github.com/san-kum/phasecube/internal/swarm"
)

const historyCapacity = 240

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(0, 2).Width(44)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	pausedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaa00")).Bold(true)
	runStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88")).Bold(true)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

type Options struct {
	// FrameRate is the number of ticks stepped per second.
	FrameRate int
	// MaxTicks quits after that many ticks; zero runs until q.
	MaxTicks int
	Theme    string
	// Color disables lipgloss colors in the heatmap when false.
	Color bool
}

// Model holds the experiment being viewed and the viewer state. The
// experiment is only stepped from Update.
type Model struct {
	exp    *experiment.Experiment
	manual *drive.Manual
	opts   Options
	theme  Theme

	last    swarm.Report
	stepped int
	z       int
	running bool
	help    bool
	err     error

	energy []float64
}

// NewModel attaches a manual pulse driver to exp so keyboard injections go
// through the same driver path as procedural ones.
func NewModel(exp *experiment.Experiment, opts Options) Model {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 20
	}
	manual := drive.NewManual()
	exp.AddDriver(manual)
	return Model{
		exp:     exp,
		manual:  manual,
		opts:    opts,
		theme:   GetTheme(opts.Theme),
		z:       exp.Swarm().Size() / 2,
		running: true,
		energy:  make([]float64, 0, historyCapacity),
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.opts.FrameRate), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

// Err returns the validation error that stopped the viewer, if any.
func (m Model) Err() error { return m.err }

func (m Model) Stepped() int { return m.stepped }
func (m Model) Z() int       { return m.z }
func (m Model) Running() bool {
	return m.running
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "n":
			if !m.running {
				if done := m.step(); done {
					return m, tea.Quit
				}
			}
		case "up", "k":
			m.z = lattice.Wrap(m.z+1, m.exp.Swarm().Size())
		case "down", "j":
			m.z = lattice.Wrap(m.z-1, m.exp.Swarm().Size())
		case "i":
			h := m.exp.Swarm().Size() / 2
			m.manual.Push(bias.Pulse{Center: lattice.Coord{X: h, Y: h, Z: m.z}})
		case "1", "2", "3", "4":
			m.boost(keyChannels[msg.String()[0]-'1'])
		case "0":
			m.exp.Swarm().SetWeights(lens.Uniform())
		case "t":
			m.theme = NextTheme(m.theme)
		case "?":
			m.help = !m.help
		}
	case TickMsg:
		if m.running {
			if done := m.step(); done {
				return m, tea.Quit
			}
		}
		return m, m.tickCmd()
	}
	return m, nil
}

// step advances one tick and reports whether the viewer should stop.
func (m *Model) step() bool {
	rep := m.exp.Step()
	m.last = rep
	m.stepped++
	m.energy = append(m.energy, rep.Raw.Energy)
	if len(m.energy) > historyCapacity {
		m.energy = m.energy[1:]
	}
	if m.exp.Config().ValidateState {
		if err := m.exp.Swarm().Validate(); err != nil {
			m.err = experiment.SimError{Tick: rep.Tick, Message: "invalid state (NaN/Inf)", Err: err}
			return true
		}
	}
	return m.opts.MaxTicks > 0 && m.stepped >= m.opts.MaxTicks
}

// keyChannels maps keys 1-4 to lens channels.
var keyChannels = [...]string{lens.Human, lens.Predictive, lens.Systemic, lens.Harmonic}

func (m *Model) boost(channel string) {
	w := m.exp.Swarm().Weights()
	v, _ := w.Get(channel)
	m.exp.Swarm().SetWeights(w.With(channel, v+0.1))
}

func (m Model) View() string {
	sw := m.exp.Swarm()
	n := sw.Size()

	var s strings.Builder
	status := runStyle.Render("RUNNING")
	if !m.running {
		status = pausedStyle.Render("PAUSED")
	}
	preset := m.exp.Config().Preset
	if preset == "" {
		preset = "custom"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("PHASECUBE  %s  %d³  z=%d", strings.ToUpper(preset), n, m.z)))
	s.WriteString("  " + status + "\n\n")

	panels := make([]string, 0, len(sw.Roles()))
	for _, r := range sw.Roles() {
		g := sw.Grid(r)
		hm := Heatmap(g.Topology().SliceZ(g.Liquid(), m.z), n, m.theme, m.opts.Color)
		panels = append(panels, panelStyle.Render(string(r)+"\n"+hm))
	}
	grids := lipgloss.JoinHorizontal(lipgloss.Top, panels...)
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, grids, statsStyle.Render(m.stats())))
	s.WriteString("\n")

	if len(m.energy) > 1 {
		plot := asciigraph.Plot(m.energy, asciigraph.Height(6), asciigraph.Width(60), asciigraph.Caption("energy"))
		s.WriteString(graphStyle.Render(plot))
		s.WriteString("\n")
	}

	if m.help {
		s.WriteString(helpStyle.Render("space pause  n step  ↑/↓ slice  i inject  1-4 boost lens  0 uniform  t theme  q quit"))
	} else {
		s.WriteString(helpStyle.Render("? help"))
	}
	return s.String()
}

func (m Model) stats() string {
	rep := m.last
	p := m.exp.Swarm().Config().Lens
	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
	}
	gauge := func(label string, v float64, b lens.Bounded) string {
		return labelStyle.Render(label) + valueStyle.Render(fmt.Sprintf("%s %.3f", Gauge(v, b.Min, b.Max, 12), v)) + "\n"
	}

	var b strings.Builder
	b.WriteString(row("tick", fmt.Sprintf("%d", rep.Tick)))
	b.WriteString(row("energy", fmt.Sprintf("%.4f", rep.Raw.Energy)))
	b.WriteString(row("dispersion", fmt.Sprintf("%.4f", rep.Raw.Dispersion)))
	b.WriteString(row("coherence", fmt.Sprintf("%.4f", rep.Raw.Coherence)))
	b.WriteString(row("divergence", fmt.Sprintf("%.4f", rep.Raw.Divergence)))
	b.WriteString(row("bias", fmt.Sprintf("%.3f", rep.BiasEnergy)))
	b.WriteString(row("pending", fmt.Sprintf("%d", m.manual.Pending())))
	b.WriteString("\n")
	b.WriteString(gauge("path_b", rep.Bundle.PathB, p.PathB))
	b.WriteString(gauge("damping", rep.Bundle.Damping, p.Damping))
	b.WriteString(gauge("bias_gain", rep.Bundle.BiasGain, p.BiasGain))
	b.WriteString(gauge("forgiveness", rep.Bundle.Forgiveness, p.Forgiveness))
	b.WriteString(gauge("cross_talk", rep.Bundle.CrossTalkGain, p.CrossTalk))
	b.WriteString(gauge("noise", rep.Bundle.NoiseScale, p.Noise))
	b.WriteString("\n")
	w := rep.Weights
	b.WriteString(row("lenses", fmt.Sprintf("h%.2f p%.2f s%.2f m%.2f", w.Human, w.Predictive, w.Systemic, w.Harmonic)))
	b.WriteString(row("energy trend", Sparkline(m.energy, 24)))
	return b.String()
}

// Run starts the viewer on the alternate screen and blocks until it quits.
func Run(exp *experiment.Experiment, opts Options) error {
	final, err := tea.NewProgram(NewModel(exp, opts), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok {
		return fm.Err()
	}
	return nil
}
