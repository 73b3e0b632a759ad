package viz

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/phasecube/internal/config"
	"github.com/san-kum/phasecube/internal/experiment"
	"github.com/san-kum/phasecube/internal/lens"
)

func TestHeatmap(t *testing.T) {
	slice := []float64{0, 0.5, 1, 0.25}
	out := Heatmap(slice, 2, ThemeThermal, false)
	rows := strings.Split(out, "\n")
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0] != "  ++" || rows[1] != "@@::" {
		t.Errorf("unexpected shading %q", out)
	}
	for _, r := range rows {
		if len(r) != 4 {
			t.Errorf("row %q should be two columns per cell", r)
		}
	}
}

func TestGaugeAndSparkline(t *testing.T) {
	if g := Gauge(0.5, 0, 1, 10); strings.Count(g, "█") != 5 {
		t.Errorf("half gauge = %q", g)
	}
	if g := Gauge(2, 0, 1, 4); g != "████" {
		t.Errorf("saturated gauge = %q", g)
	}
	if s := Sparkline([]float64{0, 1, 2, 3}, 2); len([]rune(s)) != 2 {
		t.Errorf("sparkline should keep the last width values: %q", s)
	}
	if s := Sparkline(nil, 3); s != "───" {
		t.Errorf("empty sparkline = %q", s)
	}
}

func TestThemes(t *testing.T) {
	if GetTheme("missing").Name != ThemeThermal.Name {
		t.Error("unknown theme should fall back to thermal")
	}
	seen := map[string]bool{}
	th := ThemeThermal
	for range Themes {
		seen[th.Name] = true
		th = NextTheme(th)
	}
	if len(seen) != len(ThemeNames()) || th.Name != ThemeThermal.Name {
		t.Errorf("cycle visited %v", seen)
	}
}

func newModel(t *testing.T, opts Options) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Swarm.Size = 4
	cfg.Drive.Pulses.Enabled = false
	exp, err := experiment.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return NewModel(exp, opts)
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_TicksAndPause(t *testing.T) {
	m := newModel(t, Options{})
	m, cmd := update(m, TickMsg{})
	if m.Stepped() != 1 || cmd == nil {
		t.Fatalf("tick should step and reschedule, stepped=%d", m.Stepped())
	}

	m, _ = update(m, key(" "))
	if m.Running() {
		t.Fatal("space should pause")
	}
	m, _ = update(m, TickMsg{})
	if m.Stepped() != 1 {
		t.Error("paused model should not step on tick")
	}
	m, _ = update(m, key("n"))
	if m.Stepped() != 2 {
		t.Error("n should single step while paused")
	}
}

func TestModel_SliceAndInject(t *testing.T) {
	m := newModel(t, Options{})
	z := m.Z()
	m, _ = update(m, key("up"))
	if m.Z() != (z+1)%4 {
		t.Errorf("z = %d after up", m.Z())
	}
	m, _ = update(m, key("down"))
	m, _ = update(m, key("down"))
	if m.Z() != (z+3)%4 {
		t.Errorf("z = %d after two downs", m.Z())
	}

	m, _ = update(m, key("i"))
	if m.manual.Pending() != 1 {
		t.Fatalf("pending = %d", m.manual.Pending())
	}
	m, _ = update(m, TickMsg{})
	if m.manual.Pending() != 0 || m.last.Pulses != 1 {
		t.Errorf("pulse not delivered: pending=%d pulses=%d", m.manual.Pending(), m.last.Pulses)
	}
}

func TestModel_Weights(t *testing.T) {
	m := newModel(t, Options{})
	m, _ = update(m, key("4"))
	w := m.exp.Swarm().Weights()
	if !(w.Harmonic > w.Human) {
		t.Errorf("harmonic boost not applied: %+v", w)
	}
	m, _ = update(m, key("0"))
	if m.exp.Swarm().Weights() != lens.Uniform() {
		t.Error("0 should restore uniform weights")
	}
}

func TestModel_MaxTicksQuits(t *testing.T) {
	m := newModel(t, Options{MaxTicks: 2})
	m, _ = update(m, TickMsg{})
	_, cmd := update(m, TickMsg{})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg after MaxTicks")
	}
}

func TestModel_View(t *testing.T) {
	m := newModel(t, Options{})
	for i := 0; i < 3; i++ {
		m, _ = update(m, TickMsg{})
	}
	m, _ = update(m, key("?"))
	out := m.View()
	for _, want := range []string{"PHASECUBE", "core", "echo", "memory", "energy", "path_b", "q quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
