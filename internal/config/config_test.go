package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/phasecube/internal/lattice"
	"github.com/san-kum/phasecube/internal/phase"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Ticks <= 0 {
		t.Error("ticks should be positive")
	}
	if cfg.Swarm.Grids != 3 {
		t.Errorf("expected 3 grids, got %d", cfg.Swarm.Grids)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, name := range ListPresets() {
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset(name)
			if cfg == nil {
				t.Fatal("expected preset, got nil")
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("preset invalid: %v", err)
			}
		})
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("modular")
	if cfg.Swarm.Phase.Rule.Bounding != phase.BoundWrap {
		t.Errorf("expected wrap bounding, got %s", cfg.Swarm.Phase.Rule.Bounding)
	}
	if GetPreset("duo").Swarm.Grids != 2 {
		t.Error("duo preset should run two grids")
	}
	// presets must not leak into each other or the defaults
	GetPreset("plastic").Swarm.Phase.Alpha = 0.9
	if GetPreset("plastic").Swarm.Phase.Alpha == 0.9 {
		t.Error("preset returned shared state")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	if len(presets) != len(Presets) {
		t.Errorf("expected %d presets, got %d", len(Presets), len(presets))
	}
	for i := 1; i < len(presets); i++ {
		if presets[i-1] > presets[i] {
			t.Error("presets not sorted")
		}
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
ticks: 40
swarm:
  size: 6
  phase:
    alpha: 0.3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ticks != 40 || cfg.Swarm.Size != 6 || cfg.Swarm.Phase.Alpha != 0.3 {
		t.Errorf("overlay not applied: %+v", cfg)
	}
	if cfg.Swarm.Phase.ParityOffset != 0.13 {
		t.Errorf("default lost under overlay: %f", cfg.Swarm.Phase.ParityOffset)
	}
	if len(cfg.Swarm.Lens.Weights) != 4 {
		t.Errorf("default weights lost: %v", cfg.Swarm.Lens.Weights)
	}
}

func TestLoad_PresetBase(t *testing.T) {
	path := writeFile(t, "preset: duo\nseed: 9\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Swarm.Grids != 2 || cfg.Seed != 9 {
		t.Errorf("preset base not applied: grids=%d seed=%d", cfg.Swarm.Grids, cfg.Seed)
	}

	if _, err := Parse([]byte("preset: nope\n")); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestLoad_WeightsReplace(t *testing.T) {
	cfg, err := Parse([]byte("swarm:\n  lens:\n    weights:\n      cognitive: 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Swarm.Lens.Weights) != 1 || cfg.Swarm.Lens.Weights["cognitive"] != 1 {
		t.Errorf("weights merged instead of replaced: %v", cfg.Swarm.Lens.Weights)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := GetPreset("scheduled")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Swarm.Lens.Schedule == nil || got.Swarm.Lens.Schedule.Cadence != cfg.Swarm.Lens.Schedule.Cadence {
		t.Error("schedule lost in round trip")
	}
	if got.Ticks != cfg.Ticks {
		t.Errorf("ticks = %d, want %d", got.Ticks, cfg.Ticks)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ticks", func(c *Config) { c.Ticks = 0 }},
		{"zero sample", func(c *Config) { c.SampleEvery = 0 }},
		{"bad grids", func(c *Config) { c.Swarm.Grids = 5 }},
		{"bad drive", func(c *Config) { c.Drive.Pulses.Every = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, lattice.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestClone(t *testing.T) {
	cfg := GetPreset("exploratory")
	cp, err := cfg.Clone()
	if err != nil {
		t.Fatal(err)
	}
	cp.Swarm.Lens.Weights["human"] = 0.9
	if cfg.Swarm.Lens.Weights["human"] == 0.9 {
		t.Error("clone shares the weights map")
	}
	if cp.Preset != "exploratory" || cp.Swarm.Phase.PlasmaNoise != cfg.Swarm.Phase.PlasmaNoise {
		t.Errorf("clone lost fields: %+v", cp.Swarm.Phase)
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		path  string
		value any
		check func(*Config) bool
	}{
		{"seed", 9, func(c *Config) bool { return c.Seed == 9 }},
		{"swarm.phase.alpha", 0.3, func(c *Config) bool { return c.Swarm.Phase.Alpha == 0.3 }},
		{"swarm.lens.path_b.max", 0.8, func(c *Config) bool { return c.Swarm.Lens.PathB.Max == 0.8 }},
		{"swarm.lens.weights.harmonic", 0.5, func(c *Config) bool {
			return c.Swarm.Lens.Weights["harmonic"] == 0.5 && len(c.Swarm.Lens.Weights) > 1
		}},
		{"swarm.sequential", true, func(c *Config) bool { return c.Swarm.Sequential }},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			cfg, err := DefaultConfig().Clone()
			if err != nil {
				t.Fatal(err)
			}
			if err := cfg.Set(tt.path, tt.value); err != nil {
				t.Fatalf("set failed: %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("%s not applied", tt.path)
			}
		})
	}
}

func TestSet_Unknown(t *testing.T) {
	cfg := DefaultConfig()
	for _, path := range []string{"swarm.phase.nope", "bogus", "swarm..alpha"} {
		if err := cfg.Set(path, 1); err == nil {
			t.Errorf("expected error for %q", path)
		}
	}
}
