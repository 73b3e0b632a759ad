package config

import (
	"sort"

	"github.com/san-kum/phasecube/internal/lens"
	"github.com/san-kum/phasecube/internal/phase"
)

// Presets adjust the defaults into named experiment setups.
var Presets = map[string]func(c *Config){
	"canonical": func(c *Config) {},
	"exploratory": func(c *Config) {
		c.Swarm.Lens.Weights = map[string]float64{
			lens.Human: 0.2, lens.Predictive: 0.38, lens.Systemic: 0.22, lens.Harmonic: 0.2,
		}
		c.Swarm.Phase.PlasmaNoise = 0.03
		c.Swarm.Phase.FlipProbability = 0.04
		c.Swarm.Lens.Noise.Max = 2.5
	},
	"stable": func(c *Config) {
		c.Swarm.Lens.Weights = map[string]float64{
			lens.Human: 0.26, lens.Predictive: 0.2, lens.Systemic: 0.22, lens.Harmonic: 0.32,
		}
		c.Swarm.Phase.PlasmaNoise = 0.005
		c.Swarm.Phase.FlipProbability = 0.01
		c.Swarm.Lens.Damping.Base = 0.8
		c.Swarm.MetricSmoothing = 0.1
	},
	"modular": func(c *Config) {
		c.Swarm.Phase.Rule = phase.Rules["modular"]
	},
	"plastic": func(c *Config) {
		c.Swarm.Phase.PlasticityProbability = 0.05
		c.Swarm.Sequential = true
	},
	"duo": func(c *Config) {
		c.Swarm.Grids = 2
		c.Swarm.Couplings.Core.Composite = 0.3
		c.Swarm.Couplings.Echo.Composite = 0.3
	},
	"scheduled": func(c *Config) {
		s := lens.DefaultSchedule()
		c.Swarm.Lens.Schedule = &s
		c.Ticks = 3 * s.Cadence * len(s.Sequence)
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	cfg.Preset = name
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
