package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/phasecube/internal/drive"
	"github.com/san-kum/phasecube/internal/lattice"
	"github.com/san-kum/phasecube/internal/swarm"
)

const (
	DefaultTicks       = 500
	DefaultSeed        = 1
	DefaultSampleEvery = 1
)

type Config struct {
	// Preset names the base a file overlays; empty means the defaults.
	Preset        string       `yaml:"preset,omitempty"`
	Ticks         int          `yaml:"ticks"`
	Seed          int64        `yaml:"seed"`
	ValidateState bool         `yaml:"validate_state"`
	SampleEvery   int          `yaml:"sample_every"`
	Swarm         swarm.Config `yaml:"swarm"`
	Drive         drive.Config `yaml:"drive"`
}

func DefaultConfig() *Config {
	return &Config{
		Ticks:       DefaultTicks,
		Seed:        DefaultSeed,
		SampleEvery: DefaultSampleEvery,
		Swarm:       swarm.DefaultConfig(),
		Drive:       drive.DefaultConfig(),
	}
}

func (c *Config) Validate() error {
	if c.Ticks < 1 {
		return lattice.Invalid("ticks", c.Ticks, "must be at least 1")
	}
	if c.SampleEvery < 1 {
		return lattice.Invalid("sample_every", c.SampleEvery, "must be at least 1")
	}
	if err := c.Swarm.Validate(); err != nil {
		return err
	}
	return c.Drive.Validate()
}

// Load reads a YAML file over the defaults, or over the named preset when
// the file sets one. Lens weights in the file replace the base mapping.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if head.Preset != "" {
		if cfg = GetPreset(head.Preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", head.Preset)
		}
	}

	weights := cfg.Swarm.Lens.Weights
	cfg.Swarm.Lens.Weights = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Swarm.Lens.Weights == nil {
		cfg.Swarm.Lens.Weights = weights
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
