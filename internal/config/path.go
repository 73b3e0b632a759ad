package config

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Clone returns a deep copy of c.
func (c *Config) Clone() (*Config, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Set writes value at a dotted YAML key path such as "swarm.phase.alpha"
// or "swarm.lens.weights.human". Unknown keys are rejected.
func (c *Config) Set(path string, value any) error {
	keys := strings.Split(path, ".")
	for _, k := range keys {
		if k == "" {
			return fmt.Errorf("invalid config path %q", path)
		}
	}

	var doc any = value
	for i := len(keys) - 1; i >= 0; i-- {
		doc = map[string]any{keys[i]: doc}
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}
