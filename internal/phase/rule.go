package phase

import (
	"fmt"
	"sort"

	"github.com/san-kum/phasecube/internal/lattice"
)

type Bounding string

const (
	BoundClamp Bounding = "clamp"
	BoundWrap  Bounding = "wrap"
)

type SolidSource string

const (
	SolidFromLiquid SolidSource = "liquid"
	SolidFromMix    SolidSource = "mix"
)

type ParityMode string

const (
	ParityAdditive       ParityMode = "additive"
	ParityMultiplicative ParityMode = "multiplicative"
)

type ForgiveTarget string

const (
	ForgiveConsensus ForgiveTarget = "consensus"
	ForgiveSolid     ForgiveTarget = "solid"
)

// Rule selects between the interchangeable variants of the update formula.
type Rule struct {
	Bounding           Bounding      `yaml:"bounding" json:"bounding"`
	SolidSource        SolidSource   `yaml:"solid_source" json:"solid_source"`
	ParityMode         ParityMode    `yaml:"parity_mode" json:"parity_mode"`
	ConsensusNeighbors bool          `yaml:"consensus_neighbors" json:"consensus_neighbors"`
	ForgiveToward      ForgiveTarget `yaml:"forgive_toward" json:"forgive_toward"`
}

var Rules = map[string]Rule{
	"canonical": {
		Bounding:      BoundClamp,
		SolidSource:   SolidFromMix,
		ParityMode:    ParityAdditive,
		ForgiveToward: ForgiveConsensus,
	},
	"modular": {
		Bounding:      BoundWrap,
		SolidSource:   SolidFromMix,
		ParityMode:    ParityMultiplicative,
		ForgiveToward: ForgiveConsensus,
	},
	"anchored": {
		Bounding:           BoundClamp,
		SolidSource:        SolidFromLiquid,
		ParityMode:         ParityAdditive,
		ConsensusNeighbors: true,
		ForgiveToward:      ForgiveSolid,
	},
}

func GetRule(name string) (Rule, error) {
	r, ok := Rules[name]
	if !ok {
		return Rule{}, fmt.Errorf("unknown rule: %s", name)
	}
	return r, nil
}

func ListRules() []string {
	names := make([]string, 0, len(Rules))
	for name := range Rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r Rule) Validate() error {
	switch r.Bounding {
	case BoundClamp, BoundWrap:
	default:
		return lattice.Invalid("rule.bounding", r.Bounding, "expected clamp or wrap")
	}
	switch r.SolidSource {
	case SolidFromLiquid, SolidFromMix:
	default:
		return lattice.Invalid("rule.solid_source", r.SolidSource, "expected liquid or mix")
	}
	switch r.ParityMode {
	case ParityAdditive, ParityMultiplicative:
	default:
		return lattice.Invalid("rule.parity_mode", r.ParityMode, "expected additive or multiplicative")
	}
	switch r.ForgiveToward {
	case ForgiveConsensus, ForgiveSolid:
	default:
		return lattice.Invalid("rule.forgive_toward", r.ForgiveToward, "expected consensus or solid")
	}
	return nil
}

func (r Rule) bound(v float64) float64 {
	if r.Bounding == BoundWrap {
		return lattice.Wrap01(v)
	}
	return lattice.Clamp01(v)
}
