package observer

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/san-kum/phasecube/internal/lens"
	"github.com/san-kum/phasecube/internal/swarm"
)

const Version = "1"

// Outbound message types.
const (
	TypeHello = "HELLO"
	TypeFrame = "FRAME"
	TypeError = "ERROR"
)

// Inbound command types.
const (
	CmdSetWeights = "set_weights"
	CmdInject     = "inject"
	CmdSlice      = "slice"
	CmdPause      = "pause"
	CmdResume     = "resume"
)

type Hello struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Size            int          `json:"size"`
	Roles           []swarm.Role `json:"roles"`
	Tick            int          `json:"tick"`
}

type GridSlice struct {
	Role   swarm.Role `json:"role"`
	Liquid []float64  `json:"liquid"`
}

// Frame is one tick as seen by a renderer: metrics, control outputs and the
// x-y plane at depth Z of every grid's liquid phase.
type Frame struct {
	Type       string        `json:"type"`
	Tick       int           `json:"tick"`
	Paused     bool          `json:"paused"`
	Size       int           `json:"size"`
	Z          int           `json:"z"`
	Weights    lens.Weights  `json:"weights"`
	Bundle     lens.Bundle   `json:"bundle"`
	Raw        swarm.Metrics `json:"raw"`
	Smoothed   swarm.Metrics `json:"smoothed"`
	BiasEnergy float64       `json:"bias_energy"`
	EchoEnergy float64       `json:"echo_energy"`
	Grids      []GridSlice   `json:"grids"`
}

// NewFrame renders rep with slices taken from the swarm's current state.
func NewFrame(rep swarm.Report, s *swarm.Swarm, z int) Frame {
	f := Frame{
		Type:       TypeFrame,
		Tick:       rep.Tick,
		Size:       s.Size(),
		Z:          z,
		Weights:    rep.Weights,
		Bundle:     rep.Bundle,
		Raw:        rep.Raw,
		Smoothed:   rep.Smoothed,
		BiasEnergy: rep.BiasEnergy,
		EchoEnergy: rep.EchoEnergy,
	}
	for _, r := range s.Roles() {
		g := s.Grid(r)
		f.Grids = append(f.Grids, GridSlice{Role: r, Liquid: g.Topology().SliceZ(g.Liquid(), z)})
	}
	return f
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Command is a renderer request applied between ticks.
type Command struct {
	Type     string             `json:"type"`
	Weights  map[string]float64 `json:"weights,omitempty"`
	Center   [3]int             `json:"center,omitempty"`
	Radius   float64            `json:"radius,omitempty"`
	Strength float64            `json:"strength,omitempty"`
	Z        int                `json:"z,omitempty"`
}

const commandSchema = `{
  "type": "object",
  "required": ["type"],
  "additionalProperties": false,
  "properties": {
    "type": {"enum": ["set_weights", "inject", "slice", "pause", "resume"]},
    "weights": {
      "type": "object",
      "minProperties": 1,
      "propertyNames": {"enum": ["human", "cognitive", "predictive", "systemic", "harmonic"]},
      "additionalProperties": {"type": "number", "minimum": 0}
    },
    "center": {"type": "array", "items": {"type": "integer"}, "minItems": 3, "maxItems": 3},
    "radius": {"type": "number", "minimum": 0},
    "strength": {"type": "number"},
    "z": {"type": "integer", "minimum": 0}
  },
  "allOf": [
    {"if": {"properties": {"type": {"const": "set_weights"}}}, "then": {"required": ["weights"]}},
    {"if": {"properties": {"type": {"const": "inject"}}}, "then": {"required": ["center"]}},
    {"if": {"properties": {"type": {"const": "slice"}}}, "then": {"required": ["z"]}}
  ]
}`

var commandValidator = jsonschema.MustCompileString("command.schema.json", commandSchema)

// ParseCommand validates msg against the command schema and decodes it.
func ParseCommand(msg []byte) (Command, error) {
	var raw any
	if err := json.Unmarshal(msg, &raw); err != nil {
		return Command{}, fmt.Errorf("bad json: %w", err)
	}
	if err := commandValidator.Validate(raw); err != nil {
		return Command{}, fmt.Errorf("invalid command: %w", err)
	}
	var cmd Command
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return Command{}, err
	}
	return cmd, nil
}
