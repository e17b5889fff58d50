package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt       = 1e-3
	DefaultDuration = 5.0
	DefaultGravity  = 9.81

	DefaultStaticFriction  = 0.9
	DefaultDynamicFriction = 0.6
)

// Scene is the YAML description of one simulation: bodies, joints, contact
// settings and run parameters.
type Scene struct {
	Name     string  `yaml:"name"`
	Dt       float64 `yaml:"dt"`
	Duration float64 `yaml:"duration"`
	Gravity  float64 `yaml:"gravity"` // magnitude, acting along -z

	Contact ContactConfig `yaml:"contact"`
	Ground  *GroundConfig `yaml:"ground,omitempty"`
	Bodies  []BodyConfig  `yaml:"bodies"`
	Joints  []JointConfig `yaml:"joints,omitempty"`
}

type ContactConfig struct {
	Model                string  `yaml:"model"`  // point, hydroelastic, hydroelastic_with_fallback
	Solver               string  `yaml:"solver"` // tamsi, sap, euler
	PenetrationAllowance float64 `yaml:"penetration_allowance"`
	StictionTolerance    float64 `yaml:"stiction_tolerance"`
}

// GroundConfig adds a world-fixed half-space collision geometry at z = 0.
type GroundConfig struct {
	StaticFriction  float64 `yaml:"static_friction"`
	DynamicFriction float64 `yaml:"dynamic_friction"`
}

type BodyConfig struct {
	Name  string  `yaml:"name"`
	Mass  float64 `yaml:"mass"`
	Shape string  `yaml:"shape"` // sphere, box

	Radius float64    `yaml:"radius,omitempty"` // sphere
	Size   [3]float64 `yaml:"size,omitempty"`   // box edge lengths

	// Position is the body's initial world translation; bodies without a
	// declared joint float freely.
	Position [3]float64 `yaml:"position"`

	Collision       bool    `yaml:"collision"`
	StaticFriction  float64 `yaml:"static_friction,omitempty"`
	DynamicFriction float64 `yaml:"dynamic_friction,omitempty"`
}

type JointConfig struct {
	Name   string     `yaml:"name"`
	Type   string     `yaml:"type"`   // revolute, prismatic, weld
	Parent string     `yaml:"parent"` // "world" or a body name
	Child  string     `yaml:"child"`
	Axis   [3]float64 `yaml:"axis,omitempty"`

	// Limits holds [lower, upper] position limits; nil means unbounded.
	Limits *[2]float64 `yaml:"limits,omitempty"`
}

func DefaultScene() *Scene {
	return &Scene{
		Name:     "scene",
		Dt:       DefaultDt,
		Duration: DefaultDuration,
		Gravity:  DefaultGravity,
		Contact: ContactConfig{
			Model:  "point",
			Solver: "tamsi",
		},
	}
}

func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := DefaultScene()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

func Save(path string, s *Scene) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
