package config

import "sort"

var Presets = map[string]*Scene{
	"ball_drop": {
		Name: "ball_drop", Dt: 1e-3, Duration: 2.0, Gravity: DefaultGravity,
		Contact: ContactConfig{Model: "point", Solver: "tamsi"},
		Ground:  &GroundConfig{},
		Bodies: []BodyConfig{
			{Name: "ball", Mass: 1, Shape: "sphere", Radius: 0.1,
				Position: [3]float64{0, 0, 1}, Collision: true},
		},
	},
	"ball_drop_hydro": {
		Name: "ball_drop_hydro", Dt: 1e-3, Duration: 2.0, Gravity: DefaultGravity,
		Contact: ContactConfig{Model: "hydroelastic_with_fallback", Solver: "tamsi"},
		Ground:  &GroundConfig{},
		Bodies: []BodyConfig{
			{Name: "ball", Mass: 1, Shape: "sphere", Radius: 0.1,
				Position: [3]float64{0, 0, 1}, Collision: true},
		},
	},
	"box_rest": {
		Name: "box_rest", Dt: 1e-3, Duration: 1.0, Gravity: DefaultGravity,
		Contact: ContactConfig{Model: "point", Solver: "tamsi"},
		Ground:  &GroundConfig{},
		Bodies: []BodyConfig{
			{Name: "box", Mass: 2, Shape: "box", Size: [3]float64{0.2, 0.2, 0.2},
				Position: [3]float64{0, 0, 0.099}, Collision: true},
		},
	},
	"box_stack": {
		Name: "box_stack", Dt: 1e-3, Duration: 2.0, Gravity: DefaultGravity,
		Contact: ContactConfig{Model: "point", Solver: "sap"},
		Ground:  &GroundConfig{},
		Bodies: []BodyConfig{
			{Name: "lower", Mass: 2, Shape: "box", Size: [3]float64{0.3, 0.3, 0.3},
				Position: [3]float64{0, 0, 0.15}, Collision: true},
			{Name: "upper", Mass: 1, Shape: "box", Size: [3]float64{0.2, 0.2, 0.2},
				Position: [3]float64{0, 0, 0.41}, Collision: true},
		},
	},
	"pendulum": {
		Name: "pendulum", Dt: 1e-3, Duration: 5.0, Gravity: DefaultGravity,
		Contact: ContactConfig{Model: "point", Solver: "tamsi"},
		Bodies: []BodyConfig{
			{Name: "arm", Mass: 1, Shape: "sphere", Radius: 0.05,
				Position: [3]float64{0, 0, 1}},
		},
		Joints: []JointConfig{
			{Name: "pivot", Type: "revolute", Parent: "world", Child: "arm",
				Axis: [3]float64{0, 1, 0}},
		},
	},
}

func GetPreset(name string) *Scene {
	return Presets[name]
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
