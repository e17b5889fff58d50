package control

import (
	"math"
	"testing"

	"github.com/san-kum/mbplant/internal/plant"
	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

func TestPIDOutput(t *testing.T) {
	c := NewPID(10, 0, 0, 1.0, 1e-3)
	if got := c.Output(0, 0); got != 10 {
		t.Errorf("proportional output = %g, want 10", got)
	}

	c = NewPID(0, 0, 2, 0, 1e-3)
	if got := c.Output(0, 3); got != -6 {
		t.Errorf("derivative output = %g, want -6", got)
	}

	c = NewPID(0, 100, 0, 1.0, 1e-3)
	c.Output(0, 0)
	c.Output(0, 0)
	// Two accumulations of err*dt at full error.
	if got := c.Output(0, 0); math.Abs(got-0.3) > 1e-12 {
		t.Errorf("integral output = %g, want 0.3", got)
	}
	c.Reset()
	if got := c.Output(1, 0); got != 0 {
		t.Errorf("output after reset = %g, want 0", got)
	}
}

func actuatedPendulum(t *testing.T) (*plant.Plant, tree.ActuatorIndex) {
	t.Helper()
	p, err := plant.New(1e-3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	arm, err := p.AddBody("arm", tree.DefaultModelInstance,
		tree.SpatialInertia{Mass: 1, Com: spatial.V3(0, 0, -0.5)})
	if err != nil {
		t.Fatalf("AddBody: %v", err)
	}
	j, err := p.AddJoint("pivot", tree.WorldBodyIndex, arm,
		tree.RevoluteKind{Axis: spatial.V3(0, 1, 0)}, spatial.IdentityPose())
	if err != nil {
		t.Fatalf("AddJoint: %v", err)
	}
	a, err := p.AddJointActuator("motor", j, 10)
	if err != nil {
		t.Fatalf("AddJointActuator: %v", err)
	}
	if err := p.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return p, a
}

func TestPIDHoldsPendulumAtTarget(t *testing.T) {
	p, a := actuatedPendulum(t)

	const target = 0.3
	c := NewPID(50, 5, 10, target, p.TimeStep())
	src, err := c.Source(p, a)
	if err != nil {
		t.Fatalf("Source: %v", err)
	}

	ctx, err := p.CreateDefaultContext()
	if err != nil {
		t.Fatalf("CreateDefaultContext: %v", err)
	}
	ctx.ConnectActuationSource(src)

	for i := 0; i < 3000; i++ {
		if err := p.Step(ctx); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}

	q := ctx.Positions()
	v := ctx.Velocities()
	if math.Abs(q[0]-target) > 0.05 {
		t.Errorf("angle = %g, want near %g", q[0], target)
	}
	if math.Abs(v[0]) > 0.2 {
		t.Errorf("angular velocity = %g, want near rest", v[0])
	}
}

func TestPIDSourceValidation(t *testing.T) {
	p, _ := actuatedPendulum(t)
	c := NewPID(1, 0, 0, 0, p.TimeStep())
	if _, err := c.Source(p, 99); err == nil {
		t.Error("expected error for unknown actuator")
	}
}
