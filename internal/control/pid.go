// Package control provides simple joint-space controllers that feed the
// plant's actuation input.
package control

import (
	"fmt"
	"math"

	"github.com/san-kum/mbplant/internal/plant"
	"github.com/san-kum/mbplant/internal/tree"
)

// PID tracks a target position on one single-DOF joint. The derivative term
// uses the measured joint velocity, so no error differencing is needed.
type PID struct {
	Kp, Ki, Kd float64
	Target     float64

	dt       float64
	integral float64
}

func NewPID(kp, ki, kd, target, dt float64) *PID {
	return &PID{Kp: kp, Ki: ki, Kd: kd, Target: target, dt: dt}
}

// Output computes the command torque from the measured position and
// velocity, accumulating the integral term per call.
func (c *PID) Output(pos, vel float64) float64 {
	err := c.Target - pos
	c.integral += err * c.dt
	return c.Kp*err + c.Ki*c.integral - c.Kd*vel
}

func (c *PID) Reset() { c.integral = 0 }

// Source binds the controller to one actuator as a demand-driven actuation
// input. The commanded torque is clipped to the actuator's effort limit.
func (c *PID) Source(p *plant.Plant, actuator tree.ActuatorIndex) (plant.ActuationSource, error) {
	t := p.Tree()
	if int(actuator) >= t.NumActuators() || actuator < 0 {
		return nil, fmt.Errorf("control: unknown actuator %d", actuator)
	}
	act := t.Actuator(actuator)
	joint := t.Joint(act.Joint)
	if joint.NumVelocities() != 1 {
		return nil, fmt.Errorf("control: actuator %q drives a multi-DOF joint", act.Name)
	}
	ps := joint.PositionStart()
	vs := joint.VelocityStart()
	limit := act.EffortLimit

	return func(ctx *plant.Context) ([]float64, error) {
		q := ctx.Positions()
		v := ctx.Velocities()
		u := make([]float64, t.NumActuators())
		cmd := c.Output(q[ps], v[vs])
		if limit > 0 {
			cmd = math.Max(-limit, math.Min(limit, cmd))
		}
		u[act.Index] = cmd
		return u, nil
	}, nil
}
