package solver

import (
	"github.com/san-kum/mbplant/internal/contact"
	"github.com/san-kum/mbplant/internal/tree"
)

// EulerManager is the fallback backend: contact forces enter the balance
// explicitly and the step is plain explicit Euler. It accepts no constraints
// because nothing in the scheme enforces them.
type EulerManager struct{}

func (EulerManager) Name() string { return "euler" }

func (EulerManager) ValidateConstraints(set *ConstraintSet) error {
	if !set.Empty() {
		return constraintError("euler", set)
	}
	return nil
}

func (EulerManager) CalcContactResults(p *Problem) (*contact.Results, error) {
	_, results, err := totalForces(p)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = &contact.Results{}
	}
	return results, nil
}

func (EulerManager) CalcDiscreteValues(p *Problem) (*DiscreteValues, error) {
	f, _, err := totalForces(p)
	if err != nil {
		return nil, err
	}
	dv, _, err := stepEuler(p, f)
	return dv, err
}

func (EulerManager) CalcAccelerationKinematicsCache(p *Problem) (*AccelerationKinematics, error) {
	f, _, err := totalForces(p)
	if err != nil {
		return nil, err
	}
	_, vdot, err := stepEuler(p, f)
	if err != nil {
		return nil, err
	}
	return &AccelerationKinematics{VDot: vdot}, nil
}

func (EulerManager) EvalContactSolverResults(p *Problem) (*SolverResults, error) {
	f := tree.NewForces(p.Tree)
	f.AddIn(p.NonContactForces)

	var contactForces *tree.Forces
	if p.EvalContact != nil {
		_, cf, err := p.EvalContact()
		if err != nil {
			return nil, err
		}
		contactForces = cf
		if cf != nil {
			f.AddIn(cf)
		}
	}

	dv, _, err := stepEuler(p, f)
	if err != nil {
		return nil, err
	}
	return &SolverResults{
		VNext:                    dv.VNext,
		GeneralizedContactForces: generalizedContactForces(p, contactForces),
	}, nil
}
