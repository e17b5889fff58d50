package solver

import (
	"github.com/san-kum/mbplant/internal/contact"
	"github.com/san-kum/mbplant/internal/tree"
)

// SapManager is the convex backend. It accepts every declared constraint
// kind; the constraints enter the force balance as compliant reactions with
// step-scaled critically damped parameters.
type SapManager struct{}

func (SapManager) Name() string { return "sap" }

func (SapManager) ValidateConstraints(*ConstraintSet) error { return nil }

func (SapManager) CalcContactResults(p *Problem) (*contact.Results, error) {
	return EulerManager{}.CalcContactResults(p)
}

func (m SapManager) CalcDiscreteValues(p *Problem) (*DiscreteValues, error) {
	f, _, err := totalForces(p)
	if err != nil {
		return nil, err
	}
	addConstraintForces(p, f)
	dv, _, err := stepEuler(p, f)
	return dv, err
}

func (m SapManager) CalcAccelerationKinematicsCache(p *Problem) (*AccelerationKinematics, error) {
	f, _, err := totalForces(p)
	if err != nil {
		return nil, err
	}
	addConstraintForces(p, f)
	_, vdot, err := stepEuler(p, f)
	if err != nil {
		return nil, err
	}
	return &AccelerationKinematics{VDot: vdot}, nil
}

func (m SapManager) EvalContactSolverResults(p *Problem) (*SolverResults, error) {
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
	addConstraintForces(p, f)

	dv, _, err := stepEuler(p, f)
	if err != nil {
		return nil, err
	}
	return &SolverResults{
		VNext:                    dv.VNext,
		GeneralizedContactForces: generalizedContactForces(p, contactForces),
	}, nil
}

// Kind selects a backend by name, for config files and the CLI.
type Kind string

const (
	KindTamsi Kind = "tamsi"
	KindSap   Kind = "sap"
	KindEuler Kind = "euler"
)

// ManagerFor returns the backend for a kind; unknown kinds get the default
// TAMSI backend and false.
func ManagerFor(k Kind) (Manager, bool) {
	switch k {
	case KindTamsi:
		return TamsiManager{}, true
	case KindSap:
		return SapManager{}, true
	case KindEuler:
		return EulerManager{}, true
	}
	return TamsiManager{}, false
}
