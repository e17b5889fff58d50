package solver

import (
	"fmt"

	"github.com/san-kum/mbplant/internal/contact"
)

// TamsiManager is the transition-aware semi-implicit backend. Friction
// transitions are already regularized by the Stribeck model upstream, so the
// velocity update is the shared scheme; what TAMSI contributes at this
// boundary is its compatibility contract: it handles contact only and
// rejects every declared constraint kind at finalize.
type TamsiManager struct{}

func (TamsiManager) Name() string { return "tamsi" }

func (TamsiManager) ValidateConstraints(set *ConstraintSet) error {
	if !set.Empty() {
		return constraintError("tamsi", set)
	}
	return nil
}

func (TamsiManager) CalcContactResults(p *Problem) (*contact.Results, error) {
	return EulerManager{}.CalcContactResults(p)
}

func (TamsiManager) CalcDiscreteValues(p *Problem) (*DiscreteValues, error) {
	return EulerManager{}.CalcDiscreteValues(p)
}

func (TamsiManager) CalcAccelerationKinematicsCache(p *Problem) (*AccelerationKinematics, error) {
	return EulerManager{}.CalcAccelerationKinematicsCache(p)
}

func (TamsiManager) EvalContactSolverResults(p *Problem) (*SolverResults, error) {
	return EulerManager{}.EvalContactSolverResults(p)
}

// constraintError names every declared constraint kind the backend cannot
// honor, so the finalize failure tells the user exactly what to remove or
// which solver to switch to.
func constraintError(solverName string, set *ConstraintSet) error {
	kinds := ""
	add := func(n int, kind string) {
		if n == 0 {
			return
		}
		if kinds != "" {
			kinds += ", "
		}
		kinds += fmt.Sprintf("%d %s", n, kind)
	}
	add(len(set.Couplers), "coupler")
	add(len(set.Distances), "distance")
	add(len(set.Balls), "ball")
	return fmt.Errorf("%w: the %s solver does not support constraints, but the model declares %s; "+
		"remove the constraints or select the sap solver", ErrConstraintUnsupported, solverName, kinds)
}
