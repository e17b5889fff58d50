package plant

import (
	"errors"
	"fmt"
)

var (
	// ErrFinalized marks a registration call arriving after Finalize.
	ErrFinalized = errors.New("plant: model is finalized, registration is closed")

	// ErrNotFinalized marks an evaluation call arriving before Finalize.
	ErrNotFinalized = errors.New("plant: call Finalize before evaluating")

	// ErrAlgebraicLoop marks a reentrant non-contact force evaluation.
	ErrAlgebraicLoop = errors.New("plant: algebraic loop")

	// ErrBothActuationInputs marks the aggregate and a per-instance actuation
	// input being connected at the same time.
	ErrBothActuationInputs = errors.New(
		"plant: both the aggregate actuation input and a per-model-instance actuation input " +
			"are connected; connect exactly one of them")

	// ErrQueryNotConnected marks a contact computation attempted without a
	// geometry query connection while collision geometries exist.
	ErrQueryNotConnected = errors.New("plant: geometry query input is not connected")
)

// loopError carries the structural-modeling diagnostic. The loop is not
// retried; the caller must change the model.
func loopError() error {
	return fmt.Errorf("%w: the non-contact force computation was re-entered while already "+
		"in progress, so an output of this computation feeds back into one of its own inputs. "+
		"Either (1) redesign the feedback so the input does not depend on this output, "+
		"(2) break the loop with a state/delay element, or "+
		"(3) insert a zero-order hold between the output and the input", ErrAlgebraicLoop)
}

// queryError names the output the caller was producing when the missing
// connection was discovered.
func queryError(output string) error {
	return fmt.Errorf("%w: cannot compute %s because collision geometries are registered "+
		"but no query object is connected; connect one with ConnectQueryProvider or "+
		"ConnectDefaultQuery", ErrQueryNotConnected, output)
}
