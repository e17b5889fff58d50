package tree

import "errors"

// Sequencing errors for topology mutation.
var (
	// ErrFinalized indicates a pre-finalize-only operation was called on a
	// finalized tree.
	ErrFinalized = errors.New("tree: topology is finalized")

	// ErrNotFinalized indicates a post-finalize-only operation was called
	// before Finalize.
	ErrNotFinalized = errors.New("tree: topology is not finalized yet")
)
