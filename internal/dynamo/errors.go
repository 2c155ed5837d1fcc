package dynamo

import "errors"

// Domain errors shared by the simulation packages.
var (
	// ErrInvalidConfig indicates a startup parameter that cannot drive a run.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrInvalidPose indicates a pose holding NaN or Inf.
	ErrInvalidPose = errors.New("dynamo: invalid pose (NaN or Inf detected)")
)
