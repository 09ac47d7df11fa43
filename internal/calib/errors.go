package calib

import (
	"errors"
	"fmt"
)

// Domain errors for calibration runs.
var (
	// ErrRankDeficient indicates the damped normal matrix is singular. It is
	// recovered inside the loop and only reported to observers.
	ErrRankDeficient = errors.New("calib: damped normal matrix is rank deficient")

	// ErrDampingCapExceeded indicates repeated rejections pushed the damping
	// factor past the configured cap.
	ErrDampingCapExceeded = errors.New("calib: damping factor exceeded cap")

	// ErrDimensionMismatch indicates the system is not square.
	ErrDimensionMismatch = errors.New("calib: dimension mismatch between parameters, outputs and target")

	// ErrEmptyParameters indicates an empty initial guess.
	ErrEmptyParameters = errors.New("calib: empty parameter vector")

	// ErrNonFinite indicates NaN or Inf in the initial guess or its outputs.
	ErrNonFinite = errors.New("calib: non-finite value (NaN or Inf detected)")

	// ErrInvalidConfig indicates optimizer settings outside their valid range.
	ErrInvalidConfig = errors.New("calib: invalid optimizer config")
)

// CalibrationError wraps an error with the state of the run when it stopped.
type CalibrationError struct {
	Iteration int
	MSE       float64
	Params    ParameterVector
	Wrapped   error
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("iteration %d (mse=%.6g): %v", e.Iteration, e.MSE, e.Wrapped)
}

func (e *CalibrationError) Unwrap() error {
	return e.Wrapped
}
