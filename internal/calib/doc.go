// Package calib fits a vector-valued model to observed target values with a
// damped Gauss-Newton (Levenberg-Marquardt) iteration.
//
// The package is built from three pieces:
//
//   - [Jacobian]: finite-difference sensitivities of the model outputs
//   - [SolveStep]: damped normal-equation step with rank checking
//   - [Optimizer]: the accept/reject loop that owns the iteration state
//
// The model is an opaque [Model]; the optimizer only assumes that it is
// deterministic and returns as many outputs as there are parameters.
//
// # Example
//
//	model := calib.ModelFunc(func(p calib.ParameterVector) []float64 {
//		return []float64{p[0].Value * p[0].Value}
//	})
//	opt := calib.New(calib.DefaultConfig())
//	res, err := opt.Optimize(ctx, model, []float64{4}, calib.Values(1))
//
// # Bounds
//
// Box constraints are not supported. Parameters are moved freely by every
// accepted step; only the Jacobian keeps its lower perturbation non-negative.
//
// # Thread Safety
//
// Each call to [Optimizer.Optimize] runs synchronously and owns its iteration
// state. Optimizer instances are NOT thread-safe once observers are attached,
// since observers are called without locking.
package calib
