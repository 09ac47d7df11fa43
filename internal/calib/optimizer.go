package calib

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/calib/internal/logging"
)

// Status tags how a run ended.
type Status int

const (
	// Converged means the objective reached the tolerance.
	Converged Status = iota
	// DampingExceeded means the run was aborted by the damping cap.
	DampingExceeded
	// IterationsExhausted means the iteration budget ran out first. The
	// result holds the best state found.
	IterationsExhausted
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case DampingExceeded:
		return "damping_exceeded"
	case IterationsExhausted:
		return "iterations_exhausted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type Result struct {
	Status     Status
	Params     ParameterVector
	Outputs    []float64
	MSE        float64
	InitialMSE float64
	Iterations int
}

func (r *Result) Converged() bool { return r != nil && r.Status == Converged }

type Optimizer struct {
	cfg       Config
	log       logr.Logger
	observers []Observer
}

func New(cfg Config) *Optimizer {
	return &Optimizer{
		cfg:       cfg,
		log:       logr.Discard(),
		observers: make([]Observer, 0),
	}
}

func (o *Optimizer) Config() Config { return o.cfg }

func (o *Optimizer) SetLogger(l logr.Logger) { o.log = l }
func (o *Optimizer) AddObserver(obs Observer) { o.observers = append(o.observers, obs) }

// Optimize minimises SquaredError(model(p), target) starting from guess.
// Neither guess nor target is modified.
//
// A run stopped by the damping cap returns its last accepted state together
// with an error wrapping ErrDampingCapExceeded. Running out of iterations is
// not an error; check Result.Status.
func (o *Optimizer) Optimize(ctx context.Context, model Model, target []float64, guess ParameterVector) (*Result, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	n := len(guess)
	if n == 0 {
		return nil, ErrEmptyParameters
	}
	if len(target) != n {
		return nil, fmt.Errorf("%w: %d parameters, %d targets", ErrDimensionMismatch, n, len(target))
	}
	if !guess.IsValid() || !finite(target) {
		return nil, ErrNonFinite
	}

	tgt := append([]float64(nil), target...)
	params := guess.Clone()

	outputs := model.Evaluate(params)
	if len(outputs) != n {
		return nil, fmt.Errorf("%w: %d parameters, %d model outputs", ErrDimensionMismatch, n, len(outputs))
	}
	if !finite(outputs) {
		return nil, ErrNonFinite
	}
	mse := SquaredError(outputs, tgt)
	initial := mse

	base := o.cfg.BaseDamping
	damping := base
	iteration := 0

	for mse > o.cfg.Tolerance && iteration < o.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, &CalibrationError{Iteration: iteration, MSE: mse, Params: params, Wrapped: err}
		}

		if o.cfg.Policy == ResetEachIteration {
			damping = base
		}

		step := Step{Iteration: iteration + 1, CandidateMSE: mse}

		jac := Jacobian(model, params, o.cfg.Epsilon)
		if trace := o.log.V(logging.TRACE); trace.Enabled() {
			for j := range params {
				trace.Info("jacobian column", "iteration", step.Iteration, "column", j, "values", mat.Col(nil, j, jac))
			}
		}
		delta, err := SolveStep(jac, residual(outputs, tgt), damping)
		if err != nil {
			step.RankDeficient = true
		} else {
			candidate := params.Shift(delta)
			candidateOut := model.Evaluate(candidate)
			if len(candidateOut) == n {
				step.CandidateMSE = SquaredError(candidateOut, tgt)
				if step.CandidateMSE < mse {
					params = candidate
					outputs = candidateOut
					mse = step.CandidateMSE
					step.Accepted = true
				}
			}
		}

		if !step.Accepted {
			damping *= 2
		} else if o.cfg.Policy == Escalate {
			damping = base
		}

		step.MSE = mse
		step.Damping = damping
		step.Params = params
		o.notify(step)

		if damping > o.cfg.DampingCap {
			res := o.result(DampingExceeded, params, outputs, mse, iteration)
			res.InitialMSE = initial
			return res, &CalibrationError{
				Iteration: iteration,
				MSE:       mse,
				Params:    params.Clone(),
				Wrapped:   fmt.Errorf("%w: %g > %g", ErrDampingCapExceeded, damping, o.cfg.DampingCap),
			}
		}

		iteration++
	}

	status := Converged
	if mse > o.cfg.Tolerance {
		status = IterationsExhausted
	}
	res := o.result(status, params, outputs, mse, iteration)
	res.InitialMSE = initial
	return res, nil
}

func (o *Optimizer) notify(s Step) {
	o.log.V(1).Info("iteration",
		"iteration", s.Iteration,
		"mse", s.MSE,
		"candidateMSE", s.CandidateMSE,
		"damping", s.Damping,
		"accepted", s.Accepted,
		"rankDeficient", s.RankDeficient,
	)
	for _, obs := range o.observers {
		obs.OnIteration(s)
	}
}

func (o *Optimizer) result(status Status, params ParameterVector, outputs []float64, mse float64, iterations int) *Result {
	o.log.Info("calibration finished", "status", status.String(), "iterations", iterations, "mse", mse)
	return &Result{
		Status:     status,
		Params:     params.Clone(),
		Outputs:    append([]float64(nil), outputs...),
		MSE:        mse,
		Iterations: iterations,
	}
}
