package experiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/san-kum/calib/internal/calib"
	"github.com/san-kum/calib/internal/config"
	"github.com/san-kum/calib/internal/metrics"
)

// Experiment runs one calibration job.
type Experiment struct {
	cfg       *config.Config
	problem   *Problem
	optimizer *calib.Optimizer
	trace     *calib.Trace
	metrics   *metrics.Collector
	log       logr.Logger
}

// Outcome is a finished run. Err is set when the optimizer stopped on the
// damping cap; Result is still populated in that case.
type Outcome struct {
	Result          *calib.Result
	Trace           *calib.Trace
	Target          []float64
	Elapsed         time.Duration
	Err             error
	Config          *config.Config
	OptimizerConfig calib.Config
	Metrics         map[string]float64
}

func New(cfg *config.Config, log logr.Logger) *Experiment {
	return &Experiment{cfg: cfg.Clone(), log: log.WithValues("model", cfg.Model)}
}

func (e *Experiment) Setup(reg *Registry) error {
	problem, err := reg.Problem(e.cfg)
	if err != nil {
		return err
	}
	oc, err := e.cfg.OptimizerConfig()
	if err != nil {
		return err
	}

	e.problem = problem
	e.trace = calib.NewTrace()
	e.metrics = metrics.Default()
	e.optimizer = calib.New(oc)
	e.optimizer.SetLogger(e.log)
	e.optimizer.AddObserver(e.trace)
	e.optimizer.AddObserver(e.metrics)

	e.log.V(1).Info("experiment ready", "parameters", len(problem.Guess), "policy", oc.Policy.String())
	return nil
}

// Run optimizes the job. Hitting the damping cap is reported through
// Outcome.Err; any other failure is returned as an error.
func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	if e.optimizer == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	start := time.Now()
	res, err := e.optimizer.Optimize(ctx, e.problem.Model, e.problem.Target, e.problem.Guess)
	if err != nil && !errors.Is(err, calib.ErrDampingCapExceeded) {
		return nil, err
	}

	return &Outcome{
		Result:          res,
		Trace:           e.trace,
		Target:          append([]float64(nil), e.problem.Target...),
		Elapsed:         time.Since(start),
		Err:             err,
		Config:          e.cfg,
		OptimizerConfig: e.optimizer.Config(),
		Metrics:         e.metrics.Values(),
	}, nil
}

// GetOptimizer returns the underlying optimizer for adding observers.
func (e *Experiment) GetOptimizer() *calib.Optimizer {
	return e.optimizer
}

func (e *Experiment) Problem() *Problem {
	return e.problem
}
