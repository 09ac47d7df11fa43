package experiment

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/calib/internal/calib"
	"github.com/san-kum/calib/internal/config"
	"github.com/san-kum/calib/internal/pricing"
)

var ErrUnknownModel = errors.New("experiment: unknown model")

// Builder creates a model sized for the job.
type Builder func(cfg *config.Config) (calib.Model, error)

type entry struct {
	build       Builder
	description string
}

type Registry struct {
	models map[string]entry
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]entry)}

	r.Register("quadratic", "[x0²−x1², x1², x2²] demo surface", fixedSize(3, Quadratic))
	r.Register("linear", "identity model", func(*config.Config) (calib.Model, error) {
		return Linear(), nil
	})
	r.Register("caplet", "Black caplet vol strip", strip(pricing.BlackCall, false))
	r.Register("cap", "Black cap vol strip, caplets summed by maturity", strip(pricing.BlackCall, true))
	r.Register("bachelier", "normal caplet vol strip", strip(pricing.BachelierCall, false))
	r.Register("digital", "Black digital caplet vol strip", strip(pricing.BlackDigitalCaplet, false))

	return r
}

func fixedSize(n int, model func() calib.Model) Builder {
	return func(cfg *config.Config) (calib.Model, error) {
		if len(cfg.InitialGuess) != n {
			return nil, fmt.Errorf("%w: model %s takes %d parameters, got %d",
				calib.ErrDimensionMismatch, cfg.Model, n, len(cfg.InitialGuess))
		}
		return model(), nil
	}
}

func strip(price Pricer, cumulative bool) Builder {
	return func(cfg *config.Config) (calib.Model, error) {
		return NewStrip(cfg.Market, len(cfg.InitialGuess), price, cumulative)
	}
}

// Register adds or replaces a model.
func (r *Registry) Register(name, description string, build Builder) {
	r.models[name] = entry{build: build, description: description}
}

func (r *Registry) GetModel(cfg *config.Config) (calib.Model, error) {
	e, ok := r.models[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, cfg.Model)
	}
	return e.build(cfg)
}

func (r *Registry) Describe(name string) string {
	return r.models[name].description
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Problem is everything the optimizer needs for one job.
type Problem struct {
	Model  calib.Model
	Target []float64
	Guess  calib.ParameterVector
}

// Problem validates the job and resolves its model, target and guess. A job
// without a target is calibrated to the model's outputs at SyntheticTruth.
func (r *Registry) Problem(cfg *config.Config) (*Problem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := r.GetModel(cfg)
	if err != nil {
		return nil, err
	}

	guess := cfg.Guess()
	target := append([]float64(nil), cfg.Target...)
	if len(target) == 0 {
		truth := guess.Clone()
		for i := range truth {
			truth[i].Value = cfg.SyntheticTruth[i]
		}
		target = model.Evaluate(truth)
		if !truth.IsValid() || !allFinite(target) {
			return nil, fmt.Errorf("%w: synthetic target for %s", calib.ErrNonFinite, cfg.Model)
		}
	}

	return &Problem{Model: model, Target: target, Guess: guess}, nil
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
