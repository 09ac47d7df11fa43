package optim

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/calib/internal/calib"
	"github.com/san-kum/calib/internal/config"
	"github.com/san-kum/calib/internal/experiment"
)

// GridSearch runs one job under every combination of optimizer settings.
// Empty axes keep the job's own value.
type GridSearch struct {
	BaseDampings []float64
	Policies     []string
	Epsilons     []float64
	// Workers bounds concurrent runs; zero or less means one.
	Workers int
}

type Point struct {
	BaseDamping float64 `json:"base_damping"`
	Policy      string  `json:"damping_policy"`
	Epsilon     float64 `json:"epsilon"`
}

type PointResult struct {
	Point      Point   `json:"point"`
	Status     string  `json:"status"`
	Iterations int     `json:"iterations"`
	MSE        float64 `json:"mse"`
	Accepted   int     `json:"accepted"`
}

func (r PointResult) Converged() bool {
	return r.Status == calib.Converged.String()
}

func (g *GridSearch) points(base *config.Config) []Point {
	dampings := g.BaseDampings
	if len(dampings) == 0 {
		dampings = []float64{base.Optimizer.BaseDamping}
	}
	policies := g.Policies
	if len(policies) == 0 {
		policies = []string{base.Optimizer.DampingPolicy}
	}
	epsilons := g.Epsilons
	if len(epsilons) == 0 {
		epsilons = []float64{base.Optimizer.Epsilon}
	}

	points := make([]Point, 0, len(dampings)*len(policies)*len(epsilons))
	for _, d := range dampings {
		for _, p := range policies {
			for _, e := range epsilons {
				points = append(points, Point{BaseDamping: d, Policy: p, Epsilon: e})
			}
		}
	}
	return points
}

// Search runs every grid point and returns the results in grid order. A
// point that trips the damping cap is a result, not an error.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, reg *experiment.Registry, log logr.Logger) ([]PointResult, error) {
	points := g.points(base)
	results := make([]PointResult, len(points))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(g.Workers, 1))

	for i, pt := range points {
		eg.Go(func() error {
			cfg := base.Clone()
			cfg.Optimizer.BaseDamping = pt.BaseDamping
			cfg.Optimizer.DampingPolicy = pt.Policy
			cfg.Optimizer.Epsilon = pt.Epsilon

			exp := experiment.New(cfg, log.WithValues("point", i))
			if err := exp.Setup(reg); err != nil {
				return err
			}
			out, err := exp.Run(ctx)
			if err != nil {
				return err
			}

			results[i] = PointResult{
				Point:      pt,
				Status:     out.Result.Status.String(),
				Iterations: out.Result.Iterations,
				MSE:        out.Result.MSE,
				Accepted:   out.Trace.Accepted(),
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

var ErrNoConverged = errors.New("optim: no grid point converged")

// Best picks the converged point with the fewest iterations, breaking ties
// on the lower error.
func Best(results []PointResult) (PointResult, error) {
	best := PointResult{MSE: math.Inf(1), Iterations: math.MaxInt}
	found := false
	for _, r := range results {
		if !r.Converged() {
			continue
		}
		if r.Iterations < best.Iterations || (r.Iterations == best.Iterations && r.MSE < best.MSE) {
			best = r
			found = true
		}
	}
	if !found {
		return PointResult{}, ErrNoConverged
	}
	return best, nil
}

// Ranked returns the results ordered best first: converged before not, then
// by iterations and error.
func Ranked(results []PointResult) []PointResult {
	out := append([]PointResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Converged() != b.Converged() {
			return a.Converged()
		}
		if a.Iterations != b.Iterations {
			return a.Iterations < b.Iterations
		}
		return a.MSE < b.MSE
	})
	return out
}
