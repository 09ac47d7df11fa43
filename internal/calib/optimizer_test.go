package calib

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-logr/zapr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/calib/internal/logging"
)

func linearModel() Model {
	return ModelFunc(func(p ParameterVector) []float64 {
		return p.ValueSlice()
	})
}

func quadraticModel() Model {
	return ModelFunc(func(p ParameterVector) []float64 {
		x0, x1, x2 := p[0].Value, p[1].Value, p[2].Value
		return []float64{x0*x0 - x1*x1, x1 * x1, x2 * x2}
	})
}

// offsetModel has its minimum MSE of 1 at zero, and from zero the tiny
// one-sided slope sends every Gauss-Newton step far away.
func offsetModel() Model {
	return ModelFunc(func(p ParameterVector) []float64 {
		return []float64{p[0].Value*p[0].Value + 1}
	})
}

func TestOptimizeExactFit(t *testing.T) {
	opt := New(DefaultConfig())

	res, err := opt.Optimize(context.Background(), linearModel(), []float64{1, 2, 3}, Values(0, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, Converged, res.Status)
	assert.True(t, res.Converged())
	assert.LessOrEqual(t, res.MSE, DefaultTolerance)
	assert.Less(t, res.Iterations, 10)
	assert.InDeltaSlice(t, []float64{1, 2, 3}, res.Params.ValueSlice(), 1e-4)
	assert.Equal(t, 14.0, res.InitialMSE)
}

func TestOptimizeQuadraticScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tolerance = 1e-6
	opt := New(cfg)

	guess := ParameterVector{{Label: 1, Value: 2}, {Label: 2, Value: 2}, {Label: 3, Value: 2}}
	res, err := opt.Optimize(context.Background(), quadraticModel(), []float64{0, 2, 0}, guess)
	require.NoError(t, err)

	require.Equal(t, Converged, res.Status)
	assert.LessOrEqual(t, res.MSE, 1e-6)
	assert.Less(t, res.Iterations, cfg.MaxIterations)

	x0, x1, x2 := res.Params[0].Value, res.Params[1].Value, res.Params[2].Value
	assert.InDelta(t, 2.0, x1*x1, 1e-3)
	assert.InDelta(t, 0.0, x2*x2, 1e-3)
	assert.InDelta(t, 0.0, x0*x0-x1*x1, 1e-3)

	assert.Equal(t, []float64{1, 2, 3}, res.Params.Labels())
}

func TestOptimizeDoesNotMutateInputs(t *testing.T) {
	opt := New(DefaultConfig())

	guess := Values(0, 0, 0)
	target := []float64{1, 2, 3}

	_, err := opt.Optimize(context.Background(), linearModel(), target, guess)
	require.NoError(t, err)

	assert.Equal(t, Values(0, 0, 0), guess)
	assert.Equal(t, []float64{1, 2, 3}, target)
}

func TestOptimizeMonotoneAcceptance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tolerance = 1e-6
	opt := New(cfg)
	trace := NewTrace()
	opt.AddObserver(trace)

	guess := Values(2, 2, 2)
	_, err := opt.Optimize(context.Background(), quadraticModel(), []float64{0, 2, 0}, guess)
	require.NoError(t, err)
	require.NotZero(t, trace.Len())

	prevMSE := SquaredError(quadraticModel().Evaluate(guess), []float64{0, 2, 0})
	prevParams := guess
	for _, s := range trace.Steps {
		assert.LessOrEqual(t, s.MSE, prevMSE, "iteration %d", s.Iteration)
		if !s.Accepted {
			assert.Equal(t, prevMSE, s.MSE)
			assert.Equal(t, prevParams, s.Params)
		}
		prevMSE = s.MSE
		prevParams = s.Params
	}
}

func TestOptimizeDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tolerance = 1e-6

	run := func() *Result {
		res, err := New(cfg).Optimize(context.Background(), quadraticModel(), []float64{0, 2, 0}, Values(2, 2, 2))
		require.NoError(t, err)
		return res
	}

	a, b := run(), run()
	assert.Equal(t, a.Params, b.Params)
	assert.Equal(t, math.Float64bits(a.MSE), math.Float64bits(b.MSE))
	assert.Equal(t, a.Iterations, b.Iterations)
}

func TestOptimizeRankDeficient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 10
	opt := New(cfg)
	trace := NewTrace()
	opt.AddObserver(trace)

	model := ModelFunc(func(p ParameterVector) []float64 {
		return []float64{p[0].Value, 0}
	})

	guess := Values(0, 5)
	res, err := opt.Optimize(context.Background(), model, []float64{1, 1}, guess)
	require.NoError(t, err)

	assert.Equal(t, IterationsExhausted, res.Status)
	assert.False(t, res.Converged())
	assert.Equal(t, 10, res.Iterations)
	assert.Equal(t, guess, res.Params)
	require.Len(t, trace.Steps, 10)
	for _, s := range trace.Steps {
		assert.True(t, s.RankDeficient)
		assert.False(t, s.Accepted)
	}
}

func TestOptimizeDampingCap(t *testing.T) {
	tests := []struct {
		name        string
		base        float64
		policy      DampingPolicy
		wantStatus  Status
		wantErr     bool
		wantIterMax int
	}{
		{"reset policy never escalates", 0.1, ResetEachIteration, IterationsExhausted, false, 50},
		{"reset policy with large base", 15, ResetEachIteration, DampingExceeded, true, 0},
		{"escalate policy", 0.1, Escalate, DampingExceeded, true, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BaseDamping = tt.base
			cfg.Policy = tt.policy
			cfg.MaxIterations = 50

			res, err := New(cfg).Optimize(context.Background(), offsetModel(), []float64{0}, Values(0))
			require.NotNil(t, res)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantIterMax, res.Iterations)
			assert.Equal(t, 1.0, res.MSE)

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDampingCapExceeded)

			var calErr *CalibrationError
			require.True(t, errors.As(err, &calErr))
			assert.Equal(t, res.Iterations, calErr.Iteration)
		})
	}
}

func TestOptimizePreconditions(t *testing.T) {
	opt := New(DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		name   string
		model  Model
		target []float64
		guess  ParameterVector
		want   error
	}{
		{"empty guess", linearModel(), nil, nil, ErrEmptyParameters},
		{"target length", linearModel(), []float64{1}, Values(0, 0), ErrDimensionMismatch},
		{"output length", ModelFunc(func(p ParameterVector) []float64 { return []float64{1} }), []float64{1, 2}, Values(0, 0), ErrDimensionMismatch},
		{"nan guess", linearModel(), []float64{1}, Values(math.NaN()), ErrNonFinite},
		{"inf output", ModelFunc(func(p ParameterVector) []float64 { return []float64{math.Inf(1)} }), []float64{1}, Values(0), ErrNonFinite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := opt.Optimize(ctx, tt.model, tt.target, tt.guess)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOptimizeInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"negative damping", func(c *Config) { c.BaseDamping = -1 }},
		{"negative tolerance", func(c *Config) { c.Tolerance = -1e-8 }},
		{"nan tolerance", func(c *Config) { c.Tolerance = math.NaN() }},
		{"negative iterations", func(c *Config) { c.MaxIterations = -1 }},
		{"zero cap", func(c *Config) { c.DampingCap = 0 }},
		{"zero epsilon", func(c *Config) { c.Epsilon = 0 }},
		{"unknown policy", func(c *Config) { c.Policy = DampingPolicy(9) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			_, err := New(cfg).Optimize(context.Background(), linearModel(), []float64{1}, Values(0))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestOptimizeZeroToleranceRunsBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tolerance = 0
	cfg.MaxIterations = 30

	res, err := New(cfg).Optimize(context.Background(), linearModel(), []float64{1, 2}, Values(0, 0))
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Iterations, 30)
	assert.Less(t, res.MSE, 1e-20)
	if res.MSE > 0 {
		assert.Equal(t, IterationsExhausted, res.Status)
	}
}

func TestOptimizeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(DefaultConfig()).Optimize(ctx, linearModel(), []float64{1, 2}, Values(0, 0))

	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)

	var calErr *CalibrationError
	require.True(t, errors.As(err, &calErr))
	assert.Equal(t, 0, calErr.Iteration)
	assert.Equal(t, 5.0, calErr.MSE)
}

func TestOptimizeZeroIterationBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 0

	res, err := New(cfg).Optimize(context.Background(), linearModel(), []float64{1}, Values(0))
	require.NoError(t, err)

	assert.Equal(t, IterationsExhausted, res.Status)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, 1.0, res.MSE)
}

func TestOptimizeAlreadyConverged(t *testing.T) {
	res, err := New(DefaultConfig()).Optimize(context.Background(), linearModel(), []float64{1, 2}, Values(1, 2))
	require.NoError(t, err)

	assert.Equal(t, Converged, res.Status)
	assert.Equal(t, 0, res.Iterations)
}

func TestParseDampingPolicy(t *testing.T) {
	p, err := ParseDampingPolicy("Escalate")
	require.NoError(t, err)
	assert.Equal(t, Escalate, p)

	p, err = ParseDampingPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ResetEachIteration, p)

	_, err = ParseDampingPolicy("linear")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOptimizeLogsJacobianAtTrace(t *testing.T) {
	tests := []struct {
		name    string
		level   int
		columns int
	}{
		{"debug", logging.DEBUG, 0},
		{"trace", logging.TRACE, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.Level(-tt.level))
			cfg := DefaultConfig()
			cfg.MaxIterations = 1

			opt := New(cfg)
			opt.SetLogger(zapr.NewLogger(zap.New(core)))
			_, err := opt.Optimize(context.Background(), linearModel(), []float64{1, 2}, Values(0, 0))
			require.NoError(t, err)

			cols := logs.FilterMessage("jacobian column").All()
			require.Len(t, cols, tt.columns)
			assert.Equal(t, 1, logs.FilterMessage("iteration").Len())
			for j, entry := range cols {
				assert.EqualValues(t, j, entry.ContextMap()["column"])
			}
		})
	}
}
