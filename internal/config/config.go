package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/calib/internal/calib"
)

const (
	DefaultModel        = "quadratic"
	DefaultPeriodLength = 1.0
	DefaultNominal      = 1.0
	DefaultLogLevel     = "info"
)

var ErrInvalidJob = errors.New("config: invalid calibration job")

// Config is a calibration job. Target may be left empty when SyntheticTruth
// is set, in which case the job calibrates back to model(SyntheticTruth).
type Config struct {
	Model          string            `yaml:"model"`
	Optimizer      OptimizerParams   `yaml:"optimizer"`
	InitialGuess   []calib.Parameter `yaml:"initial_guess"`
	Target         []float64         `yaml:"target,omitempty"`
	SyntheticTruth []float64         `yaml:"synthetic_truth,omitempty"`
	Market         MarketConfig      `yaml:"market"`
	Log            LogConfig         `yaml:"log"`
}

type OptimizerParams struct {
	BaseDamping   float64 `yaml:"base_damping"`
	Tolerance     float64 `yaml:"tolerance"`
	MaxIterations int     `yaml:"max_iterations"`
	DampingCap    float64 `yaml:"damping_cap"`
	Epsilon       float64 `yaml:"epsilon"`
	DampingPolicy string  `yaml:"damping_policy"`
}

// MarketConfig holds the inputs shared by every instrument of a vol strip.
// DiscountFactors has one entry per maturity, or a single entry used for all.
type MarketConfig struct {
	Forward         float64   `yaml:"forward"`
	Strike          float64   `yaml:"strike"`
	DiscountFactors []float64 `yaml:"discount_factors,omitempty"`
	PeriodLength    float64   `yaml:"period_length"`
	Nominal         float64   `yaml:"nominal"`
	Maturities      []float64 `yaml:"maturities,omitempty"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func DefaultConfig() *Config {
	return &Config{
		Model: DefaultModel,
		Optimizer: OptimizerParams{
			BaseDamping:   calib.DefaultBaseDamping,
			Tolerance:     calib.DefaultTolerance,
			MaxIterations: calib.DefaultMaxIterations,
			DampingCap:    calib.DefaultDampingCap,
			Epsilon:       calib.DefaultEpsilon,
			DampingPolicy: calib.ResetEachIteration.String(),
		},
		Market: MarketConfig{
			PeriodLength: DefaultPeriodLength,
			Nominal:      DefaultNominal,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// OptimizerConfig converts the optimizer section into a calib.Config.
func (c *Config) OptimizerConfig() (calib.Config, error) {
	policy, err := calib.ParseDampingPolicy(c.Optimizer.DampingPolicy)
	if err != nil {
		return calib.Config{}, err
	}
	oc := calib.Config{
		BaseDamping:   c.Optimizer.BaseDamping,
		Tolerance:     c.Optimizer.Tolerance,
		MaxIterations: c.Optimizer.MaxIterations,
		DampingCap:    c.Optimizer.DampingCap,
		Epsilon:       c.Optimizer.Epsilon,
		Policy:        policy,
	}
	if oc.Epsilon == 0 {
		oc.Epsilon = calib.DefaultEpsilon
	}
	return oc, oc.Validate()
}

// Guess returns the initial guess as a parameter vector.
func (c *Config) Guess() calib.ParameterVector {
	return calib.ParameterVector(c.InitialGuess).Clone()
}

// DiscountFactor returns the discount factor for the i-th maturity. It
// reports false when the list has more than one entry but none for i.
func (m MarketConfig) DiscountFactor(i int) (float64, bool) {
	switch {
	case len(m.DiscountFactors) == 0:
		return 1, true
	case len(m.DiscountFactors) == 1:
		return m.DiscountFactors[0], true
	case i < 0 || i >= len(m.DiscountFactors):
		return 0, false
	default:
		return m.DiscountFactors[i], true
	}
}

func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidJob)
	}
	if _, err := c.OptimizerConfig(); err != nil {
		return err
	}
	if len(c.InitialGuess) == 0 {
		return fmt.Errorf("%w: initial guess is empty", ErrInvalidJob)
	}
	if len(c.Target) == 0 && len(c.SyntheticTruth) == 0 {
		return fmt.Errorf("%w: neither target nor synthetic truth given", ErrInvalidJob)
	}
	if len(c.Target) > 0 && len(c.Target) != len(c.InitialGuess) {
		return fmt.Errorf("%w: %d targets for %d parameters", ErrInvalidJob, len(c.Target), len(c.InitialGuess))
	}
	if len(c.SyntheticTruth) > 0 && len(c.SyntheticTruth) != len(c.InitialGuess) {
		return fmt.Errorf("%w: %d truth values for %d parameters", ErrInvalidJob, len(c.SyntheticTruth), len(c.InitialGuess))
	}

	m := c.Market
	if n := len(m.Maturities); n > 0 && n != len(c.InitialGuess) {
		return fmt.Errorf("%w: %d maturities for %d parameters", ErrInvalidJob, n, len(c.InitialGuess))
	}
	if d := len(m.DiscountFactors); d > 1 && d != len(c.InitialGuess) {
		return fmt.Errorf("%w: %d discount factors for %d parameters", ErrInvalidJob, d, len(c.InitialGuess))
	}
	return nil
}

// Clone returns a deep copy so presets can be overridden safely.
func (c *Config) Clone() *Config {
	out := *c
	out.InitialGuess = append([]calib.Parameter(nil), c.InitialGuess...)
	out.Target = append([]float64(nil), c.Target...)
	out.SyntheticTruth = append([]float64(nil), c.SyntheticTruth...)
	out.Market.DiscountFactors = append([]float64(nil), c.Market.DiscountFactors...)
	out.Market.Maturities = append([]float64(nil), c.Market.Maturities...)
	return &out
}
