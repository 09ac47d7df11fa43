package calib

import (
	"fmt"
	"math"
	"strings"
)

// DampingPolicy controls how the damping factor moves between iterations.
type DampingPolicy int

const (
	// ResetEachIteration starts every iteration from the base damping. A
	// rejection only doubles the damping of that iteration.
	ResetEachIteration DampingPolicy = iota
	// Escalate carries a rejection's doubled damping into the next iteration
	// and returns to the base damping after an accepted step.
	Escalate
)

func (p DampingPolicy) String() string {
	switch p {
	case ResetEachIteration:
		return "reset"
	case Escalate:
		return "escalate"
	default:
		return fmt.Sprintf("DampingPolicy(%d)", int(p))
	}
}

// ParseDampingPolicy accepts "reset" (or "") and "escalate".
func ParseDampingPolicy(s string) (DampingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reset":
		return ResetEachIteration, nil
	case "escalate":
		return Escalate, nil
	default:
		return 0, fmt.Errorf("%w: unknown damping policy %q", ErrInvalidConfig, s)
	}
}

const (
	DefaultBaseDamping   = 0.1
	DefaultTolerance     = 1e-8
	DefaultMaxIterations = 10000
	DefaultDampingCap    = 20.0
)

type Config struct {
	BaseDamping   float64
	Tolerance     float64
	MaxIterations int
	DampingCap    float64
	Epsilon       float64
	Policy        DampingPolicy
}

func DefaultConfig() Config {
	return Config{
		BaseDamping:   DefaultBaseDamping,
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
		DampingCap:    DefaultDampingCap,
		Epsilon:       DefaultEpsilon,
		Policy:        ResetEachIteration,
	}
}

func (c Config) Validate() error {
	if c.BaseDamping < 0 {
		return fmt.Errorf("%w: base damping must be non-negative, got %g", ErrInvalidConfig, c.BaseDamping)
	}
	if c.Tolerance < 0 || math.IsNaN(c.Tolerance) {
		return fmt.Errorf("%w: tolerance must be non-negative, got %g", ErrInvalidConfig, c.Tolerance)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("%w: max iterations must be non-negative, got %d", ErrInvalidConfig, c.MaxIterations)
	}
	if c.DampingCap <= 0 {
		return fmt.Errorf("%w: damping cap must be positive, got %g", ErrInvalidConfig, c.DampingCap)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("%w: epsilon must be positive, got %g", ErrInvalidConfig, c.Epsilon)
	}
	if c.Policy != ResetEachIteration && c.Policy != Escalate {
		return fmt.Errorf("%w: unknown damping policy %d", ErrInvalidConfig, int(c.Policy))
	}
	return nil
}
