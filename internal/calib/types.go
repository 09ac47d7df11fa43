package calib

import (
	"fmt"
	"math"
)

// Parameter is one free coordinate of a calibration. Label identifies the
// coordinate (a tenor, an index) and is never touched by the optimizer.
type Parameter struct {
	Label float64 `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
}

// ParameterVector is used as a value type: every update returns a new vector.
type ParameterVector []Parameter

// Values builds a vector labelled 0..n-1.
func Values(values ...float64) ParameterVector {
	p := make(ParameterVector, len(values))
	for i, v := range values {
		p[i] = Parameter{Label: float64(i), Value: v}
	}
	return p
}

// Labelled builds a vector from parallel label and value slices.
func Labelled(labels, values []float64) (ParameterVector, error) {
	if len(labels) != len(values) {
		return nil, fmt.Errorf("%w: %d labels, %d values", ErrDimensionMismatch, len(labels), len(values))
	}
	p := make(ParameterVector, len(values))
	for i := range values {
		p[i] = Parameter{Label: labels[i], Value: values[i]}
	}
	return p, nil
}

func (p ParameterVector) Clone() ParameterVector {
	c := make(ParameterVector, len(p))
	copy(c, p)
	return c
}

// WithValue returns a copy of p with the value at index i replaced.
func (p ParameterVector) WithValue(i int, v float64) ParameterVector {
	c := p.Clone()
	c[i].Value = v
	return c
}

// Shift returns a copy of p with delta added to the values.
func (p ParameterVector) Shift(delta []float64) ParameterVector {
	c := p.Clone()
	for i := range c {
		if i < len(delta) {
			c[i].Value += delta[i]
		}
	}
	return c
}

func (p ParameterVector) ValueSlice() []float64 {
	v := make([]float64, len(p))
	for i := range p {
		v[i] = p[i].Value
	}
	return v
}

func (p ParameterVector) Labels() []float64 {
	l := make([]float64, len(p))
	for i := range p {
		l[i] = p[i].Label
	}
	return l
}

func (p ParameterVector) IsValid() bool {
	for _, q := range p {
		if math.IsNaN(q.Value) || math.IsInf(q.Value, 0) {
			return false
		}
	}
	return true
}

// Model maps a parameter vector to model outputs. Implementations must be
// deterministic and free of side effects.
type Model interface {
	Evaluate(p ParameterVector) []float64
}

// ModelFunc adapts a plain function to Model.
type ModelFunc func(p ParameterVector) []float64

func (f ModelFunc) Evaluate(p ParameterVector) []float64 { return f(p) }

// SquaredError is the calibration objective: the sum of squared residuals.
func SquaredError(outputs, target []float64) float64 {
	sum := 0.0
	for i := range outputs {
		if i >= len(target) {
			break
		}
		d := outputs[i] - target[i]
		sum += d * d
	}
	return sum
}

func residual(outputs, target []float64) []float64 {
	r := make([]float64, len(target))
	for i := range target {
		r[i] = target[i] - outputs[i]
	}
	return r
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
