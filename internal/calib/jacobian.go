package calib

import "gonum.org/v1/gonum/mat"

// DefaultEpsilon is the perturbation width of the finite differences.
const DefaultEpsilon = 1e-5

// Jacobian estimates d model_i / d value_j at p with central differences of
// width eps. The lower point is kept non-negative by shrinking it towards
// zero, so each column is divided by the actual interval width.
func Jacobian(model Model, p ParameterVector, eps float64) *mat.Dense {
	n := len(p)
	jac := mat.NewDense(n, n, nil)

	for j := range p {
		sigma := p[j].Value

		lower := sigma - eps
		for lower < 0 {
			lower /= 10
		}
		upper := sigma + eps

		fLower := model.Evaluate(p.WithValue(j, lower))
		fUpper := model.Evaluate(p.WithValue(j, upper))

		width := eps + sigma - lower
		for i := 0; i < n; i++ {
			jac.Set(i, j, (fUpper[i]-fLower[i])/width)
		}
	}

	return jac
}
