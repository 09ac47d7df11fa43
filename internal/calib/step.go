package calib

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// machineEpsilon matches the float64 epsilon used for the rank tolerance.
const machineEpsilon = 2.220446049250313e-16

// NormalMatrix returns JᵀJ + damping·diag(JᵀJ).
func NormalMatrix(jac mat.Matrix, damping float64) *mat.Dense {
	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)

	n, _ := jtj.Dims()
	m := mat.DenseCopyOf(&jtj)
	for i := 0; i < n; i++ {
		m.Set(i, i, jtj.At(i, i)+damping*jtj.At(i, i))
	}
	return m
}

// Rank counts singular values above max(σ)·n·eps.
func Rank(m mat.Matrix) int {
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDNone) {
		return 0
	}
	values := svd.Values(nil)
	if len(values) == 0 {
		return 0
	}

	r, c := m.Dims()
	tol := values[0] * float64(max(r, c)) * machineEpsilon

	rank := 0
	for _, s := range values {
		if s > tol {
			rank++
		}
	}
	return rank
}

// SolveStep solves the damped normal equations for the update
// (JᵀJ + λ·diag(JᵀJ)) Δx = Jᵀ r. It returns ErrRankDeficient instead of
// inverting a singular system. Inputs are not modified.
func SolveStep(jac mat.Matrix, residual []float64, damping float64) ([]float64, error) {
	rows, cols := jac.Dims()
	if rows != len(residual) {
		return nil, ErrDimensionMismatch
	}

	m := NormalMatrix(jac, damping)
	if Rank(m) != cols {
		return nil, ErrRankDeficient
	}

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, ErrRankDeficient
		}
	}

	var grad mat.VecDense
	grad.MulVec(jac.T(), mat.NewVecDense(rows, append([]float64(nil), residual...)))

	var delta mat.VecDense
	delta.MulVec(&inv, &grad)

	out := make([]float64, cols)
	for i := range out {
		out[i] = delta.AtVec(i)
	}
	if !finite(out) {
		return nil, ErrRankDeficient
	}
	return out, nil
}
