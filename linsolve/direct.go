package linsolve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gosubsurface/types"
	"github.com/notargets/gosubsurface/utils"
)

type cholesky struct {
	chol  mat.Cholesky
	stats Stats
}

func newCholesky(A utils.CSR, opts Options) (Solver, error) {
	n, _ := A.Dims()
	if !A.IsSymmetric(1.e-10) {
		return nil, fmt.Errorf("%w: cholesky requested for a non symmetric matrix", types.ErrInvalidInput)
	}
	c := &cholesky{stats: Stats{Method: Cholesky, N: n, NNZ: A.NNZ()}}
	if ok := c.chol.Factorize(A.ToSymDense()); !ok {
		return nil, &types.SingularSystemError{Reason: "matrix is not positive definite", Node: -1}
	}
	c.stats.Cond = c.chol.Cond()
	if err := checkCond(c.stats.Cond, opts.CondLimit); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *cholesky) Solve(dst, b []float64) (err error) {
	x := mat.NewVecDense(len(dst), dst)
	if err = c.chol.SolveVecTo(x, mat.NewVecDense(len(b), append([]float64(nil), b...))); err != nil {
		return &types.SingularSystemError{Reason: err.Error(), Node: -1}
	}
	return checkFinite(dst)
}

func (c *cholesky) Stats() Stats { return c.stats }

type lu struct {
	lu    mat.LU
	stats Stats
}

func newLU(A utils.CSR, opts Options) (Solver, error) {
	n, _ := A.Dims()
	l := &lu{stats: Stats{Method: LU, N: n, NNZ: A.NNZ()}}
	l.lu.Factorize(A.ToDense())
	l.stats.Cond = l.lu.Cond()
	if err := checkCond(l.stats.Cond, opts.CondLimit); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *lu) Solve(dst, b []float64) (err error) {
	x := mat.NewVecDense(len(dst), dst)
	if err = l.lu.SolveVecTo(x, false, mat.NewVecDense(len(b), append([]float64(nil), b...))); err != nil {
		return &types.SingularSystemError{Reason: err.Error(), Node: -1}
	}
	return checkFinite(dst)
}

func (l *lu) Stats() Stats { return l.stats }

func checkCond(cond, limit float64) error {
	if math.IsNaN(cond) || math.IsInf(cond, 0) || cond > limit {
		return &types.SingularSystemError{
			Reason: fmt.Sprintf("condition estimate %g exceeds %g", cond, limit),
			Node:   -1,
		}
	}
	return nil
}

func checkFinite(x []float64) error {
	if bad := utils.AllFinite(x); bad >= 0 {
		return fmt.Errorf("%w: solution component %d is %g", types.ErrDivergedSolve, bad, x[bad])
	}
	return nil
}
