package linsolve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gosubsurface/types"
	"github.com/notargets/gosubsurface/utils"
)

// iterative runs Jacobi preconditioned Krylov iterations on the CSR operator
type iterative struct {
	A       utils.CSR
	invDiag []float64
	opts    Options
	stats   Stats
}

func newIterative(A utils.CSR, opts Options) (Solver, error) {
	n, _ := A.Dims()
	if opts.Method == CG && !A.IsSymmetric(1.e-10) {
		return nil, fmt.Errorf("%w: cg requested for a non symmetric matrix", types.ErrInvalidInput)
	}
	d := A.Diagonal()
	for i, v := range d {
		if v == 0 {
			return nil, &types.SingularSystemError{Reason: "zero diagonal", Node: i}
		}
		d[i] = 1 / v
	}
	it := &iterative{
		A:       A,
		invDiag: d,
		opts:    opts,
		stats:   Stats{Method: opts.Method, N: n, NNZ: A.NNZ()},
	}
	return it, nil
}

func (it *iterative) Stats() Stats { return it.stats }

func (it *iterative) Solve(dst, b []float64) (err error) {
	if len(dst) != len(b) || len(b) != it.stats.N {
		return fmt.Errorf("%w: right hand side length %d for a system of %d", types.ErrInvalidInput,
			len(b), it.stats.N)
	}
	for i := range dst {
		dst[i] = 0
	}
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		it.stats.Iterations, it.stats.Residual = 0, 0
		return nil
	}
	if it.opts.Method == CG {
		err = it.cg(dst, b, bnorm)
	} else {
		err = it.bicgstab(dst, b, bnorm)
	}
	if err != nil {
		return
	}
	return checkFinite(dst)
}

func (it *iterative) precondition(dst, r []float64) {
	for i := range r {
		dst[i] = it.invDiag[i] * r[i]
	}
}

func (it *iterative) cg(x, b []float64, bnorm float64) error {
	var (
		n  = len(b)
		r  = append([]float64(nil), b...)
		z  = make([]float64, n)
		p  = make([]float64, n)
		Ap = make([]float64, n)
	)
	it.precondition(z, r)
	copy(p, z)
	rz := floats.Dot(r, z)
	for k := 1; k <= it.opts.MaxIter; k++ {
		it.A.MulVec(Ap, p)
		pAp := floats.Dot(p, Ap)
		if pAp <= 0 {
			return &types.SingularSystemError{Reason: "matrix is not positive definite", Node: -1}
		}
		alpha := rz / pAp
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, Ap)
		it.stats.Iterations, it.stats.Residual = k, floats.Norm(r, 2)/bnorm
		if it.stats.Residual <= it.opts.Tol {
			return nil
		}
		it.precondition(z, r)
		rzNew := floats.Dot(r, z)
		beta := rzNew / rz
		rz = rzNew
		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
	}
	return fmt.Errorf("%w: cg residual %g after %d iterations", ErrNotConverged, it.stats.Residual, it.opts.MaxIter)
}

func (it *iterative) bicgstab(x, b []float64, bnorm float64) error {
	const breakdown = 1.e-300
	var (
		n    = len(b)
		r    = append([]float64(nil), b...)
		rHat = append([]float64(nil), b...)
		p    = make([]float64, n)
		v    = make([]float64, n)
		s    = make([]float64, n)
		t    = make([]float64, n)
		pHat = make([]float64, n)
		sHat = make([]float64, n)
	)
	rho, alpha, omega := 1., 1., 1.
	for k := 1; k <= it.opts.MaxIter; k++ {
		rhoNew := floats.Dot(rHat, r)
		if math.Abs(rhoNew) < breakdown {
			return fmt.Errorf("%w: bicgstab breakdown at iteration %d", ErrNotConverged, k)
		}
		if k == 1 {
			copy(p, r)
		} else {
			beta := (rhoNew / rho) * (alpha / omega)
			for i := range p {
				p[i] = r[i] + beta*(p[i]-omega*v[i])
			}
		}
		rho = rhoNew
		it.precondition(pHat, p)
		it.A.MulVec(v, pHat)
		alpha = rho / floats.Dot(rHat, v)
		for i := range s {
			s[i] = r[i] - alpha*v[i]
		}
		if sn := floats.Norm(s, 2) / bnorm; sn <= it.opts.Tol {
			floats.AddScaled(x, alpha, pHat)
			it.stats.Iterations, it.stats.Residual = k, sn
			return nil
		}
		it.precondition(sHat, s)
		it.A.MulVec(t, sHat)
		tt := floats.Dot(t, t)
		if tt == 0 {
			return fmt.Errorf("%w: bicgstab stagnated at iteration %d", ErrNotConverged, k)
		}
		omega = floats.Dot(t, s) / tt
		floats.AddScaled(x, alpha, pHat)
		floats.AddScaled(x, omega, sHat)
		for i := range r {
			r[i] = s[i] - omega*t[i]
		}
		it.stats.Iterations, it.stats.Residual = k, floats.Norm(r, 2)/bnorm
		if it.stats.Residual <= it.opts.Tol {
			return nil
		}
		if omega == 0 {
			return fmt.Errorf("%w: bicgstab stagnated at iteration %d", ErrNotConverged, k)
		}
	}
	return fmt.Errorf("%w: bicgstab residual %g after %d iterations", ErrNotConverged, it.stats.Residual,
		it.opts.MaxIter)
}
