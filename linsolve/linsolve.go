/*
Package linsolve assembles and solves the sparse systems of the flow and transport
solvers.

Contributions are scattered into a dictionary of keys matrix, frozen to CSR, then
factored once. Direct methods factor a dense copy with gonum (Cholesky for the
symmetric positive definite flow operator, LU otherwise) and refuse matrices whose
condition estimate exceeds Options.CondLimit. Iterative methods run Jacobi
preconditioned CG or BiCGSTAB on the CSR matrix for systems too large to densify.
*/
package linsolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/gosubsurface/types"
	"github.com/notargets/gosubsurface/utils"
)

type Method uint8

const (
	Auto Method = iota
	Cholesky
	LU
	CG
	BiCGSTAB
)

func (m Method) String() string {
	switch m {
	case Auto:
		return "auto"
	case Cholesky:
		return "cholesky"
	case LU:
		return "lu"
	case CG:
		return "cg"
	case BiCGSTAB:
		return "bicgstab"
	}
	return "unknown"
}

func ParseMethod(name string) (Method, error) {
	for _, m := range []Method{Auto, Cholesky, LU, CG, BiCGSTAB} {
		if strings.EqualFold(strings.TrimSpace(name), m.String()) {
			return m, nil
		}
	}
	if name == "" {
		return Auto, nil
	}
	return Auto, fmt.Errorf("%w: unknown linear solver %q", types.ErrInvalidInput, name)
}

func (m Method) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Method) UnmarshalText(text []byte) (err error) {
	*m, err = ParseMethod(string(text))
	return
}

// ErrNotConverged is returned by the iterative methods when the residual target is not met
var ErrNotConverged = errors.New("linsolve: iteration did not converge")

const (
	DefaultCondLimit = 1.e15
	DefaultTol       = 1.e-12
	// DenseLimit is the largest system Auto factors directly. A direct factorization copies the
	// operator into an n x n dense matrix (8n² bytes, 18 MB at the limit) and costs O(n³), once
	// per distinct time step for the transport operator. Larger systems go to CG or BiCGSTAB
	DenseLimit = 1500
)

type Options struct {
	Method    Method  `json:"Method" toml:"Method"`
	Tol       float64 `json:"Tol" toml:"Tol"`             // relative residual for iterative methods
	MaxIter   int     `json:"MaxIter" toml:"MaxIter"`     // zero means 10 x N
	CondLimit float64 `json:"CondLimit" toml:"CondLimit"` // direct methods
	Symmetric bool    `json:"-" toml:"-"`                 // set by the caller that assembled the system
}

func (o Options) withDefaults(n int) Options {
	if o.Tol <= 0 {
		o.Tol = DefaultTol
	}
	if o.MaxIter <= 0 {
		o.MaxIter = 10 * n
		if o.MaxIter < 100 {
			o.MaxIter = 100
		}
	}
	if o.CondLimit <= 0 {
		o.CondLimit = DefaultCondLimit
	}
	if o.Method == Auto {
		switch {
		case n <= DenseLimit && o.Symmetric:
			o.Method = Cholesky
		case n <= DenseLimit:
			o.Method = LU
		case o.Symmetric:
			o.Method = CG
		default:
			o.Method = BiCGSTAB
		}
	}
	return o
}

// Stats describes the most recent factorization or solve
type Stats struct {
	Method     Method
	N, NNZ     int
	Cond       float64 // direct methods
	Iterations int     // iterative methods
	Residual   float64 // relative residual of the last iterative solve
}

// Solver is a factored operator, it may be applied to many right hand sides
type Solver interface {
	Solve(dst, b []float64) error
	Stats() Stats
}

// System is the assembly target, it lives for one solve
type System struct {
	N int
	A utils.DOK
	B []float64
}

func NewSystem(n int) *System {
	return &System{
		N: n,
		A: utils.NewDOK(n, n),
		B: make([]float64, n),
	}
}

func (s *System) Add(i, j int, v float64) { s.A.Add(i, j, v) }

func (s *System) AddRHS(i int, v float64) { s.B[i] += v }

// Factor freezes A and factors it with the method selected by opts
func Factor(A utils.CSR, opts Options) (s Solver, err error) {
	n, nc := A.Dims()
	if n != nc || n == 0 {
		return nil, fmt.Errorf("%w: cannot factor a %d x %d matrix", types.ErrInvalidInput, n, nc)
	}
	opts = opts.withDefaults(n)
	switch opts.Method {
	case Cholesky:
		return newCholesky(A, opts)
	case LU:
		return newLU(A, opts)
	case CG, BiCGSTAB:
		return newIterative(A, opts)
	}
	return nil, fmt.Errorf("%w: unknown linear solver %d", types.ErrInvalidInput, opts.Method)
}

// Solve factors the assembled system and solves it once
func (s *System) Solve(opts Options) (x []float64, st Stats, err error) {
	var solver Solver
	if solver, err = Factor(s.A.ToCSR(), opts); err != nil {
		return
	}
	x = make([]float64, s.N)
	err = solver.Solve(x, s.B)
	st = solver.Stats()
	return
}
