/*
Package fv integrates transient advection-diffusion of a cell centered concentration
on a triangle mesh with a finite volume scheme.

The face flux leaving cell P toward N is J = bP cP - bN cN with

	bP = D A(|Pe|) + max(F, 0)
	bN = D A(|Pe|) + max(-F, 0)

where D is the face diffusive conductance, F the face volume flux and A the weighting
of the selected Scheme. Time is integrated with the theta method, one factorization per
distinct step size. The solver is stateless: a run is continued by passing the final
frame of one Result as the Initial field of the next Problem.
*/
package fv

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/gosubsurface/bcs"
	"github.com/notargets/gosubsurface/field"
	"github.com/notargets/gosubsurface/linsolve"
	"github.com/notargets/gosubsurface/logging"
	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
	"github.com/notargets/gosubsurface/utils"
)

type Problem struct {
	Mesh      mesh.Mesh
	Diffusion []float64            // per cell, dispersion included
	Source    []float64            // per cell rate, nil for none
	Velocity  field.Vector         // node or cell centered, nil Values for none
	BC        *bcs.FaceConstraints // nil leaves every boundary closed
	Initial   field.Scalar         // cell centered
	Times     []float64
}

const DefaultNegativeTolerance = 1.e-10

type Options struct {
	Scheme Scheme
	// Theta weights the implicit side, zero selects backward Euler (1), 0.5 is Crank-Nicolson
	Theta  float64
	Solver linsolve.Options
	// NegativeTolerance is the undershoot below zero that raises a warning
	NegativeTolerance float64
	// ClampNegative resets negative values to zero after each step, this adds mass
	ClampNegative bool
	// ReturnPartial returns the frames computed before a failed step along with the error
	ReturnPartial bool
	Verbose       bool
	Logger        logging.Logger
}

type Result struct {
	Series   *field.Series
	Warnings []types.NegativeConcentrationWarning
	// Factorizations counts the distinct step sizes factored
	Factorizations int
	PecletMax      float64
}

func (o Options) withDefaults() Options {
	if o.Theta == 0 {
		o.Theta = 1
	}
	if o.NegativeTolerance <= 0 {
		o.NegativeTolerance = DefaultNegativeTolerance
	}
	return o
}

// Solve integrates p over p.Times. The returned series starts with a copy of p.Initial
func Solve(ctx context.Context, p Problem, opts Options) (res *Result, err error) {
	opts = opts.withDefaults()
	log := logging.OrNoOp(opts.Logger).With("solver", "fv", "scheme", opts.Scheme.String())
	if err = validate(p, opts); err != nil {
		return
	}
	if p.BC == nil {
		p.BC = &bcs.FaceConstraints{}
	}
	if p.Velocity.Values == nil {
		p.Velocity = field.NewVector(types.CellCentered, p.Mesh.CellCount())
	}
	var (
		op      = assemble(p, opts.Scheme)
		N       = p.Mesh.CellCount()
		c       = append([]float64(nil), p.Initial.Values...)
		rhs     = make([]float64, N)
		Ac      = make([]float64, N)
		solvers stepCache
	)
	res = &Result{Series: &field.Series{}, PecletMax: op.peMax}
	if err = res.Series.Append(p.Times[0], field.CellScalar(append([]float64(nil), c...))); err != nil {
		return nil, err
	}
	log.Debug("transport operator assembled", "cells", N, "nnz", op.A.NNZ(), "pecletMax", op.peMax)

	fail := func(step int, cause error) (*Result, error) {
		derr := &types.DivergedSolveError{Step: step, Time: p.Times[step], Wrapped: cause}
		log.Error("transport step failed", "step", step, "time", p.Times[step], "err", cause)
		if opts.ReturnPartial {
			return res, derr
		}
		return nil, derr
	}

	for n := 1; n < len(p.Times); n++ {
		if cerr := ctx.Err(); cerr != nil {
			if opts.ReturnPartial {
				return res, cerr
			}
			return nil, cerr
		}
		dt, solver := solvers.get(p.Times[n] - p.Times[n-1])
		if solver == nil {
			sopts := opts.Solver
			sopts.Symmetric = false
			if solver, err = linsolve.Factor(op.stepMatrix(dt, opts.Theta), sopts); err != nil {
				return fail(n, err)
			}
			solvers.put(dt, solver)
			res.Factorizations++
		}
		op.rhs(rhs, c, Ac, p.Source, dt, opts.Theta)
		next := make([]float64, N)
		if err = solver.Solve(next, rhs); err != nil {
			return fail(n, err)
		}
		if bad := utils.AllFinite(next); bad >= 0 {
			return fail(n, fmt.Errorf("concentration in cell %d is %g", bad, next[bad]))
		}
		if w, found := checkNegative(next, n, p.Times[n], opts); found {
			res.Warnings = append(res.Warnings, w)
			log.Warn("negative concentration", "step", n, "time", p.Times[n], "cell", w.Cell,
				"min", w.Min, "clamped", w.Clamped)
		}
		if err = res.Series.Append(p.Times[n], field.CellScalar(next)); err != nil {
			return nil, err
		}
		c = next
		if opts.Verbose {
			log.Info("transport step", "step", n, "time", p.Times[n], "dt", dt)
		}
	}
	if opts.Verbose {
		log.Info("transport solved", "steps", len(p.Times)-1, "factorizations", res.Factorizations,
			"warnings", len(res.Warnings))
	}
	return
}

// stepCache holds one factorization per step size. Step sizes computed from output
// times differ in the last bits, sizes within a relative 1e-12 share a factorization
type stepCache struct {
	dts     []float64
	solvers []linsolve.Solver
}

// get returns the cached step size matching dt and its solver, or dt and nil
func (sc *stepCache) get(dt float64) (float64, linsolve.Solver) {
	for i, d := range sc.dts {
		if math.Abs(d-dt) <= 1.e-12*math.Max(d, dt) {
			return d, sc.solvers[i]
		}
	}
	return dt, nil
}

func (sc *stepCache) put(dt float64, s linsolve.Solver) {
	sc.dts = append(sc.dts, dt)
	sc.solvers = append(sc.solvers, s)
}

func checkNegative(c []float64, step int, t float64, opts Options) (w types.NegativeConcentrationWarning,
	found bool) {
	w = types.NegativeConcentrationWarning{Step: step, Time: t, Cell: -1, Min: math.Inf(1)}
	for k, v := range c {
		if v < w.Min {
			w.Min, w.Cell = v, k
		}
	}
	if !(w.Min < -opts.NegativeTolerance) {
		return w, false
	}
	if opts.ClampNegative {
		for k, v := range c {
			if v < 0 {
				c[k] = 0
			}
		}
		w.Clamped = true
	}
	return w, true
}

// Validate checks the time weighting and the scheme selector
func (o Options) Validate() error {
	o = o.withDefaults()
	if !(o.Theta > 0 && o.Theta <= 1) {
		return fmt.Errorf("%w: theta %g outside (0, 1]", types.ErrInvalidInput, o.Theta)
	}
	if _, ok := schemeNames[o.Scheme]; !ok {
		return fmt.Errorf("%w: unknown advection scheme %d", types.ErrInvalidInput, o.Scheme)
	}
	return nil
}

// validate runs every shape and value check before stepping starts
func validate(p Problem, opts Options) error {
	if p.Mesh == nil {
		return fmt.Errorf("%w: no mesh", types.ErrInvalidInput)
	}
	N := p.Mesh.CellCount()
	if err := opts.Validate(); err != nil {
		return err
	}
	if len(p.Times) < 1 {
		return fmt.Errorf("%w: no output times", types.ErrInvalidInput)
	}
	for i, t := range p.Times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: time %d is %g", types.ErrInvalidInput, i, t)
		}
		if i > 0 && !(t > p.Times[i-1]) {
			return fmt.Errorf("%w: times must strictly increase, t[%d] = %g follows %g",
				types.ErrInvalidInput, i, t, p.Times[i-1])
		}
	}
	if len(p.Diffusion) != N {
		return fmt.Errorf("%w: %d diffusion values for %d cells", types.ErrInvalidInput, len(p.Diffusion), N)
	}
	for k, d := range p.Diffusion {
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return fmt.Errorf("%w: diffusion %g in cell %d", types.ErrInvalidInput, d, k)
		}
	}
	if p.Source != nil {
		if len(p.Source) != N {
			return fmt.Errorf("%w: %d source values for %d cells", types.ErrInvalidInput, len(p.Source), N)
		}
		if bad := utils.AllFinite(p.Source); bad >= 0 {
			return fmt.Errorf("%w: source %g in cell %d", types.ErrInvalidInput, p.Source[bad], bad)
		}
	}
	if p.Velocity.Values != nil {
		if err := p.Velocity.Check(p.Mesh, "velocity"); err != nil {
			return err
		}
	}
	if p.Initial.Location != types.CellCentered {
		return fmt.Errorf("%w: initial concentration must be cell centered", types.ErrInvalidInput)
	}
	return p.Initial.Check(p.Mesh, "initial concentration")
}
