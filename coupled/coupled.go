/*
Package coupled runs the flow, transport and resistivity chain end to end.

A run solves the steady head field, derives the Darcy flux and the velocity dependent
dispersion from it, integrates an injection phase and an optional decay phase seeded
from the last injection frame, converts every concentration frame to bulk resistivity
on the inversion mesh and, when a forward model is supplied, simulates the apparent
resistivities of each frame. Every piece of configuration is checked before the first
solve.
*/
package coupled

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/notargets/gosubsurface/bcs"
	"github.com/notargets/gosubsurface/ert"
	"github.com/notargets/gosubsurface/fem"
	"github.com/notargets/gosubsurface/field"
	"github.com/notargets/gosubsurface/flux"
	"github.com/notargets/gosubsurface/fv"
	"github.com/notargets/gosubsurface/linsolve"
	"github.com/notargets/gosubsurface/logging"
	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/petro"
	"github.com/notargets/gosubsurface/regions"
	"github.com/notargets/gosubsurface/types"
)

// Phase is one transport interval. Source maps regions to an injection rate, nil or
// unmapped regions inject nothing
type Phase struct {
	Times  []float64
	Source *regions.Map
}

type Noise struct {
	Relative, Absolute float64
	Seed               uint64
}

type Config struct {
	Mesh mesh.Mesh
	// Conductivity is the hydraulic conductivity per region, one or two components
	Conductivity *regions.Map
	Pressure     bcs.Set
	FlowSolver   linsolve.Options

	// Dm is the molecular diffusion, AlphaL the longitudinal dispersivity
	Dm, AlphaL    float64
	Concentration bcs.Set
	// Initial concentration per cell, nil starts from zero
	Initial   []float64
	Injection Phase
	// Decay continues from the last injection frame without sources, no Times skips it.
	// Decay.Times[0] must equal the final injection time
	Decay     Phase
	Transport fv.Options

	Archie   petro.Archie
	Fluid    petro.FluidParams
	Porosity *regions.Map
	// MeshI is the mesh resistivity is reported on, nil uses Mesh
	MeshI mesh.Mesh
	// Background resistivity per region of MeshI, nil blends with an infinite background
	Background *regions.Map
	// Fill sets MeshI cells outside Mesh, it applies to resistivity values. The zero
	// value copies the nearest Mesh cell
	Fill petro.FillPolicy

	// Scheme is the electrode layout, nil skips the apparent resistivities
	Scheme *ert.Scheme
	Noise  Noise
	// Parallel bounds the frame parallel stages, zero uses GOMAXPROCS
	Parallel int
	Verbose  bool
}

type Collaborators struct {
	Simulator ert.Simulator
	Logger    logging.Logger
	// Show is handed each stage's headline field, nil draws nothing
	Show func(title string, m mesh.Mesh, values []float64) error
}

type Result struct {
	RunID      string
	Head       field.Scalar  // node centered
	Flux       field.Vector  // cell centered Darcy flux
	Velocity   field.Vector  // node centered
	Dispersion []float64     // per cell
	Conc       *field.Series // injection frames followed by decay frames
	Rho        *field.Series // on MeshI
	Apparent   [][]float64   // per frame, nil without a simulator
	RelErr     [][]float64   // per frame noise model, nil without noise
	Warnings   []types.NegativeConcentrationWarning
	Overlaps   []types.BoundaryOverlap
	FlowStats  linsolve.Stats
}

// plan is everything resolved from a Config before the first solve
type plan struct {
	K          [][2]float64
	head       *bcs.NodeConstraints
	headFlux   *bcs.FaceConstraints
	concBC     *bcs.FaceConstraints
	initial    []float64
	injection  []float64
	decay      []float64
	porosity   []float64
	meshI      mesh.Mesh
	background []float64
	interp     *petro.Interpolator
	petro      petro.TransformConfig
}

func (cfg Config) resolve(log logging.Logger) (p *plan, err error) {
	m := cfg.Mesh
	if m == nil {
		return nil, fmt.Errorf("%w: no mesh", types.ErrInvalidInput)
	}
	if cfg.Conductivity == nil || cfg.Porosity == nil {
		return nil, fmt.Errorf("%w: conductivity and porosity maps are required", types.ErrInvalidInput)
	}
	p = &plan{meshI: cfg.MeshI}
	if p.meshI == nil {
		p.meshI = m
	}
	if err = cfg.Conductivity.Validate(m, log); err != nil {
		return nil, fmt.Errorf("conductivity: %w", err)
	}
	if p.K, err = cfg.Conductivity.Tensors(m, m.Dim()); err != nil {
		return nil, fmt.Errorf("conductivity: %w", err)
	}
	if err = cfg.Porosity.Validate(m, log); err != nil {
		return nil, fmt.Errorf("porosity: %w", err)
	}
	if p.porosity, err = cfg.Porosity.Scalars(m); err != nil {
		return nil, fmt.Errorf("porosity: %w", err)
	}
	if k := regions.Positive(p.porosity); k >= 0 {
		return nil, fmt.Errorf("porosity: %w: %g in cell %d (region %d)", types.ErrInvalidInput,
			p.porosity[k], k, m.Cell(k).Region)
	}
	if p.head, err = bcs.ResolveNodes(m, cfg.Pressure, log); err != nil {
		return nil, fmt.Errorf("pressure: %w", err)
	}
	if p.headFlux, err = bcs.ResolveFaces(m, cfg.Pressure, log); err != nil {
		return nil, fmt.Errorf("pressure: %w", err)
	}
	if p.concBC, err = bcs.ResolveFaces(m, cfg.Concentration, log); err != nil {
		return nil, fmt.Errorf("concentration: %w", err)
	}
	if p.injection, err = phaseSource(m, cfg.Injection, log); err != nil {
		return nil, fmt.Errorf("injection: %w", err)
	}
	if p.decay, err = phaseSource(m, cfg.Decay, log); err != nil {
		return nil, fmt.Errorf("decay: %w", err)
	}
	if err = cfg.checkTimes(); err != nil {
		return nil, err
	}
	if err = cfg.Transport.Validate(); err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	p.initial = cfg.Initial
	if p.initial == nil {
		p.initial = make([]float64, m.CellCount())
	} else if len(p.initial) != m.CellCount() {
		return nil, fmt.Errorf("%w: %d initial concentrations for %d cells", types.ErrInvalidInput,
			len(p.initial), m.CellCount())
	}
	if cfg.Dm < 0 || cfg.AlphaL < 0 || math.IsNaN(cfg.Dm+cfg.AlphaL) || math.IsInf(cfg.Dm+cfg.AlphaL, 0) {
		return nil, fmt.Errorf("%w: dispersion needs finite Dm >= 0 and alphaL >= 0, have %g and %g",
			types.ErrInvalidInput, cfg.Dm, cfg.AlphaL)
	}
	if cfg.Background != nil {
		if err = cfg.Background.Validate(p.meshI, log); err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
		if p.background, err = cfg.Background.Scalars(p.meshI); err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
		if k := regions.Positive(p.background); k >= 0 {
			return nil, fmt.Errorf("background: %w: resistivity %g in cell %d (region %d)",
				types.ErrInvalidInput, p.background[k], k, p.meshI.Cell(k).Region)
		}
	}
	if cfg.MeshI != nil {
		if p.interp, err = petro.NewInterpolator(m, cfg.MeshI, cfg.Fill); err != nil {
			return
		}
		if p.interp.Outside() > 0 {
			log.Debug("target cells outside the transport mesh", "cells", p.interp.Outside(),
				"fill", cfg.Fill.Mode.String())
		}
	}
	p.petro = petro.TransformConfig{
		Archie:     cfg.Archie,
		Fluid:      cfg.Fluid,
		Porosity:   p.porosity,
		Background: p.background,
		Interp:     p.interp,
		Parallel:   cfg.Parallel,
		Logger:     log,
	}
	if err = p.petro.Validate(m); err != nil {
		return nil, fmt.Errorf("resistivity: %w", err)
	}
	if cfg.Scheme != nil {
		if err = cfg.Scheme.Validate(); err != nil {
			return
		}
	}
	return
}

func phaseSource(m mesh.Mesh, ph Phase, log logging.Logger) (src []float64, err error) {
	if ph.Source == nil {
		return
	}
	rates, err := ph.Source.WithDefault(0)
	if err != nil {
		return
	}
	if err = rates.Validate(m, log); err != nil {
		return
	}
	return rates.Scalars(m)
}

func (cfg Config) checkTimes() error {
	check := func(name string, times []float64) error {
		for i, t := range times {
			if math.IsNaN(t) || math.IsInf(t, 0) || (i > 0 && !(t > times[i-1])) {
				return fmt.Errorf("%w: %s times must be finite and strictly increasing, t[%d] = %g",
					types.ErrInvalidInput, name, i, t)
			}
		}
		return nil
	}
	if len(cfg.Injection.Times) < 2 {
		return fmt.Errorf("%w: injection needs at least two times, have %d", types.ErrInvalidInput,
			len(cfg.Injection.Times))
	}
	if err := check("injection", cfg.Injection.Times); err != nil {
		return err
	}
	if len(cfg.Decay.Times) == 0 {
		return nil
	}
	if err := check("decay", cfg.Decay.Times); err != nil {
		return err
	}
	if end := cfg.Injection.Times[len(cfg.Injection.Times)-1]; cfg.Decay.Times[0] != end {
		return fmt.Errorf("%w: decay starts at %g, injection ends at %g", types.ErrInvalidInput,
			cfg.Decay.Times[0], end)
	}
	return nil
}

// Run executes the chain. With Transport.ReturnPartial set a failed transport phase
// returns the stages completed so far together with the error
func Run(ctx context.Context, cfg Config, co Collaborators) (res *Result, err error) {
	runID := uuid.NewString()
	log := logging.OrNoOp(co.Logger).With("run", runID)
	p, err := cfg.resolve(log)
	if err != nil {
		return nil, err
	}
	m := cfg.Mesh
	res = &Result{RunID: runID}
	res.Overlaps = append(res.Overlaps, p.head.Overlaps...)
	res.Overlaps = append(res.Overlaps, p.concBC.Overlaps...)
	show := func(title string, mm mesh.Mesh, values []float64) {
		if co.Show == nil {
			return
		}
		if serr := co.Show(title, mm, values); serr != nil {
			log.Warn("plot failed", "title", title, "err", serr)
		}
	}

	flow, err := fem.Solve(m, p.K, p.head, fem.Options{
		Solver:  cfg.FlowSolver,
		Flux:    p.headFlux,
		Verbose: cfg.Verbose,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("flow: %w", err)
	}
	res.Head, res.FlowStats = flow.P, flow.Stats
	show("Head", m, res.Head.Values)

	if res.Flux, err = flux.Darcy(m, res.Head, p.K); err != nil {
		return nil, err
	}
	if res.Velocity, err = field.VectorCellToNode(m, res.Flux); err != nil {
		return nil, err
	}
	if res.Dispersion, err = flux.Dispersion(m, res.Flux, cfg.Dm, cfg.AlphaL); err != nil {
		return nil, err
	}
	if cfg.Verbose {
		vmin, vmax := res.Flux.Magnitude().MinMax()
		log.Info("flow solved", "nodes", m.NodeCount(), "fluxMin", vmin, "fluxMax", vmax)
	}

	problem := fv.Problem{
		Mesh:      m,
		Diffusion: res.Dispersion,
		Source:    p.injection,
		Velocity:  res.Velocity,
		BC:        p.concBC,
		Initial:   field.CellScalar(p.initial),
		Times:     cfg.Injection.Times,
	}
	topts := cfg.Transport
	topts.Logger, topts.Verbose = log.With("phase", "injection"), cfg.Verbose
	inj, err := fv.Solve(ctx, problem, topts)
	if inj != nil {
		res.Conc = inj.Series
		res.Warnings = append(res.Warnings, inj.Warnings...)
	}
	if err != nil {
		return partial(res, cfg, fmt.Errorf("injection: %w", err))
	}

	if len(cfg.Decay.Times) > 0 {
		_, last := inj.Series.Last()
		problem.Source = p.decay
		problem.Initial = last.Copy()
		problem.Times = cfg.Decay.Times
		topts.Logger = log.With("phase", "decay")
		dec, derr := fv.Solve(ctx, problem, topts)
		if dec != nil {
			res.Warnings = append(res.Warnings, dec.Warnings...)
			if res.Conc, err = inj.Series.Concat(dec.Series); err != nil {
				return nil, err
			}
		}
		if derr != nil {
			return partial(res, cfg, fmt.Errorf("decay: %w", derr))
		}
	}
	_, last := res.Conc.Last()
	show("Concentration", m, last.Values)

	if res.Rho, err = petro.Transform(ctx, m, res.Conc, p.petro); err != nil {
		return nil, fmt.Errorf("resistivity: %w", err)
	}
	_, lastRho := res.Rho.Last()
	show("Resistivity", p.meshI, lastRho.Values)

	switch {
	case cfg.Scheme == nil:
	case co.Simulator == nil:
		log.Warn("electrode scheme given without a forward model, skipping apparent resistivities")
	default:
		frames := make([][]float64, res.Rho.Len())
		for i, f := range res.Rho.Frames {
			frames[i] = f.Values
		}
		if res.Apparent, err = ert.TimeLapse(ctx, co.Simulator, p.meshI, frames, *cfg.Scheme,
			cfg.Parallel); err != nil {
			return nil, fmt.Errorf("ert: %w", err)
		}
		if cfg.Noise.Relative > 0 || cfg.Noise.Absolute > 0 {
			res.RelErr = make([][]float64, len(res.Apparent))
			for i, d := range res.Apparent {
				res.Apparent[i], res.RelErr[i] = ert.AddNoise(d, cfg.Noise.Relative, cfg.Noise.Absolute,
					cfg.Noise.Seed+uint64(i))
			}
		}
	}
	if cfg.Verbose {
		log.Info("run complete", "frames", res.Conc.Len(), "warnings", len(res.Warnings),
			"overlaps", len(res.Overlaps))
	}
	return
}

func partial(res *Result, cfg Config, err error) (*Result, error) {
	if cfg.Transport.ReturnPartial {
		return res, err
	}
	return nil, err
}
