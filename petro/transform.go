package petro

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/gosubsurface/field"
	"github.com/notargets/gosubsurface/logging"
	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
	"github.com/notargets/gosubsurface/utils"
)

type TransformConfig struct {
	Archie Archie
	Fluid  FluidParams
	// Porosity per source cell, in (0, 1]
	Porosity []float64
	// Background resistivity per target cell, nil blends with an infinite background
	Background []float64
	// Interp maps source cells to target cells, nil keeps the source mesh
	Interp *Interpolator
	// Parallel bounds the concurrent workers, zero uses GOMAXPROCS
	Parallel int
	Logger   logging.Logger
}

func (cfg TransformConfig) validate(src mesh.Mesh) (target int, err error) {
	if err = cfg.Archie.Validate(); err != nil {
		return
	}
	if err = cfg.Fluid.Validate(); err != nil {
		return
	}
	if len(cfg.Porosity) != src.CellCount() {
		return 0, fmt.Errorf("%w: %d porosities for %d cells", types.ErrInvalidInput, len(cfg.Porosity),
			src.CellCount())
	}
	for k, phi := range cfg.Porosity {
		if !(phi > 0 && phi <= 1) {
			return 0, fmt.Errorf("%w: porosity %g in cell %d outside (0, 1]", types.ErrInvalidInput, phi, k)
		}
	}
	target = src.CellCount()
	if cfg.Interp != nil {
		target = cfg.Interp.Target.CellCount()
	}
	if cfg.Background != nil {
		if len(cfg.Background) != target {
			return 0, fmt.Errorf("%w: %d background resistivities for %d target cells", types.ErrInvalidInput,
				len(cfg.Background), target)
		}
		for k, rb := range cfg.Background {
			if math.IsNaN(rb) || rb <= 0 {
				return 0, fmt.Errorf("%w: background resistivity %g in cell %d", types.ErrInvalidInput, rb, k)
			}
		}
	}
	return
}

// Validate checks the configuration against the source mesh without converting anything
func (cfg TransformConfig) Validate(src mesh.Mesh) error {
	_, err := cfg.validate(src)
	return err
}

// Frame converts one cell centered concentration frame into bulk resistivity on the
// target cells
func (cfg TransformConfig) Frame(c []float64) (rho []float64, err error) {
	if len(c) != len(cfg.Porosity) {
		return nil, fmt.Errorf("%w: %d concentrations for %d cells", types.ErrInvalidInput, len(c),
			len(cfg.Porosity))
	}
	rho = make([]float64, len(c))
	for k, ck := range c {
		rho[k] = cfg.Archie.Resistivity(FluidResistivity(ck, cfg.Fluid), cfg.Porosity[k])
	}
	if cfg.Interp != nil {
		if rho, err = cfg.Interp.Apply(rho); err != nil {
			return
		}
	}
	if cfg.Background != nil {
		for k := range rho {
			rho[k] = Blend(rho[k], cfg.Background[k])
		}
	}
	return
}

// Transform converts every frame of a concentration series on src. Frames are independent
// and are processed concurrently, the output keeps the input order
func Transform(ctx context.Context, src mesh.Mesh, series *field.Series, cfg TransformConfig) (
	out *field.Series, err error) {
	log := logging.OrNoOp(cfg.Logger).With("stage", "petro")
	if _, err = cfg.validate(src); err != nil {
		return
	}
	nf := series.Len()
	for i, f := range series.Frames {
		if f.Location != types.CellCentered {
			return nil, fmt.Errorf("%w: frame %d is %s centered, resistivity needs cell values",
				types.ErrInvalidInput, i, f.Location)
		}
	}
	out = &field.Series{
		Times:  append([]float64(nil), series.Times...),
		Frames: make([]field.Scalar, nf),
	}
	if nf == 0 {
		return
	}
	workers := cfg.Parallel
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > nf {
		workers = nf
	}
	pm := utils.NewPartitionMap(workers, nf)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for bn := 0; bn < pm.ParallelDegree; bn++ {
		kMin, kMax := pm.GetBucketRange(bn)
		g.Go(func() error {
			for i := kMin; i < kMax; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				rho, err := cfg.Frame(series.Frames[i].Values)
				if err != nil {
					return fmt.Errorf("frame %d: %w", i, err)
				}
				out.Frames[i] = field.CellScalar(rho)
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	log.Debug("resistivity frames computed", "frames", nf, "workers", workers)
	return
}
