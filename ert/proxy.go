package ert

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
)

// Proxy approximates each reading by the area weighted harmonic mean resistivity of the
// cells below the quadrupole, down to Depth times the quadrupole span. A homogeneous
// model returns its own resistivity. It stands in for a forward model in demos and tests
type Proxy struct {
	Depth float64 // zero uses 0.25
}

func (p Proxy) Simulate(ctx context.Context, m mesh.Mesh, resistivity []float64, scheme Scheme) (
	rhoa []float64, err error) {
	if len(resistivity) != m.CellCount() {
		return nil, fmt.Errorf("%w: %d resistivities for %d cells", types.ErrInvalidInput, len(resistivity),
			m.CellCount())
	}
	depth := p.Depth
	if depth <= 0 {
		depth = 0.25
	}
	rhoa = make([]float64, scheme.Len())
	for i, q := range scheme.Data {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		var (
			x0, x1 = math.Inf(1), math.Inf(-1)
			top    = math.Inf(-1)
		)
		for _, e := range []int{q.A, q.B, q.M, q.N} {
			if e == Pole {
				continue
			}
			pe := scheme.Electrodes[e]
			x0, x1 = math.Min(x0, pe[0]), math.Max(x1, pe[0])
			top = math.Max(top, pe[1])
		}
		bottom := top - depth*(x1-x0)
		var area, conductance float64
		for k := 0; k < m.CellCount(); k++ {
			c := m.Cell(k)
			if c.Center[0] < x0 || c.Center[0] > x1 || c.Center[1] < bottom {
				continue
			}
			area += c.Area
			conductance += c.Area / resistivity[k]
		}
		if area == 0 {
			// Nothing inside the window, fall back to the cell under the midpoint
			k, ok := m.FindCell(mesh.Point{(x0 + x1) / 2, top})
			if !ok {
				return nil, fmt.Errorf("%w: reading %d lies outside the mesh", types.ErrInvalidInput, i)
			}
			rhoa[i] = resistivity[k]
			continue
		}
		rhoa[i] = area / conductance
	}
	return
}
