// Package flux derives per cell gradients, Darcy fluxes and dispersion coefficients from
// a node centered head field.
package flux

import (
	"fmt"
	"math"

	"github.com/notargets/gosubsurface/field"
	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
)

// Gradient is the constant gradient of the linear interpolant of p on each cell
func Gradient(m mesh.Mesh, p field.Scalar) (g field.Vector, err error) {
	if p.Location != types.NodeCentered {
		return g, fmt.Errorf("%w: gradient needs a node centered field, have %s", types.ErrInvalidInput,
			p.Location)
	}
	if err = p.Check(m, "head"); err != nil {
		return
	}
	g = field.NewVector(types.CellCentered, m.CellCount())
	for k := range g.Values {
		g.Values[k] = cellGradient(m, k, p.Values)
	}
	return
}

func cellGradient(m mesh.Mesh, k int, p []float64) (g [2]float64) {
	var (
		cell = m.Cell(k)
		twoA = 2 * cell.Area
	)
	for i, ni := range cell.Nodes {
		pj, pk := m.Node(cell.Nodes[(i+1)%3]), m.Node(cell.Nodes[(i+2)%3])
		g[0] += p[ni] * (pj[1] - pk[1]) / twoA
		g[1] += p[ni] * (pk[0] - pj[0]) / twoA
	}
	return
}

// Darcy is the cell flux -K grad p for a diagonal conductivity per cell
func Darcy(m mesh.Mesh, p field.Scalar, K [][2]float64) (q field.Vector, err error) {
	if len(K) != m.CellCount() {
		return q, fmt.Errorf("%w: %d conductivities for %d cells", types.ErrInvalidInput, len(K), m.CellCount())
	}
	if q, err = Gradient(m, p); err != nil {
		return
	}
	for k := range q.Values {
		q.Values[k][0] *= -K[k][0]
		q.Values[k][1] *= -K[k][1]
	}
	return
}

func Magnitude(v field.Vector) field.Scalar { return v.Magnitude() }

// Dispersion returns Dm + alphaL |v| on every cell, node centered velocities are averaged
// onto cells first
func Dispersion(m mesh.Mesh, v field.Vector, Dm, alphaL float64) (D []float64, err error) {
	if Dm < 0 || alphaL < 0 || math.IsNaN(Dm+alphaL) || math.IsInf(Dm+alphaL, 0) {
		return nil, fmt.Errorf("%w: dispersion needs finite Dm >= 0 and alphaL >= 0, have %g and %g",
			types.ErrInvalidInput, Dm, alphaL)
	}
	if v.Location == types.NodeCentered {
		if v, err = field.VectorNodeToCell(m, v); err != nil {
			return
		}
	} else if err = v.Check(m, "velocity"); err != nil {
		return
	}
	mag := v.Magnitude()
	D = make([]float64, len(mag.Values))
	for k, s := range mag.Values {
		D[k] = Dm + alphaL*s
	}
	return
}
