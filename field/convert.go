package field

import (
	"fmt"

	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
)

// CellToNode averages the incident cells of every node, weighted by cell area
func CellToNode(m mesh.Mesh, s Scalar) (n Scalar, err error) {
	if err = s.expect(m, types.CellCentered); err != nil {
		return
	}
	n = NewScalar(types.NodeCentered, m.NodeCount())
	for i := range n.Values {
		var sum, area float64
		for _, k := range m.NodeCells(i) {
			a := m.Cell(k).Area
			sum += a * s.Values[k]
			area += a
		}
		n.Values[i] = sum / area
	}
	return
}

// NodeToCell is the mean of the cell's vertex values, the exact cell average of the
// piecewise linear interpolant
func NodeToCell(m mesh.Mesh, s Scalar) (c Scalar, err error) {
	if err = s.expect(m, types.NodeCentered); err != nil {
		return
	}
	c = NewScalar(types.CellCentered, m.CellCount())
	for k := range c.Values {
		nodes := m.Cell(k).Nodes
		c.Values[k] = (s.Values[nodes[0]] + s.Values[nodes[1]] + s.Values[nodes[2]]) / 3
	}
	return
}

func VectorCellToNode(m mesh.Mesh, v Vector) (n Vector, err error) {
	if v.Location != types.CellCentered || len(v.Values) != m.CellCount() {
		return n, fmt.Errorf("%w: expected %d cell centered vectors, have %d %s centered",
			types.ErrInvalidInput, m.CellCount(), len(v.Values), v.Location)
	}
	n = NewVector(types.NodeCentered, m.NodeCount())
	for i := range n.Values {
		var (
			sum  [2]float64
			area float64
		)
		for _, k := range m.NodeCells(i) {
			a := m.Cell(k).Area
			sum[0] += a * v.Values[k][0]
			sum[1] += a * v.Values[k][1]
			area += a
		}
		n.Values[i] = [2]float64{sum[0] / area, sum[1] / area}
	}
	return
}

func VectorNodeToCell(m mesh.Mesh, v Vector) (c Vector, err error) {
	if v.Location != types.NodeCentered || len(v.Values) != m.NodeCount() {
		return c, fmt.Errorf("%w: expected %d node centered vectors, have %d %s centered",
			types.ErrInvalidInput, m.NodeCount(), len(v.Values), v.Location)
	}
	c = NewVector(types.CellCentered, m.CellCount())
	for k := range c.Values {
		nodes := m.Cell(k).Nodes
		for d := 0; d < 2; d++ {
			c.Values[k][d] = (v.Values[nodes[0]][d] + v.Values[nodes[1]][d] + v.Values[nodes[2]][d]) / 3
		}
	}
	return
}

func (s Scalar) expect(m mesh.Mesh, loc types.Location) error {
	if s.Location != loc || len(s.Values) != Size(m, loc) {
		return fmt.Errorf("%w: expected %d %s centered values, have %d %s centered",
			types.ErrInvalidInput, Size(m, loc), loc, len(s.Values), s.Location)
	}
	return nil
}
