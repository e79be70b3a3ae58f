// Package plot draws mesh fields on an avs chart window. Nothing in the solvers depends
// on it, the CLI calls Show when asked to graph a run.
package plot

import (
	"fmt"
	"math"
	"time"

	"github.com/notargets/avs/chart2d"
	"github.com/notargets/avs/geometry"
	utils2 "github.com/notargets/avs/utils"

	"github.com/notargets/gosubsurface/field"
	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
)

type Style struct {
	Title         string
	Width, Height int
	// FMin and FMax fix the color scale, nil autoscales on the field
	FMin, FMax *float64
	Mesh       bool // overlay the triangle edges
	Boundary   bool // overlay the boundary faces in red
	Hold       time.Duration
}

func (s Style) size() (w, h int) {
	w, h = s.Width, s.Height
	if w <= 0 {
		w = 1024
	}
	if h <= 0 {
		h = 1024
	}
	return
}

// GraphMesh converts m into the float32 triangle mesh avs renders
func GraphMesh(m mesh.Mesh) (gm geometry.TriMesh) {
	gm = geometry.TriMesh{
		XY:       make([]float32, 2*m.NodeCount()),
		TriVerts: make([][3]int64, m.CellCount()),
	}
	for i := 0; i < m.NodeCount(); i++ {
		p := m.Node(i)
		gm.XY[2*i] = float32(p[0])
		gm.XY[2*i+1] = float32(p[1])
	}
	for k := 0; k < m.CellCount(); k++ {
		nodes := m.Cell(k).Nodes
		for n := 0; n < 3; n++ {
			gm.TriVerts[k][n] = int64(nodes[n])
		}
	}
	return
}

// NodeValues returns values at the mesh nodes, averaging cell values onto the nodes
// when values has one entry per cell. Node values win when the counts coincide
func NodeValues(m mesh.Mesh, values []float64) (nv []float32, err error) {
	var s field.Scalar
	switch len(values) {
	case m.NodeCount():
		s = field.NodeScalar(values)
	case m.CellCount():
		if s, err = field.CellToNode(m, field.CellScalar(values)); err != nil {
			return
		}
	default:
		return nil, fmt.Errorf("%w: %d values for %d nodes and %d cells", types.ErrInvalidInput,
			len(values), m.NodeCount(), m.CellCount())
	}
	nv = make([]float32, len(s.Values))
	for i, v := range s.Values {
		nv[i] = float32(v)
	}
	return
}

// Range is the color scale, the field extremes unless the style fixes either end
func (s Style) Range(nv []float32) (fMin, fMax float32) {
	fMin, fMax = math.MaxFloat32, -math.MaxFloat32
	for _, f := range nv {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			continue
		}
		fMin, fMax = min(fMin, f), max(fMax, f)
	}
	if fMin > fMax {
		fMin, fMax = 0, 0
	}
	if s.FMin != nil {
		fMin = float32(*s.FMin)
	}
	if s.FMax != nil {
		fMax = float32(*s.FMax)
	}
	return
}

// BoundaryLines lists the boundary faces as x1, y1, x2, y2 segments
func BoundaryLines(m mesh.Mesh) (line []float32) {
	for f := 0; f < m.FaceCount(); f++ {
		face := m.Face(f)
		if !face.IsBoundary() {
			continue
		}
		p1, p2 := m.Node(face.Nodes[0]), m.Node(face.Nodes[1])
		line = append(line, float32(p1[0]), float32(p1[1]), float32(p2[0]), float32(p2[1]))
	}
	return
}

// squareBox pads the shorter side of the bounding box so the chart keeps the aspect ratio
func squareBox(xMin, xMax mesh.Point) (x0, x1, y0, y1 float32) {
	xr, yr := xMax[0]-xMin[0], xMax[1]-xMin[1]
	if yr > xr {
		xc := xMin[0] + xr/2
		return float32(xc - yr/2), float32(xc + yr/2), float32(xMin[1]), float32(xMax[1])
	}
	yc := xMin[1] + yr/2
	return float32(xMin[0]), float32(xMax[0]), float32(yc - xr/2), float32(yc + xr/2)
}

func bounds(m mesh.Mesh) (xMin, xMax mesh.Point) {
	xMin = mesh.Point{math.Inf(1), math.Inf(1)}
	xMax = mesh.Point{math.Inf(-1), math.Inf(-1)}
	for i := 0; i < m.NodeCount(); i++ {
		p := m.Node(i)
		xMin = mesh.Point{math.Min(xMin[0], p[0]), math.Min(xMin[1], p[1])}
		xMax = mesh.Point{math.Max(xMax[0], p[0]), math.Max(xMax[1], p[1])}
	}
	return
}

// Show draws values, one per node or one per cell, shaded over m. The window stays up
// for style.Hold
func Show(m mesh.Mesh, values []float64, style Style) (err error) {
	nv, err := NodeValues(m, values)
	if err != nil {
		return
	}
	var (
		gm         = GraphMesh(m)
		w, h       = style.size()
		fMin, fMax = style.Range(nv)
	)
	x0, x1, y0, y1 := squareBox(bounds(m))
	fmt.Printf(" Plot>%s min,max = %8.5f,%8.5f\n", style.Title, fMin, fMax)
	ch := chart2d.NewChart2D(x0, x1, y0, y1, w, h, utils2.WHITE, utils2.BLACK)
	vs := geometry.VertexScalar{
		TMesh:       &gm,
		FieldValues: nv,
	}
	ch.AddShadedVertexScalar(&vs, fMin, fMax)
	if style.Mesh {
		ch.AddTriMesh(gm)
	}
	if style.Boundary {
		ch.AddLine(BoundaryLines(m), utils2.RED)
	}
	time.Sleep(style.Hold)
	return
}
