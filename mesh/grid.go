package mesh

import (
	"fmt"

	"github.com/notargets/gosubsurface/types"
)

// NewGrid triangulates the rectilinear grid spanned by the x and y node lines, every
// rectangle is split along its rising diagonal. Boundaries carry MarkerLeft, MarkerRight,
// MarkerTop and MarkerBottom. region assigns a region marker from each cell center,
// nil puts every cell in region 1
func NewGrid(x, y []float64, region func(center Point) int) (tm *TriMesh, err error) {
	var (
		nx, ny = len(x), len(y)
	)
	if nx < 2 || ny < 2 {
		return nil, fmt.Errorf("%w: grid needs at least two node lines per axis, have %d x %d",
			types.ErrInvalidInput, nx, ny)
	}
	for _, axis := range [][]float64{x, y} {
		for i := 1; i < len(axis); i++ {
			if !(axis[i] > axis[i-1]) {
				return nil, fmt.Errorf("%w: grid node lines must be strictly increasing", types.ErrInvalidInput)
			}
		}
	}
	var (
		nodes    = make([]Point, 0, nx*ny)
		tris     = make([][3]int, 0, 2*(nx-1)*(ny-1))
		regions  = make([]int, 0, 2*(nx-1)*(ny-1))
		boundary = make(map[int][][2]int, 4)
		id       = func(i, j int) int { return i + j*nx }
	)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			nodes = append(nodes, Point{x[i], y[j]})
		}
	}
	for j := 0; j < ny-1; j++ {
		for i := 0; i < nx-1; i++ {
			n00, n10, n11, n01 := id(i, j), id(i+1, j), id(i+1, j+1), id(i, j+1)
			tris = append(tris, [3]int{n00, n10, n11}, [3]int{n00, n11, n01})
			for _, tri := range tris[len(tris)-2:] {
				r := 1
				if region != nil {
					p0, p1, p2 := nodes[tri[0]], nodes[tri[1]], nodes[tri[2]]
					r = region(Point{(p0[0] + p1[0] + p2[0]) / 3, (p0[1] + p1[1] + p2[1]) / 3})
				}
				regions = append(regions, r)
			}
		}
	}
	for i := 0; i < nx-1; i++ {
		boundary[types.MarkerBottom] = append(boundary[types.MarkerBottom], [2]int{id(i, 0), id(i+1, 0)})
		boundary[types.MarkerTop] = append(boundary[types.MarkerTop], [2]int{id(i, ny-1), id(i+1, ny-1)})
	}
	for j := 0; j < ny-1; j++ {
		boundary[types.MarkerLeft] = append(boundary[types.MarkerLeft], [2]int{id(0, j), id(0, j+1)})
		boundary[types.MarkerRight] = append(boundary[types.MarkerRight], [2]int{id(nx-1, j), id(nx-1, j+1)})
	}
	return Builder{
		Nodes:    nodes,
		Tris:     tris,
		Regions:  regions,
		Boundary: boundary,
		Labels: map[int]string{
			types.MarkerLeft:   "left",
			types.MarkerRight:  "right",
			types.MarkerTop:    "top",
			types.MarkerBottom: "bottom",
		},
	}.Build()
}

// Linspace returns n equally spaced node lines from a to b inclusive
func Linspace(a, b float64, n int) (x []float64) {
	if n < 2 {
		return []float64{a}
	}
	x = make([]float64, n)
	for i := range x {
		x[i] = a + (b-a)*float64(i)/float64(n-1)
	}
	x[n-1] = b
	return
}
