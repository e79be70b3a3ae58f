package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// locator is a uniform bucket grid over the mesh bounding box. Each bucket lists the
// cells whose bounding box overlaps it. Nearest center queries go through a kd-tree
type locator struct {
	tm      *TriMesh
	nx, ny  int
	x0, y0  float64
	dx, dy  float64
	buckets [][]int
	relTol  float64
	centers *kdtree.Tree
}

// cellCenter is a kd-tree point that remembers its cell
type cellCenter struct {
	Point
	cell int
}

func (c cellCenter) Compare(q kdtree.Comparable, d kdtree.Dim) float64 {
	return c.Point[d] - q.(cellCenter).Point[d]
}
func (c cellCenter) Dims() int { return 2 }
func (c cellCenter) Distance(q kdtree.Comparable) float64 {
	d := c.Sub(q.(cellCenter).Point)
	return d.Dot(d)
}

type cellCenters []cellCenter

func (cc cellCenters) Index(i int) kdtree.Comparable         { return cc[i] }
func (cc cellCenters) Len() int                              { return len(cc) }
func (cc cellCenters) Pivot(d kdtree.Dim) int                { return centerPlane{Dim: d, cellCenters: cc}.Pivot() }
func (cc cellCenters) Slice(start, end int) kdtree.Interface { return cc[start:end] }

type centerPlane struct {
	kdtree.Dim
	cellCenters
}

func (p centerPlane) Less(i, j int) bool {
	return p.cellCenters[i].Point[p.Dim] < p.cellCenters[j].Point[p.Dim]
}
func (p centerPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p centerPlane) Slice(start, end int) kdtree.SortSlicer {
	return centerPlane{Dim: p.Dim, cellCenters: p.cellCenters[start:end]}
}
func (p centerPlane) Swap(i, j int) {
	p.cellCenters[i], p.cellCenters[j] = p.cellCenters[j], p.cellCenters[i]
}

func newLocator(tm *TriMesh) (l *locator) {
	var (
		K     = len(tm.cells)
		nb    = int(math.Ceil(math.Sqrt(float64(K))))
		xMin  = tm.xMin
		xMax  = tm.xMax
		width = math.Max(xMax[0]-xMin[0], xMax[1]-xMin[1])
	)
	if nb < 1 {
		nb = 1
	}
	l = &locator{
		tm:     tm,
		nx:     nb,
		ny:     nb,
		x0:     xMin[0],
		y0:     xMin[1],
		dx:     math.Max(xMax[0]-xMin[0], 1.e-12*width) / float64(nb),
		dy:     math.Max(xMax[1]-xMin[1], 1.e-12*width) / float64(nb),
		relTol: 1.e-10,
	}
	l.buckets = make([][]int, l.nx*l.ny)
	for k, c := range tm.cells {
		lo := Point{math.Inf(1), math.Inf(1)}
		hi := Point{math.Inf(-1), math.Inf(-1)}
		for _, v := range c.Nodes {
			p := tm.nodes[v]
			for d := 0; d < 2; d++ {
				lo[d] = math.Min(lo[d], p[d])
				hi[d] = math.Max(hi[d], p[d])
			}
		}
		i0, j0 := l.bucketIJ(lo)
		i1, j1 := l.bucketIJ(hi)
		for j := j0; j <= j1; j++ {
			for i := i0; i <= i1; i++ {
				b := i + j*l.nx
				l.buckets[b] = append(l.buckets[b], k)
			}
		}
	}
	if K > 0 {
		cc := make(cellCenters, K)
		for k, c := range tm.cells {
			cc[k] = cellCenter{Point: c.Center, cell: k}
		}
		l.centers = kdtree.New(cc, false)
	}
	return
}

func (l *locator) bucketIJ(p Point) (i, j int) {
	clamp := func(v, n int) int {
		if v < 0 {
			return 0
		}
		if v >= n {
			return n - 1
		}
		return v
	}
	i = clamp(int(math.Floor((p[0]-l.x0)/l.dx)), l.nx)
	j = clamp(int(math.Floor((p[1]-l.y0)/l.dy)), l.ny)
	return
}

// Barycentric returns the barycentric coordinates of p in cell k
func (tm *TriMesh) Barycentric(k int, p Point) (lam [3]float64) {
	var (
		c          = tm.cells[k]
		p0, p1, p2 = tm.nodes[c.Nodes[0]], tm.nodes[c.Nodes[1]], tm.nodes[c.Nodes[2]]
		area2      = 2 * c.Area
	)
	lam[1] = ((p[0]-p0[0])*(p2[1]-p0[1]) - (p2[0]-p0[0])*(p[1]-p0[1])) / area2
	lam[2] = ((p1[0]-p0[0])*(p[1]-p0[1]) - (p[0]-p0[0])*(p1[1]-p0[1])) / area2
	lam[0] = 1 - lam[1] - lam[2]
	return
}

// FindCell locates the triangle containing p. Points on a shared edge resolve to the
// lowest numbered cell
func (tm *TriMesh) FindCell(p Point) (cell int, ok bool) {
	var (
		l   = tm.locator
		tol = l.relTol
	)
	if p[0] < tm.xMin[0]-tol*l.dx || p[0] > tm.xMax[0]+tol*l.dx ||
		p[1] < tm.xMin[1]-tol*l.dy || p[1] > tm.xMax[1]+tol*l.dy {
		return -1, false
	}
	i, j := l.bucketIJ(p)
	for _, k := range l.buckets[i+j*l.nx] {
		lam := tm.Barycentric(k, p)
		if lam[0] >= -tol && lam[1] >= -tol && lam[2] >= -tol {
			return k, true
		}
	}
	return -1, false
}

// NearestCell returns the cell whose center is closest to p, the lowest numbered one
// among equally distant centers. It is -1 for an empty mesh
func (tm *TriMesh) NearestCell(p Point) (cell int) {
	tree := tm.locator.centers
	if tree == nil {
		return -1
	}
	q := cellCenter{Point: p, cell: -1}
	_, best := tree.Nearest(q)
	keep := kdtree.NewDistKeeper(best * (1 + 1.e-12))
	tree.NearestSet(keep, q)
	cell = -1
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		if k := c.Comparable.(cellCenter).cell; cell < 0 || k < cell {
			cell = k
		}
	}
	return
}
