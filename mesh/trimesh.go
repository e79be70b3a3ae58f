package mesh

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/gosubsurface/types"
)

type TriMesh struct {
	nodes      []Point
	cells      []Cell
	faces      []Face
	nodeCells  [][]int
	cellNbrs   [][]int
	bcFaces    map[int][]int
	bcMarkers  []int
	regionIDs  []int
	labels     map[int]string
	locator    *locator
	xMin, xMax Point
}

// Builder collects the raw connectivity produced by a mesh generator or file reader
type Builder struct {
	Nodes    []Point
	Tris     [][3]int
	Regions  []int            // per triangle, nil means region 1 everywhere
	Boundary map[int][][2]int // marker -> boundary edges given by their two nodes
	Labels   map[int]string   // optional names for boundary markers

	// DropInterior discards marked edges that turn out to be interior instead of failing,
	// mesh generators tag internal layer interfaces with the same physical groups
	DropInterior bool
}

func New(nodes []Point, tris [][3]int, regions []int, boundary map[int][][2]int) (*TriMesh, error) {
	return Builder{Nodes: nodes, Tris: tris, Regions: regions, Boundary: boundary}.Build()
}

func (b Builder) Build() (tm *TriMesh, err error) {
	var (
		Nv, K = len(b.Nodes), len(b.Tris)
	)
	if Nv < 3 || K < 1 {
		return nil, fmt.Errorf("%w: mesh needs at least 3 nodes and 1 triangle, have %d and %d",
			types.ErrInvalidInput, Nv, K)
	}
	if b.Regions != nil && len(b.Regions) != K {
		return nil, fmt.Errorf("%w: %d region markers for %d triangles", types.ErrInvalidInput, len(b.Regions), K)
	}
	tm = &TriMesh{
		nodes:     append([]Point(nil), b.Nodes...),
		cells:     make([]Cell, K),
		nodeCells: make([][]int, Nv),
		cellNbrs:  make([][]int, K),
		bcFaces:   make(map[int][]int),
		labels:    make(map[int]string),
	}
	for m, l := range b.Labels {
		tm.labels[m] = l
	}
	if err = tm.buildCells(b.Tris, b.Regions); err != nil {
		return nil, err
	}
	if err = tm.buildFaces(); err != nil {
		return nil, err
	}
	if err = tm.markBoundary(b.Boundary, b.DropInterior); err != nil {
		return nil, err
	}
	tm.bounds()
	tm.locator = newLocator(tm)
	return
}

func (tm *TriMesh) buildCells(tris [][3]int, regions []int) (err error) {
	var (
		Nv        = len(tm.nodes)
		regionSet = make(map[int]struct{})
	)
	for k, tri := range tris {
		for _, v := range tri {
			if v < 0 || v >= Nv {
				return fmt.Errorf("%w: triangle %d references node %d, mesh has %d nodes",
					types.ErrInvalidInput, k, v, Nv)
			}
		}
		p0, p1, p2 := tm.nodes[tri[0]], tm.nodes[tri[1]], tm.nodes[tri[2]]
		area2 := (p1[0]-p0[0])*(p2[1]-p0[1]) - (p2[0]-p0[0])*(p1[1]-p0[1])
		if area2 < 0 { // Enforce counter clockwise ordering
			tri[1], tri[2] = tri[2], tri[1]
			area2 = -area2
		}
		scale := math.Max(p1.Sub(p0).Dot(p1.Sub(p0)), p2.Sub(p0).Dot(p2.Sub(p0)))
		if area2 <= 1.e-14*scale {
			return fmt.Errorf("%w: triangle %d is degenerate", types.ErrInvalidInput, k)
		}
		region := 1
		if regions != nil {
			region = regions[k]
		}
		regionSet[region] = struct{}{}
		tm.cells[k] = Cell{
			ID:     k,
			Nodes:  tri,
			Center: Point{(p0[0] + p1[0] + p2[0]) / 3, (p0[1] + p1[1] + p2[1]) / 3},
			Area:   area2 / 2,
			Region: region,
		}
		for _, v := range tri {
			tm.nodeCells[v] = append(tm.nodeCells[v], k)
		}
	}
	for r := range regionSet {
		tm.regionIDs = append(tm.regionIDs, r)
	}
	sort.Ints(tm.regionIDs)
	for v, nc := range tm.nodeCells {
		if len(nc) == 0 {
			return fmt.Errorf("%w: node %d is not part of any triangle", types.ErrInvalidInput, v)
		}
	}
	return
}

func (tm *TriMesh) buildFaces() (err error) {
	var (
		edges = make(map[types.EdgeKey]int, 3*len(tm.cells)/2+1)
	)
	for k := range tm.cells {
		c := &tm.cells[k]
		for i := 0; i < 3; i++ {
			verts := [2]int{c.Nodes[i], c.Nodes[(i+1)%3]}
			en := types.NewEdgeKey(verts)
			f, ok := edges[en]
			if !ok {
				f = len(tm.faces)
				edges[en] = f
				p0, p1 := tm.nodes[verts[0]], tm.nodes[verts[1]]
				d := p1.Sub(p0)
				L := math.Sqrt(d.Dot(d))
				tm.faces = append(tm.faces, Face{
					ID:     f,
					Nodes:  verts,
					Left:   k,
					Right:  -1,
					Length: L,
					Center: Point{(p0[0] + p1[0]) / 2, (p0[1] + p1[1]) / 2},
					// Edges run counter clockwise inside Left, so (dy,-dx) points outward
					Normal: Point{d[1] / L, -d[0] / L},
				})
			} else {
				face := &tm.faces[f]
				if face.Right >= 0 {
					return fmt.Errorf("%w: edge %v is shared by more than two triangles",
						types.ErrInvalidInput, verts)
				}
				face.Right = k
				tm.cellNbrs[k] = append(tm.cellNbrs[k], face.Left)
				tm.cellNbrs[face.Left] = append(tm.cellNbrs[face.Left], k)
			}
			c.Faces[i] = f
		}
	}
	return
}

func (tm *TriMesh) markBoundary(boundary map[int][][2]int, dropInterior bool) (err error) {
	var (
		markers  = make([]int, 0, len(boundary))
		edges    = make(map[types.EdgeKey]int)
		interior = make(map[types.EdgeKey]struct{})
	)
	for f, face := range tm.faces {
		if face.IsBoundary() {
			edges[types.NewEdgeKey(face.Nodes)] = f
		} else {
			interior[types.NewEdgeKey(face.Nodes)] = struct{}{}
		}
	}
	for m := range boundary {
		markers = append(markers, m)
	}
	sort.Ints(markers)
	for _, m := range markers {
		if m == types.MarkerNone {
			return fmt.Errorf("%w: boundary marker %d is reserved for unmarked faces", types.ErrInvalidInput, m)
		}
		for _, e := range boundary[m] {
			if e[0] < 0 || e[1] < 0 || e[0] >= len(tm.nodes) || e[1] >= len(tm.nodes) {
				return fmt.Errorf("%w: marker %d edge %v references a missing node", types.ErrInvalidInput, m, e)
			}
			en := types.NewEdgeKey(e)
			f, ok := edges[en]
			if _, in := interior[en]; !ok && in && dropInterior {
				continue
			}
			if !ok {
				return fmt.Errorf("%w: marker %d edge %v is not a boundary edge", types.ErrInvalidInput, m, e)
			}
			if prev := tm.faces[f].Marker; prev != types.MarkerNone && prev != m {
				return fmt.Errorf("%w: boundary edge %v carries markers %d and %d",
					types.ErrInvalidInput, e, prev, m)
			}
			tm.faces[f].Marker = m
		}
	}
	for f, face := range tm.faces {
		if face.IsBoundary() && face.Marker != types.MarkerNone {
			tm.bcFaces[face.Marker] = append(tm.bcFaces[face.Marker], f)
		}
	}
	for m := range tm.bcFaces {
		tm.bcMarkers = append(tm.bcMarkers, m)
	}
	sort.Ints(tm.bcMarkers)
	return
}

func (tm *TriMesh) bounds() {
	tm.xMin = Point{math.Inf(1), math.Inf(1)}
	tm.xMax = Point{math.Inf(-1), math.Inf(-1)}
	for _, p := range tm.nodes {
		for d := 0; d < 2; d++ {
			tm.xMin[d] = math.Min(tm.xMin[d], p[d])
			tm.xMax[d] = math.Max(tm.xMax[d], p[d])
		}
	}
}

func (tm *TriMesh) Dim() int                  { return 2 }
func (tm *TriMesh) CellCount() int            { return len(tm.cells) }
func (tm *TriMesh) NodeCount() int            { return len(tm.nodes) }
func (tm *TriMesh) FaceCount() int            { return len(tm.faces) }
func (tm *TriMesh) Cell(i int) Cell           { return tm.cells[i] }
func (tm *TriMesh) Node(i int) Point          { return tm.nodes[i] }
func (tm *TriMesh) Face(i int) Face           { return tm.faces[i] }
func (tm *TriMesh) NodeCells(i int) []int     { return tm.nodeCells[i] }
func (tm *TriMesh) CellNeighbors(i int) []int { return tm.cellNbrs[i] }
func (tm *TriMesh) BoundaryFaces(marker int) []int {
	return tm.bcFaces[marker]
}
func (tm *TriMesh) BoundaryMarkers() []int { return append([]int(nil), tm.bcMarkers...) }
func (tm *TriMesh) RegionMarkers() []int   { return append([]int(nil), tm.regionIDs...) }

// MarkerLabel returns the name a file reader attached to a boundary marker
func (tm *TriMesh) MarkerLabel(marker int) string { return tm.labels[marker] }

func (tm *TriMesh) Bounds() (xMin, xMax Point) { return tm.xMin, tm.xMax }

func (tm *TriMesh) CellCenters() (cc []Point) {
	cc = make([]Point, len(tm.cells))
	for k, c := range tm.cells {
		cc[k] = c.Center
	}
	return
}

func (tm *TriMesh) Areas() (a []float64) {
	a = make([]float64, len(tm.cells))
	for k, c := range tm.cells {
		a[k] = c.Area
	}
	return
}

func (tm *TriMesh) String() string {
	return fmt.Sprintf("TriMesh: %d nodes, %d cells, %d faces, regions %v, boundary markers %v",
		len(tm.nodes), len(tm.cells), len(tm.faces), tm.regionIDs, tm.bcMarkers)
}
