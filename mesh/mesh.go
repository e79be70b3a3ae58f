/*
Package mesh is the unstructured 2D triangle mesh consumed by the solvers.

The Mesh interface is the read-only contract every solver works against. TriMesh
is the in-process implementation, it is immutable once built so a single mesh can
be shared by concurrent flow, transport and petrophysics calls.
*/
package mesh

type Point [2]float64

func (p Point) Sub(q Point) Point     { return Point{p[0] - q[0], p[1] - q[1]} }
func (p Point) Dot(q Point) float64   { return p[0]*q[0] + p[1]*q[1] }
func (p Point) Scale(a float64) Point { return Point{a * p[0], a * p[1]} }

type Cell struct {
	ID     int
	Nodes  [3]int // counter clockwise
	Faces  [3]int // Faces[i] joins Nodes[i] and Nodes[(i+1)%3]
	Center Point
	Area   float64
	Region int
}

type Face struct {
	ID     int
	Nodes  [2]int
	Left   int // owner cell
	Right  int // neighbor cell, -1 on the boundary
	Marker int // boundary marker, zero on interior faces and unmarked boundary
	Length float64
	Center Point
	Normal Point // unit normal pointing out of Left
}

func (f Face) IsBoundary() bool { return f.Right < 0 }

type Mesh interface {
	Dim() int
	CellCount() int
	NodeCount() int
	FaceCount() int
	Cell(i int) Cell
	Node(i int) Point
	Face(i int) Face
	// NodeCells lists the cells incident to node i, the slice must not be modified
	NodeCells(i int) []int
	// CellNeighbors lists the cells sharing a face with cell i
	CellNeighbors(i int) []int
	// BoundaryFaces lists the boundary faces carrying marker, in face order
	BoundaryFaces(marker int) []int
	BoundaryMarkers() []int
	RegionMarkers() []int
	FindCell(p Point) (cell int, ok bool)
}
