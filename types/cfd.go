package types

// Location tags where the values of a field live on the mesh
type Location uint8

const (
	CellCentered Location = iota
	NodeCentered
)

func (l Location) String() string {
	switch l {
	case CellCentered:
		return "Cell"
	case NodeCentered:
		return "Node"
	}
	return "Unknown"
}

// Boundary markers assigned by the structured grid builder. Zero is reserved for
// unmarked faces
const (
	MarkerNone   = 0
	MarkerLeft   = 1
	MarkerRight  = 2
	MarkerTop    = 3
	MarkerBottom = 4
)
