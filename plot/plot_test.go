package plot

import (
	"errors"
	"math"
	"testing"

	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphMesh(t *testing.T) {
	tm, err := mesh.NewGrid(mesh.Linspace(0, 2, 3), mesh.Linspace(0, 1, 2), nil)
	require.NoError(t, err)
	gm := GraphMesh(tm)
	require.Len(t, gm.XY, 2*tm.NodeCount())
	require.Len(t, gm.TriVerts, tm.CellCount())
	for k, tri := range gm.TriVerts {
		for n, v := range tri {
			assert.Equal(t, int64(tm.Cell(k).Nodes[n]), v)
		}
	}
	p := tm.Node(4)
	assert.Equal(t, float32(p[0]), gm.XY[8])
	assert.Equal(t, float32(p[1]), gm.XY[9])

	// The perimeter of a 2 x 1 box
	line := BoundaryLines(tm)
	require.Equal(t, 0, len(line)%4)
	var perimeter float64
	for i := 0; i < len(line); i += 4 {
		perimeter += math.Hypot(float64(line[i+2]-line[i]), float64(line[i+3]-line[i+1]))
	}
	assert.InDelta(t, 6., perimeter, 1.e-6)

	x0, x1, y0, y1 := squareBox(bounds(tm))
	assert.Equal(t, []float32{0, 2, -0.5, 1.5}, []float32{x0, x1, y0, y1})
}

func TestNodeValues(t *testing.T) {
	tm, err := mesh.NewGrid(mesh.Linspace(0, 1, 4), mesh.Linspace(0, 1, 4), nil)
	require.NoError(t, err)
	nv, err := NodeValues(tm, make([]float64, tm.NodeCount()))
	require.NoError(t, err)
	assert.Len(t, nv, tm.NodeCount())

	cells := make([]float64, tm.CellCount())
	for k := range cells {
		cells[k] = 3
	}
	nv, err = NodeValues(tm, cells)
	require.NoError(t, err)
	require.Len(t, nv, tm.NodeCount())
	for _, v := range nv {
		assert.InDelta(t, 3., v, 1.e-6)
	}
	_, err = NodeValues(tm, cells[1:])
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
}

func TestRange(t *testing.T) {
	nv := []float32{2, -1, float32(math.Inf(1)), 5}
	fMin, fMax := Style{}.Range(nv)
	assert.Equal(t, float32(-1), fMin)
	assert.Equal(t, float32(5), fMax)
	lo := 0.
	fMin, fMax = Style{FMin: &lo}.Range(nv)
	assert.Equal(t, float32(0), fMin)
	assert.Equal(t, float32(5), fMax)
	fMin, fMax = Style{}.Range(nil)
	assert.Equal(t, fMin, fMax)
}
