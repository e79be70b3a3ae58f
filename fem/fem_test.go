package fem

import (
	"errors"
	"math"
	"testing"

	"github.com/notargets/gosubsurface/bcs"
	"github.com/notargets/gosubsurface/linsolve"
	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/regions"
	"github.com/notargets/gosubsurface/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leftRight(pLeft, pRight float64) bcs.Set {
	return bcs.Set{Field: "p", Specs: []bcs.Spec{
		{Type: bcs.Dirichlet, Markers: []int{types.MarkerLeft}, Value: pLeft},
		{Type: bcs.Dirichlet, Markers: []int{types.MarkerRight}, Value: pRight},
		{Type: bcs.NoFlow, Markers: []int{types.MarkerTop, types.MarkerBottom}},
	}}
}

// perturbedGrid moves the interior nodes of a uniform grid off the lattice
func perturbedGrid(t *testing.T, n int) *mesh.TriMesh {
	g, err := mesh.NewGrid(mesh.Linspace(0, 1, n), mesh.Linspace(0, 1, n), nil)
	require.NoError(t, err)
	var (
		h     = 1 / float64(n-1)
		nodes = make([]mesh.Point, g.NodeCount())
		tris  = make([][3]int, g.CellCount())
		bnd   = make(map[int][][2]int)
	)
	for i := range nodes {
		p := g.Node(i)
		if p[0] > 0 && p[0] < 1 && p[1] > 0 && p[1] < 1 {
			p[0] += 0.15 * h * math.Sin(7*float64(i))
			p[1] += 0.15 * h * math.Cos(5*float64(i))
		}
		nodes[i] = p
	}
	for k := range tris {
		tris[k] = g.Cell(k).Nodes
	}
	for _, m := range g.BoundaryMarkers() {
		for _, f := range g.BoundaryFaces(m) {
			bnd[m] = append(bnd[m], g.Face(f).Nodes)
		}
	}
	tm, err := mesh.New(nodes, tris, nil, bnd)
	require.NoError(t, err)
	return tm
}

func TestLinearPatch(t *testing.T) {
	tm := perturbedGrid(t, 7)
	exact := func(p mesh.Point) float64 { return 1 + 2*p[0] - 3*p[1] }
	var (
		nodes  []int
		values []float64
		seen   = make(map[int]bool)
	)
	for _, m := range tm.BoundaryMarkers() {
		for _, f := range tm.BoundaryFaces(m) {
			for _, n := range tm.Face(f).Nodes {
				if !seen[n] {
					seen[n] = true
					nodes = append(nodes, n)
					values = append(values, exact(tm.Node(n)))
				}
			}
		}
	}
	nc, err := bcs.NewNodeConstraints(nodes, values)
	require.NoError(t, err)
	K := make([][2]float64, tm.CellCount())
	for k := range K {
		K[k] = [2]float64{2.5, 2.5}
	}
	for _, method := range []linsolve.Method{linsolve.Auto, linsolve.LU, linsolve.CG} {
		res, err := Solve(tm, K, nc, Options{Solver: linsolve.Options{Method: method}})
		require.NoError(t, err, method.String())
		assert.Equal(t, types.NodeCentered, res.P.Location)
		assert.Equal(t, tm.NodeCount(), res.Free+res.Constrained)
		for n, v := range res.P.Values {
			assert.InDelta(t, exact(tm.Node(n)), v, 1.e-9, "node %d", n)
		}
	}
}

func TestDirichletExact(t *testing.T) {
	tm, err := mesh.NewGrid(mesh.Linspace(0, 2, 9), mesh.Linspace(0, 1, 5), nil)
	require.NoError(t, err)
	kmap, err := regions.New(regions.Tensor(1, 3, 0.2))
	require.NoError(t, err)
	set := leftRight(0.75, 0)
	res, K, err := SolveMapped(tm, kmap, set, Options{})
	require.NoError(t, err)
	assert.Len(t, K, tm.CellCount())
	assert.Equal(t, linsolve.Cholesky, res.Stats.Method)

	nc, err := bcs.ResolveNodes(tm, set, nil)
	require.NoError(t, err)
	for i, n := range nc.Nodes {
		assert.Equal(t, nc.Values[i], res.P.Values[n])
	}
	for n, v := range res.P.Values {
		x := tm.Node(n)[0]
		assert.InDelta(t, 0.75*(1-x/2), v, 1.e-10)
	}
}

func TestNeumannAndSource(t *testing.T) {
	tm, err := mesh.NewGrid(mesh.Linspace(0, 1, 21), mesh.Linspace(0, 0.2, 3), nil)
	require.NoError(t, err)
	one, err := regions.New(regions.Scalar(1, 1))
	require.NoError(t, err)
	{ // Outward flux density 2 through the right face
		res, _, err := SolveMapped(tm, one, bcs.Set{Field: "p", Specs: []bcs.Spec{
			{Type: bcs.Dirichlet, Markers: []int{types.MarkerLeft}, Value: 1},
			{Type: bcs.Neumann, Markers: []int{types.MarkerRight}, Value: 2},
		}}, Options{})
		require.NoError(t, err)
		for n, v := range res.P.Values {
			assert.InDelta(t, 1-2*tm.Node(n)[0], v, 1.e-9)
		}
	}
	{ // Uniform injection between two fixed heads mounds the head symmetrically
		src := make([]float64, tm.CellCount())
		for k := range src {
			src[k] = 1
		}
		res, _, err := SolveMapped(tm, one, leftRight(0, 0), Options{Source: src})
		require.NoError(t, err)
		var pMax float64
		for n, v := range res.P.Values {
			x := tm.Node(n)[0]
			assert.InDelta(t, x*(1-x)/2, v, 5.e-3)
			pMax = math.Max(pMax, v)
		}
		assert.InDelta(t, 0.125, pMax, 5.e-3)
	}
}

func TestTwoLayerContrast(t *testing.T) {
	tm, err := mesh.NewGrid(mesh.Linspace(0, 1, 11), mesh.Linspace(0, 1, 11), func(c mesh.Point) int {
		if c[1] < 0.5 {
			return 1
		}
		return 2
	})
	require.NoError(t, err)
	kmap, err := regions.New(regions.Scalar(1, 1.e-8), regions.Scalar(2, 5.e-3))
	require.NoError(t, err)
	res, _, err := SolveMapped(tm, kmap, leftRight(0.75, 0), Options{})
	require.NoError(t, err)
	for n, v := range res.P.Values {
		assert.InDelta(t, 0.75*(1-tm.Node(n)[0]), v, 1.e-7)
	}
}

func TestSingular(t *testing.T) {
	tm, err := mesh.NewGrid(mesh.Linspace(0, 1, 4), mesh.Linspace(0, 1, 4), nil)
	require.NoError(t, err)
	K := make([][2]float64, tm.CellCount())
	for k := range K {
		K[k] = [2]float64{1, 1}
	}
	var sse *types.SingularSystemError
	{ // No Dirichlet data
		nc, err := bcs.ResolveNodes(tm, bcs.Set{Field: "p", Specs: []bcs.Spec{
			{Type: bcs.NoFlow, Markers: []int{types.MarkerLeft}},
		}}, nil)
		require.NoError(t, err)
		_, err = Solve(tm, K, nc, Options{})
		require.True(t, errors.As(err, &sse))
		assert.Equal(t, -1, sse.Node)
		_, err = Solve(tm, K, nil, Options{})
		assert.True(t, errors.Is(err, types.ErrSingularSystem))
	}

	// Two triangles sharing no node, only the first carries Dirichlet data
	split, err := mesh.New(
		[]mesh.Point{{0, 0}, {1, 0}, {0, 1}, {2, 0}, {3, 0}, {2, 1}},
		[][3]int{{0, 1, 2}, {3, 4, 5}}, nil,
		map[int][][2]int{1: {{0, 1}}, 2: {{3, 4}}})
	require.NoError(t, err)
	nc, err := bcs.NewNodeConstraints([]int{0, 1}, []float64{1, 1})
	require.NoError(t, err)
	_, err = Solve(split, [][2]float64{{1, 1}, {1, 1}}, nc, Options{})
	require.True(t, errors.As(err, &sse))
	assert.Equal(t, 3, sse.Node)
	assert.Contains(t, sse.Reason, "not connected")

	_, err = Solve(split, [][2]float64{{1, 1}, {0, 0}}, nc, Options{})
	require.True(t, errors.As(err, &sse))
	assert.Equal(t, 3, sse.Node)
	assert.Contains(t, sse.Reason, "no stiffness")
}

func TestInvalidInput(t *testing.T) {
	tm, err := mesh.NewGrid(mesh.Linspace(0, 1, 3), mesh.Linspace(0, 1, 3), nil)
	require.NoError(t, err)
	nc, err := bcs.ResolveNodes(tm, leftRight(1, 0), nil)
	require.NoError(t, err)
	good := make([][2]float64, tm.CellCount())
	for k := range good {
		good[k] = [2]float64{1, 1}
	}
	bad := append([][2]float64(nil), good...)
	bad[3][1] = math.NaN()
	for name, c := range map[string]struct {
		K    [][2]float64
		opts Options
	}{
		"short K":      {K: good[1:]},
		"nan K":        {K: bad},
		"short source": {K: good, opts: Options{Source: []float64{1}}},
	} {
		_, err := Solve(tm, c.K, nc, c.opts)
		assert.True(t, errors.Is(err, types.ErrInvalidInput), name)
	}

	empty, err := regions.New(regions.Scalar(7, 1))
	require.NoError(t, err)
	_, _, err = SolveMapped(tm, empty, leftRight(1, 0), Options{})
	assert.True(t, errors.Is(err, types.ErrUnmappedRegion))
}

func TestStiffnessRowsSumToZero(t *testing.T) {
	tm := perturbedGrid(t, 4)
	for k := 0; k < tm.CellCount(); k++ {
		Ke := Stiffness(tm, k, [2]float64{1.5, 0.3})
		for i := 0; i < 3; i++ {
			assert.InDelta(t, 0, Ke[i][0]+Ke[i][1]+Ke[i][2], 1.e-12)
			assert.Greater(t, Ke[i][i], 0.)
			for j := 0; j < 3; j++ {
				assert.InDelta(t, Ke[i][j], Ke[j][i], 1.e-14)
			}
		}
	}
}
