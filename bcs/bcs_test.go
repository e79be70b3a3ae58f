package bcs

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid(t *testing.T) *mesh.TriMesh {
	tm, err := mesh.NewGrid([]float64{0, 1, 2}, []float64{0, 1, 2}, nil)
	require.NoError(t, err)
	return tm
}

func TestParseType(t *testing.T) {
	for name, want := range map[string]Type{
		"Dirichlet": Dirichlet, "fixed": Dirichlet, "  WALL ": NoFlow, "flux": Neumann,
		"out": Outflow, "NoFlow": NoFlow,
	} {
		got, err := ParseType(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseType("robin")
	assert.True(t, errors.Is(err, types.ErrMalformedBC))

	var spec Spec
	require.NoError(t, json.Unmarshal([]byte(`{"Type":"outflow","Markers":[2],"Value":0}`), &spec))
	assert.Equal(t, Outflow, spec.Type)
	assert.Error(t, json.Unmarshal([]byte(`{"Type":"bogus"}`), &spec))
	b, err := json.Marshal(Spec{Type: NoFlow, Markers: []int{1}})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"Type":"noflow"`)
}

func TestResolveNodes(t *testing.T) {
	tm := grid(t)
	{ // Opposite faces
		nc, err := ResolveNodes(tm, Set{Field: "p", Specs: []Spec{
			{Type: Dirichlet, Markers: []int{types.MarkerLeft}, Value: 1},
			{Type: Dirichlet, Markers: []int{types.MarkerRight}, Value: 0},
			{Type: NoFlow, Markers: []int{types.MarkerTop, types.MarkerBottom}},
		}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2, 3, 5, 6, 8}, nc.Nodes)
		assert.Equal(t, []float64{1, 0, 1, 0, 1, 0}, nc.Values)
		assert.Empty(t, nc.Overlaps)
		v, ok := nc.Value(6)
		assert.True(t, ok)
		assert.Equal(t, 1., v)
		_, ok = nc.Value(4)
		assert.False(t, ok)
		assert.Equal(t, []bool{true, false, true, true, false, true, true, false, true}, nc.Mask(9))
	}
	{ // First listed wins at the shared corner and the drop is recorded
		nc, err := ResolveNodes(tm, Set{Field: "p", Specs: []Spec{
			{Type: Dirichlet, Labels: []string{"left"}, Value: 1},
			{Type: Dirichlet, Markers: []int{types.MarkerBottom}, Value: 5},
		}}, nil)
		require.NoError(t, err)
		v, _ := nc.Value(0)
		assert.Equal(t, 1., v)
		v, _ = nc.Value(1)
		assert.Equal(t, 5., v)
		require.Len(t, nc.Overlaps, 1)
		o := nc.Overlaps[0]
		assert.Equal(t, types.BoundaryOverlap{Entity: 0, Kept: 1, Dropped: 5, KeptSpec: 0, DroppedSpec: 1}, o)
		assert.True(t, errors.Is(o, types.ErrBoundaryOverlap))
	}
	{ // Equal values do not conflict
		nc, err := ResolveNodes(tm, Set{Field: "p", Specs: []Spec{
			{Type: Dirichlet, Markers: []int{types.MarkerLeft}, Value: 1},
			{Type: Dirichlet, Markers: []int{types.MarkerBottom}, Value: 1},
		}}, nil)
		require.NoError(t, err)
		assert.Empty(t, nc.Overlaps)
		assert.Equal(t, 5, nc.Len())
	}
}

func TestResolveFaces(t *testing.T) {
	tm := grid(t)
	fc, err := ResolveFaces(tm, Set{Field: "c", Specs: []Spec{
		{Type: NoFlow, Markers: []int{types.MarkerTop, types.MarkerBottom}},
		{Type: Dirichlet, Markers: []int{types.MarkerLeft}, Value: 1},
		{Type: Dirichlet, Markers: []int{types.MarkerTop}, Value: 3},
		{Type: Outflow, Markers: []int{types.MarkerRight}},
	}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, fc.Len())
	for _, f := range tm.BoundaryFaces(types.MarkerTop) {
		bc, ok := fc.Get(f)
		require.True(t, ok)
		assert.Equal(t, NoFlow, bc.Type)
		assert.Equal(t, 0, bc.Spec)
	}
	bc, ok := fc.Get(tm.BoundaryFaces(types.MarkerLeft)[0])
	require.True(t, ok)
	assert.Equal(t, FaceBC{Type: Dirichlet, Value: 1, Spec: 1}, bc)
	require.Len(t, fc.Overlaps, 2)
	assert.Equal(t, 2, fc.Overlaps[0].DroppedSpec)
	_, ok = fc.Get(-1)
	assert.False(t, ok)
}

func TestMalformed(t *testing.T) {
	tm := grid(t)
	for name, spec := range map[string]Spec{
		"unknown marker": {Type: Dirichlet, Markers: []int{9}, Value: 1},
		"reserved":       {Type: Dirichlet, Markers: []int{types.MarkerNone}, Value: 1},
		"empty":          {Type: Dirichlet, Value: 1},
		"nan":            {Type: Dirichlet, Markers: []int{1}, Value: math.NaN()},
		"inf":            {Type: Neumann, Markers: []int{1}, Value: math.Inf(1)},
		"untyped":        {Markers: []int{1}},
		"bad label":      {Type: NoFlow, Labels: []string{"inlet"}},
	} {
		set := Set{Field: "p", Specs: []Spec{{Type: NoFlow, Markers: []int{2}}, spec}}
		_, err := ResolveNodes(tm, set, nil)
		assert.True(t, errors.Is(err, types.ErrMalformedBC), name)
		_, err = ResolveFaces(tm, set, nil)
		assert.True(t, errors.Is(err, types.ErrMalformedBC), name)
	}
}

func TestNewNodeConstraints(t *testing.T) {
	nc, err := NewNodeConstraints([]int{5, 0, 3}, []float64{2, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 5}, nc.Nodes)
	assert.Equal(t, []float64{1, 0, 2}, nc.Values)
	v, ok := nc.Value(5)
	assert.True(t, ok)
	assert.Equal(t, 2., v)

	_, err = NewNodeConstraints([]int{1, 1}, []float64{0, 0})
	assert.True(t, errors.Is(err, types.ErrMalformedBC))
	_, err = NewNodeConstraints([]int{1}, []float64{math.NaN()})
	assert.True(t, errors.Is(err, types.ErrMalformedBC))
	_, err = NewNodeConstraints([]int{1}, nil)
	assert.True(t, errors.Is(err, types.ErrMalformedBC))
}
