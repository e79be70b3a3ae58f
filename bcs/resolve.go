/*
Package bcs expands symbolic boundary specifications, a condition type on a set of
boundary markers, into constraints on concrete mesh nodes and faces.

Specs are applied in the order listed and the first spec to claim a node or face wins.
A later spec that claims the same entity with a different condition is dropped, the
drop is recorded as a types.BoundaryOverlap and logged at debug level.
*/
package bcs

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/gosubsurface/logging"
	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
)

type Spec struct {
	Type    Type     `json:"Type" toml:"Type"`
	Markers []int    `json:"Markers,omitempty" toml:"Markers,omitempty"`
	Labels  []string `json:"Labels,omitempty" toml:"Labels,omitempty"` // marker names, for meshes read from file
	Value   float64  `json:"Value" toml:"Value"`
}

// Set is the ordered list of specs for one named field
type Set struct {
	Field string `json:"Field" toml:"Field"`
	Specs []Spec `json:"Specs" toml:"Specs"`
}

// Labeler is implemented by meshes that carry names for their boundary markers
type Labeler interface {
	MarkerLabel(marker int) string
}

type NodeConstraints struct {
	Nodes    []int // sorted
	Values   []float64
	Overlaps []types.BoundaryOverlap
	index    map[int]int
}

func (nc *NodeConstraints) Len() int { return len(nc.Nodes) }

func (nc *NodeConstraints) Value(node int) (v float64, ok bool) {
	var i int
	if i, ok = nc.index[node]; ok {
		v = nc.Values[i]
	}
	return
}

// Mask flags the constrained nodes of an n node mesh
func (nc *NodeConstraints) Mask(n int) (mask []bool) {
	mask = make([]bool, n)
	for _, node := range nc.Nodes {
		mask[node] = true
	}
	return
}

// NewNodeConstraints builds node wise Dirichlet data, for boundary values that vary
// along a marker
func NewNodeConstraints(nodes []int, values []float64) (nc *NodeConstraints, err error) {
	if len(nodes) != len(values) {
		return nil, fmt.Errorf("%w: %d nodes and %d values", types.ErrMalformedBC, len(nodes), len(values))
	}
	order := make([]int, len(nodes))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return nodes[order[a]] < nodes[order[b]] })
	nc = &NodeConstraints{
		Nodes:  make([]int, len(nodes)),
		Values: make([]float64, len(nodes)),
		index:  make(map[int]int, len(nodes)),
	}
	for i, o := range order {
		node, v := nodes[o], values[o]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: node %d value %g is not finite", types.ErrMalformedBC, node, v)
		}
		if _, dup := nc.index[node]; dup {
			return nil, fmt.Errorf("%w: node %d is constrained twice", types.ErrMalformedBC, node)
		}
		nc.Nodes[i], nc.Values[i] = node, v
		nc.index[node] = i
	}
	return
}

type FaceBC struct {
	Type  Type
	Value float64
	Spec  int // index of the spec that set it
}

type FaceConstraints struct {
	Faces    []int // sorted
	Overlaps []types.BoundaryOverlap
	byFace   map[int]FaceBC
}

func (fc *FaceConstraints) Len() int { return len(fc.Faces) }

func (fc *FaceConstraints) Get(face int) (bc FaceBC, ok bool) {
	bc, ok = fc.byFace[face]
	return
}

// ResolveNodes expands the Dirichlet specs of set onto boundary nodes. Other types impose
// no nodal value and are only validated
func ResolveNodes(m mesh.Mesh, set Set, log logging.Logger) (nc *NodeConstraints, err error) {
	var (
		markers [][]int
		owner   = make(map[int]int)
	)
	log = logging.OrNoOp(log).With("field", set.Field)
	if markers, err = set.validate(m); err != nil {
		return
	}
	nc = &NodeConstraints{index: make(map[int]int)}
	values := make(map[int]float64)
	for i, spec := range set.Specs {
		if spec.Type != Dirichlet {
			continue
		}
		for _, marker := range markers[i] {
			for _, f := range m.BoundaryFaces(marker) {
				for _, node := range m.Face(f).Nodes {
					prev, claimed := values[node]
					switch {
					case !claimed:
						values[node], owner[node] = spec.Value, i
					case prev != spec.Value:
						o := types.BoundaryOverlap{
							Entity: node, Kept: prev, Dropped: spec.Value,
							KeptSpec: owner[node], DroppedSpec: i,
						}
						if !containsOverlap(nc.Overlaps, o) {
							nc.Overlaps = append(nc.Overlaps, o)
							log.Debug("boundary node claimed twice, first listed spec kept", "node", node,
								"kept", prev, "dropped", spec.Value, "keptSpec", o.KeptSpec, "droppedSpec", i)
						}
					}
				}
			}
		}
	}
	for node := range values {
		nc.Nodes = append(nc.Nodes, node)
	}
	sort.Ints(nc.Nodes)
	nc.Values = make([]float64, len(nc.Nodes))
	for i, node := range nc.Nodes {
		nc.Values[i] = values[node]
		nc.index[node] = i
	}
	return
}

// ResolveFaces expands every spec of set onto boundary faces
func ResolveFaces(m mesh.Mesh, set Set, log logging.Logger) (fc *FaceConstraints, err error) {
	var markers [][]int
	log = logging.OrNoOp(log).With("field", set.Field)
	if markers, err = set.validate(m); err != nil {
		return
	}
	fc = &FaceConstraints{byFace: make(map[int]FaceBC)}
	for i, spec := range set.Specs {
		for _, marker := range markers[i] {
			for _, f := range m.BoundaryFaces(marker) {
				prev, claimed := fc.byFace[f]
				switch {
				case !claimed:
					fc.byFace[f] = FaceBC{Type: spec.Type, Value: spec.Value, Spec: i}
				case prev.Spec != i && (prev.Type != spec.Type || prev.Value != spec.Value):
					o := types.BoundaryOverlap{
						Entity: f, Kept: prev.Value, Dropped: spec.Value,
						KeptSpec: prev.Spec, DroppedSpec: i,
					}
					fc.Overlaps = append(fc.Overlaps, o)
					log.Debug("boundary face claimed twice, first listed spec kept", "face", f,
						"kept", prev.Type.String(), "dropped", spec.Type.String(),
						"keptSpec", prev.Spec, "droppedSpec", i)
				}
			}
		}
	}
	for f := range fc.byFace {
		fc.Faces = append(fc.Faces, f)
	}
	sort.Ints(fc.Faces)
	return
}

// validate fails fast on a malformed set and returns the resolved marker list of each spec
func (set Set) validate(m mesh.Mesh) (markers [][]int, err error) {
	var (
		onBoundary = make(map[int]struct{})
		byLabel    = make(map[string]int)
	)
	for _, mk := range m.BoundaryMarkers() {
		onBoundary[mk] = struct{}{}
		if lb, ok := m.(Labeler); ok {
			if name := lb.MarkerLabel(mk); name != "" {
				byLabel[name] = mk
			}
		}
	}
	markers = make([][]int, len(set.Specs))
	for i, spec := range set.Specs {
		if spec.Type < Dirichlet || spec.Type > NoFlow {
			return nil, fmt.Errorf("%w: field %s spec %d has type %s", types.ErrMalformedBC, set.Field, i, spec.Type)
		}
		if math.IsNaN(spec.Value) || math.IsInf(spec.Value, 0) {
			return nil, fmt.Errorf("%w: field %s spec %d value %g is not finite",
				types.ErrMalformedBC, set.Field, i, spec.Value)
		}
		if len(spec.Markers)+len(spec.Labels) == 0 {
			return nil, fmt.Errorf("%w: field %s spec %d has an empty marker set", types.ErrMalformedBC, set.Field, i)
		}
		for _, mk := range spec.Markers {
			if _, ok := onBoundary[mk]; !ok {
				return nil, fmt.Errorf("%w: field %s spec %d: marker %d is not on the mesh boundary",
					types.ErrMalformedBC, set.Field, i, mk)
			}
			markers[i] = append(markers[i], mk)
		}
		for _, name := range spec.Labels {
			mk, ok := byLabel[name]
			if !ok {
				return nil, fmt.Errorf("%w: field %s spec %d: no boundary marker is labelled %q",
					types.ErrMalformedBC, set.Field, i, name)
			}
			markers[i] = append(markers[i], mk)
		}
	}
	return
}

func containsOverlap(list []types.BoundaryOverlap, o types.BoundaryOverlap) bool {
	for _, x := range list {
		if x == o {
			return true
		}
	}
	return false
}
