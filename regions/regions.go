/*
Package regions resolves per region properties, such as hydraulic conductivity or
porosity, into per cell arrays.

A Map is an ordered list of entries keyed by integer region marker. Entries hold one
value (isotropic) or one value per axis (diagonal anisotropy). Expansion of a single
value into a tensor happens here, in Tensors, and nowhere else.
*/
package regions

import (
	"fmt"
	"math"

	"github.com/notargets/gosubsurface/logging"
	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
	"github.com/notargets/gosubsurface/utils"
)

type Entry struct {
	Region int       `json:"Region" toml:"Region"`
	Value  []float64 `json:"Value" toml:"Value"`
}

func Scalar(region int, v float64) Entry { return Entry{Region: region, Value: []float64{v}} }

func Tensor(region int, kxx, kyy float64) Entry {
	return Entry{Region: region, Value: []float64{kxx, kyy}}
}

type Map struct {
	entries    []Entry
	index      map[int]int
	components int
	def        []float64
}

// New validates the entries: no region twice, finite values, one component count for all
func New(entries ...Entry) (m *Map, err error) {
	m = &Map{
		entries: make([]Entry, len(entries)),
		index:   make(map[int]int, len(entries)),
	}
	for i, e := range entries {
		if _, dup := m.index[e.Region]; dup {
			return nil, fmt.Errorf("%w: region %d is mapped twice", types.ErrInvalidInput, e.Region)
		}
		if err = checkValue(e.Value); err != nil {
			return nil, fmt.Errorf("region %d: %w", e.Region, err)
		}
		if i == 0 {
			m.components = len(e.Value)
		} else if len(e.Value) != m.components {
			return nil, fmt.Errorf("%w: region %d has %d components, region %d has %d",
				types.ErrInvalidInput, e.Region, len(e.Value), entries[0].Region, m.components)
		}
		m.index[e.Region] = i
		m.entries[i] = Entry{Region: e.Region, Value: append([]float64(nil), e.Value...)}
	}
	return
}

func checkValue(v []float64) error {
	if len(v) < 1 || len(v) > 2 {
		return fmt.Errorf("%w: %d components, a 2D value has 1 or 2", types.ErrInvalidInput, len(v))
	}
	if bad := utils.AllFinite(v); bad >= 0 {
		return fmt.Errorf("%w: component %d = %g is not finite", types.ErrInvalidInput, bad, v[bad])
	}
	return nil
}

// WithDefault returns a copy of the map that resolves unmapped regions to v
func (m *Map) WithDefault(v ...float64) (mm *Map, err error) {
	if err = checkValue(v); err != nil {
		return nil, fmt.Errorf("default: %w", err)
	}
	if len(m.entries) > 0 && len(v) != m.components {
		return nil, fmt.Errorf("%w: default has %d components, map has %d",
			types.ErrInvalidInput, len(v), m.components)
	}
	mm = &Map{
		entries:    m.entries,
		index:      m.index,
		components: len(v),
		def:        append([]float64(nil), v...),
	}
	return
}

func (m *Map) Components() int { return m.components }

// Regions lists the mapped region markers in entry order
func (m *Map) Regions() (r []int) {
	r = make([]int, len(m.entries))
	for i, e := range m.entries {
		r[i] = e.Region
	}
	return
}

func (m *Map) lookup(region int) ([]float64, bool) {
	if i, ok := m.index[region]; ok {
		return m.entries[i].Value, true
	}
	if m.def != nil {
		return m.def, true
	}
	return nil, false
}

// Validate checks that every region of msh resolves before any assembly starts. Entries
// for regions the mesh does not have are reported to log and tolerated
func (m *Map) Validate(msh mesh.Mesh, log logging.Logger) error {
	log = logging.OrNoOp(log)
	present := make(map[int]struct{})
	for _, r := range msh.RegionMarkers() {
		present[r] = struct{}{}
		if _, ok := m.lookup(r); !ok {
			return &types.UnmappedRegionError{Region: r, Cell: firstCell(msh, r)}
		}
	}
	for _, e := range m.entries {
		if _, ok := present[e.Region]; !ok {
			log.Debug("region map entry unused by mesh", "region", e.Region)
		}
	}
	return nil
}

func firstCell(msh mesh.Mesh, region int) int {
	for k := 0; k < msh.CellCount(); k++ {
		if msh.Cell(k).Region == region {
			return k
		}
	}
	return -1
}

// Scalars resolves a one component map into one value per cell
func (m *Map) Scalars(msh mesh.Mesh) (v []float64, err error) {
	if m.components != 1 {
		return nil, fmt.Errorf("%w: scalar lookup on a %d component map", types.ErrInvalidInput, m.components)
	}
	v = make([]float64, msh.CellCount())
	for k := range v {
		region := msh.Cell(k).Region
		val, ok := m.lookup(region)
		if !ok {
			return nil, &types.UnmappedRegionError{Region: region, Cell: k}
		}
		v[k] = val[0]
	}
	return
}

// Tensors resolves the map into a diagonal tensor per cell. A single component is
// replicated to every axis, two components are (Kxx, Kyy)
func (m *Map) Tensors(msh mesh.Mesh, dim int) (K [][2]float64, err error) {
	if dim != 2 || msh.Dim() != dim {
		return nil, fmt.Errorf("%w: tensor dimension %d on a %dD mesh, only 2D is supported",
			types.ErrInvalidInput, dim, msh.Dim())
	}
	K = make([][2]float64, msh.CellCount())
	for k := range K {
		region := msh.Cell(k).Region
		val, ok := m.lookup(region)
		if !ok {
			return nil, &types.UnmappedRegionError{Region: region, Cell: k}
		}
		switch len(val) {
		case 1:
			K[k] = [2]float64{val[0], val[0]}
		case 2:
			K[k] = [2]float64{val[0], val[1]}
		}
	}
	return
}

// Uniform maps every region of msh to the same value
func Uniform(msh mesh.Mesh, v ...float64) (m *Map, err error) {
	regions := msh.RegionMarkers()
	entries := make([]Entry, len(regions))
	for i, r := range regions {
		entries[i] = Entry{Region: r, Value: v}
	}
	return New(entries...)
}

// Positive reports the index of the first value that is not finite and > 0, or -1.
// Porosities and background resistivities must pass
func Positive(v []float64) (bad int) {
	for i, x := range v {
		if !(x > 0) || math.IsInf(x, 1) {
			return i
		}
	}
	return -1
}
