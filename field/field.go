/*
Package field holds mesh indexed values. Every field carries its location, cell or
node centered, and moving a field between locations is an explicit call.
*/
package field

import (
	"fmt"
	"math"

	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
	"github.com/notargets/gosubsurface/utils"
)

type Scalar struct {
	Location types.Location `msgpack:"loc"`
	Values   []float64      `msgpack:"v"`
}

type Vector struct {
	Location types.Location `msgpack:"loc"`
	Values   [][2]float64   `msgpack:"v"`
}

func NewScalar(loc types.Location, n int) Scalar {
	return Scalar{Location: loc, Values: make([]float64, n)}
}

func CellScalar(values []float64) Scalar {
	return Scalar{Location: types.CellCentered, Values: values}
}

func NodeScalar(values []float64) Scalar {
	return Scalar{Location: types.NodeCentered, Values: values}
}

func NewVector(loc types.Location, n int) Vector {
	return Vector{Location: loc, Values: make([][2]float64, n)}
}

// Size is the number of entities m has at loc
func Size(m mesh.Mesh, loc types.Location) int {
	if loc == types.NodeCentered {
		return m.NodeCount()
	}
	return m.CellCount()
}

func (s Scalar) Len() int { return len(s.Values) }

func (s Scalar) Copy() Scalar {
	return Scalar{Location: s.Location, Values: append([]float64(nil), s.Values...)}
}

// Check verifies the field fits m and holds only finite values
func (s Scalar) Check(m mesh.Mesh, name string) error {
	if n := Size(m, s.Location); len(s.Values) != n {
		return fmt.Errorf("%w: %s has %d values, mesh has %d %s entities",
			types.ErrInvalidInput, name, len(s.Values), n, s.Location)
	}
	if bad := utils.AllFinite(s.Values); bad >= 0 {
		return fmt.Errorf("%w: %s[%d] = %g is not finite", types.ErrInvalidInput, name, bad, s.Values[bad])
	}
	return nil
}

func (s Scalar) MinMax() (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range s.Values {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	return
}

// Integral sums value times cell area, it is the total mass of a cell centered concentration
func (s Scalar) Integral(m mesh.Mesh) (total float64) {
	if s.Location != types.CellCentered {
		panic("integral of a node centered field, convert with NodeToCell first")
	}
	for k, v := range s.Values {
		total += v * m.Cell(k).Area
	}
	return
}

func (v Vector) Len() int { return len(v.Values) }

func (v Vector) Copy() Vector {
	return Vector{Location: v.Location, Values: append([][2]float64(nil), v.Values...)}
}

func (v Vector) Check(m mesh.Mesh, name string) error {
	if n := Size(m, v.Location); len(v.Values) != n {
		return fmt.Errorf("%w: %s has %d vectors, mesh has %d %s entities",
			types.ErrInvalidInput, name, len(v.Values), n, v.Location)
	}
	for i, u := range v.Values {
		if math.IsNaN(u[0]) || math.IsInf(u[0], 0) || math.IsNaN(u[1]) || math.IsInf(u[1], 0) {
			return fmt.Errorf("%w: %s[%d] = %v is not finite", types.ErrInvalidInput, name, i, u)
		}
	}
	return nil
}

// Component extracts one coordinate as a Scalar at the same location
func (v Vector) Component(d int) (s Scalar) {
	s = NewScalar(v.Location, len(v.Values))
	for i, u := range v.Values {
		s.Values[i] = u[d]
	}
	return
}

func (v Vector) Magnitude() (s Scalar) {
	s = NewScalar(v.Location, len(v.Values))
	for i, u := range v.Values {
		s.Values[i] = math.Hypot(u[0], u[1])
	}
	return
}
