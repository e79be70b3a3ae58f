package petro

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
)

// FillMode zero value is nearest, uncovered target cells copy the closest source cell
type FillMode uint8

const (
	FillNearestMode FillMode = iota
	FillConstantMode
)

func (f FillMode) String() string {
	if f == FillConstantMode {
		return "constant"
	}
	return "nearest"
}

func (f FillMode) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FillMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "nearest", "":
		*f = FillNearestMode
	case "constant":
		*f = FillConstantMode
	default:
		return fmt.Errorf("%w: unknown fill policy %q", types.ErrInvalidInput, text)
	}
	return nil
}

// FillPolicy decides the value of target cells that fall outside the source mesh
type FillPolicy struct {
	Mode  FillMode `json:"Mode" toml:"Mode"`
	Value float64  `json:"Value" toml:"Value"` // constant mode only, a resistivity > 0, +Inf insulates
}

func FillConstant(v float64) FillPolicy { return FillPolicy{Mode: FillConstantMode, Value: v} }

func FillNearest() FillPolicy { return FillPolicy{Mode: FillNearestMode} }

type nearestFinder interface {
	NearestCell(p mesh.Point) int
}

// Interpolator carries cell values from a source mesh onto the cells of a target mesh,
// each target cell takes the value of the source cell containing its center
type Interpolator struct {
	Source, Target mesh.Mesh
	Policy         FillPolicy
	index          []int // source cell per target cell, -1 for the fill value
	outside        int
}

func NewInterpolator(src, dst mesh.Mesh, policy FillPolicy) (ip *Interpolator, err error) {
	if policy.Mode == FillConstantMode && (math.IsNaN(policy.Value) || policy.Value <= 0) {
		return nil, fmt.Errorf("%w: constant fill resistivity %g, must be > 0", types.ErrInvalidInput,
			policy.Value)
	}
	ip = &Interpolator{
		Source: src,
		Target: dst,
		Policy: policy,
		index:  make([]int, dst.CellCount()),
	}
	for k := range ip.index {
		center := dst.Cell(k).Center
		cell, ok := src.FindCell(center)
		if !ok {
			ip.outside++
			if policy.Mode == FillNearestMode {
				cell = nearest(src, center)
			} else {
				cell = -1
			}
		}
		ip.index[k] = cell
	}
	return
}

func nearest(m mesh.Mesh, p mesh.Point) (cell int) {
	if nf, ok := m.(nearestFinder); ok {
		return nf.NearestCell(p)
	}
	best := math.Inf(1)
	for k := 0; k < m.CellCount(); k++ {
		d := p.Sub(m.Cell(k).Center)
		if dist := d.Dot(d); dist < best {
			best, cell = dist, k
		}
	}
	return
}

// Outside is the number of target cells whose center is not covered by the source mesh
func (ip *Interpolator) Outside() int { return ip.outside }

// SourceCell reports the source cell feeding target cell k, -1 when it takes the fill value
func (ip *Interpolator) SourceCell(k int) int { return ip.index[k] }

func (ip *Interpolator) Apply(values []float64) (out []float64, err error) {
	if len(values) != ip.Source.CellCount() {
		return nil, fmt.Errorf("%w: %d values for a %d cell source mesh", types.ErrInvalidInput,
			len(values), ip.Source.CellCount())
	}
	out = make([]float64, len(ip.index))
	for k, src := range ip.index {
		if src < 0 {
			out[k] = ip.Policy.Value
			continue
		}
		out[k] = values[src]
	}
	return
}
