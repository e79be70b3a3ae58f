/*
Package ert is the contract with the geoelectrical forward model, electrode layouts and
the time lapse driver that feeds it one resistivity frame at a time.

The forward model itself is external. Simulator is the narrow interface it is reached
through, Proxy is a cheap stand-in for demos and tests.
*/
package ert

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
)

// Simulator computes apparent resistivities for every quadrupole of scheme over the cell
// resistivities of m
type Simulator interface {
	Simulate(ctx context.Context, m mesh.Mesh, resistivity []float64, scheme Scheme) ([]float64, error)
}

// Pole marks an electrode placed at infinity
const Pole = -1

// Quadrupole indexes the current (A, B) and potential (M, N) electrodes of one reading
type Quadrupole struct {
	A, B, M, N int
}

type Scheme struct {
	Electrodes []mesh.Point `json:"Electrodes" toml:"Electrodes"`
	Data       []Quadrupole `json:"Data" toml:"Data"`
}

func (s Scheme) Len() int { return len(s.Data) }

func (s Scheme) Validate() error {
	if len(s.Data) == 0 {
		return fmt.Errorf("%w: electrode scheme has no readings", types.ErrInvalidInput)
	}
	ne := len(s.Electrodes)
	for i, q := range s.Data {
		for _, e := range []int{q.A, q.B, q.M, q.N} {
			if e < Pole || e >= ne {
				return fmt.Errorf("%w: reading %d references electrode %d of %d", types.ErrInvalidInput, i, e, ne)
			}
		}
		if q.A == Pole || q.M == Pole {
			return fmt.Errorf("%w: reading %d needs electrodes A and M", types.ErrInvalidInput, i)
		}
	}
	return nil
}

// DipoleDipole lays out dipoles of adjacent electrodes along the line, separations from 1
// to maxN dipole lengths. Electrodes are ordered B A M N so geometric factors are positive
func DipoleDipole(electrodes []mesh.Point, maxN int) (s Scheme) {
	s.Electrodes = append([]mesh.Point(nil), electrodes...)
	ne := len(electrodes)
	for n := 1; n <= maxN; n++ {
		for a := 0; a+n+3 <= ne; a++ {
			s.Data = append(s.Data, Quadrupole{A: a + 1, B: a, M: a + n + 1, N: a + n + 2})
		}
	}
	return
}

// Wenner lays out A M N B quadrupoles with equal spacing a of 1 to maxA electrodes
func Wenner(electrodes []mesh.Point, maxA int) (s Scheme) {
	s.Electrodes = append([]mesh.Point(nil), electrodes...)
	ne := len(electrodes)
	for a := 1; a <= maxA; a++ {
		for i := 0; i+3*a < ne; i++ {
			s.Data = append(s.Data, Quadrupole{A: i, M: i + a, N: i + 2*a, B: i + 3*a})
		}
	}
	return
}

// Line places n electrodes from x0 to x1 at height y
func Line(x0, x1, y float64, n int) (e []mesh.Point) {
	e = make([]mesh.Point, n)
	for i := range e {
		x := x0
		if n > 1 {
			x = x0 + (x1-x0)*float64(i)/float64(n-1)
		}
		e[i] = mesh.Point{x, y}
	}
	return
}

func (s Scheme) distance(i, j int) float64 {
	if i == Pole || j == Pole {
		return math.Inf(1)
	}
	d := s.Electrodes[i].Sub(s.Electrodes[j])
	return math.Sqrt(d.Dot(d))
}

// GeometricFactors are the half space factors k = 2 pi / (1/AM - 1/BM - 1/AN + 1/BN)
// converting a transfer resistance into apparent resistivity
func (s Scheme) GeometricFactors() (k []float64) {
	k = make([]float64, len(s.Data))
	for i, q := range s.Data {
		g := 1/s.distance(q.A, q.M) - 1/s.distance(q.B, q.M) - 1/s.distance(q.A, q.N) + 1/s.distance(q.B, q.N)
		k[i] = 2 * math.Pi / g
	}
	return
}

// TimeLapse simulates every frame, at most parallel at a time. Results keep frame order
// and the first failure cancels the remaining frames
func TimeLapse(ctx context.Context, sim Simulator, m mesh.Mesh, frames [][]float64, scheme Scheme,
	parallel int) (data [][]float64, err error) {
	if err = scheme.Validate(); err != nil {
		return
	}
	data = make([][]float64, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, rho := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := sim.Simulate(gctx, m, rho, scheme)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			if len(d) != scheme.Len() {
				return fmt.Errorf("%w: frame %d: simulator returned %d readings for %d quadrupoles",
					types.ErrInvalidInput, i, len(d), scheme.Len())
			}
			data[i] = d
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return
}

// AddNoise perturbs data with Gaussian noise of standard deviation relative |d| + absolute
// and returns the relative error estimate of each reading. The same seed gives the same noise
func AddNoise(data []float64, relative, absolute float64, seed uint64) (noisy, relErr []float64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	noisy = make([]float64, len(data))
	relErr = make([]float64, len(data))
	for i, d := range data {
		relErr[i] = relative
		if d != 0 {
			relErr[i] += absolute / math.Abs(d)
		}
		noisy[i] = d * (1 + relErr[i]*rng.NormFloat64())
	}
	return
}
