package ert

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSimulator struct{ mock.Mock }

func (m *MockSimulator) Simulate(ctx context.Context, msh mesh.Mesh, resistivity []float64, scheme Scheme) (
	[]float64, error) {
	args := m.Called(ctx, msh, resistivity, scheme)
	if d, ok := args.Get(0).([]float64); ok {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSchemes(t *testing.T) {
	e := Line(0, 10, 0, 6)
	assert.Equal(t, mesh.Point{2, 0}, e[1])

	dd := DipoleDipole(e, 2)
	require.NoError(t, dd.Validate())
	assert.Equal(t, []Quadrupole{
		{1, 0, 2, 3}, {2, 1, 3, 4}, {3, 2, 4, 5},
		{1, 0, 3, 4}, {2, 1, 4, 5},
	}, dd.Data)
	// Dipole-dipole with spacing a and separation n: k = pi n (n+1) (n+2) a
	k := dd.GeometricFactors()
	assert.InDelta(t, math.Pi*1*2*3*2, k[0], 1.e-9)
	assert.InDelta(t, math.Pi*2*3*4*2, k[3], 1.e-9)

	w := Wenner(e, 1)
	require.Len(t, w.Data, 3)
	assert.InDelta(t, 2*math.Pi*2, w.GeometricFactors()[0], 1.e-9)

	pd := Scheme{Electrodes: e, Data: []Quadrupole{{A: 0, B: Pole, M: 1, N: Pole}}}
	require.NoError(t, pd.Validate())
	assert.InDelta(t, 2*math.Pi*2, pd.GeometricFactors()[0], 1.e-9)

	for _, bad := range []Scheme{
		{Electrodes: e},
		{Electrodes: e, Data: []Quadrupole{{0, 1, 2, 9}}},
		{Electrodes: e, Data: []Quadrupole{{Pole, 1, 2, 3}}},
	} {
		assert.True(t, errors.Is(bad.Validate(), types.ErrInvalidInput))
	}
}

func TestTimeLapse(t *testing.T) {
	tm, err := mesh.NewGrid(mesh.Linspace(0, 10, 11), mesh.Linspace(-5, 0, 6), nil)
	require.NoError(t, err)
	scheme := DipoleDipole(Line(0, 10, 0, 6), 1)
	frames := make([][]float64, 5)
	for i := range frames {
		frames[i] = make([]float64, tm.CellCount())
		for k := range frames[i] {
			frames[i][k] = float64(10 * (i + 1))
		}
	}
	sim := &MockSimulator{}
	for i, f := range frames {
		sim.On("Simulate", mock.Anything, tm, f, scheme).
			Return([]float64{float64(i), float64(i), float64(i)}, nil).Once()
	}
	data, err := TimeLapse(context.Background(), sim, tm, frames, scheme, 2)
	require.NoError(t, err)
	require.Len(t, data, len(frames))
	for i, d := range data {
		assert.Equal(t, []float64{float64(i), float64(i), float64(i)}, d)
	}
	sim.AssertExpectations(t)

	{ // A failing frame fails the run
		failing := &MockSimulator{}
		failing.On("Simulate", mock.Anything, tm, frames[0], scheme).Return([]float64{1, 1, 1}, nil).Maybe()
		failing.On("Simulate", mock.Anything, tm, frames[1], scheme).Return(nil, errors.New("mesh too coarse"))
		_, err := TimeLapse(context.Background(), failing, tm, frames[:2], scheme, 1)
		assert.ErrorContains(t, err, "frame 1")
	}
	{ // Wrong number of readings
		short := &MockSimulator{}
		short.On("Simulate", mock.Anything, tm, frames[0], scheme).Return([]float64{1}, nil)
		_, err := TimeLapse(context.Background(), short, tm, frames[:1], scheme, 0)
		assert.True(t, errors.Is(err, types.ErrInvalidInput))
	}
	{ // Proxy reproduces a homogeneous half space
		data, err := TimeLapse(context.Background(), Proxy{}, tm, frames, scheme, 0)
		require.NoError(t, err)
		for i, d := range data {
			for _, v := range d {
				assert.InDelta(t, float64(10*(i+1)), v, 1.e-9)
			}
		}
	}
}

func TestProxyLayered(t *testing.T) {
	tm, err := mesh.NewGrid(mesh.Linspace(0, 20, 21), mesh.Linspace(-10, 0, 11), nil)
	require.NoError(t, err)
	rho := make([]float64, tm.CellCount())
	for k := range rho {
		rho[k] = 100
		if tm.Cell(k).Center[1] < -1 {
			rho[k] = 10
		}
	}
	scheme := DipoleDipole(Line(2, 18, 0, 9), 4)
	d, err := Proxy{}.Simulate(context.Background(), tm, rho, scheme)
	require.NoError(t, err)
	// Wider quadrupoles see deeper, into the conductive layer
	assert.Greater(t, d[0], d[len(d)-1])
	_, err = Proxy{}.Simulate(context.Background(), tm, rho[1:], scheme)
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
}

func TestAddNoise(t *testing.T) {
	data := []float64{100, 50, 0, 25}
	a, errA := AddNoise(data, 0.03, 1, 42)
	b, _ := AddNoise(data, 0.03, 1, 42)
	c, _ := AddNoise(data, 0.03, 1, 7)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.InDeltaSlice(t, []float64{0.04, 0.05, 0.03, 0.07}, errA, 1.e-15)
	assert.Equal(t, 0., a[2])
	for i, d := range data {
		if d != 0 {
			assert.InDelta(t, d, a[i], 6*errA[i]*d)
		}
	}
}
