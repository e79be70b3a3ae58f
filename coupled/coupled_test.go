package coupled

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gosubsurface/bcs"
	"github.com/notargets/gosubsurface/ert"
	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/petro"
	"github.com/notargets/gosubsurface/regions"
	"github.com/notargets/gosubsurface/types"
)

const (
	lowK    = 1
	highK   = 2
	wellBox = 3
)

type MockSimulator struct{ mock.Mock }

func (m *MockSimulator) Simulate(ctx context.Context, msh mesh.Mesh, resistivity []float64,
	scheme ert.Scheme) ([]float64, error) {
	args := m.Called(ctx, msh, resistivity, scheme)
	return nil, args.Error(1)
}

// twoLayer is a 10 x 5 section, permeable above y = -2.5 with an injection box near the
// upstream end
func twoLayer(t *testing.T) Config {
	tm, err := mesh.NewGrid(mesh.Linspace(0, 10, 21), mesh.Linspace(-5, 0, 11), func(c mesh.Point) int {
		switch {
		case c[0] > 1 && c[0] < 2 && c[1] > -1:
			return wellBox
		case c[1] > -2.5:
			return highK
		}
		return lowK
	})
	require.NoError(t, err)
	meshI, err := mesh.NewGrid(mesh.Linspace(0, 10, 11), mesh.Linspace(-5, 0, 6), nil)
	require.NoError(t, err)
	must := func(m *regions.Map, err error) *regions.Map {
		require.NoError(t, err)
		return m
	}
	scheme := ert.DipoleDipole(ert.Line(1, 9, 0, 9), 3)
	return Config{
		Mesh: tm,
		Conductivity: must(regions.New(regions.Scalar(lowK, 1.e-8), regions.Scalar(highK, 5.e-3),
			regions.Scalar(wellBox, 5.e-3))),
		Pressure: bcs.Set{Field: "p", Specs: []bcs.Spec{
			{Type: bcs.Dirichlet, Markers: []int{types.MarkerLeft}, Value: 0.75},
			{Type: bcs.Dirichlet, Markers: []int{types.MarkerRight}, Value: 0},
		}},
		Dm:     1.e-4,
		AlphaL: 1,
		Concentration: bcs.Set{Field: "c", Specs: []bcs.Spec{
			{Type: bcs.Dirichlet, Markers: []int{types.MarkerLeft}, Value: 0},
			{Type: bcs.Outflow, Markers: []int{types.MarkerRight}},
		}},
		Injection: Phase{
			Times:  mesh.Linspace(0, 2000, 11),
			Source: must(regions.New(regions.Scalar(wellBox, 1.e-3))),
		},
		Decay:      Phase{Times: mesh.Linspace(2000, 4000, 11)},
		Archie:     petro.DefaultArchie(),
		Fluid:      petro.FluidParams{Sigma0: 0.05, Beta: 0.1},
		Porosity:   must(regions.Uniform(tm, 0.3)),
		MeshI:      meshI,
		Background: must(regions.New(regions.Scalar(1, 100))),
		Fill:       petro.FillNearest(),
		Scheme:     &scheme,
		Parallel:   2,
	}
}

func TestRun(t *testing.T) {
	cfg := twoLayer(t)
	var shown []string
	res, err := Run(context.Background(), cfg, Collaborators{
		Simulator: ert.Proxy{},
		Show: func(title string, m mesh.Mesh, values []float64) error {
			shown = append(shown, title)
			return nil
		},
	})
	require.NoError(t, err)
	_, err = uuid.Parse(res.RunID)
	assert.NoError(t, err)
	assert.Equal(t, []string{"Head", "Concentration", "Resistivity"}, shown)

	tm := cfg.Mesh
	for n, p := range res.Head.Values {
		assert.InDelta(t, 0.75*(1-tm.Node(n)[0]/10), p, 1.e-6)
	}
	// Horizontal flux in the permeable layer is orders of magnitude above the tight layer
	var fast, slow, nFast, nSlow float64
	mag := res.Flux.Magnitude()
	for k, q := range mag.Values {
		switch tm.Cell(k).Region {
		case highK:
			fast += q
			nFast++
		case lowK:
			slow += q
			nSlow++
		}
	}
	ratio := (fast / nFast) / (slow / nSlow)
	assert.Greater(t, ratio, 1.e4)
	assert.Less(t, ratio, 1.e6)
	assert.Len(t, res.Velocity.Values, tm.NodeCount())
	assert.Len(t, res.Dispersion, tm.CellCount())

	// Injection frames then decay frames, the shared frame at t = 2000 once
	require.Equal(t, 21, res.Conc.Len())
	assert.Equal(t, 2000., res.Conc.Times[10])
	assert.Equal(t, 4000., res.Conc.Times[20])
	injected := res.Conc.Frames[10].Integral(tm)
	assert.Greater(t, injected, 0.)
	assert.LessOrEqual(t, res.Conc.Frames[20].Integral(tm), injected*(1+1.e-9))
	assert.Empty(t, res.Warnings)

	require.Equal(t, res.Conc.Len(), res.Rho.Len())
	for _, f := range res.Rho.Frames {
		require.Len(t, f.Values, cfg.MeshI.CellCount())
		for _, r := range f.Values {
			assert.Less(t, r, 100.)
		}
	}

	// The plume lowers the apparent resistivity
	require.Len(t, res.Apparent, res.Rho.Len())
	var before, during float64
	for i := range res.Apparent[0] {
		before += res.Apparent[0][i]
		during += res.Apparent[10][i]
	}
	assert.Less(t, during, before)
	assert.Nil(t, res.RelErr)
}

func TestRunNoise(t *testing.T) {
	cfg := twoLayer(t)
	cfg.Decay = Phase{}
	cfg.Noise = Noise{Relative: 0.02, Absolute: 0.1, Seed: 3}
	res, err := Run(context.Background(), cfg, Collaborators{Simulator: ert.Proxy{}})
	require.NoError(t, err)
	assert.Equal(t, 11, res.Conc.Len())
	require.Len(t, res.RelErr, 11)
	for _, re := range res.RelErr {
		for _, e := range re {
			assert.Greater(t, e, 0.02)
		}
	}
	// Without a forward model the scheme is skipped
	res, err = Run(context.Background(), cfg, Collaborators{})
	require.NoError(t, err)
	assert.Nil(t, res.Apparent)
}

func TestRunDefaultFill(t *testing.T) {
	cfg := twoLayer(t)
	cfg.Decay = Phase{}
	cfg.Fill = petro.FillPolicy{}
	meshI, err := mesh.NewGrid(mesh.Linspace(-2, 12, 15), mesh.Linspace(-6, 0, 7), nil)
	require.NoError(t, err)
	cfg.MeshI = meshI
	res, err := Run(context.Background(), cfg, Collaborators{Simulator: ert.Proxy{}})
	require.NoError(t, err)
	// Cells beyond the transport mesh copy their nearest neighbour instead of shorting the survey
	for _, f := range res.Rho.Frames {
		require.Len(t, f.Values, meshI.CellCount())
		for _, r := range f.Values {
			assert.Greater(t, r, 1.)
			assert.False(t, math.IsInf(r, 0))
		}
	}
	for _, d := range res.Apparent {
		for _, r := range d {
			assert.Greater(t, r, 1.)
		}
	}
}

func TestRunValidation(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		target error
	}{
		"unmapped region": {func(c *Config) {
			c.Conductivity, _ = regions.New(regions.Scalar(lowK, 1.e-8), regions.Scalar(highK, 5.e-3))
		}, types.ErrUnmappedRegion},
		"unknown marker": {func(c *Config) {
			c.Concentration.Specs[1].Markers = []int{42}
		}, types.ErrMalformedBC},
		"decay gap": {func(c *Config) {
			c.Decay.Times = []float64{2500, 3000}
		}, types.ErrInvalidInput},
		"porosity": {func(c *Config) {
			c.Porosity, _ = regions.Uniform(c.Mesh, 0)
		}, types.ErrInvalidInput},
		"theta": {func(c *Config) {
			c.Transport.Theta = 1.5
		}, types.ErrInvalidInput},
		"scheme": {func(c *Config) {
			c.Scheme.Data[0].N = 99
		}, types.ErrInvalidInput},
		"conducting fill": {func(c *Config) {
			c.Fill = petro.FillConstant(0)
		}, types.ErrInvalidInput},
		"non conducting fluid": {func(c *Config) {
			c.Fluid = petro.FluidParams{}
		}, types.ErrInvalidInput},
		"zero background": {func(c *Config) {
			c.Background, _ = regions.New(regions.Scalar(1, 0))
		}, types.ErrInvalidInput},
		"no dirichlet": {func(c *Config) {
			c.Pressure.Specs = c.Pressure.Specs[:0]
		}, types.ErrSingularSystem},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := twoLayer(t)
			tc.mutate(&cfg)
			sim := &MockSimulator{}
			var shown int
			_, err := Run(context.Background(), cfg, Collaborators{
				Simulator: sim,
				Show: func(string, mesh.Mesh, []float64) error {
					shown++
					return nil
				},
			})
			assert.True(t, errors.Is(err, tc.target), "%v", err)
			assert.Zero(t, shown, "a stage ran before validation failed")
			sim.AssertNotCalled(t, "Simulate")
		})
	}
}

func TestRunPartial(t *testing.T) {
	cfg := twoLayer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Run(ctx, cfg, Collaborators{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, res)

	cfg.Transport.ReturnPartial = true
	res, err = Run(ctx, cfg, Collaborators{})
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, res)
	assert.Len(t, res.Head.Values, cfg.Mesh.NodeCount())
	assert.Equal(t, 1, res.Conc.Len())
	assert.Nil(t, res.Rho)
}
