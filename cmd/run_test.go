package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gosubsurface/InputParameters"
	"github.com/notargets/gosubsurface/coupled"
	"github.com/notargets/gosubsurface/field"
	"github.com/notargets/gosubsurface/types"
)

func TestExampleFile(t *testing.T) {
	var out bytes.Buffer
	_, err := processInput(&ModelRun{}, &out)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "Example File:")

	var ip InputParameters.InputParameters
	require.NoError(t, ip.Parse([]byte(exampleFile)))
	cfg, err := ip.Config(".")
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Mesh.CellCount())
	require.NotNil(t, cfg.Scheme)
	assert.NoError(t, cfg.Scheme.Validate())
}

func TestRunModel(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "case.yaml")
	require.NoError(t, os.WriteFile(input, []byte(`
Title: Small case
Mesh:
  X: {Min: 0, Max: 4, N: 9}
  Y: {Min: -2, Max: 0, N: 5}
Conductivity:
  - {Region: 1, Value: [1.e-3]}
Porosity:
  - {Region: 1, Value: [0.25]}
Pressure:
  - {Type: Dirichlet, Labels: [left], Value: 1}
  - {Type: Dirichlet, Labels: [right], Value: 0}
Concentration:
  - {Type: Dirichlet, Labels: [left], Value: 0}
  - {Type: Outflow, Labels: [right]}
Dm: 1.e-5
AlphaL: 0.1
Injection: {Start: 0, End: 100, Steps: 4, Source: [{Region: 1, Value: [1.e-4]}]}
Fluid: {Sigma0: 0.05, Beta: 0.1}
Survey: {Electrodes: 8, X0: 0.25, X1: 3.75, MaxN: 2}
`), 0o644))

	mr := &ModelRun{InputFile: input, OutputFile: filepath.Join(dir, "case.msgpack")}
	ip, err := processInput(mr, os.Stdout)
	require.NoError(t, err)
	var out bytes.Buffer
	color.NoColor = true
	require.NoError(t, RunModel(context.Background(), mr, ip, &out))
	assert.True(t, strings.HasPrefix(out.String(), "Small case ["))
	assert.Contains(t, out.String(), "= Concentration frames")

	series, meta, err := field.ReadFile(mr.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, "Small case", meta["title"])
	assert.NotEmpty(t, meta["runID"])
	require.Contains(t, series, "concentration")
	require.Contains(t, series, "resistivity")
	assert.Equal(t, 5, series["concentration"].Len())
	assert.Equal(t, series["concentration"].Times, series["resistivity"].Times)

	// Configuration failures surface before anything is written, the profile is still flushed
	ip.Survey.Layout = "pole-pole"
	mr.OutputFile = filepath.Join(dir, "never.msgpack")
	mr.ProfileDir = filepath.Join(dir, "prof")
	require.NoError(t, os.Mkdir(mr.ProfileDir, 0o755))
	assert.Error(t, ProfileModel(context.Background(), mr, ip, &out))
	_, err = os.Stat(mr.OutputFile)
	assert.True(t, os.IsNotExist(err))
	info, err := os.Stat(filepath.Join(mr.ProfileDir, "cpu.pprof"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSummarize(t *testing.T) {
	color.NoColor = true
	res := &coupled.Result{
		RunID: "abc",
		Head:  field.NodeScalar([]float64{0, 1}),
		Overlaps: []types.BoundaryOverlap{
			{Entity: 3, Kept: 1, Dropped: 0, KeptSpec: 0, DroppedSpec: 1},
			{Entity: 7, Kept: 1, Dropped: 0, KeptSpec: 0, DroppedSpec: 1},
		},
	}
	var out bytes.Buffer
	Summarize(&out, "Overlaps", res)
	assert.True(t, strings.HasPrefix(out.String(), "Overlaps [abc]"))
	assert.Contains(t, out.String(), "2 boundary entities claimed by more than one condition")
	assert.NotContains(t, out.String(), "Concentration frames")
}
