/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gosubsurface/InputParameters"
	"github.com/notargets/gosubsurface/coupled"
	"github.com/notargets/gosubsurface/ert"
	"github.com/notargets/gosubsurface/field"
	"github.com/notargets/gosubsurface/logging"
	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/plot"
	"github.com/notargets/gosubsurface/utils"
)

type ModelRun struct {
	InputFile  string
	OutputFile string
	ProfileDir string
	Graph      bool
	Delay      time.Duration
	Verbose    bool
	LogFormat  string
}

const exampleFile = `
########################################
Title: "Two layer injection"
Mesh:
  X: {Min: 0, Max: 10, N: 21}
  Y: {Min: -5, Max: 0, N: 11}
  Region: 2
  Layers:
    - {Region: 1, Top: -2.5}      # cells centered below y = -2.5
Conductivity:                     # hydraulic conductivity per region, 1 or 2 components
  - {Region: 1, Value: [1.e-8]}
  - {Region: 2, Value: [5.e-3]}
Porosity:
  - {Region: 1, Value: [0.3]}
  - {Region: 2, Value: [0.3]}
Pressure:
  - {Type: Dirichlet, Labels: [left], Value: 0.75}
  - {Type: Dirichlet, Labels: [right], Value: 0}
Concentration:
  - {Type: Dirichlet, Labels: [left], Value: 0}
  - {Type: Outflow, Labels: [right]}
Dm: 1.e-4
AlphaL: 1
Injection: {Start: 0, End: 2000, Steps: 10, Source: [{Region: 2, Value: [1.e-4]}]}
Decay: {Start: 2000, End: 4000, Steps: 10}
Transport: {Scheme: PS, Theta: 1}  # PS, CDS, UDS, HS or ES
Fluid: {Sigma0: 0.05, Beta: 0.1}
Survey: {Electrodes: 21, X0: 0.5, X1: 9.5, Layout: dd, MaxN: 4, Noise: {Relative: 0.03}}
########################################
`

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a coupled flow, transport and resistivity monitoring scenario",
	Long: `
Reads a YAML (or .toml) scenario, solves the steady head field, transports the
injected solute through the injection and decay phases, converts each frame into
bulk resistivity and simulates the configured ERT survey of every frame.

gosubsurface run -I case.yaml -o case.msgpack`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		mr := &ModelRun{}
		if mr.InputFile, err = cmd.Flags().GetString("inputFile"); err != nil {
			panic(err)
		}
		mr.OutputFile, _ = cmd.Flags().GetString("output")
		mr.ProfileDir, _ = cmd.Flags().GetString("profile")
		mr.Graph, _ = cmd.Flags().GetBool("graph")
		dr, _ := cmd.Flags().GetInt("delay")
		mr.Delay = time.Duration(dr) * time.Millisecond
		mr.Verbose = viper.GetBool("verbose")
		mr.LogFormat = viper.GetString("logFormat")
		ip, err := processInput(mr, os.Stdout)
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		err = ProfileModel(ctx, mr, ip, os.Stdout)
		stop()
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

// ProfileModel runs the model under a CPU profile when mr.ProfileDir is set. The profile
// is flushed before returning, failed runs included
func ProfileModel(ctx context.Context, mr *ModelRun, ip *InputParameters.InputParameters, w io.Writer) error {
	if mr.ProfileDir != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(mr.ProfileDir), profile.NoShutdownHook,
			profile.Quiet).Stop()
	}
	return RunModel(ctx, mr, ip, w)
}

func init() {
	rootCmd.AddCommand(RunCmd)
	RunCmd.Flags().StringP("inputFile", "I", "", "YAML (or .toml) scenario file, run without it to print an example")
	RunCmd.Flags().StringP("output", "o", "", "write the concentration and resistivity series to this msgpack file")
	RunCmd.Flags().String("profile", "", "write a CPU profile into this directory")
	RunCmd.Flags().BoolP("graph", "g", false, "display head, concentration and resistivity plots")
	RunCmd.Flags().IntP("delay", "d", 0, "milliseconds to hold each plot")
}

func processInput(mr *ModelRun, w io.Writer) (ip *InputParameters.InputParameters, err error) {
	if len(mr.InputFile) == 0 {
		fmt.Fprintf(w, "Example File:%s\n", exampleFile)
		return nil, fmt.Errorf("must supply an input parameters file (-I, --inputFile) in YAML or TOML format")
	}
	if ip, err = InputParameters.ReadFile(mr.InputFile, os.ReadFile); err != nil {
		return
	}
	ip.Print()
	return
}

func RunModel(ctx context.Context, mr *ModelRun, ip *InputParameters.InputParameters, w io.Writer) (err error) {
	var (
		res *coupled.Result
		cfg coupled.Config
	)
	if cfg, err = ip.Config(filepath.Dir(mr.InputFile)); err != nil {
		return
	}
	cfg.Verbose = mr.Verbose
	co := coupled.Collaborators{
		Simulator: ert.Proxy{},
		Logger:    logging.NewSlogLogger(logging.Config{Level: logging.Verbose(mr.Verbose), Format: mr.LogFormat}),
	}
	if mr.Graph {
		co.Show = func(title string, m mesh.Mesh, values []float64) error {
			return plot.Show(m, values, plot.Style{Title: title, Boundary: true, Hold: mr.Delay})
		}
	}
	res, err = coupled.Run(ctx, cfg, co)
	if res != nil {
		Summarize(w, ip.Title, res)
		if mr.OutputFile != "" {
			if werr := writeOutput(mr.OutputFile, ip.Title, res); werr != nil && err == nil {
				err = werr
			}
		}
	}
	return
}

func writeOutput(filename, title string, res *coupled.Result) error {
	series := map[string]*field.Series{"concentration": res.Conc}
	if res.Rho != nil {
		series["resistivity"] = res.Rho
	}
	return field.WriteFile(filename, series, map[string]string{"runID": res.RunID, "title": title})
}

var (
	headColor = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
)

// Summarize prints the headline numbers of a run, partial results included
func Summarize(w io.Writer, title string, res *coupled.Result) {
	headColor.Fprintf(w, "%s [%s]\n", title, res.RunID)
	hMin, hMax := res.Head.MinMax()
	fmt.Fprintf(w, "%8.5g, %8.5g\t= Head min, max\n", hMin, hMax)
	fmt.Fprintf(w, "[%s, %s]\t\t= Flow solver, BLAS\n", res.FlowStats.Method, utils.BLASBackend)
	if res.FlowStats.Iterations > 0 {
		fmt.Fprintf(w, "%d\t\t\t= Flow solver iterations\n", res.FlowStats.Iterations)
	}
	if res.Conc != nil && res.Conc.Len() > 0 {
		t, c := res.Conc.Last()
		cMin, cMax := c.MinMax()
		fmt.Fprintf(w, "%d\t\t\t= Concentration frames\n", res.Conc.Len())
		fmt.Fprintf(w, "%8.5g, %8.5g\t= Concentration min, max at t = %g\n", cMin, cMax, t)
	}
	if res.Rho != nil && res.Rho.Len() > 0 {
		_, r := res.Rho.Last()
		rMin, rMax := r.MinMax()
		fmt.Fprintf(w, "%8.5g, %8.5g\t= Resistivity min, max\n", rMin, rMax)
	}
	if len(res.Apparent) > 0 {
		fmt.Fprintf(w, "%d x %d\t\t= Apparent resistivity frames x readings\n", len(res.Apparent),
			len(res.Apparent[0]))
	}
	if len(res.Overlaps) > 0 {
		warnColor.Fprintf(w, "%d boundary entities claimed by more than one condition\n", len(res.Overlaps))
	}
	if len(res.Warnings) > 0 {
		warnColor.Fprintf(w, "%d frames with negative concentration, first at t = %g\n", len(res.Warnings),
			res.Warnings[0].Time)
	}
}
