package InputParameters

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/ghodss/yaml"

	"github.com/notargets/gosubsurface/bcs"
	"github.com/notargets/gosubsurface/coupled"
	"github.com/notargets/gosubsurface/ert"
	"github.com/notargets/gosubsurface/fv"
	"github.com/notargets/gosubsurface/linsolve"
	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/petro"
	"github.com/notargets/gosubsurface/readfiles"
	"github.com/notargets/gosubsurface/regions"
	"github.com/notargets/gosubsurface/types"
)

type Axis struct {
	Min float64 `json:"Min" toml:"Min"`
	Max float64 `json:"Max" toml:"Max"`
	N   int     `json:"N" toml:"N"` // node lines
}

// Layer assigns Region to grid cells with a center below Top
type Layer struct {
	Region int     `json:"Region" toml:"Region"`
	Top    float64 `json:"Top" toml:"Top"`
}

type Box struct {
	Region int     `json:"Region" toml:"Region"`
	XMin   float64 `json:"XMin" toml:"XMin"`
	XMax   float64 `json:"XMax" toml:"XMax"`
	YMin   float64 `json:"YMin" toml:"YMin"`
	YMax   float64 `json:"YMax" toml:"YMax"`
}

// MeshParameters either names a mesh file (Gambit, SU2 or Gmsh) or describes a grid.
// The first Box containing a grid cell center sets its region, then the first Layer
// whose Top is above the center. Unclaimed cells take Region, zero means 1
type MeshParameters struct {
	File   string  `json:"File,omitempty" toml:"File,omitempty"`
	X      Axis    `json:"X" toml:"X"`
	Y      Axis    `json:"Y" toml:"Y"`
	Region int     `json:"Region,omitempty" toml:"Region,omitempty"`
	Layers []Layer `json:"Layers,omitempty" toml:"Layers,omitempty"`
	Boxes  []Box   `json:"Boxes,omitempty" toml:"Boxes,omitempty"`
}

type Phase struct {
	Start  float64         `json:"Start" toml:"Start"`
	End    float64         `json:"End" toml:"End"`
	Steps  int             `json:"Steps" toml:"Steps"`
	Source []regions.Entry `json:"Source,omitempty" toml:"Source,omitempty"`
}

type Transport struct {
	Scheme        fv.Scheme        `json:"Scheme" toml:"Scheme"`
	Theta         float64          `json:"Theta" toml:"Theta"`
	ClampNegative bool             `json:"ClampNegative" toml:"ClampNegative"`
	ReturnPartial bool             `json:"ReturnPartial" toml:"ReturnPartial"`
	Solver        linsolve.Options `json:"Solver" toml:"Solver"`
}

type Survey struct {
	Electrodes int     `json:"Electrodes" toml:"Electrodes"`
	X0         float64 `json:"X0" toml:"X0"`
	X1         float64 `json:"X1" toml:"X1"`
	Y          float64 `json:"Y" toml:"Y"`
	Layout     string  `json:"Layout" toml:"Layout"` // dd or wenner
	MaxN       int     `json:"MaxN" toml:"MaxN"`
	Noise      struct {
		Relative float64 `json:"Relative" toml:"Relative"`
		Absolute float64 `json:"Absolute" toml:"Absolute"`
		Seed     uint64  `json:"Seed" toml:"Seed"`
	} `json:"Noise" toml:"Noise"`
}

// Parameters obtained from the YAML or TOML scenario file
type InputParameters struct {
	Title         string            `json:"Title" toml:"Title"`
	Mesh          MeshParameters    `json:"Mesh" toml:"Mesh"`
	MeshI         *MeshParameters   `json:"MeshI,omitempty" toml:"MeshI,omitempty"`
	Conductivity  []regions.Entry   `json:"Conductivity" toml:"Conductivity"`
	Porosity      []regions.Entry   `json:"Porosity" toml:"Porosity"`
	Background    []regions.Entry   `json:"Background,omitempty" toml:"Background,omitempty"`
	Pressure      []bcs.Spec        `json:"Pressure" toml:"Pressure"`
	Concentration []bcs.Spec        `json:"Concentration" toml:"Concentration"`
	FlowSolver    linsolve.Options  `json:"FlowSolver" toml:"FlowSolver"`
	Dm            float64           `json:"Dm" toml:"Dm"`
	AlphaL        float64           `json:"AlphaL" toml:"AlphaL"`
	Injection     Phase             `json:"Injection" toml:"Injection"`
	Decay         *Phase            `json:"Decay,omitempty" toml:"Decay,omitempty"`
	Transport     Transport         `json:"Transport" toml:"Transport"`
	Archie        *petro.Archie     `json:"Archie,omitempty" toml:"Archie,omitempty"`
	Fluid         petro.FluidParams `json:"Fluid" toml:"Fluid"`
	Fill          petro.FillPolicy  `json:"Fill" toml:"Fill"`
	Survey        *Survey           `json:"Survey,omitempty" toml:"Survey,omitempty"`
	Parallel      int               `json:"Parallel" toml:"Parallel"`
}

func (ip *InputParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *InputParameters) ParseTOML(data []byte) error {
	_, err := toml.Decode(string(data), ip)
	return err
}

// ReadFile parses a scenario, TOML for .toml files and YAML otherwise
func ReadFile(filename string, read func(string) ([]byte, error)) (ip *InputParameters, err error) {
	var data []byte
	if data, err = read(filename); err != nil {
		return
	}
	ip = &InputParameters{}
	if filepath.Ext(filename) == ".toml" {
		err = ip.ParseTOML(data)
	} else {
		err = ip.Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	if ip.Mesh.File != "" {
		fmt.Printf("[%s]\t\t= Mesh File\n", ip.Mesh.File)
	} else {
		fmt.Printf("[%d x %d]\t\t= Grid Node Lines\n", ip.Mesh.X.N, ip.Mesh.Y.N)
	}
	fmt.Printf("%8.5g\t\t= Dm\n", ip.Dm)
	fmt.Printf("%8.5g\t\t= AlphaL\n", ip.AlphaL)
	fmt.Printf("[%s]\t\t\t= Scheme\n", ip.Transport.Scheme)
	fmt.Printf("[%g, %g] / %d\t= Injection\n", ip.Injection.Start, ip.Injection.End, ip.Injection.Steps)
	if ip.Decay != nil {
		fmt.Printf("[%g, %g] / %d\t= Decay\n", ip.Decay.Start, ip.Decay.End, ip.Decay.Steps)
	}
	entries := func(name string, es []regions.Entry) {
		es = append([]regions.Entry(nil), es...)
		sort.Slice(es, func(i, j int) bool { return es[i].Region < es[j].Region })
		for _, e := range es {
			fmt.Printf("%s[%d] = %v\n", name, e.Region, e.Value)
		}
	}
	entries("Conductivity", ip.Conductivity)
	entries("Porosity", ip.Porosity)
	for i, s := range ip.Pressure {
		fmt.Printf("Pressure[%d] = %s %v %v %g\n", i, s.Type, s.Markers, s.Labels, s.Value)
	}
	for i, s := range ip.Concentration {
		fmt.Printf("Concentration[%d] = %s %v %v %g\n", i, s.Type, s.Markers, s.Labels, s.Value)
	}
}

func (mp MeshParameters) region(c mesh.Point) int {
	for _, b := range mp.Boxes {
		if c[0] >= b.XMin && c[0] <= b.XMax && c[1] >= b.YMin && c[1] <= b.YMax {
			return b.Region
		}
	}
	for _, l := range mp.Layers {
		if c[1] < l.Top {
			return l.Region
		}
	}
	if mp.Region != 0 {
		return mp.Region
	}
	return 1
}

// Build reads or generates the mesh. Relative file names resolve against dir
func (mp MeshParameters) Build(dir string) (tm *mesh.TriMesh, err error) {
	if mp.File != "" {
		name := mp.File
		if !filepath.IsAbs(name) {
			name = filepath.Join(dir, name)
		}
		return readfiles.ReadMeshFile(name)
	}
	return mesh.NewGrid(mesh.Linspace(mp.X.Min, mp.X.Max, mp.X.N), mesh.Linspace(mp.Y.Min, mp.Y.Max, mp.Y.N),
		mp.region)
}

func (ph Phase) times() (t []float64, err error) {
	if ph.Steps < 1 || math.IsNaN(ph.Start) || math.IsNaN(ph.End) || !(ph.End > ph.Start) {
		return nil, fmt.Errorf("%w: phase [%g, %g] with %d steps", types.ErrInvalidInput, ph.Start, ph.End,
			ph.Steps)
	}
	return mesh.Linspace(ph.Start, ph.End, ph.Steps+1), nil
}

func optionalMap(entries []regions.Entry) (*regions.Map, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	return regions.New(entries...)
}

// Config maps the scenario onto a run configuration, meshes are built relative to dir
func (ip *InputParameters) Config(dir string) (cfg coupled.Config, err error) {
	var tm *mesh.TriMesh
	if tm, err = ip.Mesh.Build(dir); err != nil {
		return
	}
	cfg = coupled.Config{
		Mesh:          tm,
		Pressure:      bcs.Set{Field: "Pressure", Specs: ip.Pressure},
		FlowSolver:    ip.FlowSolver,
		Dm:            ip.Dm,
		AlphaL:        ip.AlphaL,
		Concentration: bcs.Set{Field: "Concentration", Specs: ip.Concentration},
		Transport: fv.Options{
			Scheme:        ip.Transport.Scheme,
			Theta:         ip.Transport.Theta,
			Solver:        ip.Transport.Solver,
			ClampNegative: ip.Transport.ClampNegative,
			ReturnPartial: ip.Transport.ReturnPartial,
		},
		Archie:   petro.DefaultArchie(),
		Fluid:    ip.Fluid,
		Fill:     ip.Fill,
		Parallel: ip.Parallel,
	}
	if ip.Archie != nil {
		cfg.Archie = *ip.Archie
	}
	if cfg.Conductivity, err = regions.New(ip.Conductivity...); err != nil {
		return cfg, fmt.Errorf("conductivity: %w", err)
	}
	if cfg.Porosity, err = regions.New(ip.Porosity...); err != nil {
		return cfg, fmt.Errorf("porosity: %w", err)
	}
	if cfg.Background, err = optionalMap(ip.Background); err != nil {
		return cfg, fmt.Errorf("background: %w", err)
	}
	if cfg.Injection.Times, err = ip.Injection.times(); err != nil {
		return cfg, fmt.Errorf("injection: %w", err)
	}
	if cfg.Injection.Source, err = optionalMap(ip.Injection.Source); err != nil {
		return cfg, fmt.Errorf("injection: %w", err)
	}
	if ip.Decay != nil {
		if cfg.Decay.Times, err = ip.Decay.times(); err != nil {
			return cfg, fmt.Errorf("decay: %w", err)
		}
		if cfg.Decay.Source, err = optionalMap(ip.Decay.Source); err != nil {
			return cfg, fmt.Errorf("decay: %w", err)
		}
	}
	if ip.MeshI != nil {
		if cfg.MeshI, err = ip.MeshI.Build(dir); err != nil {
			return cfg, fmt.Errorf("meshI: %w", err)
		}
	}
	if s := ip.Survey; s != nil {
		var scheme ert.Scheme
		electrodes := ert.Line(s.X0, s.X1, s.Y, s.Electrodes)
		switch s.Layout {
		case "dd", "dipole-dipole", "":
			scheme = ert.DipoleDipole(electrodes, s.MaxN)
		case "wenner":
			scheme = ert.Wenner(electrodes, s.MaxN)
		default:
			return cfg, fmt.Errorf("%w: unknown electrode layout %q", types.ErrInvalidInput, s.Layout)
		}
		cfg.Scheme = &scheme
		cfg.Noise = coupled.Noise{Relative: s.Noise.Relative, Absolute: s.Noise.Absolute, Seed: s.Noise.Seed}
	}
	return
}
