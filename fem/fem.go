/*
Package fem solves the steady state Darcy problem div(K grad p) = f on a triangle mesh
with piecewise linear Galerkin finite elements.

Dirichlet nodes are eliminated from the system, so the solve runs on the free nodes
only and the constrained values are copied into the result untouched. Before any
factorization the reduced system is checked for the ways it can be singular: no
Dirichlet data at all, a free node with no stiffness, or a group of free nodes that
no stiffness path connects to a constrained node.
*/
package fem

import (
	"fmt"
	"math"

	"github.com/notargets/gosubsurface/bcs"
	"github.com/notargets/gosubsurface/field"
	"github.com/notargets/gosubsurface/linsolve"
	"github.com/notargets/gosubsurface/logging"
	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/regions"
	"github.com/notargets/gosubsurface/types"
)

type Options struct {
	Solver linsolve.Options
	// Source is a volumetric source rate per cell, nil for none
	Source []float64
	// Flux holds prescribed outward flux densities, only its Neumann faces are used
	Flux    *bcs.FaceConstraints
	Verbose bool
	Logger  logging.Logger
}

type Result struct {
	P           field.Scalar // node centered
	Free        int
	Constrained int
	Stats       linsolve.Stats
}

// Solve assembles and solves the flow problem for the per cell diagonal conductivity K
func Solve(m mesh.Mesh, K [][2]float64, nc *bcs.NodeConstraints, opts Options) (res *Result, err error) {
	var (
		log  = logging.OrNoOp(opts.Logger).With("solver", "fem")
		Nn   = m.NodeCount()
		free []int
		nf   int
	)
	if err = checkInputs(m, K, nc, opts); err != nil {
		return
	}
	free, nf = freeIndex(Nn, nc)
	res = &Result{
		P:           field.NewScalar(types.NodeCentered, Nn),
		Free:        nf,
		Constrained: nc.Len(),
	}
	for i, node := range nc.Nodes {
		res.P.Values[node] = nc.Values[i]
	}
	if nf == 0 {
		log.Debug("every node is constrained, nothing to solve")
		return
	}

	sys := linsolve.NewSystem(nf)
	for k := 0; k < m.CellCount(); k++ {
		var (
			cell = m.Cell(k)
			Ke   = Stiffness(m, k, K[k])
		)
		for i, ni := range cell.Nodes {
			fi := free[ni]
			if fi < 0 {
				continue
			}
			for j, nj := range cell.Nodes {
				if fj := free[nj]; fj >= 0 {
					sys.Add(fi, fj, Ke[i][j])
				} else {
					pc, _ := nc.Value(nj)
					sys.AddRHS(fi, -Ke[i][j]*pc)
				}
			}
			if opts.Source != nil {
				sys.AddRHS(fi, opts.Source[k]*cell.Area/3)
			}
		}
	}
	if opts.Flux != nil {
		for _, f := range opts.Flux.Faces {
			bc, _ := opts.Flux.Get(f)
			if bc.Type != bcs.Neumann {
				continue
			}
			face := m.Face(f)
			for _, n := range face.Nodes {
				if fi := free[n]; fi >= 0 {
					sys.AddRHS(fi, -bc.Value*face.Length/2)
				}
			}
		}
	}

	if err = checkSingular(m, K, free, sys); err != nil {
		return nil, err
	}
	sopts := opts.Solver
	sopts.Symmetric = true
	x, st, err := sys.Solve(sopts)
	if err != nil {
		return nil, fmt.Errorf("fem: %w", err)
	}
	res.Stats = st
	for n, fi := range free {
		if fi >= 0 {
			res.P.Values[n] = x[fi]
		}
	}
	if opts.Verbose {
		log.Info("flow solved", "free", nf, "constrained", res.Constrained,
			"method", st.Method.String(), "nnz", st.NNZ, "cond", st.Cond, "iterations", st.Iterations)
	}
	return
}

// Stiffness is the P1 element matrix of cell k for the diagonal conductivity Kd
func Stiffness(m mesh.Mesh, k int, Kd [2]float64) (Ke [3][3]float64) {
	var (
		cell = m.Cell(k)
		b, c [3]float64
	)
	for i := 0; i < 3; i++ {
		pj, pk := m.Node(cell.Nodes[(i+1)%3]), m.Node(cell.Nodes[(i+2)%3])
		b[i] = pj[1] - pk[1]
		c[i] = pk[0] - pj[0]
	}
	scale := 1 / (4 * cell.Area)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			Ke[i][j] = (Kd[0]*b[i]*b[j] + Kd[1]*c[i]*c[j]) * scale
		}
	}
	return
}

// SolveMapped resolves the conductivity map and the boundary set, then solves. Neumann
// specs in set become flux conditions unless opts.Flux is already populated
func SolveMapped(m mesh.Mesh, kmap *regions.Map, set bcs.Set, opts Options) (res *Result, K [][2]float64,
	err error) {
	log := logging.OrNoOp(opts.Logger)
	if err = kmap.Validate(m, log); err != nil {
		return
	}
	if K, err = kmap.Tensors(m, m.Dim()); err != nil {
		return
	}
	nc, err := bcs.ResolveNodes(m, set, log)
	if err != nil {
		return
	}
	if opts.Flux == nil {
		if opts.Flux, err = bcs.ResolveFaces(m, set, log); err != nil {
			return
		}
	}
	res, err = Solve(m, K, nc, opts)
	return
}

func checkInputs(m mesh.Mesh, K [][2]float64, nc *bcs.NodeConstraints, opts Options) error {
	if len(K) != m.CellCount() {
		return fmt.Errorf("%w: %d conductivities for %d cells", types.ErrInvalidInput, len(K), m.CellCount())
	}
	for k, kd := range K {
		for _, v := range kd {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("%w: conductivity %g in cell %d", types.ErrInvalidInput, v, k)
			}
		}
	}
	if opts.Source != nil {
		if len(opts.Source) != m.CellCount() {
			return fmt.Errorf("%w: %d source values for %d cells", types.ErrInvalidInput,
				len(opts.Source), m.CellCount())
		}
		for k, v := range opts.Source {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: source %g in cell %d", types.ErrInvalidInput, v, k)
			}
		}
	}
	if nc == nil || nc.Len() == 0 {
		return &types.SingularSystemError{Reason: "no Dirichlet constraints", Node: -1}
	}
	for _, node := range nc.Nodes {
		if node < 0 || node >= m.NodeCount() {
			return fmt.Errorf("%w: constrained node %d outside mesh of %d nodes", types.ErrInvalidInput,
				node, m.NodeCount())
		}
	}
	return nil
}

// freeIndex numbers the unconstrained nodes, constrained nodes get -1
func freeIndex(Nn int, nc *bcs.NodeConstraints) (free []int, nf int) {
	mask := nc.Mask(Nn)
	free = make([]int, Nn)
	for n := range free {
		if mask[n] {
			free[n] = -1
			continue
		}
		free[n] = nf
		nf++
	}
	return
}

func checkSingular(m mesh.Mesh, K [][2]float64, free []int, sys *linsolve.System) error {
	for n, fi := range free {
		if fi >= 0 && sys.A.At(fi, fi) == 0 {
			return &types.SingularSystemError{Reason: "free node has no stiffness", Node: n}
		}
	}
	uf := newUnionFind(len(free))
	for k := 0; k < m.CellCount(); k++ {
		if K[k][0] == 0 && K[k][1] == 0 {
			continue
		}
		nodes := m.Cell(k).Nodes
		uf.union(nodes[0], nodes[1])
		uf.union(nodes[0], nodes[2])
	}
	anchored := make(map[int]bool)
	for n, fi := range free {
		if fi < 0 {
			anchored[uf.find(n)] = true
		}
	}
	for n, fi := range free {
		if fi >= 0 && !anchored[uf.find(n)] {
			return &types.SingularSystemError{
				Reason: "free nodes are not connected to any Dirichlet node", Node: n,
			}
		}
	}
	return nil
}

type unionFind []int

func newUnionFind(n int) unionFind {
	uf := make(unionFind, n)
	for i := range uf {
		uf[i] = i
	}
	return uf
}

func (uf unionFind) find(i int) int {
	for uf[i] != i {
		uf[i] = uf[uf[i]]
		i = uf[i]
	}
	return i
}

func (uf unionFind) union(i, j int) {
	if ri, rj := uf.find(i), uf.find(j); ri != rj {
		uf[ri] = rj
	}
}
