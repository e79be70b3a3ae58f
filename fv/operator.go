package fv

import (
	"math"

	"github.com/notargets/gosubsurface/bcs"
	"github.com/notargets/gosubsurface/field"
	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
	"github.com/notargets/gosubsurface/utils"
)

// operator is the time independent part of the semi discrete system dc/dt V + A c = b + V S
type operator struct {
	A      utils.CSR
	b      []float64 // boundary contributions
	volume []float64
	// peMax is the largest face Peclet number, for diagnostics
	peMax float64
}

// faceVelocity is the velocity interpolated to the face center
func faceVelocity(face mesh.Face, u field.Vector) (uf [2]float64) {
	if u.Location == types.NodeCentered {
		a, b := u.Values[face.Nodes[0]], u.Values[face.Nodes[1]]
		return [2]float64{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	}
	uf = u.Values[face.Left]
	if !face.IsBoundary() {
		r := u.Values[face.Right]
		uf = [2]float64{(uf[0] + r[0]) / 2, (uf[1] + r[1]) / 2}
	}
	return
}

// normalDistance projects the center to center vector on the face normal, falling back
// to the plain distance on badly skewed faces
func normalDistance(from, to, normal mesh.Point) float64 {
	d := to.Sub(from)
	if dn := d.Dot(normal); dn > 0 {
		return dn
	}
	return math.Sqrt(d.Dot(d))
}

func assemble(p Problem, scheme Scheme) (op *operator) {
	var (
		m   = p.Mesh
		N   = m.CellCount()
		dok = utils.NewDOK(N, N)
	)
	op = &operator{
		b:      make([]float64, N),
		volume: make([]float64, N),
	}
	for k := range op.volume {
		op.volume[k] = m.Cell(k).Area
	}
	// bP and bN are the coefficients of J = bP cP - bN cN, the flux leaving P
	coeffs := func(gamma, L, d, F float64) (bP, bN float64) {
		var dA float64
		if D := gamma * L / d; D > 0 {
			pe := F / D
			op.peMax = math.Max(op.peMax, math.Abs(pe))
			dA = D * scheme.A(pe)
		}
		return dA + math.Max(F, 0), dA + math.Max(-F, 0)
	}
	for f := 0; f < m.FaceCount(); f++ {
		var (
			face = m.Face(f)
			P    = face.Left
			uf   = faceVelocity(face, p.Velocity)
			F    = (uf[0]*face.Normal[0] + uf[1]*face.Normal[1]) * face.Length
			cP   = m.Cell(P).Center
		)
		if !face.IsBoundary() {
			Nb := face.Right
			gamma := utils.HarmonicMean(p.Diffusion[P], p.Diffusion[Nb])
			bP, bN := coeffs(gamma, face.Length, normalDistance(cP, m.Cell(Nb).Center, face.Normal), F)
			dok.Add(P, P, bP)
			dok.Add(P, Nb, -bN)
			dok.Add(Nb, Nb, bN)
			dok.Add(Nb, P, -bP)
			continue
		}
		bc, ok := p.BC.Get(f)
		if !ok {
			continue
		}
		switch bc.Type {
		case bcs.Dirichlet:
			bP, bN := coeffs(p.Diffusion[P], face.Length, normalDistance(cP, face.Center, face.Normal), F)
			dok.Add(P, P, bP)
			op.b[P] += bN * bc.Value
		case bcs.Outflow:
			dok.Add(P, P, math.Max(F, 0))
		case bcs.Neumann:
			op.b[P] -= bc.Value * face.Length
		}
	}
	op.A = dok.ToCSR()
	return
}

// stepMatrix is V/dt + theta A
func (op *operator) stepMatrix(dt, theta float64) utils.CSR {
	N := len(op.volume)
	M := utils.NewDOK(N, N)
	for i := 0; i < N; i++ {
		M.Add(i, i, op.volume[i]/dt)
		op.A.DoRow(i, func(j int, v float64) {
			M.Add(i, j, theta*v)
		})
	}
	return M.ToCSR()
}

// rhs is (V/dt - (1-theta) A) c + b + V S
func (op *operator) rhs(dst, c, Ac, source []float64, dt, theta float64) {
	if theta < 1 {
		op.A.MulVec(Ac, c)
	}
	for i := range dst {
		dst[i] = op.volume[i]*c[i]/dt + op.b[i]
		if theta < 1 {
			dst[i] -= (1 - theta) * Ac[i]
		}
		if source != nil {
			dst[i] += op.volume[i] * source[i]
		}
	}
}
