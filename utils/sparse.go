package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
	"gonum.org/v1/gonum/mat"
)

// DOK is the assembly format: contributions are accumulated into a dictionary of keys, then frozen to CSR
type DOK struct {
	M        *sparse.DOK
	readOnly bool
	name     string
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{
		sparse.NewDOK(nr, nc),
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix       { return m.M.T() }
func (m DOK) NNZ() int            { return m.M.NNZ() }

// Add accumulates val into (i, j), the scatter step of operator assembly
func (m DOK) Add(i, j int, val float64) {
	m.checkWritable()
	if val == 0 {
		return
	}
	m.M.Set(i, j, m.M.At(i, j)+val)
}

func (m DOK) Set(i, j int, val float64) {
	m.checkWritable()
	m.M.Set(i, j, val)
}

func (m *DOK) SetReadOnly(name ...string) {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
}

func (m DOK) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}

func (m DOK) ToCSR() CSR {
	return CSR{
		M:    m.M.ToCSR(),
		name: m.name,
	}
}

// CSR is the frozen, row compressed form used by the solvers
type CSR struct {
	M    *sparse.CSR
	name string
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m CSR) Dims() (r, c int)              { return m.M.Dims() }
func (m CSR) At(i, j int) float64           { return m.M.At(i, j) }
func (m CSR) T() mat.Matrix                 { return m.M.T() }
func (m CSR) RawMatrix() *blas.SparseMatrix { return m.M.RawMatrix() }
func (m CSR) Data() []float64 {
	return m.RawMatrix().Data
}
func (m CSR) NNZ() int { return len(m.Data()) }

// DoRow calls fn for every stored entry of row i
func (m CSR) DoRow(i int, fn func(j int, v float64)) {
	var (
		raw = m.RawMatrix()
	)
	for p := raw.Indptr[i]; p < raw.Indptr[i+1]; p++ {
		fn(raw.Ind[p], raw.Data[p])
	}
}

// MulVec computes dst = A*x, dst is allocated when nil
func (m CSR) MulVec(dst, x []float64) []float64 {
	var (
		nr, nc = m.Dims()
		raw    = m.RawMatrix()
	)
	if len(x) != nc {
		panic(fmt.Errorf("dimension mismatch: matrix has %d columns, vector has length %d", nc, len(x)))
	}
	if dst == nil {
		dst = make([]float64, nr)
	}
	for i := 0; i < nr; i++ {
		var sum float64
		for p := raw.Indptr[i]; p < raw.Indptr[i+1]; p++ {
			sum += raw.Data[p] * x[raw.Ind[p]]
		}
		dst[i] = sum
	}
	return dst
}

// Diagonal returns a copy of the main diagonal
func (m CSR) Diagonal() (d []float64) {
	var (
		nr, _ = m.Dims()
	)
	d = make([]float64, nr)
	for i := 0; i < nr; i++ {
		m.DoRow(i, func(j int, v float64) {
			if j == i {
				d[i] += v
			}
		})
	}
	return
}

// ToDense expands the matrix for the dense direct factorizations
func (m CSR) ToDense() (D *mat.Dense) {
	var (
		nr, nc = m.Dims()
	)
	D = mat.NewDense(nr, nc, nil)
	for i := 0; i < nr; i++ {
		m.DoRow(i, func(j int, v float64) {
			D.Set(i, j, D.At(i, j)+v)
		})
	}
	return
}

// ToSymDense expands the upper triangle, the caller guarantees symmetry
func (m CSR) ToSymDense() (S *mat.SymDense) {
	var (
		nr, _ = m.Dims()
	)
	S = mat.NewSymDense(nr, nil)
	for i := 0; i < nr; i++ {
		m.DoRow(i, func(j int, v float64) {
			if j >= i {
				S.SetSym(i, j, S.At(i, j)+v)
			}
		})
	}
	return
}

// IsSymmetric checks |a_ij - a_ji| <= tol*max(|a_ij|,|a_ji|,1)
func (m CSR) IsSymmetric(tol float64) (sym bool) {
	var (
		nr, nc = m.Dims()
	)
	if nr != nc {
		return false
	}
	sym = true
	for i := 0; i < nr && sym; i++ {
		m.DoRow(i, func(j int, v float64) {
			vt := m.At(j, i)
			scale := 1.
			if a := abs(v); a > scale {
				scale = a
			}
			if a := abs(vt); a > scale {
				scale = a
			}
			if abs(v-vt) > tol*scale {
				sym = false
			}
		})
	}
	return
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
