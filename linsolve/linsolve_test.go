package linsolve

import (
	"errors"
	"testing"

	"github.com/notargets/gosubsurface/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// laplacian1D assembles tridiag(-1-peclet, 2, -1+peclet) with a unit right hand side
func laplacian1D(n int, peclet float64) *System {
	s := NewSystem(n)
	for i := 0; i < n; i++ {
		s.Add(i, i, 2)
		if i > 0 {
			s.Add(i, i-1, -1-peclet)
		}
		if i < n-1 {
			s.Add(i, i+1, -1+peclet)
		}
		s.AddRHS(i, 1)
	}
	return s
}

func TestSymmetricMethodsAgree(t *testing.T) {
	n := 30
	s := laplacian1D(n, 0)
	exact := make([]float64, n)
	for i := range exact {
		k := float64(i + 1)
		exact[i] = k * (float64(n+1) - k) / 2
	}
	for _, m := range []Method{Auto, Cholesky, LU, CG, BiCGSTAB} {
		x, st, err := s.Solve(Options{Method: m, Symmetric: true})
		require.NoError(t, err, m.String())
		assert.InDeltaSlice(t, exact, x, 1.e-7, m.String())
		assert.Equal(t, n, st.N)
		assert.Equal(t, 3*n-2, st.NNZ)
		switch m {
		case Auto:
			assert.Equal(t, Cholesky, st.Method)
		case CG, BiCGSTAB:
			assert.Greater(t, st.Iterations, 0)
			assert.LessOrEqual(t, st.Residual, DefaultTol)
		default:
			assert.Greater(t, st.Cond, 1.)
		}
	}
}

func TestNonSymmetric(t *testing.T) {
	s := laplacian1D(25, 0.4)
	ref, st, err := s.Solve(Options{})
	require.NoError(t, err)
	assert.Equal(t, LU, st.Method)
	x, _, err := s.Solve(Options{Method: BiCGSTAB})
	require.NoError(t, err)
	assert.InDeltaSlice(t, ref, x, 1.e-8)

	_, _, err = s.Solve(Options{Method: Cholesky})
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
	_, _, err = s.Solve(Options{Method: CG})
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
}

func TestSingular(t *testing.T) {
	s := NewSystem(2)
	s.Add(0, 0, 1)
	s.Add(0, 1, 1)
	s.Add(1, 0, 1)
	s.Add(1, 1, 1)
	for _, m := range []Method{Cholesky, LU} {
		_, _, err := s.Solve(Options{Method: m})
		assert.True(t, errors.Is(err, types.ErrSingularSystem), m.String())
	}

	z := NewSystem(2)
	z.Add(0, 1, 1)
	z.Add(1, 0, 1)
	z.Add(1, 1, 3)
	_, _, err := z.Solve(Options{Method: CG})
	var sse *types.SingularSystemError
	require.True(t, errors.As(err, &sse))
	assert.Equal(t, 0, sse.Node)

	// Ill conditioned but nonsingular
	c := NewSystem(2)
	c.Add(0, 0, 1)
	c.Add(1, 1, 1.e-12)
	_, _, err = c.Solve(Options{Method: LU, CondLimit: 1.e6})
	assert.True(t, errors.Is(err, types.ErrSingularSystem))
	_, _, err = c.Solve(Options{Method: LU})
	assert.NoError(t, err)
}

func TestNotConverged(t *testing.T) {
	s := laplacian1D(50, 0)
	_, st, err := s.Solve(Options{Method: CG, MaxIter: 5})
	assert.True(t, errors.Is(err, ErrNotConverged))
	assert.Equal(t, 5, st.Iterations)
}

func TestParseMethod(t *testing.T) {
	for name, want := range map[string]Method{
		"": Auto, "auto": Auto, "Cholesky": Cholesky, " LU ": LU, "cg": CG, "BiCGSTAB": BiCGSTAB,
	} {
		m, err := ParseMethod(name)
		require.NoError(t, err)
		assert.Equal(t, want, m)
	}
	_, err := ParseMethod("gmres")
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
	var m Method
	require.NoError(t, m.UnmarshalText([]byte("lu")))
	assert.Equal(t, LU, m)
	b, _ := m.MarshalText()
	assert.Equal(t, "lu", string(b))
}

func TestAutoSelection(t *testing.T) {
	for _, tc := range []struct {
		n         int
		symmetric bool
		want      Method
	}{
		{DenseLimit, true, Cholesky},
		{DenseLimit, false, LU},
		{DenseLimit + 1, true, CG},
		{DenseLimit + 1, false, BiCGSTAB},
	} {
		o := Options{Symmetric: tc.symmetric}.withDefaults(tc.n)
		assert.Equal(t, tc.want, o.Method, "n = %d, symmetric = %v", tc.n, tc.symmetric)
		assert.Equal(t, 10*tc.n, o.MaxIter)
	}
	// An explicit method is never overridden
	o := Options{Method: LU, Symmetric: true}.withDefaults(DenseLimit + 1)
	assert.Equal(t, LU, o.Method)
}
