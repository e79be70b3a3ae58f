package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMath(t *testing.T) {
	assert.Equal(t, []float64{2, 2, 2}, ConstArray(3, 2))
	assert.Equal(t, -1, AllFinite([]float64{1, 2, 3}))
	assert.Equal(t, 1, AllFinite([]float64{1, math.NaN(), 3}))
	assert.Equal(t, 2, AllFinite([]float64{1, 2, math.Inf(-1)}))
	assert.Equal(t, 0., HarmonicMean(0, 3))
	assert.InDelta(t, 2*1*3/4., HarmonicMean(1, 3), 1.e-15)
	assert.Equal(t, 3., HarmonicMean(3, 3))
	for p := -9; p <= 9; p++ {
		assert.InDelta(t, math.Pow(0.7, float64(p)), POW(0.7, p), 1.e-12)
	}
}
