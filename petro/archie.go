/*
Package petro converts solute concentration into bulk electrical resistivity.

Concentration sets the pore fluid conductivity, Archie's law scales the fluid
resistivity by porosity and saturation, the result is carried onto the electrical
mesh and combined with the background rock resistivity as two resistors in parallel.
*/
package petro

import (
	"fmt"
	"math"

	"github.com/notargets/gosubsurface/types"
)

// Archie holds the coefficients of rho = A rFluid phi^-M S^-N
type Archie struct {
	A          float64 `json:"A" toml:"A"`                   // tortuosity factor
	M          float64 `json:"M" toml:"M"`                   // cementation exponent
	N          float64 `json:"N" toml:"N"`                   // saturation exponent
	Saturation float64 `json:"Saturation" toml:"Saturation"` // water saturation in (0, 1]
}

func DefaultArchie() Archie { return Archie{A: 1, M: 2, N: 2, Saturation: 1} }

func (a Archie) Validate() error {
	for name, v := range map[string]float64{"A": a.A, "M": a.M, "N": a.N} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: archie %s = %g must be positive", types.ErrInvalidInput, name, v)
		}
	}
	if !(a.Saturation > 0 && a.Saturation <= 1) {
		return fmt.Errorf("%w: saturation %g outside (0, 1]", types.ErrInvalidInput, a.Saturation)
	}
	return nil
}

func (a Archie) Resistivity(rFluid, porosity float64) float64 {
	return a.A * rFluid * math.Pow(porosity, -a.M) * math.Pow(a.Saturation, -a.N)
}

// Field applies Resistivity cell by cell
func (a Archie) Field(rFluid, porosity []float64) (rho []float64, err error) {
	if len(rFluid) != len(porosity) {
		return nil, fmt.Errorf("%w: %d fluid resistivities for %d porosities", types.ErrInvalidInput,
			len(rFluid), len(porosity))
	}
	rho = make([]float64, len(rFluid))
	for k := range rho {
		rho[k] = a.Resistivity(rFluid[k], porosity[k])
	}
	return
}

// FluidParams is the linear conductivity model sigma = Sigma0 + Beta c of the pore fluid
type FluidParams struct {
	Sigma0 float64 `json:"Sigma0" toml:"Sigma0"` // S/m at zero concentration
	Beta   float64 `json:"Beta" toml:"Beta"`     // S/m per unit concentration
}

func (p FluidParams) Validate() error {
	if math.IsNaN(p.Sigma0) || math.IsInf(p.Sigma0, 0) || p.Sigma0 < 0 ||
		math.IsNaN(p.Beta) || math.IsInf(p.Beta, 0) || p.Beta < 0 || (p.Sigma0 == 0 && p.Beta == 0) {
		return fmt.Errorf("%w: fluid conductivity model sigma0 = %g, beta = %g", types.ErrInvalidInput,
			p.Sigma0, p.Beta)
	}
	return nil
}

// FluidResistivity is 1/(Sigma0 + Beta c), infinite for a non conducting fluid
func FluidResistivity(c float64, p FluidParams) float64 {
	sigma := p.Sigma0 + p.Beta*c
	if sigma <= 0 {
		return math.Inf(1)
	}
	return 1 / sigma
}

// Blend combines two resistivities in parallel, 1/rho = 1/fluid + 1/background. An
// infinite branch carries no current and the other branch is returned unchanged
func Blend(fluid, background float64) float64 {
	switch {
	case math.IsInf(background, 1):
		return fluid
	case math.IsInf(fluid, 1):
		return background
	case fluid == 0 || background == 0:
		return 0
	}
	return fluid * background / (fluid + background)
}
