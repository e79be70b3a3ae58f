package fv

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/gosubsurface/types"
	"github.com/notargets/gosubsurface/utils"
)

// Scheme selects the face weighting A(|Pe|) of the convection-diffusion flux. It sets
// the stabilization of the face flux only, time integration is chosen by Options.Theta
type Scheme uint8

const (
	PS  Scheme = iota // power law, the default
	CDS               // central differences
	UDS               // first order upwind
	HS                // hybrid
	ES                // exponential, exact for steady 1D flow
)

var schemeNames = map[Scheme]string{
	PS:  "PS",
	CDS: "CDS",
	UDS: "UDS",
	HS:  "HS",
	ES:  "ES",
}

func (s Scheme) String() string {
	if name, ok := schemeNames[s]; ok {
		return name
	}
	return "Unknown"
}

func ParseScheme(name string) (Scheme, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PS, nil
	}
	for s, n := range schemeNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	switch strings.ToLower(name) {
	case "upwind":
		return UDS, nil
	case "central":
		return CDS, nil
	case "powerlaw", "power":
		return PS, nil
	}
	return PS, fmt.Errorf("%w: unknown advection scheme %q", types.ErrInvalidInput, name)
}

func (s Scheme) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Scheme) UnmarshalText(text []byte) (err error) {
	*s, err = ParseScheme(string(text))
	return
}

// A is the diffusion weight at the cell Peclet number pe
func (s Scheme) A(pe float64) float64 {
	pe = math.Abs(pe)
	switch s {
	case CDS:
		return 1 - 0.5*pe
	case UDS:
		return 1
	case HS:
		return math.Max(0, 1-0.5*pe)
	case ES:
		if pe < 1.e-8 {
			return 1 - 0.5*pe
		}
		return pe / math.Expm1(pe)
	}
	return math.Max(0, utils.POW(1-0.1*pe, 5))
}
