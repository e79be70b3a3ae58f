package bcs

import (
	"fmt"
	"strings"

	"github.com/notargets/gosubsurface/types"
)

// Type is the kind of condition a boundary spec imposes
type Type uint8

const (
	// None marks an unset or unparseable type, it is never valid in a spec
	None Type = iota

	Dirichlet // Fixed value
	Neumann   // Prescribed outward flux density
	Outflow   // Advective outflow, no diffusive flux
	NoFlow    // Impermeable wall
)

func (bc Type) String() string {
	names := map[Type]string{
		None:      "None",
		Dirichlet: "Dirichlet",
		Neumann:   "Neumann",
		Outflow:   "Outflow",
		NoFlow:    "NoFlow",
	}
	if name, ok := names[bc]; ok {
		return name
	}
	return "Unknown"
}

// NameMap maps boundary condition names to Type. Keys are lowercase for case-insensitive matching
var NameMap = map[string]Type{
	"dirichlet": Dirichlet,
	"fixed":     Dirichlet,

	"neumann": Neumann,
	"flux":    Neumann,

	"outflow": Outflow,
	"out":     Outflow,
	"outlet":  Outflow,

	"noflow":  NoFlow,
	"no_flow": NoFlow,
	"wall":    NoFlow,
}

// ParseType converts a boundary condition name to Type. The matching is case-insensitive
// and trims whitespace
func ParseType(name string) (Type, error) {
	lowerName := strings.ToLower(strings.TrimSpace(name))
	if bcType, ok := NameMap[lowerName]; ok {
		return bcType, nil
	}
	return None, fmt.Errorf("%w: unknown boundary condition type %q", types.ErrMalformedBC, name)
}

func (bc Type) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(bc.String())), nil
}

// UnmarshalText lets scenario files spell types by name
func (bc *Type) UnmarshalText(text []byte) (err error) {
	*bc, err = ParseType(string(text))
	return
}
