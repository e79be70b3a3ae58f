package types

import (
	"errors"
	"fmt"
)

// Sentinels for the failure taxonomy shared by the solvers. Structured errors
// below unwrap to these so callers can test with errors.Is.
var (
	ErrUnmappedRegion        = errors.New("gosubsurface: region has no mapped value")
	ErrSingularSystem        = errors.New("gosubsurface: singular linear system")
	ErrDivergedSolve         = errors.New("gosubsurface: time step solve diverged")
	ErrMalformedBC           = errors.New("gosubsurface: malformed boundary condition")
	ErrNegativeConcentration = errors.New("gosubsurface: negative concentration")
	ErrBoundaryOverlap       = errors.New("gosubsurface: overlapping boundary specification")
	ErrInvalidInput          = errors.New("gosubsurface: invalid input")
)

// UnmappedRegionError reports the first cell whose region marker has no entry
type UnmappedRegionError struct {
	Region int
	Cell   int
}

func (e *UnmappedRegionError) Error() string {
	return fmt.Sprintf("%s: region %d (cell %d)", ErrUnmappedRegion, e.Region, e.Cell)
}

func (e *UnmappedRegionError) Unwrap() error { return ErrUnmappedRegion }

type SingularSystemError struct {
	Reason string
	Node   int // offending equation when known, -1 otherwise
}

func (e *SingularSystemError) Error() string {
	if e.Node >= 0 {
		return fmt.Sprintf("%s: %s (node %d)", ErrSingularSystem, e.Reason, e.Node)
	}
	return fmt.Sprintf("%s: %s", ErrSingularSystem, e.Reason)
}

func (e *SingularSystemError) Unwrap() error { return ErrSingularSystem }

// DivergedSolveError aborts a time series at the step that failed
type DivergedSolveError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *DivergedSolveError) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("%s at step %d, t = %g", ErrDivergedSolve, e.Step, e.Time)
	}
	return fmt.Sprintf("%s at step %d, t = %g: %v", ErrDivergedSolve, e.Step, e.Time, e.Wrapped)
}

func (e *DivergedSolveError) Unwrap() []error {
	if e.Wrapped == nil {
		return []error{ErrDivergedSolve}
	}
	return []error{ErrDivergedSolve, e.Wrapped}
}

// NegativeConcentrationWarning is recoverable, it is logged and collected but never returned as an error
type NegativeConcentrationWarning struct {
	Step    int
	Time    float64
	Cell    int
	Min     float64
	Clamped bool
}

func (w NegativeConcentrationWarning) Error() string {
	return fmt.Sprintf("%s: min %g in cell %d at step %d, t = %g (clamped: %v)",
		ErrNegativeConcentration, w.Min, w.Cell, w.Step, w.Time, w.Clamped)
}

func (w NegativeConcentrationWarning) Unwrap() error { return ErrNegativeConcentration }

// BoundaryOverlap records a constraint dropped by the first-listed-wins policy
type BoundaryOverlap struct {
	Entity        int // node or face id
	Kept, Dropped float64
	KeptSpec      int // index of the winning spec
	DroppedSpec   int
}

func (o BoundaryOverlap) Error() string {
	return fmt.Sprintf("%s: entity %d keeps %g from spec %d, drops %g from spec %d",
		ErrBoundaryOverlap, o.Entity, o.Kept, o.KeptSpec, o.Dropped, o.DroppedSpec)
}

func (o BoundaryOverlap) Unwrap() error { return ErrBoundaryOverlap }
