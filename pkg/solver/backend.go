package solver

import (
	"context"
	"fmt"

	"github.com/snoble/slvsx/pkg/handle"
)

// Status is the outcome of a solve. Solver failures are statuses, not Go
// errors: a system that will not converge is a valid result to report.
type Status int

const (
	// StatusOK means every constraint is satisfied within tolerance.
	StatusOK Status = iota
	// StatusInconsistent means the constraints contradict each other.
	StatusInconsistent
	// StatusDidNotConverge means the iteration budget ran out while the
	// residual was still above tolerance.
	StatusDidNotConverge
	// StatusTooManyUnknowns means the system exceeds the backend's
	// unknown cap.
	StatusTooManyUnknowns
	// StatusRedundantOK means the system solved but carried redundant
	// constraints.
	StatusRedundantOK
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInconsistent:
		return "inconsistent"
	case StatusDidNotConverge:
		return "did_not_converge"
	case StatusTooManyUnknowns:
		return "too_many_unknowns"
	case StatusRedundantOK:
		return "redundant_ok"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Options tunes a solve. Zero fields take the documented defaults.
type Options struct {
	Tolerance     float64 // residual threshold, default 1e-6
	MaxIterations int     // default 1000
	MaxUnknowns   int     // default 1024, libslvs-compatible cap
}

const (
	DefaultTolerance     = 1e-6
	DefaultMaxIterations = 1000
	DefaultMaxUnknowns   = 1024
)

// withDefaults fills zero fields.
func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.MaxUnknowns <= 0 {
		o.MaxUnknowns = DefaultMaxUnknowns
	}
	return o
}

// Normalize is the exported form of option defaulting, shared by the
// backends.
func (o Options) Normalize() Options { return o.withDefaults() }

// Result is what a backend reports back. Params holds solved values for
// every param in the solved group; DOF is the remaining degrees of
// freedom after constraints.
type Result struct {
	Status     Status
	Params     map[handle.Handle]float64
	DOF        int
	Iterations int
	Residual   float64

	// Failing lists constraint handles implicated in an inconsistent or
	// redundant system, when the backend can attribute blame.
	Failing []handle.Handle
}

// Backend solves a lowered system for the params in group. The system's
// param values are the initial guess; backends must not mutate sys.
type Backend interface {
	Name() string
	Solve(ctx context.Context, sys *System, group handle.Handle, opts Options) (*Result, error)
}
