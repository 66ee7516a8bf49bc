package compile

import (
	"context"
	"time"

	"github.com/snoble/slvsx/pkg/handle"
	"github.com/snoble/slvsx/pkg/sketch"
	"github.com/snoble/slvsx/pkg/solver"
)

// Run is the whole pipeline: lower the document, solve the active group,
// decode the result. Validation errors abort before the backend is ever
// invoked; solver failures come back inside the Output with partial
// geometry attached.
func Run(ctx context.Context, doc *sketch.Document, backend solver.Backend, opts solver.Options) (*Output, error) {
	lo, err := Lower(doc)
	if err != nil {
		return nil, err
	}
	return Solve(ctx, lo, backend, opts)
}

// Solve invokes the backend on a lowered system and decodes the outcome.
func Solve(ctx context.Context, lo *Lowered, backend solver.Backend, opts solver.Options) (*Output, error) {
	start := time.Now()
	res, err := backend.Solve(ctx, lo.Sys, handle.GroupActive, opts)
	if err != nil {
		return nil, err
	}
	out, err := decode(lo, res)
	if err != nil {
		return nil, err
	}
	out.Diagnostics.Backend = backend.Name()
	out.Diagnostics.TimeMS = float64(time.Since(start).Microseconds()) / 1000
	return out, nil
}
