//go:build !slvs

// Package slvs provides a CGo-based solver backend binding to libslvs.
// When the "slvs" build tag is not set, this stub package is compiled
// instead, returning an error from New().
//
// Build with: go build -tags=slvs
package slvs

import (
	"errors"

	"github.com/snoble/slvsx/pkg/solver"
)

// New returns an error indicating libslvs is not available.
// Build with -tags=slvs to enable.
func New() (solver.Backend, error) {
	return nil, errors.New("libslvs backend not available: build with -tags=slvs")
}
