//go:build slvs

// Package slvs provides a CGo-based solver backend binding to libslvs,
// the SolveSpace constraint solver library. It solves the same lowered
// systems as the pure-Go backend and reports the same statuses, so the
// two are interchangeable.
//
// This package requires libslvs to be installed. Build with:
// go build -tags=slvs
package slvs

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lslvs

#include <stdlib.h>
#include <slvs.h>
*/
import "C"

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/snoble/slvsx/pkg/handle"
	"github.com/snoble/slvsx/pkg/solver"
)

// Backend implements solver.Backend over libslvs.
type Backend struct{}

var _ solver.Backend = (*Backend)(nil)

// New returns the libslvs backend.
func New() (solver.Backend, error) { return &Backend{}, nil }

// Name identifies the backend in diagnostics.
func (b *Backend) Name() string { return "libslvs" }

func entityType(t solver.EntityType) (C.int, error) {
	switch t {
	case solver.Point3D:
		return C.SLVS_E_POINT_IN_3D, nil
	case solver.Point2D:
		return C.SLVS_E_POINT_IN_2D, nil
	case solver.Normal3D:
		return C.SLVS_E_NORMAL_IN_3D, nil
	case solver.Distance:
		return C.SLVS_E_DISTANCE, nil
	case solver.Workplane:
		return C.SLVS_E_WORKPLANE, nil
	case solver.LineSegment:
		return C.SLVS_E_LINE_SEGMENT, nil
	case solver.Circle:
		return C.SLVS_E_CIRCLE, nil
	case solver.Arc:
		return C.SLVS_E_ARC_OF_CIRCLE, nil
	default:
		return 0, fmt.Errorf("slvs: unsupported entity type %s", t)
	}
}

func constraintType(t solver.ConstraintType) (C.int, error) {
	switch t {
	case solver.PointsCoincident:
		return C.SLVS_C_POINTS_COINCIDENT, nil
	case solver.PtPtDistance:
		return C.SLVS_C_PT_PT_DISTANCE, nil
	case solver.PtLineDistance:
		return C.SLVS_C_PT_LINE_DISTANCE, nil
	case solver.PtOnLine:
		return C.SLVS_C_PT_ON_LINE, nil
	case solver.PtOnCircle:
		return C.SLVS_C_PT_ON_CIRCLE, nil
	case solver.EqualLengthLines:
		return C.SLVS_C_EQUAL_LENGTH_LINES, nil
	case solver.EqualRadius:
		return C.SLVS_C_EQUAL_RADIUS, nil
	case solver.Symmetric:
		return C.SLVS_C_SYMMETRIC_LINE, nil
	case solver.SymmetricHoriz:
		return C.SLVS_C_SYMMETRIC_HORIZ, nil
	case solver.SymmetricVert:
		return C.SLVS_C_SYMMETRIC_VERT, nil
	case solver.MidpointLine:
		return C.SLVS_C_AT_MIDPOINT, nil
	case solver.Horizontal:
		return C.SLVS_C_HORIZONTAL, nil
	case solver.Vertical:
		return C.SLVS_C_VERTICAL, nil
	case solver.DiameterC:
		return C.SLVS_C_DIAMETER, nil
	case solver.Angle:
		return C.SLVS_C_ANGLE, nil
	case solver.Parallel:
		return C.SLVS_C_PARALLEL, nil
	case solver.Perpendicular:
		return C.SLVS_C_PERPENDICULAR, nil
	case solver.ArcLineTangent:
		return C.SLVS_C_ARC_LINE_TANGENT, nil
	case solver.CurveCurveTangent:
		return C.SLVS_C_CURVE_CURVE_TANGENT, nil
	case solver.WhereDragged:
		return C.SLVS_C_WHERE_DRAGGED, nil
	default:
		return 0, fmt.Errorf("slvs: unsupported constraint type %s", t)
	}
}

// Solve marshals the system into libslvs tables, runs the native solver,
// and copies solved param values back out.
func (b *Backend) Solve(ctx context.Context, sys *solver.System, group handle.Handle, opts solver.Options) (*solver.Result, error) {
	opts = opts.Normalize()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sys.ActiveParamCount(group) > opts.MaxUnknowns {
		return &solver.Result{
			Status: solver.StatusTooManyUnknowns,
			DOF:    sys.ActiveParamCount(group),
		}, nil
	}

	nP, nE, nC := len(sys.Params), len(sys.Entities), len(sys.Constraints)
	params := (*C.Slvs_Param)(C.calloc(C.size_t(nP+1), C.sizeof_Slvs_Param))
	entities := (*C.Slvs_Entity)(C.calloc(C.size_t(nE+1), C.sizeof_Slvs_Entity))
	constraints := (*C.Slvs_Constraint)(C.calloc(C.size_t(nC+1), C.sizeof_Slvs_Constraint))
	failed := (*C.Slvs_hConstraint)(C.calloc(C.size_t(nC+1), C.sizeof_Slvs_hConstraint))
	dragged := (*C.Slvs_hParam)(C.calloc(C.size_t(len(sys.Dragged)+4), C.sizeof_Slvs_hParam))
	defer func() {
		C.free(unsafe.Pointer(params))
		C.free(unsafe.Pointer(entities))
		C.free(unsafe.Pointer(constraints))
		C.free(unsafe.Pointer(failed))
		C.free(unsafe.Pointer(dragged))
	}()

	pSlice := unsafe.Slice(params, nP+1)
	for i, p := range sys.Params {
		pSlice[i] = C.Slvs_MakeParam(C.Slvs_hParam(p.Handle), C.Slvs_hGroup(p.Group), C.double(p.Value))
	}
	eSlice := unsafe.Slice(entities, nE+1)
	for i, e := range sys.Entities {
		et, err := entityType(e.Type)
		if err != nil {
			return nil, err
		}
		var ce C.Slvs_Entity
		ce.h = C.Slvs_hEntity(e.Handle)
		ce.group = C.Slvs_hGroup(e.Group)
		ce._type = et
		ce.wrkpl = C.Slvs_hEntity(e.Workplane)
		for j := 0; j < e.NParams && j < 4; j++ {
			ce.param[j] = C.Slvs_hParam(e.Params[j])
		}
		for j := 0; j < 4; j++ {
			ce.point[j] = C.Slvs_hEntity(e.Point[j])
		}
		ce.normal = C.Slvs_hEntity(e.Normal)
		ce.distance = C.Slvs_hEntity(e.Distance)
		eSlice[i] = ce
	}
	cSlice := unsafe.Slice(constraints, nC+1)
	for i, c := range sys.Constraints {
		ct, err := constraintType(c.Type)
		if err != nil {
			return nil, err
		}
		cSlice[i] = C.Slvs_MakeConstraint(
			C.Slvs_hConstraint(c.Handle), C.Slvs_hGroup(c.Group), ct,
			C.Slvs_hEntity(c.Workplane), C.double(c.Value),
			C.Slvs_hEntity(c.PtA), C.Slvs_hEntity(c.PtB),
			C.Slvs_hEntity(c.EntityA), C.Slvs_hEntity(c.EntityB))
	}
	dSlice := unsafe.Slice(dragged, len(sys.Dragged)+4)
	for i, h := range sys.Dragged {
		dSlice[i] = C.Slvs_hParam(h)
	}

	var csys C.Slvs_System
	csys.param = params
	csys.params = C.int(nP)
	csys.entity = entities
	csys.entities = C.int(nE)
	csys.constraint = constraints
	csys.constraints = C.int(nC)
	csys.failed = failed
	csys.faileds = C.int(nC)
	for i := 0; i < len(sys.Dragged) && i < 4; i++ {
		csys.dragged[i] = dSlice[i]
	}
	csys.calculateFaileds = 1

	C.Slvs_Solve(&csys, C.Slvs_hGroup(group))

	out := &solver.Result{
		Params: make(map[handle.Handle]float64),
		DOF:    int(csys.dof),
	}
	switch csys.result {
	case C.SLVS_RESULT_OKAY:
		out.Status = solver.StatusOK
	case C.SLVS_RESULT_INCONSISTENT:
		out.Status = solver.StatusInconsistent
	case C.SLVS_RESULT_DIDNT_CONVERGE:
		out.Status = solver.StatusDidNotConverge
	case C.SLVS_RESULT_TOO_MANY_UNKNOWNS:
		out.Status = solver.StatusTooManyUnknowns
	default:
		out.Status = solver.StatusRedundantOK
	}
	for i, p := range sys.Params {
		if p.Group == group {
			out.Params[p.Handle] = float64(pSlice[i].val)
		}
	}
	fSlice := unsafe.Slice(failed, nC+1)
	for i := 0; i < int(csys.faileds) && i < nC; i++ {
		out.Failing = append(out.Failing, handle.Handle(fSlice[i]))
	}
	return out, nil
}
