package compile

import (
	"fmt"

	"github.com/snoble/slvsx/pkg/gear"
	"github.com/snoble/slvsx/pkg/handle"
	"github.com/snoble/slvsx/pkg/sketch"
	"github.com/snoble/slvsx/pkg/solver"
)

// emit appends one solver constraint and records which document
// constraint it came from.
func (lo *Lowered) emit(docIndex int, c solver.Constraint) {
	c.Handle = lo.Alloc.NextConstraint()
	c.Group = handle.GroupActive
	lo.Sys.AddConstraint(c)
	lo.conOrigin[c.Handle] = docIndex
}

// pointOf resolves a logical id to its point entity handle; gear ids
// resolve to their centers.
func (lo *Lowered) pointOf(label, id string) (handle.Handle, error) {
	if p, ok := lo.points[id]; ok {
		return p.entity, nil
	}
	return 0, lo.unknownEntity(label, "", id)
}

func (lo *Lowered) lineOf(label, id string) (handle.Handle, error) {
	if h, ok := lo.lines[id]; ok {
		return h, nil
	}
	return 0, lo.unknownEntity(label, "", id)
}

func (lo *Lowered) circleOf(label, id string) (handle.Handle, error) {
	if h, ok := lo.circles[id]; ok {
		return h, nil
	}
	return 0, lo.unknownEntity(label, "", id)
}

// pair extracts the two operand ids a constraint names, accepting either
// the entities list or a/b.
func pair(c *sketch.Constraint) (string, string) {
	if len(c.Entities) == 2 {
		return c.Entities[0], c.Entities[1]
	}
	return c.A, c.B
}

// workplaneFor resolves the workplane context planar-only constraints
// need: an explicit workplane wins, a planar document supplies the base
// XY plane, and a 3D document without one is an error.
func (lo *Lowered) workplaneFor(label string, c *sketch.Constraint) (handle.Handle, error) {
	if c.Workplane != "" {
		if h, ok := lo.planes[c.Workplane]; ok {
			return h, nil
		}
		return 0, lo.unknownEntity(label, "workplane", c.Workplane)
	}
	if lo.planar {
		return lo.baseWorkplane()
	}
	return 0, &sketch.Error{
		Kind: sketch.ErrWorkplaneRequired, ID: label,
		Message: fmt.Sprintf("%s needs a workplane in a non-planar document", c.Kind),
	}
}

func (lo *Lowered) lowerConstraint(i int, c *sketch.Constraint) error {
	label := sketch.ConstraintLabel(i, *c)

	value := 0.0
	if c.Value != nil {
		v, err := lo.Doc.Parameters.Resolve(*c.Value)
		if err != nil {
			return err
		}
		value = v
	}

	switch c.Kind {
	case sketch.Fixed:
		// Pinning happened during entity lowering via param groups.
		return nil

	case sketch.Coincident:
		a, b := pair(c)
		pa, err := lo.pointOf(label, a)
		if err != nil {
			return err
		}
		pb, err := lo.pointOf(label, b)
		if err != nil {
			return err
		}
		lo.emit(i, solver.Constraint{Type: solver.PointsCoincident, PtA: pa, PtB: pb})

	case sketch.Distance:
		return lo.lowerDistance(i, label, c, value)

	case sketch.Angle:
		la, err := lo.lineOf(label, c.Between[0])
		if err != nil {
			return err
		}
		lb, err := lo.lineOf(label, c.Between[1])
		if err != nil {
			return err
		}
		lo.emit(i, solver.Constraint{Type: solver.Angle, EntityA: la, EntityB: lb, Value: value})

	case sketch.Perpendicular, sketch.Parallel:
		a, b := pair(c)
		la, err := lo.lineOf(label, a)
		if err != nil {
			return err
		}
		lb, err := lo.lineOf(label, b)
		if err != nil {
			return err
		}
		t := solver.Perpendicular
		if c.Kind == sketch.Parallel {
			t = solver.Parallel
		}
		lo.emit(i, solver.Constraint{Type: t, EntityA: la, EntityB: lb})

	case sketch.Horizontal, sketch.Vertical:
		wp, err := lo.workplaneFor(label, c)
		if err != nil {
			return err
		}
		la, err := lo.lineOf(label, c.A)
		if err != nil {
			return err
		}
		t := solver.Horizontal
		if c.Kind == sketch.Vertical {
			t = solver.Vertical
		}
		lo.emit(i, solver.Constraint{Type: t, EntityA: la, Workplane: wp})

	case sketch.EqualLength:
		ids := c.Entities
		if len(ids) < 2 {
			ids = []string{c.A, c.B}
		}
		// A chain of n lines lowers to n-1 pairwise equalities.
		for j := 0; j+1 < len(ids); j++ {
			la, err := lo.lineOf(label, ids[j])
			if err != nil {
				return err
			}
			lb, err := lo.lineOf(label, ids[j+1])
			if err != nil {
				return err
			}
			lo.emit(i, solver.Constraint{Type: solver.EqualLengthLines, EntityA: la, EntityB: lb})
		}

	case sketch.EqualRadius:
		ca, err := lo.circleOf(label, c.A)
		if err != nil {
			return err
		}
		cb, err := lo.circleOf(label, c.B)
		if err != nil {
			return err
		}
		lo.emit(i, solver.Constraint{Type: solver.EqualRadius, EntityA: ca, EntityB: cb})

	case sketch.Tangent:
		return lo.lowerTangent(i, label, c)

	case sketch.PointOnLine:
		pt, err := lo.pointOf(label, c.Point)
		if err != nil {
			return err
		}
		ln, err := lo.lineOf(label, c.Line)
		if err != nil {
			return err
		}
		lo.emit(i, solver.Constraint{Type: solver.PtOnLine, PtA: pt, EntityA: ln})

	case sketch.PointOnCircle:
		pt, err := lo.pointOf(label, c.Point)
		if err != nil {
			return err
		}
		ci, err := lo.circleOf(label, c.Circle)
		if err != nil {
			return err
		}
		lo.emit(i, solver.Constraint{Type: solver.PtOnCircle, PtA: pt, EntityA: ci})

	case sketch.Midpoint:
		pt, err := lo.pointOf(label, c.Point)
		if err != nil {
			return err
		}
		ln, err := lo.lineOf(label, c.Line)
		if err != nil {
			return err
		}
		lo.emit(i, solver.Constraint{Type: solver.MidpointLine, PtA: pt, EntityA: ln})

	case sketch.Diameter:
		ci, err := lo.circleOf(label, c.Circle)
		if err != nil {
			return err
		}
		lo.emit(i, solver.Constraint{Type: solver.DiameterC, EntityA: ci, Value: value})

	case sketch.Symmetric:
		pa, err := lo.pointOf(label, c.A)
		if err != nil {
			return err
		}
		pb, err := lo.pointOf(label, c.B)
		if err != nil {
			return err
		}
		axis, err := lo.lineOf(label, c.About)
		if err != nil {
			return err
		}
		lo.emit(i, solver.Constraint{Type: solver.Symmetric, PtA: pa, PtB: pb, EntityA: axis})

	case sketch.SymmetricHorizontal, sketch.SymmetricVertical:
		wp, err := lo.workplaneFor(label, c)
		if err != nil {
			return err
		}
		pa, err := lo.pointOf(label, c.A)
		if err != nil {
			return err
		}
		pb, err := lo.pointOf(label, c.B)
		if err != nil {
			return err
		}
		t := solver.SymmetricHoriz
		if c.Kind == sketch.SymmetricVertical {
			t = solver.SymmetricVert
		}
		lo.emit(i, solver.Constraint{Type: t, PtA: pa, PtB: pb, Workplane: wp})

	case sketch.Mesh:
		return lo.lowerMesh(i, label, c)

	default:
		return &sketch.Error{
			Kind: sketch.ErrUnsupportedVariant, ID: label,
			Message: fmt.Sprintf("constraint kind %s cannot be lowered", c.Kind),
		}
	}
	return nil
}

// lowerDistance dispatches on operand kinds: point-point, point-line, or
// gear centers treated as points.
func (lo *Lowered) lowerDistance(i int, label string, c *sketch.Constraint, value float64) error {
	a, b := c.Between[0], c.Between[1]

	// Point-line distance when exactly one side is a line.
	_, aLine := lo.lines[a]
	_, bLine := lo.lines[b]
	if aLine != bLine {
		ptID, lnID := a, b
		if aLine {
			ptID, lnID = b, a
		}
		pt, err := lo.pointOf(label, ptID)
		if err != nil {
			return err
		}
		ln, err := lo.lineOf(label, lnID)
		if err != nil {
			return err
		}
		lo.emit(i, solver.Constraint{Type: solver.PtLineDistance, PtA: pt, EntityA: ln, Value: value})
		return nil
	}

	pa, err := lo.pointOf(label, a)
	if err != nil {
		return err
	}
	pb, err := lo.pointOf(label, b)
	if err != nil {
		return err
	}
	lo.emit(i, solver.Constraint{Type: solver.PtPtDistance, PtA: pa, PtB: pb, Value: value})
	return nil
}

func (lo *Lowered) lowerTangent(i int, label string, c *sketch.Constraint) error {
	_, aCircle := lo.circles[c.A]
	_, bCircle := lo.circles[c.B]
	switch {
	case aCircle && bCircle:
		ca, _ := lo.circleOf(label, c.A)
		cb, _ := lo.circleOf(label, c.B)
		lo.emit(i, solver.Constraint{Type: solver.CurveCurveTangent, EntityA: ca, EntityB: cb})
	case aCircle || bCircle:
		cID, lID := c.A, c.B
		if bCircle {
			cID, lID = c.B, c.A
		}
		ci, err := lo.circleOf(label, cID)
		if err != nil {
			return err
		}
		ln, err := lo.lineOf(label, lID)
		if err != nil {
			return err
		}
		lo.emit(i, solver.Constraint{Type: solver.ArcLineTangent, EntityA: ci, EntityB: ln})
	default:
		return lo.unknownEntity(label, "", c.A)
	}
	return nil
}

// lowerMesh expands a gear mesh into a center distance constraint at the
// meshing distance of the pair.
func (lo *Lowered) lowerMesh(i int, label string, c *sketch.Constraint) error {
	ia, okA := lo.gearIdx[c.Gear1]
	ib, okB := lo.gearIdx[c.Gear2]
	if !okA || !okB {
		missing := c.Gear1
		if okA {
			missing = c.Gear2
		}
		return &sketch.Error{
			Kind: sketch.ErrIncompatibleGearMesh, ID: label, Ref: missing,
			Message: fmt.Sprintf("%q is not a gear", missing),
		}
	}
	d, err := gear.MeshDistance(lo.gears[ia], lo.gears[ib])
	if err != nil {
		return &sketch.Error{
			Kind: sketch.ErrIncompatibleGearMesh, ID: label, Message: err.Error(),
		}
	}
	pa, err := lo.pointOf(label, c.Gear1)
	if err != nil {
		return err
	}
	pb, err := lo.pointOf(label, c.Gear2)
	if err != nil {
		return err
	}
	lo.emit(i, solver.Constraint{Type: solver.PtPtDistance, PtA: pa, PtB: pb, Value: d})
	return nil
}
