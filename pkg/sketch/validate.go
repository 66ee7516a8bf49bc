package sketch

import (
	"fmt"
	"math"
)

// Validate runs all structural checks on the document: schema and units,
// id uniqueness, per-kind field requirements, and reference resolution
// (forward references are fine; constraints see the full id set). It never
// mutates the document and never touches a solver. The first failure
// aborts — lowering is all-or-nothing, so there is no value in collecting
// findings past a broken reference.
func Validate(doc *Document) error {
	if err := validateSchema(doc); err != nil {
		return err
	}
	if err := validateUnits(doc); err != nil {
		return err
	}
	ids, err := collectEntityIDs(doc)
	if err != nil {
		return err
	}
	if err := validateEntities(doc, ids); err != nil {
		return err
	}
	if err := validateConstraints(doc, ids); err != nil {
		return err
	}
	return validateMeshes(doc, ids)
}

func validateSchema(doc *Document) error {
	if doc.Schema != SchemaVersion {
		return &Error{
			Kind:    ErrUnsupportedSchema,
			Field:   "schema",
			Message: fmt.Sprintf("unsupported schema %q, want %q", doc.Schema, SchemaVersion),
		}
	}
	return nil
}

func validateUnits(doc *Document) error {
	if doc.Units == "" {
		return nil
	}
	for _, u := range ValidUnits {
		if doc.Units == u {
			return nil
		}
	}
	return &Error{
		Kind:    ErrInvalidDocument,
		Field:   "units",
		Message: fmt.Sprintf("invalid units %q, must be one of %v", doc.Units, ValidUnits),
	}
}

func collectEntityIDs(doc *Document) (map[string]*Entity, error) {
	ids := make(map[string]*Entity, len(doc.Entities))
	for i := range doc.Entities {
		e := &doc.Entities[i]
		if e.ID == "" {
			return nil, &Error{
				Kind:    ErrInvalidDocument,
				Field:   "id",
				Message: fmt.Sprintf("entity at index %d has no id", i),
			}
		}
		if _, dup := ids[e.ID]; dup {
			return nil, &Error{
				Kind:    ErrInvalidDocument,
				ID:      e.ID,
				Message: "duplicate entity id",
			}
		}
		ids[e.ID] = e
	}
	return ids, nil
}

func validateEntities(doc *Document, ids map[string]*Entity) error {
	for i := range doc.Entities {
		e := &doc.Entities[i]
		if err := validateEntity(e, ids); err != nil {
			return err
		}
	}
	return nil
}

func validateEntity(e *Entity, ids map[string]*Entity) error {
	requireRef := func(field, ref string, want EntityKind, wantName string) error {
		if ref == "" {
			return &Error{
				Kind:    ErrInvalidDocument,
				ID:      e.ID,
				Field:   field,
				Message: "required reference is missing",
			}
		}
		target, ok := ids[ref]
		if !ok {
			return errUnresolvedReference(e.ID, field, ref)
		}
		if target.Kind != want {
			return &Error{
				Kind:    ErrInvalidDocument,
				ID:      e.ID,
				Field:   field,
				Ref:     ref,
				Message: fmt.Sprintf("%q is a %s, want a %s", ref, target.Kind, wantName),
			}
		}
		return nil
	}

	switch e.Kind {
	case KindPoint:
		if len(e.At) < 2 || len(e.At) > 3 {
			return badField(e.ID, "at", "point needs 2 or 3 coordinates")
		}
	case KindPoint2D:
		if len(e.At) != 2 {
			return badField(e.ID, "at", "point2d needs exactly 2 coordinates")
		}
		if err := requireRef("workplane", e.Workplane, KindPlane, "plane"); err != nil {
			return err
		}
	case KindLine:
		for _, f := range []struct{ field, ref string }{{"p1", e.P1}, {"p2", e.P2}} {
			if f.ref == "" {
				return badField(e.ID, f.field, "line endpoint is missing")
			}
			target, ok := ids[f.ref]
			if !ok {
				return errUnresolvedReference(e.ID, f.field, f.ref)
			}
			if target.Kind != KindPoint && target.Kind != KindPoint2D {
				return badField(e.ID, f.field, fmt.Sprintf("%q is a %s, want a point", f.ref, target.Kind))
			}
		}
		if e.Workplane != "" {
			if err := requireRef("workplane", e.Workplane, KindPlane, "plane"); err != nil {
				return err
			}
		}
	case KindCircle:
		if !e.Center.IsSet() {
			return badField(e.ID, "center", "circle needs a center")
		}
		if e.Center.IsRef() {
			target, ok := ids[e.Center.Ref]
			if !ok {
				return errUnresolvedReference(e.ID, "center", e.Center.Ref)
			}
			if target.Kind != KindPoint && target.Kind != KindPoint2D {
				return badField(e.ID, "center", fmt.Sprintf("%q is a %s, want a point", e.Center.Ref, target.Kind))
			}
		}
		if !e.Diameter.IsSet() {
			return badField(e.ID, "diameter", "circle needs a diameter")
		}
	case KindArc:
		if !e.Center.IsSet() {
			return badField(e.ID, "center", "arc needs a center")
		}
		for _, f := range []struct{ field, ref string }{{"start", e.Start}, {"end", e.End}} {
			if f.ref == "" {
				return badField(e.ID, f.field, "arc endpoint is missing")
			}
			target, ok := ids[f.ref]
			if !ok {
				return errUnresolvedReference(e.ID, f.field, f.ref)
			}
			if target.Kind != KindPoint && target.Kind != KindPoint2D {
				return badField(e.ID, f.field, fmt.Sprintf("%q is a %s, want a point", f.ref, target.Kind))
			}
		}
	case KindPlane:
		if len(e.Origin) != 3 {
			return badField(e.ID, "origin", "plane needs a 3D origin")
		}
		if len(e.Normal) != 3 {
			return badField(e.ID, "normal", "plane needs a 3D normal")
		}
	case KindGear:
		if !e.Center.IsSet() {
			return badField(e.ID, "center", "gear needs a center")
		}
		if e.Teeth <= 0 {
			return badField(e.ID, "teeth", "gear needs a positive tooth count")
		}
		if !e.Module.IsSet() {
			return badField(e.ID, "module", "gear needs a module")
		}
	}
	return nil
}

func validateConstraints(doc *Document, ids map[string]*Entity) error {
	for i, c := range doc.Constraints {
		cid := ConstraintLabel(i, c)
		if err := validateArity(cid, c); err != nil {
			return err
		}
		for _, ref := range c.Refs() {
			if _, ok := ids[ref]; !ok {
				return errUnresolvedReference(cid, "", ref)
			}
		}
	}
	return nil
}

func validateArity(cid string, c Constraint) error {
	switch c.Kind {
	case Distance, Angle:
		if len(c.Between) != 2 {
			return badField(cid, "between", "needs exactly 2 entities")
		}
		if c.Value == nil {
			return badField(cid, "value", "required value is missing")
		}
	case Coincident, Parallel:
		if len(c.Entities) != 2 && (c.A == "" || c.B == "") {
			return badField(cid, "entities", "needs exactly 2 entities")
		}
	case EqualLength:
		if len(c.Entities) < 2 && (c.A == "" || c.B == "") {
			return badField(cid, "entities", "needs at least 2 entities")
		}
	case Perpendicular, EqualRadius, Tangent, SymmetricHorizontal, SymmetricVertical:
		if c.A == "" || c.B == "" {
			return badField(cid, "a/b", "needs two entity references")
		}
	case Symmetric:
		if c.A == "" || c.B == "" || c.About == "" {
			return badField(cid, "about", "needs a, b, and an axis line")
		}
	case Horizontal, Vertical:
		if c.A == "" {
			return badField(cid, "a", "needs an entity reference")
		}
	case PointOnLine, Midpoint:
		if c.Point == "" || c.Line == "" {
			return badField(cid, "point/line", "needs a point and a line")
		}
	case PointOnCircle:
		if c.Point == "" || c.Circle == "" {
			return badField(cid, "point/circle", "needs a point and a circle")
		}
	case Diameter:
		if c.Circle == "" {
			return badField(cid, "circle", "needs a circle reference")
		}
		if c.Value == nil {
			return badField(cid, "value", "required value is missing")
		}
	case Fixed:
		if c.Entity == "" {
			return badField(cid, "entity", "needs an entity reference")
		}
		if c.Axis != "" && c.Axis != "x" && c.Axis != "y" {
			return badField(cid, "axis", fmt.Sprintf("invalid axis %q, want \"x\" or \"y\"", c.Axis))
		}
	case Mesh:
		if c.Gear1 == "" || c.Gear2 == "" {
			return badField(cid, "gear1/gear2", "needs two gear references")
		}
	}
	return nil
}

// validateMeshes checks physical gear-mesh compatibility before anything
// reaches a solver: both ends must be gears, modules must agree, and two
// ring gears cannot mesh with each other.
func validateMeshes(doc *Document, ids map[string]*Entity) error {
	for i, c := range doc.Constraints {
		if c.Kind != Mesh {
			continue
		}
		cid := ConstraintLabel(i, c)
		g1, g2 := ids[c.Gear1], ids[c.Gear2]
		for _, g := range []*Entity{g1, g2} {
			if g.Kind != KindGear {
				return &Error{
					Kind:    ErrIncompatibleGearMesh,
					ID:      cid,
					Ref:     g.ID,
					Message: fmt.Sprintf("mesh references %q which is a %s, not a gear", g.ID, g.Kind),
				}
			}
		}
		m1, err := doc.Parameters.Resolve(g1.Module)
		if err != nil {
			return err
		}
		m2, err := doc.Parameters.Resolve(g2.Module)
		if err != nil {
			return err
		}
		if math.Abs(m1-m2) > 1e-9 {
			return &Error{
				Kind: ErrIncompatibleGearMesh,
				ID:   cid,
				Message: fmt.Sprintf("gears %q (module %g) and %q (module %g) cannot mesh",
					g1.ID, m1, g2.ID, m2),
			}
		}
		if g1.Internal && g2.Internal {
			return &Error{
				Kind:    ErrIncompatibleGearMesh,
				ID:      cid,
				Message: fmt.Sprintf("gears %q and %q are both internal", g1.ID, g2.ID),
			}
		}
	}
	return nil
}

func badField(id, field, msg string) *Error {
	return &Error{Kind: ErrInvalidDocument, ID: id, Field: field, Message: msg}
}

// ConstraintLabel names a constraint for error reporting and diagnostics:
// constraints have no declared ids, so position plus kind is the stable
// handle.
func ConstraintLabel(index int, c Constraint) string {
	return fmt.Sprintf("constraints[%d](%s)", index, c.Kind)
}
