package sketch

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is the only input document schema this build accepts.
const SchemaVersion = "slvs-json/1"

// DefaultUnits is applied when the document omits a unit label.
const DefaultUnits = "mm"

// ValidUnits lists the accepted unit labels.
var ValidUnits = []string{"mm", "cm", "m", "in", "ft"}

// Document is a parsed constraint document. Entities and constraints keep
// document order; that order drives deterministic handle numbering later.
type Document struct {
	Schema      string       `json:"schema"`
	Units       string       `json:"units,omitempty"`
	Parameters  Params       `json:"parameters,omitempty"`
	Entities    []Entity     `json:"entities"`
	Constraints []Constraint `json:"constraints"`
}

// ---------------------------------------------------------------------------
// Entities
// ---------------------------------------------------------------------------

// EntityKind enumerates the declarable entity variants.
type EntityKind int

const (
	KindPoint   EntityKind = iota // free 3D point
	KindPoint2D                   // workplane-relative point
	KindLine                      // segment between two point refs
	KindCircle                    // center + diameter (+ optional normal)
	KindArc                       // center + start/end point refs
	KindPlane                     // origin + normal, usable as a workplane
	KindGear                      // center + tooth bookkeeping
)

var entityKindNames = map[EntityKind]string{
	KindPoint:   "point",
	KindPoint2D: "point2d",
	KindLine:    "line",
	KindCircle:  "circle",
	KindArc:     "arc",
	KindPlane:   "plane",
	KindGear:    "gear",
}

func (k EntityKind) String() string {
	if s, ok := entityKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EntityKind(%d)", int(k))
}

func parseEntityKind(tag string) (EntityKind, bool) {
	for k, s := range entityKindNames {
		if s == tag {
			return k, true
		}
	}
	return 0, false
}

// CenterRef is a circle/arc/gear center: either inline coordinates or a
// reference to a declared point entity (the referenced point's solver
// handles are reused, never duplicated).
type CenterRef struct {
	At  Vec    // inline coordinates, when Ref is empty
	Ref string // point entity id, when set
}

// IsRef reports whether the center names another entity.
func (c CenterRef) IsRef() bool { return c.Ref != "" }

// IsSet reports whether a center was given at all.
func (c CenterRef) IsSet() bool { return c.Ref != "" || len(c.At) > 0 }

func (c *CenterRef) UnmarshalJSON(b []byte) error {
	var ref string
	if err := json.Unmarshal(b, &ref); err == nil {
		*c = CenterRef{Ref: ref}
		return nil
	}
	var at Vec
	if err := json.Unmarshal(b, &at); err == nil {
		*c = CenterRef{At: at}
		return nil
	}
	return fmt.Errorf("center must be coordinates or a point id, got %s", string(b))
}

func (c CenterRef) MarshalJSON() ([]byte, error) {
	if c.Ref != "" {
		return json.Marshal(c.Ref)
	}
	return json.Marshal(c.At)
}

// Entity is one declared entity. Which fields are meaningful depends on
// Kind; Validate enforces the per-kind requirements. Entities are never
// mutated after parsing.
type Entity struct {
	ID   string
	Kind EntityKind

	At        Vec       // point, point2d
	Workplane string    // point2d, line (optional): plane entity id
	P1, P2    string    // line endpoints
	Center    CenterRef // circle, arc, gear
	Diameter  Value     // circle
	Start     string    // arc start point ref
	End       string    // arc end point ref
	Normal    Vec       // plane normal; optional circle/arc orientation
	Origin    Vec       // plane origin

	Teeth         int   // gear
	Module        Value // gear
	PressureAngle Value // gear, degrees
	Phase         Value // gear, degrees
	Internal      bool  // gear: ring gear when true
}

// entityJSON is the wire form of Entity; the "type" tag selects the kind.
type entityJSON struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	At        Vec       `json:"at,omitempty"`
	Workplane string    `json:"workplane,omitempty"`
	P1        string    `json:"p1,omitempty"`
	P2        string    `json:"p2,omitempty"`
	Center    *CenterRef `json:"center,omitempty"`
	Diameter  *Value    `json:"diameter,omitempty"`
	Start     string    `json:"start,omitempty"`
	End       string    `json:"end,omitempty"`
	Normal    Vec       `json:"normal,omitempty"`
	Origin    Vec       `json:"origin,omitempty"`

	Teeth         int    `json:"teeth,omitempty"`
	Module        *Value `json:"module,omitempty"`
	PressureAngle *Value `json:"pressure_angle,omitempty"`
	Phase         *Value `json:"phase,omitempty"`
	Internal      bool   `json:"internal,omitempty"`
}

func (e *Entity) UnmarshalJSON(b []byte) error {
	var w entityJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	kind, ok := parseEntityKind(w.Type)
	if !ok {
		return &Error{
			Kind:    ErrUnsupportedVariant,
			ID:      w.ID,
			Field:   "type",
			Message: fmt.Sprintf("unknown entity type %q", w.Type),
		}
	}
	*e = Entity{
		ID:        w.ID,
		Kind:      kind,
		At:        w.At,
		Workplane: w.Workplane,
		P1:        w.P1,
		P2:        w.P2,
		Start:     w.Start,
		End:       w.End,
		Normal:    w.Normal,
		Origin:    w.Origin,
		Teeth:     w.Teeth,
		Internal:  w.Internal,
	}
	if w.Center != nil {
		e.Center = *w.Center
	}
	if w.Diameter != nil {
		e.Diameter = *w.Diameter
	}
	if w.Module != nil {
		e.Module = *w.Module
	}
	if w.PressureAngle != nil {
		e.PressureAngle = *w.PressureAngle
	}
	if w.Phase != nil {
		e.Phase = *w.Phase
	}
	return nil
}

func (e Entity) MarshalJSON() ([]byte, error) {
	w := entityJSON{
		Type:      e.Kind.String(),
		ID:        e.ID,
		At:        e.At,
		Workplane: e.Workplane,
		P1:        e.P1,
		P2:        e.P2,
		Start:     e.Start,
		End:       e.End,
		Normal:    e.Normal,
		Origin:    e.Origin,
		Teeth:     e.Teeth,
		Internal:  e.Internal,
	}
	if e.Center.IsSet() {
		ctr := e.Center
		w.Center = &ctr
	}
	if e.Diameter.IsSet() {
		d := e.Diameter
		w.Diameter = &d
	}
	if e.Module.IsSet() {
		m := e.Module
		w.Module = &m
	}
	if e.PressureAngle.IsSet() {
		pa := e.PressureAngle
		w.PressureAngle = &pa
	}
	if e.Phase.IsSet() {
		p := e.Phase
		w.Phase = &p
	}
	return json.Marshal(w)
}

// Refs returns the entity ids this entity references.
func (e Entity) Refs() []string {
	var refs []string
	add := func(s string) {
		if s != "" {
			refs = append(refs, s)
		}
	}
	add(e.Workplane)
	add(e.P1)
	add(e.P2)
	add(e.Center.Ref)
	add(e.Start)
	add(e.End)
	return refs
}

// ---------------------------------------------------------------------------
// Constraints
// ---------------------------------------------------------------------------

// ConstraintKind enumerates the declarable constraint variants.
type ConstraintKind int

const (
	Coincident ConstraintKind = iota
	Distance
	Angle
	Perpendicular
	Parallel
	Horizontal
	Vertical
	EqualLength
	EqualRadius
	Tangent
	PointOnLine
	PointOnCircle
	Fixed
	Mesh
	Symmetric
	SymmetricHorizontal
	SymmetricVertical
	Midpoint
	Diameter
)

var constraintKindNames = map[ConstraintKind]string{
	Coincident:          "coincident",
	Distance:            "distance",
	Angle:               "angle",
	Perpendicular:       "perpendicular",
	Parallel:            "parallel",
	Horizontal:          "horizontal",
	Vertical:            "vertical",
	EqualLength:         "equal_length",
	EqualRadius:         "equal_radius",
	Tangent:             "tangent",
	PointOnLine:         "point_on_line",
	PointOnCircle:       "point_on_circle",
	Fixed:               "fixed",
	Mesh:                "mesh",
	Symmetric:           "symmetric",
	SymmetricHorizontal: "symmetric_horizontal",
	SymmetricVertical:   "symmetric_vertical",
	Midpoint:            "midpoint",
	Diameter:            "diameter",
}

func (k ConstraintKind) String() string {
	if s, ok := constraintKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ConstraintKind(%d)", int(k))
}

func parseConstraintKind(tag string) (ConstraintKind, bool) {
	for k, s := range constraintKindNames {
		if s == tag {
			return k, true
		}
	}
	return 0, false
}

// Constraint is one declared constraint. Which fields are meaningful
// depends on Kind; Validate enforces per-kind arity.
//
// Fixed supports an optional Axis ("x" or "y") that pins only that
// coordinate — the roller-support variant — while an empty Axis pins every
// free coordinate (pin support). Both forms are first-class.
type Constraint struct {
	Kind ConstraintKind

	A, B      string   // generic entity pair
	About     string   // symmetric: axis line
	Point     string   // point_on_line, point_on_circle, midpoint
	Line      string   // point_on_line, midpoint target
	Circle    string   // point_on_circle, diameter
	Entity    string   // fixed target
	Gear1     string   // mesh
	Gear2     string   // mesh
	Entities  []string // parallel, equal_length, coincident
	Between   []string // distance, angle
	Workplane string   // optional explicit workplane context
	Axis      string   // fixed: "", "x", or "y"
	Value     *Value   // distance, angle, diameter
}

type constraintJSON struct {
	Type string `json:"type"`

	A         string   `json:"a,omitempty"`
	B         string   `json:"b,omitempty"`
	About     string   `json:"about,omitempty"`
	Point     string   `json:"point,omitempty"`
	Line      string   `json:"line,omitempty"`
	Circle    string   `json:"circle,omitempty"`
	Entity    string   `json:"entity,omitempty"`
	Gear1     string   `json:"gear1,omitempty"`
	Gear2     string   `json:"gear2,omitempty"`
	Entities  []string `json:"entities,omitempty"`
	Between   []string `json:"between,omitempty"`
	Workplane string   `json:"workplane,omitempty"`
	Axis      string   `json:"axis,omitempty"`
	Value     *Value   `json:"value,omitempty"`
}

func (c *Constraint) UnmarshalJSON(b []byte) error {
	var w constraintJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	kind, ok := parseConstraintKind(w.Type)
	if !ok {
		return &Error{
			Kind:    ErrUnsupportedVariant,
			Field:   "type",
			Message: fmt.Sprintf("unknown constraint type %q", w.Type),
		}
	}
	*c = Constraint{
		Kind:      kind,
		A:         w.A,
		B:         w.B,
		About:     w.About,
		Point:     w.Point,
		Line:      w.Line,
		Circle:    w.Circle,
		Entity:    w.Entity,
		Gear1:     w.Gear1,
		Gear2:     w.Gear2,
		Entities:  w.Entities,
		Between:   w.Between,
		Workplane: w.Workplane,
		Axis:      w.Axis,
		Value:     w.Value,
	}
	return nil
}

func (c Constraint) MarshalJSON() ([]byte, error) {
	return json.Marshal(constraintJSON{
		Type:      c.Kind.String(),
		A:         c.A,
		B:         c.B,
		About:     c.About,
		Point:     c.Point,
		Line:      c.Line,
		Circle:    c.Circle,
		Entity:    c.Entity,
		Gear1:     c.Gear1,
		Gear2:     c.Gear2,
		Entities:  c.Entities,
		Between:   c.Between,
		Workplane: c.Workplane,
		Axis:      c.Axis,
		Value:     c.Value,
	})
}

// Refs returns every entity id the constraint references, in a stable
// order. Used by both reference validation and the unconstrained-entity
// warning pass.
func (c Constraint) Refs() []string {
	var refs []string
	add := func(ids ...string) {
		for _, id := range ids {
			if id != "" {
				refs = append(refs, id)
			}
		}
	}
	switch c.Kind {
	case Coincident, Parallel, EqualLength:
		refs = append(refs, c.Entities...)
		add(c.A, c.B)
	case Distance, Angle:
		refs = append(refs, c.Between...)
	case Perpendicular, EqualRadius, Tangent:
		add(c.A, c.B)
	case Horizontal, Vertical:
		add(c.A)
	case PointOnLine:
		add(c.Point, c.Line)
	case PointOnCircle:
		add(c.Point, c.Circle)
	case Fixed:
		add(c.Entity)
	case Mesh:
		add(c.Gear1, c.Gear2)
	case Symmetric:
		add(c.A, c.B, c.About)
	case SymmetricHorizontal, SymmetricVertical:
		add(c.A, c.B)
	case Midpoint:
		add(c.Point, c.Line)
	case Diameter:
		add(c.Circle)
	}
	add(c.Workplane)
	return refs
}
