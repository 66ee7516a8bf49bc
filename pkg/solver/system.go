package solver

import (
	"fmt"

	"github.com/snoble/slvsx/pkg/handle"
)

// FreeIn3D is the workplane handle meaning "no workplane": the entity or
// constraint lives in free 3D space.
const FreeIn3D handle.Handle = 0

// EntityType tags a lowered entity.
type EntityType int

const (
	Point3D EntityType = iota
	Point2D
	Normal3D
	Distance
	Workplane
	LineSegment
	Circle
	Arc
)

func (t EntityType) String() string {
	switch t {
	case Point3D:
		return "point3d"
	case Point2D:
		return "point2d"
	case Normal3D:
		return "normal3d"
	case Distance:
		return "distance"
	case Workplane:
		return "workplane"
	case LineSegment:
		return "line"
	case Circle:
		return "circle"
	case Arc:
		return "arc"
	default:
		return fmt.Sprintf("EntityType(%d)", int(t))
	}
}

// ConstraintType tags a lowered constraint.
type ConstraintType int

const (
	PointsCoincident ConstraintType = iota
	PtPtDistance
	PtLineDistance
	PtOnLine
	PtOnCircle
	EqualLengthLines
	EqualRadius
	Symmetric
	SymmetricHoriz
	SymmetricVert
	MidpointLine
	Horizontal
	Vertical
	DiameterC
	Angle
	Parallel
	Perpendicular
	ArcLineTangent
	CurveCurveTangent
	WhereDragged
)

func (t ConstraintType) String() string {
	names := [...]string{
		"points_coincident", "pt_pt_distance", "pt_line_distance",
		"pt_on_line", "pt_on_circle", "equal_length_lines", "equal_radius",
		"symmetric", "symmetric_horiz", "symmetric_vert", "midpoint_line",
		"horizontal", "vertical", "diameter", "angle", "parallel",
		"perpendicular", "arc_line_tangent", "curve_curve_tangent",
		"where_dragged",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return fmt.Sprintf("ConstraintType(%d)", int(t))
}

// Param is one scalar unknown (or fixed value, depending on its group).
type Param struct {
	Handle handle.Handle
	Group  handle.Handle
	Value  float64 // initial guess in, solved value out
}

// Entity is one lowered entity. Which of Point/Params/Normal/etc. are
// meaningful depends on Type; unused slots stay zero.
type Entity struct {
	Handle    handle.Handle
	Group     handle.Handle
	Type      EntityType
	Workplane handle.Handle // FreeIn3D when unconstrained to a plane

	Params   [4]handle.Handle // owned param handles (coords or quaternion)
	NParams  int
	Point    [4]handle.Handle // referenced point entities
	Normal   handle.Handle
	Distance handle.Handle // distance entity carrying a radius
}

// Constraint is one lowered constraint over entity and param handles.
type Constraint struct {
	Handle    handle.Handle
	Group     handle.Handle
	Type      ConstraintType
	Workplane handle.Handle

	Value    float64
	PtA, PtB handle.Handle
	EntityA  handle.Handle
	EntityB  handle.Handle
}

// System is a complete lowered problem. Slices keep lowering order; the
// backends rely on that order being deterministic.
type System struct {
	Params      []Param
	Entities    []Entity
	Constraints []Constraint

	// Dragged lists param handles the solver should move as little as
	// possible, when the backend supports the hint.
	Dragged []handle.Handle
}

// AddParam appends a param and returns its index.
func (s *System) AddParam(p Param) int {
	s.Params = append(s.Params, p)
	return len(s.Params) - 1
}

// AddEntity appends an entity.
func (s *System) AddEntity(e Entity) {
	s.Entities = append(s.Entities, e)
}

// AddConstraint appends a constraint.
func (s *System) AddConstraint(c Constraint) {
	s.Constraints = append(s.Constraints, c)
}

// ParamValue returns the current value of a param handle.
func (s *System) ParamValue(h handle.Handle) (float64, bool) {
	for i := range s.Params {
		if s.Params[i].Handle == h {
			return s.Params[i].Value, true
		}
	}
	return 0, false
}

// EntityByHandle returns the entity with the given handle.
func (s *System) EntityByHandle(h handle.Handle) (*Entity, bool) {
	for i := range s.Entities {
		if s.Entities[i].Handle == h {
			return &s.Entities[i], true
		}
	}
	return nil, false
}

// ActiveParamCount counts params in the given group, the solver's
// actual unknowns.
func (s *System) ActiveParamCount(group handle.Handle) int {
	n := 0
	for i := range s.Params {
		if s.Params[i].Group == group {
			n++
		}
	}
	return n
}
