package compile

import (
	"fmt"

	"github.com/snoble/slvsx/pkg/gear"
	"github.com/snoble/slvsx/pkg/handle"
	"github.com/snoble/slvsx/pkg/sketch"
	"github.com/snoble/slvsx/pkg/solver"
)

// Output is the decoded solve result, shaped for JSON consumers.
type Output struct {
	Status      string           `json:"status"`
	DOF         int              `json:"dof"`
	Entities    []ResolvedEntity `json:"entities"`
	Warnings    []string         `json:"warnings,omitempty"`
	Failing     []string         `json:"failing_constraints,omitempty"`
	Diagnostics Diagnostics      `json:"diagnostics"`
}

// OK reports whether the geometry is trustworthy.
func (o *Output) OK() bool {
	return o.Status == solver.StatusOK.String() || o.Status == solver.StatusRedundantOK.String()
}

// ResolvedEntity is one document entity with solved literal geometry.
// Fields are populated per Type; pointers keep absent ones out of the
// JSON.
type ResolvedEntity struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	At       *[3]float64 `json:"at,omitempty"`     // point, point2d
	P1       *[3]float64 `json:"p1,omitempty"`     // line
	P2       *[3]float64 `json:"p2,omitempty"`     // line
	Center   *[3]float64 `json:"center,omitempty"` // circle, arc, gear
	Diameter *float64    `json:"diameter,omitempty"`
	Start    *[3]float64 `json:"start,omitempty"` // arc
	End      *[3]float64 `json:"end,omitempty"`   // arc
	Origin   *[3]float64 `json:"origin,omitempty"`
	Normal   *[3]float64 `json:"normal,omitempty"`

	Teeth       int      `json:"teeth,omitempty"`
	Module      *float64 `json:"module,omitempty"`
	Phase       *float64 `json:"phase,omitempty"`
	PitchRadius *float64 `json:"pitch_radius,omitempty"`
	Internal    bool     `json:"internal,omitempty"`
}

// Diagnostics carries per-run solver telemetry.
type Diagnostics struct {
	Backend    string  `json:"backend"`
	Iterations int     `json:"iterations"`
	Residual   float64 `json:"residual"`
	TimeMS     float64 `json:"time_ms"`
}

// decode projects solved params back onto document entities. It always
// produces geometry, even for failed statuses: partial coordinates are a
// diagnostic aid for an unsolvable figure.
func decode(lo *Lowered, res *solver.Result) (*Output, error) {
	out := &Output{
		Status: res.Status.String(),
		DOF:    res.DOF,
		Diagnostics: Diagnostics{
			Iterations: res.Iterations,
			Residual:   res.Residual,
		},
	}

	paramAt := func(h handle.Handle) float64 {
		if v, ok := res.Params[h]; ok {
			return v
		}
		v, _ := lo.Sys.ParamValue(h)
		return v
	}
	pointAt := func(id string) *[3]float64 {
		p, ok := lo.points[id]
		if !ok {
			return nil
		}
		c := [3]float64{paramAt(p.params[0]), paramAt(p.params[1]), paramAt(p.params[2])}
		return &c
	}

	// Recompute gear phases from solved centers before emitting output.
	solvedGears := make([]gear.Spec, len(lo.gears))
	copy(solvedGears, lo.gears)
	for i := range solvedGears {
		if c := pointAt(solvedGears[i].ID); c != nil {
			solvedGears[i].X, solvedGears[i].Y = c[0], c[1]
		}
	}
	var meshes []gear.MeshPair
	for i := range lo.Doc.Constraints {
		c := &lo.Doc.Constraints[i]
		if c.Kind == sketch.Mesh {
			meshes = append(meshes, gear.MeshPair{A: lo.gearIdx[c.Gear1], B: lo.gearIdx[c.Gear2]})
		}
	}
	phases, phaseWarnings, err := gear.Phases(solvedGears, meshes)
	if err != nil {
		return nil, err
	}
	out.Warnings = append(out.Warnings, phaseWarnings...)

	for i := range lo.Doc.Entities {
		e := &lo.Doc.Entities[i]
		r := ResolvedEntity{ID: e.ID, Type: e.Kind.String()}
		switch e.Kind {
		case sketch.KindPoint, sketch.KindPoint2D:
			r.At = pointAt(e.ID)
		case sketch.KindLine:
			r.P1 = pointAt(e.P1)
			r.P2 = pointAt(e.P2)
		case sketch.KindCircle:
			r.Center = circleCenter(lo, e, pointAt, paramAt)
			d := 2 * paramAt(lo.radius[e.ID])
			r.Diameter = &d
		case sketch.KindArc:
			r.Center = circleCenter(lo, e, pointAt, paramAt)
			r.Start = pointAt(e.Start)
			r.End = pointAt(e.End)
		case sketch.KindPlane:
			o, _ := lo.Doc.Parameters.Coord3(e.Origin)
			n, _ := lo.Doc.Parameters.Coord3(e.Normal)
			r.Origin, r.Normal = &o, &n
		case sketch.KindGear:
			r.Center = pointAt(e.ID)
			gi := lo.gearIdx[e.ID]
			r.Teeth = e.Teeth
			r.Internal = e.Internal
			m := solvedGears[gi].Module
			r.Module = &m
			p := phases[gi]
			r.Phase = &p
			pr := solvedGears[gi].PitchRadius()
			r.PitchRadius = &pr
		}
		out.Entities = append(out.Entities, r)
	}

	out.Warnings = append(out.Warnings, unconstrainedWarnings(lo)...)
	for _, h := range res.Failing {
		if di, ok := lo.conOrigin[h]; ok {
			out.Failing = append(out.Failing, sketch.ConstraintLabel(di, lo.Doc.Constraints[di]))
		}
	}
	if !out.OK() && len(out.Failing) == 0 && len(lo.Doc.Constraints) > 0 {
		if res.DOF <= 0 {
			out.Warnings = append(out.Warnings, "system appears over-constrained")
		} else {
			out.Warnings = append(out.Warnings, "system appears under-constrained")
		}
	}
	return out, nil
}

// circleCenter resolves a circle or arc center, whether shared with a
// declared point or owned by the entity. Owned centers are not in the
// points map, so their params are read through the entity tables.
func circleCenter(lo *Lowered, e *sketch.Entity, pointAt func(string) *[3]float64, paramAt func(handle.Handle) float64) *[3]float64 {
	if e.Center.IsRef() {
		return pointAt(e.Center.Ref)
	}
	h, ok := lo.Alloc.Lookup(e.ID)
	if !ok {
		return nil
	}
	ent, ok := lo.Sys.EntityByHandle(h)
	if !ok {
		return nil
	}
	ctr, ok := lo.Sys.EntityByHandle(ent.Point[0])
	if !ok {
		return nil
	}
	c := [3]float64{paramAt(ctr.Params[0]), paramAt(ctr.Params[1]), paramAt(ctr.Params[2])}
	return &c
}

// unconstrainedWarnings flags entities no constraint ever touches. They
// are legal but contribute leftover degrees of freedom.
func unconstrainedWarnings(lo *Lowered) []string {
	referenced := map[string]bool{}
	for i := range lo.Doc.Constraints {
		for _, id := range lo.Doc.Constraints[i].Refs() {
			referenced[id] = true
		}
	}
	// An entity also counts as constrained when a constrained entity is
	// built from it (a line's endpoints, a circle's center point).
	for i := range lo.Doc.Entities {
		e := &lo.Doc.Entities[i]
		if referenced[e.ID] {
			for _, ref := range e.Refs() {
				referenced[ref] = true
			}
		}
	}
	var warnings []string
	for i := range lo.Doc.Entities {
		e := &lo.Doc.Entities[i]
		if e.Kind == sketch.KindPlane {
			continue
		}
		if !referenced[e.ID] {
			warnings = append(warnings, fmt.Sprintf("entity %q is not referenced by any constraint", e.ID))
		}
	}
	return warnings
}
