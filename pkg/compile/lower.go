package compile

import (
	"fmt"
	"math"

	"github.com/snoble/slvsx/pkg/gear"
	"github.com/snoble/slvsx/pkg/handle"
	"github.com/snoble/slvsx/pkg/sketch"
	"github.com/snoble/slvsx/pkg/solver"
)

// axisFix records which coordinates a fixed constraint pins.
type axisFix struct {
	x, y, z bool
}

func (f axisFix) all() bool { return f.x && f.y && f.z }

// pointInfo is a lowered point: the solver entity plus its coordinate
// param handles in x, y, z order (z handle is zero for 2D points).
type pointInfo struct {
	entity handle.Handle
	params [3]handle.Handle
	coords [3]float64
}

// Lowered is a document translated into solver tables, with the maps
// needed to decode results and attribute solver blame back to document
// constraints.
type Lowered struct {
	Doc   *sketch.Document
	Sys   *solver.System
	Alloc *handle.Allocator

	points  map[string]pointInfo
	lines   map[string]handle.Handle
	circles map[string]handle.Handle
	radius  map[string]handle.Handle // circle id -> radius param
	planes  map[string]handle.Handle // plane id -> workplane entity
	gears   []gear.Spec
	gearIdx map[string]int

	planar bool
	baseWP handle.Handle // lazily created origin XY workplane

	// conOrigin maps every emitted solver constraint handle back to the
	// document constraint index it lowered from.
	conOrigin map[handle.Handle]int
}

// Lower translates a validated document into a solver system. It resolves
// every parameter reference, so an undefined "$name" surfaces here and no
// solver is ever invoked for a broken document.
func Lower(doc *sketch.Document) (*Lowered, error) {
	lo := &Lowered{
		Doc:       doc,
		Sys:       &solver.System{},
		Alloc:     handle.New(handle.DefaultConfig()),
		points:    map[string]pointInfo{},
		lines:     map[string]handle.Handle{},
		circles:   map[string]handle.Handle{},
		radius:    map[string]handle.Handle{},
		planes:    map[string]handle.Handle{},
		gearIdx:   map[string]int{},
		conOrigin: map[handle.Handle]int{},
	}

	fixes, err := lo.collectFixes()
	if err != nil {
		return nil, err
	}
	planar, err := lo.detectPlanar()
	if err != nil {
		return nil, err
	}
	lo.planar = planar
	radiusActive := lo.collectRadiusActive()

	// Pass 1: entities that own params.
	for i := range doc.Entities {
		e := &doc.Entities[i]
		switch e.Kind {
		case sketch.KindPoint, sketch.KindPoint2D:
			if err := lo.lowerPoint(e, fixes[e.ID]); err != nil {
				return nil, err
			}
		case sketch.KindPlane:
			if err := lo.lowerPlane(e); err != nil {
				return nil, err
			}
		}
	}
	// Gears after points, so a forward center reference resolves.
	for i := range doc.Entities {
		e := &doc.Entities[i]
		if e.Kind == sketch.KindGear {
			if err := lo.lowerGear(e, fixes[e.ID]); err != nil {
				return nil, err
			}
		}
	}
	// Pass 2: entities built from references.
	for i := range doc.Entities {
		e := &doc.Entities[i]
		switch e.Kind {
		case sketch.KindLine:
			if err := lo.lowerLine(e); err != nil {
				return nil, err
			}
		case sketch.KindCircle:
			if err := lo.lowerCircle(e, fixes[e.ID], radiusActive[e.ID]); err != nil {
				return nil, err
			}
		case sketch.KindArc:
			if err := lo.lowerArc(e, fixes[e.ID]); err != nil {
				return nil, err
			}
		}
	}
	// Pass 3: constraints.
	for i := range doc.Constraints {
		if err := lo.lowerConstraint(i, &doc.Constraints[i]); err != nil {
			return nil, err
		}
	}
	return lo, nil
}

// collectFixes resolves fixed constraints down to per-entity axis masks.
// A fix on a line pins both endpoints; on a circle, arc, or gear it pins
// the center.
func (lo *Lowered) collectFixes() (map[string]axisFix, error) {
	entByID := map[string]*sketch.Entity{}
	for i := range lo.Doc.Entities {
		entByID[lo.Doc.Entities[i].ID] = &lo.Doc.Entities[i]
	}
	out := map[string]axisFix{}
	mark := func(id string, f axisFix) {
		cur := out[id]
		cur.x = cur.x || f.x
		cur.y = cur.y || f.y
		cur.z = cur.z || f.z
		out[id] = cur
	}
	for i := range lo.Doc.Constraints {
		c := &lo.Doc.Constraints[i]
		if c.Kind != sketch.Fixed {
			continue
		}
		f := axisFix{x: true, y: true, z: true}
		switch c.Axis {
		case "x":
			f = axisFix{x: true}
		case "y":
			f = axisFix{y: true}
		}
		e := entByID[c.Entity]
		if e == nil {
			return nil, lo.unknownEntity(sketch.ConstraintLabel(i, *c), "entity", c.Entity)
		}
		switch e.Kind {
		case sketch.KindLine:
			mark(e.P1, f)
			mark(e.P2, f)
		case sketch.KindCircle, sketch.KindArc, sketch.KindGear:
			if e.Center.IsRef() {
				mark(e.Center.Ref, f)
			} else {
				mark(e.ID, f)
			}
		default:
			mark(e.ID, f)
		}
	}
	return out, nil
}

// detectPlanar reports whether every piece of geometry lies in the z=0
// plane. Planar documents get their z params pinned so in-plane
// constraints fully determine the system.
func (lo *Lowered) detectPlanar() (bool, error) {
	p := lo.Doc.Parameters
	zOf := func(vec sketch.Vec) (float64, error) {
		c, err := p.Coord3(vec)
		return c[2], err
	}
	for i := range lo.Doc.Entities {
		e := &lo.Doc.Entities[i]
		switch e.Kind {
		case sketch.KindPoint:
			z, err := zOf(e.At)
			if err != nil {
				return false, err
			}
			if z != 0 {
				return false, nil
			}
		case sketch.KindCircle, sketch.KindArc, sketch.KindGear:
			if !e.Center.IsRef() {
				z, err := zOf(e.Center.At)
				if err != nil {
					return false, err
				}
				if z != 0 {
					return false, nil
				}
			}
		case sketch.KindPlane:
			n, err := p.Coord3(e.Normal)
			if err != nil {
				return false, err
			}
			o, err := p.Coord3(e.Origin)
			if err != nil {
				return false, err
			}
			if o[2] != 0 || n[0] != 0 || n[1] != 0 {
				return false, nil
			}
		}
	}
	return true, nil
}

// collectRadiusActive marks circles whose radius must stay solvable
// because a constraint can move it. Everything else gets its radius
// pinned at the declared diameter.
func (lo *Lowered) collectRadiusActive() map[string]bool {
	out := map[string]bool{}
	for i := range lo.Doc.Constraints {
		c := &lo.Doc.Constraints[i]
		switch c.Kind {
		case sketch.Diameter:
			out[c.Circle] = true
		case sketch.EqualRadius, sketch.Tangent:
			out[c.A] = true
			out[c.B] = true
		}
	}
	return out
}

// addPoint lowers one 3D point worth of params and entity, honoring the
// fix mask and planar pinning, and binds the logical id.
func (lo *Lowered) addPoint(id string, coords [3]float64, fix axisFix) (pointInfo, error) {
	group := func(fixed bool) handle.Handle {
		if fixed {
			return handle.GroupReference
		}
		return handle.GroupActive
	}
	hx, hy, hz := lo.Alloc.NextParam(), lo.Alloc.NextParam(), lo.Alloc.NextParam()
	lo.Sys.AddParam(solver.Param{Handle: hx, Group: group(fix.x), Value: coords[0]})
	lo.Sys.AddParam(solver.Param{Handle: hy, Group: group(fix.y), Value: coords[1]})
	lo.Sys.AddParam(solver.Param{Handle: hz, Group: group(fix.z || lo.planar), Value: coords[2]})

	h := lo.Alloc.NextEntity()
	lo.Sys.AddEntity(solver.Entity{
		Handle: h, Group: handle.GroupActive, Type: solver.Point3D,
		Params: [4]handle.Handle{hx, hy, hz}, NParams: 3,
	})
	info := pointInfo{entity: h, params: [3]handle.Handle{hx, hy, hz}, coords: coords}
	if id != "" {
		if err := lo.Alloc.Bind(id, h); err != nil {
			return info, err
		}
		lo.points[id] = info
	}
	return info, nil
}

func (lo *Lowered) lowerPoint(e *sketch.Entity, fix axisFix) error {
	coords, err := lo.Doc.Parameters.Coord3(e.At)
	if err != nil {
		return err
	}
	if e.Kind == sketch.KindPoint2D {
		// Workplane-relative points never leave their plane.
		fix.z = true
	}
	_, err = lo.addPoint(e.ID, coords, fix)
	return err
}

func (lo *Lowered) lowerGear(e *sketch.Entity, fix axisFix) error {
	var info pointInfo
	if e.Center.IsRef() {
		var ok bool
		info, ok = lo.points[e.Center.Ref]
		if !ok {
			return lo.unknownEntity(e.ID, "center", e.Center.Ref)
		}
		// The gear id resolves to the shared center point from here on.
		lo.points[e.ID] = info
	} else {
		coords, err := lo.Doc.Parameters.Coord3(e.Center.At)
		if err != nil {
			return err
		}
		info, err = lo.addPoint(e.ID, coords, fix)
		if err != nil {
			return err
		}
	}

	p := lo.Doc.Parameters
	module, err := p.Resolve(e.Module)
	if err != nil {
		return err
	}
	pa, err := p.Resolve(e.PressureAngle)
	if err != nil {
		return err
	}
	phase, err := p.Resolve(e.Phase)
	if err != nil {
		return err
	}
	lo.gearIdx[e.ID] = len(lo.gears)
	lo.gears = append(lo.gears, gear.Spec{
		ID: e.ID, Teeth: e.Teeth, Module: module,
		PressureAngle: pa, Phase: phase, Internal: e.Internal,
		X: info.coords[0], Y: info.coords[1],
	})
	return nil
}

// quatFromNormal builds the rotation quaternion taking +z to n.
func quatFromNormal(n [3]float64) [4]float64 {
	norm := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if norm < 1e-12 {
		return [4]float64{1, 0, 0, 0}
	}
	nx, ny, nz := n[0]/norm, n[1]/norm, n[2]/norm
	if nz > 1-1e-12 {
		return [4]float64{1, 0, 0, 0}
	}
	if nz < -1+1e-12 {
		// 180 degrees about x.
		return [4]float64{0, 1, 0, 0}
	}
	// Axis is z cross n, angle acos(nz).
	ax, ay := -ny, nx
	an := math.Hypot(ax, ay)
	half := math.Acos(nz) / 2
	s := math.Sin(half) / an
	return [4]float64{math.Cos(half), ax * s, ay * s, 0}
}

// addNormal lowers a fixed orientation quaternion entity.
func (lo *Lowered) addNormal(q [4]float64) handle.Handle {
	var params [4]handle.Handle
	for i := 0; i < 4; i++ {
		params[i] = lo.Alloc.NextParam()
		lo.Sys.AddParam(solver.Param{Handle: params[i], Group: handle.GroupReference, Value: q[i]})
	}
	h := lo.Alloc.NextEntity()
	lo.Sys.AddEntity(solver.Entity{
		Handle: h, Group: handle.GroupActive, Type: solver.Normal3D,
		Params: params, NParams: 4,
	})
	return h
}

func (lo *Lowered) lowerPlane(e *sketch.Entity) error {
	p := lo.Doc.Parameters
	origin, err := p.Coord3(e.Origin)
	if err != nil {
		return err
	}
	normal, err := p.Coord3(e.Normal)
	if err != nil {
		return err
	}
	// Datum geometry: the origin point and orientation are never solved.
	originPt, err := lo.addPoint("", origin, axisFix{x: true, y: true, z: true})
	if err != nil {
		return err
	}
	normalH := lo.addNormal(quatFromNormal(normal))

	h := lo.Alloc.NextEntity()
	lo.Sys.AddEntity(solver.Entity{
		Handle: h, Group: handle.GroupActive, Type: solver.Workplane,
		Point: [4]handle.Handle{originPt.entity}, Normal: normalH,
	})
	if err := lo.Alloc.Bind(e.ID, h); err != nil {
		return err
	}
	lo.planes[e.ID] = h
	return nil
}

// baseWorkplane returns the implicit origin XY workplane, creating it on
// first use.
func (lo *Lowered) baseWorkplane() (handle.Handle, error) {
	if lo.baseWP != 0 {
		return lo.baseWP, nil
	}
	origin, err := lo.addPoint("", [3]float64{}, axisFix{x: true, y: true, z: true})
	if err != nil {
		return 0, err
	}
	normalH := lo.addNormal([4]float64{1, 0, 0, 0})
	h := lo.Alloc.NextEntity()
	lo.Sys.AddEntity(solver.Entity{
		Handle: h, Group: handle.GroupActive, Type: solver.Workplane,
		Point: [4]handle.Handle{origin.entity}, Normal: normalH,
	})
	lo.baseWP = h
	return h, nil
}

func (lo *Lowered) lowerLine(e *sketch.Entity) error {
	p1, ok := lo.points[e.P1]
	if !ok {
		return lo.unknownEntity(e.ID, "p1", e.P1)
	}
	p2, ok := lo.points[e.P2]
	if !ok {
		return lo.unknownEntity(e.ID, "p2", e.P2)
	}
	h := lo.Alloc.NextEntity()
	lo.Sys.AddEntity(solver.Entity{
		Handle: h, Group: handle.GroupActive, Type: solver.LineSegment,
		Point: [4]handle.Handle{p1.entity, p2.entity},
	})
	if err := lo.Alloc.Bind(e.ID, h); err != nil {
		return err
	}
	lo.lines[e.ID] = h
	return nil
}

// lowerCircle expands the full circle recipe: center point, orientation
// normal, workplane, radius param, distance entity, then the circle
// entity itself. A referenced center reuses the point's handles.
func (lo *Lowered) lowerCircle(e *sketch.Entity, fix axisFix, radiusActive bool) error {
	var center pointInfo
	if e.Center.IsRef() {
		var ok bool
		center, ok = lo.points[e.Center.Ref]
		if !ok {
			return lo.unknownEntity(e.ID, "center", e.Center.Ref)
		}
	} else {
		coords, err := lo.Doc.Parameters.Coord3(e.Center.At)
		if err != nil {
			return err
		}
		center, err = lo.addPoint("", coords, fix)
		if err != nil {
			return err
		}
	}

	normalVec := [3]float64{0, 0, 1}
	if len(e.Normal) > 0 {
		n, err := lo.Doc.Parameters.Coord3(e.Normal)
		if err != nil {
			return err
		}
		normalVec = n
	}
	normalH := lo.addNormal(quatFromNormal(normalVec))

	wp, err := lo.baseWorkplane()
	if err != nil {
		return err
	}

	diameter, err := lo.Doc.Parameters.Resolve(e.Diameter)
	if err != nil {
		return err
	}
	radiusGroup := handle.GroupReference
	if radiusActive {
		radiusGroup = handle.GroupActive
	}
	radiusH := lo.Alloc.NextParam()
	lo.Sys.AddParam(solver.Param{Handle: radiusH, Group: radiusGroup, Value: diameter / 2})

	distH := lo.Alloc.NextEntity()
	lo.Sys.AddEntity(solver.Entity{
		Handle: distH, Group: handle.GroupActive, Type: solver.Distance,
		Workplane: wp, Params: [4]handle.Handle{radiusH}, NParams: 1,
	})

	h := lo.Alloc.NextEntity()
	lo.Sys.AddEntity(solver.Entity{
		Handle: h, Group: handle.GroupActive, Type: solver.Circle,
		Workplane: wp, Point: [4]handle.Handle{center.entity},
		Normal: normalH, Distance: distH,
	})
	if err := lo.Alloc.Bind(e.ID, h); err != nil {
		return err
	}
	lo.circles[e.ID] = h
	lo.radius[e.ID] = radiusH
	return nil
}

func (lo *Lowered) lowerArc(e *sketch.Entity, fix axisFix) error {
	var center pointInfo
	if e.Center.IsRef() {
		var ok bool
		center, ok = lo.points[e.Center.Ref]
		if !ok {
			return lo.unknownEntity(e.ID, "center", e.Center.Ref)
		}
	} else {
		coords, err := lo.Doc.Parameters.Coord3(e.Center.At)
		if err != nil {
			return err
		}
		center, err = lo.addPoint("", coords, fix)
		if err != nil {
			return err
		}
	}
	start, ok := lo.points[e.Start]
	if !ok {
		return lo.unknownEntity(e.ID, "start", e.Start)
	}
	end, ok := lo.points[e.End]
	if !ok {
		return lo.unknownEntity(e.ID, "end", e.End)
	}
	normalVec := [3]float64{0, 0, 1}
	if len(e.Normal) > 0 {
		n, err := lo.Doc.Parameters.Coord3(e.Normal)
		if err != nil {
			return err
		}
		normalVec = n
	}
	normalH := lo.addNormal(quatFromNormal(normalVec))
	wp, err := lo.baseWorkplane()
	if err != nil {
		return err
	}

	h := lo.Alloc.NextEntity()
	lo.Sys.AddEntity(solver.Entity{
		Handle: h, Group: handle.GroupActive, Type: solver.Arc,
		Workplane: wp, Normal: normalH,
		Point: [4]handle.Handle{center.entity, start.entity, end.entity},
	})
	if err := lo.Alloc.Bind(e.ID, h); err != nil {
		return err
	}
	return nil
}

func (lo *Lowered) unknownEntity(id, field, ref string) error {
	return &sketch.Error{
		Kind: sketch.ErrUnknownEntity, ID: id, Field: field, Ref: ref,
		Message: fmt.Sprintf("%q does not resolve to a usable entity here", ref),
	}
}
