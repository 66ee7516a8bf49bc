package gaussnewton

import (
	"fmt"
	"math"

	"github.com/snoble/slvsx/pkg/handle"
	"github.com/snoble/slvsx/pkg/solver"
)

// getter reads the current value of a param handle, free or fixed.
type getter func(handle.Handle) float64

// residual is one scalar equation that is zero when satisfied.
type residual struct {
	owner handle.Handle // constraint handle, for blame reporting
	fn    func(get getter) float64
}

// vec3 is a throwaway coordinate triple.
type vec3 struct{ x, y, z float64 }

func (a vec3) sub(b vec3) vec3    { return vec3{a.x - b.x, a.y - b.y, a.z - b.z} }
func (a vec3) add(b vec3) vec3    { return vec3{a.x + b.x, a.y + b.y, a.z + b.z} }
func (a vec3) scale(s float64) vec3 { return vec3{a.x * s, a.y * s, a.z * s} }
func (a vec3) dot(b vec3) float64 { return a.x*b.x + a.y*b.y + a.z*b.z }
func (a vec3) cross(b vec3) vec3 {
	return vec3{a.y*b.z - a.z*b.y, a.z*b.x - a.x*b.z, a.x*b.y - a.y*b.x}
}
func (a vec3) norm() float64 { return math.Sqrt(a.dot(a)) }

// entityIndex resolves entity handles to their lowered records.
type entityIndex map[handle.Handle]*solver.Entity

func indexEntities(sys *solver.System) entityIndex {
	idx := make(entityIndex, len(sys.Entities))
	for i := range sys.Entities {
		idx[sys.Entities[i].Handle] = &sys.Entities[i]
	}
	return idx
}

// pointCoords reads a point entity's coordinates. A workplane-relative
// point reads as (u, v, 0): the compiler only emits 2D points on the
// base XY plane at the origin.
func (idx entityIndex) pointCoords(h handle.Handle, get getter) (vec3, error) {
	e, ok := idx[h]
	if !ok {
		return vec3{}, fmt.Errorf("gaussnewton: no entity %d", h)
	}
	switch e.Type {
	case solver.Point3D:
		return vec3{get(e.Params[0]), get(e.Params[1]), get(e.Params[2])}, nil
	case solver.Point2D:
		return vec3{get(e.Params[0]), get(e.Params[1]), 0}, nil
	default:
		return vec3{}, fmt.Errorf("gaussnewton: entity %d is %s, want a point", h, e.Type)
	}
}

// lineEndpoints reads a line entity's two endpoints.
func (idx entityIndex) lineEndpoints(h handle.Handle, get getter) (vec3, vec3, error) {
	e, ok := idx[h]
	if !ok || e.Type != solver.LineSegment {
		return vec3{}, vec3{}, fmt.Errorf("gaussnewton: entity %d is not a line", h)
	}
	a, err := idx.pointCoords(e.Point[0], get)
	if err != nil {
		return vec3{}, vec3{}, err
	}
	b, err := idx.pointCoords(e.Point[1], get)
	if err != nil {
		return vec3{}, vec3{}, err
	}
	return a, b, nil
}

// circleRadius reads a circle or arc radius through its distance entity.
func (idx entityIndex) circleRadius(h handle.Handle, get getter) (center vec3, radius float64, err error) {
	e, ok := idx[h]
	if !ok || (e.Type != solver.Circle && e.Type != solver.Arc) {
		return vec3{}, 0, fmt.Errorf("gaussnewton: entity %d is not a circle", h)
	}
	center, err = idx.pointCoords(e.Point[0], get)
	if err != nil {
		return vec3{}, 0, err
	}
	dist, ok := idx[e.Distance]
	if !ok || dist.Type != solver.Distance {
		return vec3{}, 0, fmt.Errorf("gaussnewton: circle %d has no distance entity", h)
	}
	return center, get(dist.Params[0]), nil
}

// pointLineDistance is the perpendicular distance from p to the infinite
// line through a and b.
func pointLineDistance(p, a, b vec3) float64 {
	d := b.sub(a)
	n := d.norm()
	if n < 1e-12 {
		return p.sub(a).norm()
	}
	return p.sub(a).cross(d).norm() / n
}

// buildResiduals lowers every constraint in the group into scalar
// equations. Unknown constraint types are an error: the compiler and the
// backend must agree on the supported set.
func buildResiduals(sys *solver.System, idx entityIndex, group handle.Handle, get getter) ([]residual, error) {
	var out []residual
	add := func(owner handle.Handle, fn func(get getter) float64) {
		out = append(out, residual{owner: owner, fn: fn})
	}

	for i := range sys.Constraints {
		c := sys.Constraints[i]
		if c.Group != group {
			continue
		}
		switch c.Type {
		case solver.PointsCoincident:
			pa, pb := c.PtA, c.PtB
			add(c.Handle, func(g getter) float64 { a, _ := idx.pointCoords(pa, g); b, _ := idx.pointCoords(pb, g); return a.x - b.x })
			add(c.Handle, func(g getter) float64 { a, _ := idx.pointCoords(pa, g); b, _ := idx.pointCoords(pb, g); return a.y - b.y })
			add(c.Handle, func(g getter) float64 { a, _ := idx.pointCoords(pa, g); b, _ := idx.pointCoords(pb, g); return a.z - b.z })

		case solver.PtPtDistance:
			pa, pb, want := c.PtA, c.PtB, c.Value
			add(c.Handle, func(g getter) float64 {
				a, _ := idx.pointCoords(pa, g)
				b, _ := idx.pointCoords(pb, g)
				return a.sub(b).norm() - want
			})

		case solver.PtLineDistance:
			pt, line, want := c.PtA, c.EntityA, c.Value
			add(c.Handle, func(g getter) float64 {
				p, _ := idx.pointCoords(pt, g)
				a, b, _ := idx.lineEndpoints(line, g)
				return pointLineDistance(p, a, b) - want
			})

		case solver.PtOnLine:
			pt, line := c.PtA, c.EntityA
			// Cross-product components: rank 2 in 3D, which least
			// squares absorbs without special casing the planar form.
			for axis := 0; axis < 3; axis++ {
				ax := axis
				add(c.Handle, func(g getter) float64 {
					p, _ := idx.pointCoords(pt, g)
					a, b, _ := idx.lineEndpoints(line, g)
					d := b.sub(a)
					n := d.norm()
					if n < 1e-12 {
						return 0
					}
					cr := p.sub(a).cross(d).scale(1 / n)
					return [3]float64{cr.x, cr.y, cr.z}[ax]
				})
			}

		case solver.PtOnCircle:
			pt, circ := c.PtA, c.EntityA
			add(c.Handle, func(g getter) float64 {
				p, _ := idx.pointCoords(pt, g)
				ctr, r, _ := idx.circleRadius(circ, g)
				return p.sub(ctr).norm() - r
			})

		case solver.EqualLengthLines:
			la, lb := c.EntityA, c.EntityB
			add(c.Handle, func(g getter) float64 {
				a1, a2, _ := idx.lineEndpoints(la, g)
				b1, b2, _ := idx.lineEndpoints(lb, g)
				return a2.sub(a1).norm() - b2.sub(b1).norm()
			})

		case solver.EqualRadius:
			ca, cb := c.EntityA, c.EntityB
			add(c.Handle, func(g getter) float64 {
				_, ra, _ := idx.circleRadius(ca, g)
				_, rb, _ := idx.circleRadius(cb, g)
				return ra - rb
			})

		case solver.DiameterC:
			circ, want := c.EntityA, c.Value
			add(c.Handle, func(g getter) float64 {
				_, r, _ := idx.circleRadius(circ, g)
				return 2*r - want
			})

		case solver.Horizontal:
			la := c.EntityA
			add(c.Handle, func(g getter) float64 {
				a, b, _ := idx.lineEndpoints(la, g)
				return a.y - b.y
			})

		case solver.Vertical:
			la := c.EntityA
			add(c.Handle, func(g getter) float64 {
				a, b, _ := idx.lineEndpoints(la, g)
				return a.x - b.x
			})

		case solver.MidpointLine:
			pt, line := c.PtA, c.EntityA
			for axis := 0; axis < 3; axis++ {
				ax := axis
				add(c.Handle, func(g getter) float64 {
					p, _ := idx.pointCoords(pt, g)
					a, b, _ := idx.lineEndpoints(line, g)
					mid := a.add(b).scale(0.5)
					diff := p.sub(mid)
					return [3]float64{diff.x, diff.y, diff.z}[ax]
				})
			}

		case solver.Parallel:
			la, lb := c.EntityA, c.EntityB
			for axis := 0; axis < 3; axis++ {
				ax := axis
				add(c.Handle, func(g getter) float64 {
					a1, a2, _ := idx.lineEndpoints(la, g)
					b1, b2, _ := idx.lineEndpoints(lb, g)
					da, db := a2.sub(a1), b2.sub(b1)
					na, nb := da.norm(), db.norm()
					if na < 1e-12 || nb < 1e-12 {
						return 0
					}
					cr := da.scale(1 / na).cross(db.scale(1 / nb))
					return [3]float64{cr.x, cr.y, cr.z}[ax]
				})
			}

		case solver.Perpendicular:
			la, lb := c.EntityA, c.EntityB
			add(c.Handle, func(g getter) float64 {
				a1, a2, _ := idx.lineEndpoints(la, g)
				b1, b2, _ := idx.lineEndpoints(lb, g)
				da, db := a2.sub(a1), b2.sub(b1)
				na, nb := da.norm(), db.norm()
				if na < 1e-12 || nb < 1e-12 {
					return 0
				}
				return da.dot(db) / (na * nb)
			})

		case solver.Angle:
			la, lb, deg := c.EntityA, c.EntityB, c.Value
			add(c.Handle, func(g getter) float64 {
				a1, a2, _ := idx.lineEndpoints(la, g)
				b1, b2, _ := idx.lineEndpoints(lb, g)
				da, db := a2.sub(a1), b2.sub(b1)
				got := math.Atan2(da.cross(db).norm(), da.dot(db))
				return got - deg*math.Pi/180
			})

		case solver.Symmetric:
			pa, pb, line := c.PtA, c.PtB, c.EntityA
			// Midpoint on the axis, and the segment perpendicular to it.
			add(c.Handle, func(g getter) float64 {
				a, _ := idx.pointCoords(pa, g)
				b, _ := idx.pointCoords(pb, g)
				l1, l2, _ := idx.lineEndpoints(line, g)
				return pointLineDistance(a.add(b).scale(0.5), l1, l2)
			})
			add(c.Handle, func(g getter) float64 {
				a, _ := idx.pointCoords(pa, g)
				b, _ := idx.pointCoords(pb, g)
				l1, l2, _ := idx.lineEndpoints(line, g)
				d := l2.sub(l1)
				n := d.norm()
				if n < 1e-12 {
					return 0
				}
				return a.sub(b).dot(d) / n
			})

		case solver.SymmetricHoriz:
			pa, pb := c.PtA, c.PtB
			add(c.Handle, func(g getter) float64 { a, _ := idx.pointCoords(pa, g); b, _ := idx.pointCoords(pb, g); return a.y - b.y })
			add(c.Handle, func(g getter) float64 { a, _ := idx.pointCoords(pa, g); b, _ := idx.pointCoords(pb, g); return a.x + b.x })

		case solver.SymmetricVert:
			pa, pb := c.PtA, c.PtB
			add(c.Handle, func(g getter) float64 { a, _ := idx.pointCoords(pa, g); b, _ := idx.pointCoords(pb, g); return a.x - b.x })
			add(c.Handle, func(g getter) float64 { a, _ := idx.pointCoords(pa, g); b, _ := idx.pointCoords(pb, g); return a.y + b.y })

		case solver.ArcLineTangent:
			circ, line := c.EntityA, c.EntityB
			add(c.Handle, func(g getter) float64 {
				ctr, r, _ := idx.circleRadius(circ, g)
				a, b, _ := idx.lineEndpoints(line, g)
				return pointLineDistance(ctr, a, b) - r
			})

		case solver.CurveCurveTangent:
			ca, cb := c.EntityA, c.EntityB
			// External vs internal tangency is picked once, from the
			// initial configuration, and held for the whole solve.
			external := func(g getter) bool {
				c1, r1, _ := idx.circleRadius(ca, g)
				c2, r2, _ := idx.circleRadius(cb, g)
				d := c1.sub(c2).norm()
				return math.Abs(d-(r1+r2)) <= math.Abs(d-math.Abs(r1-r2))
			}(get)
			add(c.Handle, func(g getter) float64 {
				c1, r1, _ := idx.circleRadius(ca, g)
				c2, r2, _ := idx.circleRadius(cb, g)
				d := c1.sub(c2).norm()
				if external {
					return d - (r1 + r2)
				}
				return d - math.Abs(r1-r2)
			})

		case solver.WhereDragged:
			pt := c.PtA
			x0, _ := idx.pointCoords(pt, get)
			add(c.Handle, func(g getter) float64 { p, _ := idx.pointCoords(pt, g); return p.x - x0.x })
			add(c.Handle, func(g getter) float64 { p, _ := idx.pointCoords(pt, g); return p.y - x0.y })
			add(c.Handle, func(g getter) float64 { p, _ := idx.pointCoords(pt, g); return p.z - x0.z })

		default:
			return nil, fmt.Errorf("gaussnewton: unsupported constraint type %s", c.Type)
		}
	}
	return out, nil
}
