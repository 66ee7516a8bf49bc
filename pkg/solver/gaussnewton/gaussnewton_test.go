package gaussnewton

import (
	"context"
	"math"
	"testing"

	"github.com/snoble/slvsx/pkg/handle"
	"github.com/snoble/slvsx/pkg/solver"
)

// ---------------------------------------------------------------------------
// Test helpers: a tiny hand lowering layer
// ---------------------------------------------------------------------------

type builder struct {
	sys   solver.System
	alloc *handle.Allocator
}

func newBuilder() *builder {
	return &builder{alloc: handle.New(handle.DefaultConfig())}
}

// point adds a 3D point. Each coordinate's group is given separately so
// tests can pin individual axes the way the compiler does.
func (b *builder) point(x, y, z float64, gx, gy, gz handle.Handle) handle.Handle {
	hx, hy, hz := b.alloc.NextParam(), b.alloc.NextParam(), b.alloc.NextParam()
	b.sys.AddParam(solver.Param{Handle: hx, Group: gx, Value: x})
	b.sys.AddParam(solver.Param{Handle: hy, Group: gy, Value: y})
	b.sys.AddParam(solver.Param{Handle: hz, Group: gz, Value: z})
	h := b.alloc.NextEntity()
	b.sys.AddEntity(solver.Entity{
		Handle: h, Group: handle.GroupActive, Type: solver.Point3D,
		Params: [4]handle.Handle{hx, hy, hz}, NParams: 3,
	})
	return h
}

// fixedPoint adds a point whose coordinates all live in the reference group.
func (b *builder) fixedPoint(x, y, z float64) handle.Handle {
	return b.point(x, y, z, handle.GroupReference, handle.GroupReference, handle.GroupReference)
}

// planarPoint adds a point free in x and y with z pinned.
func (b *builder) planarPoint(x, y float64) handle.Handle {
	return b.point(x, y, 0, handle.GroupActive, handle.GroupActive, handle.GroupReference)
}

func (b *builder) line(p1, p2 handle.Handle) handle.Handle {
	h := b.alloc.NextEntity()
	b.sys.AddEntity(solver.Entity{
		Handle: h, Group: handle.GroupActive, Type: solver.LineSegment,
		Point: [4]handle.Handle{p1, p2},
	})
	return h
}

func (b *builder) distance(p1, p2 handle.Handle, d float64) handle.Handle {
	h := b.alloc.NextConstraint()
	b.sys.AddConstraint(solver.Constraint{
		Handle: h, Group: handle.GroupActive, Type: solver.PtPtDistance,
		PtA: p1, PtB: p2, Value: d,
	})
	return h
}

func (b *builder) constraint(t solver.ConstraintType, c solver.Constraint) handle.Handle {
	c.Handle = b.alloc.NextConstraint()
	c.Group = handle.GroupActive
	c.Type = t
	b.sys.AddConstraint(c)
	return c.Handle
}

func (b *builder) pointAt(t *testing.T, res *solver.Result, p handle.Handle) (float64, float64, float64) {
	t.Helper()
	e, ok := b.sys.EntityByHandle(p)
	if !ok {
		t.Fatalf("no entity %d", p)
	}
	coord := func(h handle.Handle) float64 {
		if v, ok := res.Params[h]; ok {
			return v
		}
		v, _ := b.sys.ParamValue(h)
		return v
	}
	return coord(e.Params[0]), coord(e.Params[1]), coord(e.Params[2])
}

func solve(t *testing.T, b *builder) *solver.Result {
	t.Helper()
	res, err := New().Solve(context.Background(), &b.sys, handle.GroupActive, solver.Options{})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	return res
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

// ---------------------------------------------------------------------------
// Convergence
// ---------------------------------------------------------------------------

func TestTriangleApex(t *testing.T) {
	b := newBuilder()
	p1 := b.fixedPoint(0, 0, 0)
	p2 := b.fixedPoint(100, 0, 0)
	p3 := b.planarPoint(50, 80)
	b.distance(p1, p3, 100)
	b.distance(p2, p3, 100)

	res := solve(t, b)
	if res.Status != solver.StatusOK {
		t.Fatalf("status = %s, want ok (residual %g)", res.Status, res.Residual)
	}
	x, y, _ := b.pointAt(t, res, p3)
	if !near(x, 50, 1e-4) || !near(y, 86.6025, 1e-3) {
		t.Errorf("apex = (%g, %g), want (50, 86.6025)", x, y)
	}
	if res.DOF != 0 {
		t.Errorf("DOF = %d, want 0", res.DOF)
	}
}

func TestUnderConstrainedDOF(t *testing.T) {
	b := newBuilder()
	p1 := b.fixedPoint(0, 0, 0)
	p2 := b.planarPoint(30, 40)
	b.distance(p1, p2, 50)

	res := solve(t, b)
	if res.Status != solver.StatusOK {
		t.Fatalf("status = %s, want ok", res.Status)
	}
	// One equation over two free coordinates.
	if res.DOF != 1 {
		t.Errorf("DOF = %d, want 1", res.DOF)
	}
	x, y, _ := b.pointAt(t, res, p2)
	if !near(math.Hypot(x, y), 50, 1e-4) {
		t.Errorf("|p2| = %g, want 50", math.Hypot(x, y))
	}
}

func TestNoConstraintsFullDOF(t *testing.T) {
	b := newBuilder()
	b.planarPoint(1, 2)
	res := solve(t, b)
	if res.Status != solver.StatusOK || res.DOF != 2 {
		t.Errorf("status = %s DOF = %d, want ok DOF 2", res.Status, res.DOF)
	}
}

func TestHorizontalVertical(t *testing.T) {
	b := newBuilder()
	origin := b.fixedPoint(0, 0, 0)
	pa := b.planarPoint(40, 7)
	pb := b.planarPoint(3, 60)
	la := b.line(origin, pa)
	lb := b.line(origin, pb)
	b.constraint(solver.Horizontal, solver.Constraint{EntityA: la})
	b.constraint(solver.Vertical, solver.Constraint{EntityA: lb})

	res := solve(t, b)
	if res.Status != solver.StatusOK {
		t.Fatalf("status = %s, want ok", res.Status)
	}
	_, ay, _ := b.pointAt(t, res, pa)
	bx, _, _ := b.pointAt(t, res, pb)
	if !near(ay, 0, 1e-5) {
		t.Errorf("horizontal endpoint y = %g, want 0", ay)
	}
	if !near(bx, 0, 1e-5) {
		t.Errorf("vertical endpoint x = %g, want 0", bx)
	}
}

func TestMidpoint(t *testing.T) {
	b := newBuilder()
	p1 := b.fixedPoint(0, 0, 0)
	p2 := b.fixedPoint(10, 0, 0)
	m := b.planarPoint(2, 3)
	l := b.line(p1, p2)
	b.constraint(solver.MidpointLine, solver.Constraint{PtA: m, EntityA: l})

	res := solve(t, b)
	if res.Status != solver.StatusOK {
		t.Fatalf("status = %s, want ok", res.Status)
	}
	x, y, _ := b.pointAt(t, res, m)
	if !near(x, 5, 1e-5) || !near(y, 0, 1e-5) {
		t.Errorf("midpoint = (%g, %g), want (5, 0)", x, y)
	}
}

func TestAngleConstraint(t *testing.T) {
	b := newBuilder()
	origin := b.fixedPoint(0, 0, 0)
	px := b.fixedPoint(10, 0, 0)
	pa := b.planarPoint(9, 3)
	base := b.line(origin, px)
	arm := b.line(origin, pa)
	b.constraint(solver.Angle, solver.Constraint{EntityA: base, EntityB: arm, Value: 30})
	b.distance(origin, pa, 10)

	res := solve(t, b)
	if res.Status != solver.StatusOK {
		t.Fatalf("status = %s, want ok", res.Status)
	}
	x, y, _ := b.pointAt(t, res, pa)
	got := math.Atan2(y, x) * 180 / math.Pi
	if !near(math.Abs(got), 30, 1e-3) {
		t.Errorf("arm angle = %g degrees, want 30", got)
	}
}

// ---------------------------------------------------------------------------
// Failure classification
// ---------------------------------------------------------------------------

func TestInconsistentReportsStatusNotError(t *testing.T) {
	b := newBuilder()
	p1 := b.fixedPoint(0, 0, 0)
	p2 := b.fixedPoint(100, 0, 0)
	p3 := b.planarPoint(50, 10)
	c1 := b.distance(p1, p3, 10)
	c2 := b.distance(p2, p3, 10)

	res := solve(t, b)
	if res.Status != solver.StatusInconsistent && res.Status != solver.StatusDidNotConverge {
		t.Fatalf("status = %s, want inconsistent or did_not_converge", res.Status)
	}
	if res.Residual <= solver.DefaultTolerance {
		t.Errorf("residual = %g, want above tolerance", res.Residual)
	}
	if len(res.Failing) == 0 {
		t.Error("no failing constraints reported")
	} else {
		for _, h := range res.Failing {
			if h != c1 && h != c2 {
				t.Errorf("failing handle %d is not one of the distance constraints", h)
			}
		}
	}
}

func TestRedundantConsistentSolves(t *testing.T) {
	b := newBuilder()
	p1 := b.fixedPoint(0, 0, 0)
	p2 := b.fixedPoint(100, 0, 0)
	p3 := b.planarPoint(50, 80)
	b.distance(p1, p3, 100)
	b.distance(p2, p3, 100)
	// Consistent with the fixed base but adds no information.
	redundant := b.distance(p1, p2, 100)

	res := solve(t, b)
	if res.Status != solver.StatusRedundantOK {
		t.Fatalf("status = %s, want redundant_ok", res.Status)
	}
	if len(res.Failing) != 1 || res.Failing[0] != redundant {
		t.Errorf("Failing = %v, want [%d]", res.Failing, redundant)
	}
	x, y, _ := b.pointAt(t, res, p3)
	if !near(x, 50, 1e-4) || !near(y, 86.6025, 1e-3) {
		t.Errorf("apex = (%g, %g), want (50, 86.6025)", x, y)
	}
}

func TestTooManyUnknowns(t *testing.T) {
	b := newBuilder()
	p1 := b.fixedPoint(0, 0, 0)
	p2 := b.planarPoint(3, 4)
	b.distance(p1, p2, 5)

	res, err := New().Solve(context.Background(), &b.sys, handle.GroupActive,
		solver.Options{MaxUnknowns: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != solver.StatusTooManyUnknowns {
		t.Errorf("status = %s, want too_many_unknowns", res.Status)
	}
}

func TestContextCancellation(t *testing.T) {
	b := newBuilder()
	p1 := b.fixedPoint(0, 0, 0)
	p2 := b.planarPoint(30, 40)
	b.distance(p1, p2, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Solve(ctx, &b.sys, handle.GroupActive, solver.Options{})
	if err == nil {
		t.Error("Solve with canceled context returned nil error")
	}
}

func TestAlreadySatisfiedSkipsIteration(t *testing.T) {
	b := newBuilder()
	p1 := b.fixedPoint(0, 0, 0)
	p2 := b.planarPoint(3, 4)
	b.distance(p1, p2, 5)

	res := solve(t, b)
	if res.Status != solver.StatusOK {
		t.Fatalf("status = %s, want ok", res.Status)
	}
	if res.Iterations != 0 {
		t.Errorf("iterations = %d, want 0 for an already satisfied system", res.Iterations)
	}
}

func TestDeterministicResults(t *testing.T) {
	run := func() (float64, float64) {
		b := newBuilder()
		p1 := b.fixedPoint(0, 0, 0)
		p2 := b.fixedPoint(100, 0, 0)
		p3 := b.planarPoint(50, 80)
		b.distance(p1, p3, 100)
		b.distance(p2, p3, 100)
		res := solve(t, b)
		x, y, _ := b.pointAt(t, res, p3)
		return x, y
	}
	x1, y1 := run()
	x2, y2 := run()
	if x1 != x2 || y1 != y2 {
		t.Errorf("two identical solves differ: (%g, %g) vs (%g, %g)", x1, y1, x2, y2)
	}
}
