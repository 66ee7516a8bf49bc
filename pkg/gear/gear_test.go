package gear

import (
	"math"
	"testing"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestPitchGeometry(t *testing.T) {
	g := Spec{ID: "g", Teeth: 20, Module: 2}
	if r := g.PitchRadius(); r != 20 {
		t.Errorf("PitchRadius = %g, want 20", r)
	}
	if r := g.OuterRadius(); r != 22 {
		t.Errorf("OuterRadius = %g, want 22", r)
	}
	if r := g.RootRadius(); r != 17.5 {
		t.Errorf("RootRadius = %g, want 17.5", r)
	}
	want := 20 * math.Cos(20*math.Pi/180)
	if r := g.BaseRadius(); !near(r, want, 1e-9) {
		t.Errorf("BaseRadius = %g, want %g", r, want)
	}
	if p := g.ToothPitch(); p != 18 {
		t.Errorf("ToothPitch = %g, want 18", p)
	}
}

func TestRingGeometryInverts(t *testing.T) {
	g := Spec{ID: "ring", Teeth: 40, Module: 2, Internal: true}
	if r := g.OuterRadius(); r != 38 {
		t.Errorf("ring OuterRadius = %g, want 38", r)
	}
	if r := g.RootRadius(); r != 42.5 {
		t.Errorf("ring RootRadius = %g, want 42.5", r)
	}
}

func TestMeshDistance(t *testing.T) {
	sun := Spec{ID: "sun", Teeth: 20, Module: 2}
	planet := Spec{ID: "planet", Teeth: 10, Module: 2}
	ring := Spec{ID: "ring", Teeth: 40, Module: 2, Internal: true}

	if d, err := MeshDistance(sun, planet); err != nil || d != 30 {
		t.Errorf("external MeshDistance = (%g, %v), want (30, nil)", d, err)
	}
	if d, err := MeshDistance(planet, ring); err != nil || d != 30 {
		t.Errorf("internal MeshDistance = (%g, %v), want (30, nil)", d, err)
	}
}

func TestMeshIncompatibilities(t *testing.T) {
	a := Spec{ID: "a", Teeth: 20, Module: 2}
	tests := []struct {
		name string
		b    Spec
	}{
		{"module mismatch", Spec{ID: "b", Teeth: 10, Module: 3}},
		{"no teeth", Spec{ID: "b", Module: 2}},
		{"both internal", Spec{ID: "b", Teeth: 40, Module: 2, Internal: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aa := a
			if tt.name == "both internal" {
				aa.Internal = true
			}
			if _, err := MeshDistance(aa, tt.b); err == nil {
				t.Error("MeshDistance succeeded, want error")
			}
		})
	}
}

func TestRatio(t *testing.T) {
	sun := Spec{Teeth: 20, Module: 2}
	planet := Spec{Teeth: 10, Module: 2}
	ring := Spec{Teeth: 40, Module: 2, Internal: true}
	if r := Ratio(sun, planet); r != -2 {
		t.Errorf("external Ratio = %g, want -2", r)
	}
	if r := Ratio(planet, ring); r != 0.25 {
		t.Errorf("internal Ratio = %g, want 0.25", r)
	}
}

func TestAssemblyCondition(t *testing.T) {
	if !AssemblyCondition(20, 40, 3) {
		t.Error("20+40 teeth over 3 planets should assemble")
	}
	if AssemblyCondition(20, 41, 3) {
		t.Error("20+41 teeth over 3 planets should not assemble")
	}
	if AssemblyCondition(20, 40, 0) {
		t.Error("zero planets should not assemble")
	}
}

func TestPhasesInterlock(t *testing.T) {
	gears := []Spec{
		{ID: "a", Teeth: 20, Module: 2, X: 0, Y: 0},
		{ID: "b", Teeth: 10, Module: 2, X: 30, Y: 0},
	}
	phases, warnings, err := Phases(gears, []MeshPair{{0, 1}})
	if err != nil {
		t.Fatalf("Phases failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	// The rolling condition along the center line must hold.
	tA, tB := 20.0, 10.0
	lhs := tA*(phases[0]-0) + tB*(phases[1]-0-180)
	if r := math.Mod(math.Mod(lhs-180, 360)+360, 360); !near(r, 0, 1e-6) && !near(r, 360, 1e-6) {
		t.Errorf("rolling condition residual = %g, phases %v", r, phases)
	}
	// Derived phases stay within the tooth pitch.
	if phases[1] < 0 || phases[1] >= 36 {
		t.Errorf("phase %g outside [0, 36)", phases[1])
	}
}

func TestPhasesDisconnectedComponents(t *testing.T) {
	gears := []Spec{
		{ID: "a", Teeth: 20, Module: 2, Phase: 5},
		{ID: "b", Teeth: 10, Module: 2, X: 30},
		{ID: "lone", Teeth: 12, Module: 1, Phase: 7},
	}
	phases, _, err := Phases(gears, []MeshPair{{0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if phases[2] != 7 {
		t.Errorf("unmeshed gear phase = %g, want its declared 7", phases[2])
	}
}

func TestPhasesRingIsReference(t *testing.T) {
	gears := []Spec{
		{ID: "planet", Teeth: 10, Module: 2, X: 30, Y: 0},
		{ID: "ring", Teeth: 50, Module: 2, Internal: true, Phase: 3},
	}
	phases, _, err := Phases(gears, []MeshPair{{0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	// The ring anchors its component and keeps its declared phase.
	if !near(phases[1], 3, 1e-9) {
		t.Errorf("ring phase = %g, want 3", phases[1])
	}
}

func TestPhasesOutOfRangeMesh(t *testing.T) {
	if _, _, err := Phases([]Spec{{ID: "a", Teeth: 5, Module: 1}}, []MeshPair{{0, 3}}); err == nil {
		t.Error("out-of-range mesh accepted")
	}
}

func TestOutlineClosedAndBounded(t *testing.T) {
	g := Spec{ID: "g", Teeth: 12, Module: 2}
	pts := g.Outline(8)
	if len(pts) < 12*3 {
		t.Fatalf("outline has %d points, want at least 3 per tooth", len(pts))
	}
	rMin, rMax := math.Inf(1), 0.0
	for _, p := range pts {
		r := math.Hypot(p.X, p.Y)
		if r < rMin {
			rMin = r
		}
		if r > rMax {
			rMax = r
		}
	}
	if rMax > g.OuterRadius()+1e-6 {
		t.Errorf("outline reaches r=%g beyond outer radius %g", rMax, g.OuterRadius())
	}
	if rMin < g.RootRadius()-1e-6 {
		t.Errorf("outline dips to r=%g below root radius %g", rMin, g.RootRadius())
	}
}
