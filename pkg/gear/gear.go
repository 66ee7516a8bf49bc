// Package gear holds the involute gear math the solver itself never
// sees: pitch geometry, mesh center distances, phase propagation, and
// tooth outlines for export. Gears enter the constraint system as bare
// center points; everything in this package is bookkeeping layered on
// top of the solved centers.
package gear

import (
	"fmt"
	"math"
)

// DefaultPressureAngle is the standard involute pressure angle, degrees.
const DefaultPressureAngle = 20.0

// Spec is the full description of one gear: solver-relevant center plus
// the tooth bookkeeping.
type Spec struct {
	ID            string
	Teeth         int
	Module        float64
	PressureAngle float64 // degrees; 0 means DefaultPressureAngle
	Phase         float64 // degrees
	Internal      bool    // ring gear
	X, Y          float64 // center, typically solved
}

// PitchRadius is the radius of the pitch circle.
func (s Spec) PitchRadius() float64 {
	return s.Module * float64(s.Teeth) / 2
}

// BaseRadius is the involute base circle radius.
func (s Spec) BaseRadius() float64 {
	return s.PitchRadius() * math.Cos(s.pressureAngleRad())
}

// OuterRadius is the addendum circle radius. For a ring gear the tooth
// tips point inward, so the addendum is subtracted.
func (s Spec) OuterRadius() float64 {
	if s.Internal {
		return s.PitchRadius() - s.Module
	}
	return s.PitchRadius() + s.Module
}

// RootRadius is the dedendum circle radius, with standard 1.25m clearance.
func (s Spec) RootRadius() float64 {
	if s.Internal {
		return s.PitchRadius() + 1.25*s.Module
	}
	return s.PitchRadius() - 1.25*s.Module
}

func (s Spec) pressureAngleRad() float64 {
	a := s.PressureAngle
	if a == 0 {
		a = DefaultPressureAngle
	}
	return a * math.Pi / 180
}

// ToothPitch is the angular spacing between teeth, degrees.
func (s Spec) ToothPitch() float64 {
	return 360 / float64(s.Teeth)
}

// Compatible reports whether two gears can mesh at all: equal modules,
// both actually gears, and not two ring gears.
func Compatible(a, b Spec) error {
	if a.Teeth <= 0 || b.Teeth <= 0 {
		return fmt.Errorf("gear: %q and %q must both have teeth", a.ID, b.ID)
	}
	if math.Abs(a.Module-b.Module) > 1e-9 {
		return fmt.Errorf("gear: %q (module %g) and %q (module %g) have different modules",
			a.ID, a.Module, b.ID, b.Module)
	}
	if a.Internal && b.Internal {
		return fmt.Errorf("gear: %q and %q are both internal", a.ID, b.ID)
	}
	return nil
}

// MeshDistance is the center distance at which two gears mesh: the sum
// of pitch radii for an external pair, their difference when one gear is
// a ring.
func MeshDistance(a, b Spec) (float64, error) {
	if err := Compatible(a, b); err != nil {
		return 0, err
	}
	if a.Internal || b.Internal {
		return a.Module * math.Abs(float64(b.Teeth)-float64(a.Teeth)) / 2, nil
	}
	return a.Module * float64(a.Teeth+b.Teeth) / 2, nil
}

// Ratio is the speed ratio b/a for a meshed pair, negative for an
// external mesh (opposite rotation).
func Ratio(a, b Spec) float64 {
	r := float64(a.Teeth) / float64(b.Teeth)
	if !a.Internal && !b.Internal {
		return -r
	}
	return r
}

// AssemblyCondition reports whether n equally spaced planets can
// assemble between a sun and ring: (sun teeth + ring teeth) must divide
// evenly by the planet count.
func AssemblyCondition(sunTeeth, ringTeeth, planets int) bool {
	if planets <= 0 {
		return false
	}
	return (sunTeeth+ringTeeth)%planets == 0
}
