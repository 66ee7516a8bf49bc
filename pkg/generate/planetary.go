// Package generate builds complete constraint documents from a handful of
// high-level parameters. The generators compose sketch entities and
// constraints only; solving and export stay with the caller.
package generate

import (
	"fmt"
	"math"

	"github.com/snoble/slvsx/pkg/gear"
	"github.com/snoble/slvsx/pkg/sketch"
)

// PlanetaryConfig describes a planetary gear train: a central sun, a set of
// planets on a common orbit, and an internal ring enclosing them.
type PlanetaryConfig struct {
	SunTeeth    int
	PlanetTeeth int
	RingTeeth   int
	Planets     int
	Module      float64
}

// DefaultPlanetary is a valid 3-planet train used when no config is given.
func DefaultPlanetary() PlanetaryConfig {
	return PlanetaryConfig{
		SunTeeth:    20,
		PlanetTeeth: 10,
		RingTeeth:   40,
		Planets:     3,
		Module:      2,
	}
}

// Validate checks the tooth counts against the geometric requirements of a
// planetary train before any document is built.
func (c PlanetaryConfig) Validate() error {
	if c.SunTeeth <= 0 || c.PlanetTeeth <= 0 || c.RingTeeth <= 0 {
		return fmt.Errorf("planetary: tooth counts must be positive")
	}
	if c.Planets < 1 {
		return fmt.Errorf("planetary: need at least one planet")
	}
	if c.Module <= 0 {
		return fmt.Errorf("planetary: module must be positive")
	}
	// Planets mesh with both sun and ring, so S + 2P = R.
	if c.SunTeeth+2*c.PlanetTeeth != c.RingTeeth {
		return fmt.Errorf("planetary: sun + 2*planet must equal ring: %d + 2*%d != %d",
			c.SunTeeth, c.PlanetTeeth, c.RingTeeth)
	}
	if !gear.AssemblyCondition(c.SunTeeth, c.RingTeeth, c.Planets) {
		return fmt.Errorf("planetary: (sun(%d) + ring(%d)) %% planets(%d) != 0, planets cannot be equally spaced",
			c.SunTeeth, c.RingTeeth, c.Planets)
	}
	// The planet tip circle must clear the ring root circle.
	orbit := c.Module * float64(c.SunTeeth+c.PlanetTeeth) / 2
	planetTip := orbit + c.Module*float64(c.PlanetTeeth)/2 + c.Module
	ringRoot := c.Module*float64(c.RingTeeth)/2 - c.Module
	if planetTip > ringRoot {
		return fmt.Errorf("planetary: planet teeth extend to %.3g but ring root is at %.3g",
			planetTip, ringRoot)
	}
	return nil
}

// OrbitRadius returns the distance from the sun center to a planet center.
func (c PlanetaryConfig) OrbitRadius() float64 {
	return c.Module * float64(c.SunTeeth+c.PlanetTeeth) / 2
}

// Planetary generates a constraint document for the configured train. The
// sun and ring centers are pinned at the origin; planet centers start at
// their equally spaced orbit positions and are held there by the mesh
// constraints.
func Planetary(c PlanetaryConfig) (*sketch.Document, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	doc := &sketch.Document{Schema: sketch.SchemaVersion}

	doc.Entities = append(doc.Entities,
		sketch.Entity{
			ID:     "sun",
			Kind:   sketch.KindGear,
			Center: sketch.CenterRef{At: sketch.NumVec(0, 0, 0)},
			Teeth:  c.SunTeeth,
			Module: sketch.Num(c.Module),
		},
		sketch.Entity{
			ID:       "ring",
			Kind:     sketch.KindGear,
			Center:   sketch.CenterRef{At: sketch.NumVec(0, 0, 0)},
			Teeth:    c.RingTeeth,
			Module:   sketch.Num(c.Module),
			Internal: true,
		},
	)
	doc.Constraints = append(doc.Constraints,
		sketch.Constraint{Kind: sketch.Fixed, Entity: "sun"},
		sketch.Constraint{Kind: sketch.Fixed, Entity: "ring"},
	)

	orbit := c.OrbitRadius()
	for i := 0; i < c.Planets; i++ {
		angle := 2 * math.Pi * float64(i) / float64(c.Planets)
		id := fmt.Sprintf("planet%d", i+1)
		doc.Entities = append(doc.Entities, sketch.Entity{
			ID:   id,
			Kind: sketch.KindGear,
			Center: sketch.CenterRef{At: sketch.NumVec(
				round6(orbit*math.Cos(angle)),
				round6(orbit*math.Sin(angle)),
				0,
			)},
			Teeth:  c.PlanetTeeth,
			Module: sketch.Num(c.Module),
		})
		doc.Constraints = append(doc.Constraints,
			sketch.Constraint{Kind: sketch.Mesh, Gear1: "sun", Gear2: id},
			sketch.Constraint{Kind: sketch.Mesh, Gear1: id, Gear2: "ring"},
		)
	}

	sketch.ApplyDefaults(doc)
	return doc, nil
}

// round6 trims float noise from trig so generated documents diff cleanly.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
