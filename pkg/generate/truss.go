package generate

import (
	"fmt"
	"math"

	"github.com/snoble/slvsx/pkg/sketch"
)

// TrussConfig describes a planar Warren truss: a bottom chord split into
// panels, one top node per panel, and diagonals forming the webbing. The
// left support is a pin (both coordinates fixed), the right support a roller
// (vertical reaction only, the node can slide horizontally).
type TrussConfig struct {
	Panels int
	Span   float64
	Height float64
}

// DefaultTruss is a 4-panel truss spanning 400 units.
func DefaultTruss() TrussConfig {
	return TrussConfig{Panels: 4, Span: 400, Height: 80}
}

// Validate rejects degenerate configurations.
func (c TrussConfig) Validate() error {
	if c.Panels < 2 {
		return fmt.Errorf("truss: need at least 2 panels")
	}
	if c.Span <= 0 || c.Height <= 0 {
		return fmt.Errorf("truss: span and height must be positive")
	}
	return nil
}

// Truss generates a constraint document for the configured truss. Every
// member carries a distance constraint equal to its designed length, which
// makes the document statically determinate: members = 2*joints - 3, so the
// solved geometry has zero degrees of freedom.
func Truss(c TrussConfig) (*sketch.Document, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	doc := &sketch.Document{Schema: sketch.SchemaVersion}
	panel := c.Span / float64(c.Panels)

	bottom := make([]string, c.Panels+1)
	top := make([]string, c.Panels)

	for i := 0; i <= c.Panels; i++ {
		bottom[i] = fmt.Sprintf("b%d", i)
		doc.Entities = append(doc.Entities, sketch.Entity{
			ID:   bottom[i],
			Kind: sketch.KindPoint,
			At:   sketch.NumVec(round6(float64(i)*panel), 0, 0),
		})
	}
	for i := 0; i < c.Panels; i++ {
		top[i] = fmt.Sprintf("t%d", i)
		doc.Entities = append(doc.Entities, sketch.Entity{
			ID:   top[i],
			Kind: sketch.KindPoint,
			At:   sketch.NumVec(round6((float64(i)+0.5)*panel), c.Height, 0),
		})
	}

	member := func(id, p1, p2 string, length float64) {
		doc.Entities = append(doc.Entities, sketch.Entity{
			ID: id, Kind: sketch.KindLine, P1: p1, P2: p2,
		})
		v := sketch.Num(round6(length))
		doc.Constraints = append(doc.Constraints, sketch.Constraint{
			Kind:    sketch.Distance,
			Between: []string{p1, p2},
			Value:   &v,
		})
	}

	diagonal := math.Hypot(panel/2, c.Height)
	for i := 0; i < c.Panels; i++ {
		member(fmt.Sprintf("bc%d", i), bottom[i], bottom[i+1], panel)
		member(fmt.Sprintf("dl%d", i), bottom[i], top[i], diagonal)
		member(fmt.Sprintf("dr%d", i), top[i], bottom[i+1], diagonal)
	}
	for i := 0; i+1 < c.Panels; i++ {
		member(fmt.Sprintf("tc%d", i), top[i], top[i+1], panel)
	}

	// Pin support on the left, roller on the right. The roller pins only
	// the vertical coordinate so the chord can expand along x.
	doc.Constraints = append(doc.Constraints,
		sketch.Constraint{Kind: sketch.Fixed, Entity: bottom[0]},
		sketch.Constraint{Kind: sketch.Fixed, Entity: bottom[c.Panels], Axis: "y"},
	)

	sketch.ApplyDefaults(doc)
	return doc, nil
}
