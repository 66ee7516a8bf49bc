// Package dxf writes solved geometry as a DXF drawing: points, lines,
// circles and arcs on one layer, gear pitch circles and tooth outlines
// on another. Coordinates are emitted in document units.
package dxf

import (
	"fmt"

	"github.com/yofu/dxf"
	"github.com/yofu/dxf/drawing"

	"github.com/snoble/slvsx/pkg/compile"
	"github.com/snoble/slvsx/pkg/gear"
)

const (
	geometryLayer = "GEOMETRY"
	gearLayer     = "GEARS"
)

// flankSteps controls tooth outline smoothness.
const flankSteps = 8

// Export writes the solved output to path.
func Export(out *compile.Output, path string) error {
	d, err := build(out)
	if err != nil {
		return err
	}
	return d.SaveAs(path)
}

func build(out *compile.Output) (*drawing.Drawing, error) {
	d := dxf.NewDrawing()
	if _, err := d.AddLayer(geometryLayer, dxf.DefaultColor, dxf.DefaultLineType, true); err != nil {
		return nil, fmt.Errorf("dxf: add layer: %w", err)
	}

	hasGears := false
	for _, e := range out.Entities {
		switch e.Type {
		case "point", "point2d":
			if e.At != nil {
				d.Point(e.At[0], e.At[1], 0)
			}
		case "line":
			if e.P1 != nil && e.P2 != nil {
				d.Line(e.P1[0], e.P1[1], 0, e.P2[0], e.P2[1], 0)
			}
		case "circle":
			if e.Center != nil && e.Diameter != nil {
				d.Circle(e.Center[0], e.Center[1], 0, *e.Diameter/2)
			}
		case "gear":
			hasGears = true
		}
	}

	if hasGears {
		if _, err := d.AddLayer(gearLayer, dxf.DefaultColor, dxf.DefaultLineType, true); err != nil {
			return nil, fmt.Errorf("dxf: add layer: %w", err)
		}
		for _, e := range out.Entities {
			if e.Type != "gear" || e.Center == nil {
				continue
			}
			spec := specOf(e)
			// Pitch circle as a construction reference, then the outline.
			d.Circle(e.Center[0], e.Center[1], 0, spec.PitchRadius())
			drawOutline(d, spec, e.Center[0], e.Center[1])
		}
	}
	return d, nil
}

func specOf(e compile.ResolvedEntity) gear.Spec {
	spec := gear.Spec{ID: e.ID, Teeth: e.Teeth, Internal: e.Internal}
	if e.Module != nil {
		spec.Module = *e.Module
	}
	if e.Phase != nil {
		spec.Phase = *e.Phase
	}
	return spec
}

// drawOutline traces the tooth polygon as line segments translated to
// the solved center.
func drawOutline(d *drawing.Drawing, spec gear.Spec, cx, cy float64) {
	pts := spec.Outline(flankSteps)
	if len(pts) < 2 {
		return
	}
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		d.Line(cx+a.X, cy+a.Y, 0, cx+b.X, cy+b.Y, 0)
	}
}
