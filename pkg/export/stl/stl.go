// Package stl extrudes solved gears into printable solids: each tooth
// outline becomes a 2D polygon, extruded to the requested thickness,
// bored for its shaft, and positioned at its solved center. Rendering
// goes through the sdfx marching cubes pipeline.
package stl

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/snoble/slvsx/pkg/compile"
	"github.com/snoble/slvsx/pkg/gear"
)

// Options tunes the extrusion.
type Options struct {
	Thickness  float64 // extrusion height, document units; default 8
	BoreRadius float64 // center hole; 0 means no bore
	MeshCells  int     // marching cubes resolution; default 200
	FlankSteps int     // outline points per flank; default 8
}

func (o Options) withDefaults() Options {
	if o.Thickness <= 0 {
		o.Thickness = 8
	}
	if o.MeshCells <= 0 {
		o.MeshCells = 200
	}
	if o.FlankSteps <= 0 {
		o.FlankSteps = 8
	}
	return o
}

// ExportGears writes every solved gear in the output as one STL solid.
func ExportGears(out *compile.Output, path string, opts Options) error {
	opts = opts.withDefaults()

	var solid sdf.SDF3
	for _, e := range out.Entities {
		if e.Type != "gear" || e.Center == nil || e.Module == nil {
			continue
		}
		spec := gear.Spec{ID: e.ID, Teeth: e.Teeth, Internal: e.Internal, Module: *e.Module}
		if e.Phase != nil {
			spec.Phase = *e.Phase
		}
		g, err := gearSolid(spec, opts)
		if err != nil {
			return err
		}
		g = sdf.Transform3D(g, sdf.Translate3d(v3.Vec{X: e.Center[0], Y: e.Center[1], Z: 0}))
		if solid == nil {
			solid = g
		} else {
			solid = sdf.Union3D(solid, g)
		}
	}
	if solid == nil {
		return fmt.Errorf("stl: no gears in output")
	}

	render.ToSTL(solid, path, render.NewMarchingCubesUniform(opts.MeshCells))
	return nil
}

// gearSolid extrudes one gear outline, centered at the origin.
func gearSolid(spec gear.Spec, opts Options) (sdf.SDF3, error) {
	pts := spec.Outline(opts.FlankSteps)
	verts := make([]v2.Vec, len(pts))
	for i, p := range pts {
		verts[i] = v2.Vec{X: p.X, Y: p.Y}
	}
	profile, err := sdf.Polygon2D(verts)
	if err != nil {
		return nil, fmt.Errorf("stl: gear %q outline: %w", spec.ID, err)
	}
	solid := sdf.Extrude3D(profile, opts.Thickness)

	if opts.BoreRadius > 0 {
		bore, err := sdf.Cylinder3D(opts.Thickness*2, opts.BoreRadius, 0)
		if err != nil {
			return nil, fmt.Errorf("stl: gear %q bore: %w", spec.ID, err)
		}
		solid = sdf.Difference3D(solid, bore)
	}
	return solid, nil
}
