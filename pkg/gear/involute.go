package gear

import "math"

// Point is a 2D outline point in gear-local coordinates (center at the
// origin).
type Point struct {
	X, Y float64
}

// involute evaluates the involute of the base circle at roll parameter t.
func involute(rb, t float64) Point {
	return Point{
		X: rb * (math.Cos(t) + t*math.Sin(t)),
		Y: rb * (math.Sin(t) - t*math.Cos(t)),
	}
}

// involuteAngle is the polar angle swept by the involute from the base
// circle out to radius r.
func involuteAngle(rb, r float64) float64 {
	if r <= rb {
		return 0
	}
	t := math.Sqrt(r*r/(rb*rb) - 1)
	return t - math.Atan(t)
}

// Outline traces the gear's tooth profile as a closed polygon,
// flankSteps points per involute flank. The outline is centered at the
// origin with the phase rotation applied; callers translate it to the
// solved center. Ring gears get the same outline; the exporter is
// expected to subtract it from an outer rim.
func (s Spec) Outline(flankSteps int) []Point {
	if flankSteps < 2 {
		flankSteps = 2
	}
	rb := s.BaseRadius()
	rRoot := s.RootRadius()
	rTip := s.OuterRadius()
	if s.Internal {
		// Trace the cutter shape: tips inward, roots outward.
		rRoot, rTip = rTip, rRoot
		rb = math.Min(rb, rRoot)
	}
	if rRoot > rTip {
		rRoot, rTip = rTip, rRoot
	}
	rStart := math.Max(rb, rRoot)

	pitch := s.ToothPitch() * math.Pi / 180
	// Half tooth thickness at the pitch circle is a quarter pitch; the
	// involute angle offsets place the flanks symmetrically about the
	// tooth center line.
	halfTooth := pitch / 4
	invPitch := involuteAngle(rb, s.PitchRadius())

	tMax := 0.0
	if rTip > rb {
		tMax = math.Sqrt(rTip*rTip/(rb*rb) - 1)
	}
	tMin := 0.0
	if rStart > rb {
		tMin = math.Sqrt(rStart*rStart/(rb*rb) - 1)
	}

	var out []Point
	rot := s.Phase * math.Pi / 180
	rotate := func(p Point, a float64) Point {
		return Point{p.X*math.Cos(a) - p.Y*math.Sin(a), p.X*math.Sin(a) + p.Y*math.Cos(a)}
	}
	mirror := func(p Point) Point { return Point{p.X, -p.Y} }

	for tooth := 0; tooth < s.Teeth; tooth++ {
		center := rot + float64(tooth)*pitch

		// Rising flank: root to tip.
		var flank []Point
		for i := 0; i <= flankSteps; i++ {
			t := tMin + (tMax-tMin)*float64(i)/float64(flankSteps)
			flank = append(flank, involute(rb, t))
		}
		// Align the flank so the pitch-circle point sits half a tooth
		// before the tooth center line.
		lead := -halfTooth + invPitch
		for _, p := range flank {
			out = append(out, rotate(p, center+lead))
		}
		// Falling flank: mirrored involute, tip back to root.
		for i := flankSteps; i >= 0; i-- {
			t := tMin + (tMax-tMin)*float64(i)/float64(flankSteps)
			out = append(out, rotate(mirror(involute(rb, t)), center-lead))
		}
		// Root arc to the next tooth.
		gapStart := center - lead
		gapEnd := center + pitch + lead
		for i := 1; i < flankSteps; i++ {
			a := gapStart + (gapEnd-gapStart)*float64(i)/float64(flankSteps)
			out = append(out, Point{rRoot * math.Cos(a), rRoot * math.Sin(a)})
		}
	}
	return out
}
