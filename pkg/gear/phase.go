package gear

import (
	"fmt"
	"math"
	"sort"
)

// MeshPair names two meshing gears by index into a Spec slice.
type MeshPair struct {
	A, B int
}

// Phases computes a consistent tooth phase (degrees) for every gear so
// that each declared mesh interlocks, given solved centers. Within each
// connected component of the mesh graph one reference gear keeps its
// declared phase and the rest are derived by walking the meshes; a gear
// reachable along several paths gets the circular mean of the derived
// values, with a warning when the paths disagree by more than meshTol.
//
// The derivation uses the rolling condition along the line of centers:
// an external pair satisfies tA(phiA-theta) + tB(phiB-theta-180) = 180
// (mod 360) where theta is the center-line angle, and an internal pair
// rolls with equal arc, tB(phiB-theta) = tA(phiA-theta) (mod 360).
func Phases(gears []Spec, meshes []MeshPair) ([]float64, []string, error) {
	out := make([]float64, len(gears))
	var warnings []string

	adj := make([][]MeshPair, len(gears))
	for _, m := range meshes {
		if m.A < 0 || m.A >= len(gears) || m.B < 0 || m.B >= len(gears) {
			return nil, nil, fmt.Errorf("gear: mesh pair (%d, %d) out of range", m.A, m.B)
		}
		adj[m.A] = append(adj[m.A], m)
		adj[m.B] = append(adj[m.B], m)
	}

	visited := make([]bool, len(gears))
	for start := range gears {
		if visited[start] {
			continue
		}
		component := collectComponent(adj, start)
		ref := referenceGear(gears, adj, component)

		// BFS from the reference; accumulate every derived phase per
		// gear, then circular-mean them modulo the tooth pitch.
		derived := make(map[int][]float64)
		derived[ref] = []float64{gears[ref].Phase}
		queue := []int{ref}
		seen := map[int]bool{ref: true}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			curPhase := circularMean(derived[cur], gears[cur].ToothPitch())
			for _, m := range adj[cur] {
				next := m.A
				if next == cur {
					next = m.B
				}
				p, err := propagate(gears[cur], gears[next], curPhase)
				if err != nil {
					return nil, nil, err
				}
				derived[next] = append(derived[next], p)
				if !seen[next] {
					seen[next] = true
					queue = append(queue, next)
				}
			}
		}

		for _, i := range component {
			visited[i] = true
			vals, ok := derived[i]
			if !ok {
				out[i] = gears[i].Phase
				continue
			}
			pitch := gears[i].ToothPitch()
			out[i] = circularMean(vals, pitch)
			if spread(vals, pitch) > meshTol {
				warnings = append(warnings, fmt.Sprintf(
					"gear %q: mesh paths disagree on phase by %.3g degrees",
					gears[i].ID, spread(vals, pitch)))
			}
		}
	}
	return out, warnings, nil
}

// meshTol is the phase disagreement, in degrees, above which conflicting
// mesh paths are reported.
const meshTol = 0.1

func collectComponent(adj [][]MeshPair, start int) []int {
	var component []int
	stack := []int{start}
	seen := map[int]bool{start: true}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		component = append(component, cur)
		for _, m := range adj[cur] {
			next := m.A
			if next == cur {
				next = m.B
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	sort.Ints(component)
	return component
}

// referenceGear picks the component's phase anchor: the ring gear if one
// exists, else the most-connected gear, ties broken by declaration order.
func referenceGear(gears []Spec, adj [][]MeshPair, component []int) int {
	ref := component[0]
	for _, i := range component {
		if gears[i].Internal {
			return i
		}
		if len(adj[i]) > len(adj[ref]) {
			ref = i
		}
	}
	return ref
}

// propagate derives to's phase from from's phase across one mesh.
func propagate(from, to Spec, fromPhase float64) (float64, error) {
	if err := Compatible(from, to); err != nil {
		return 0, err
	}
	theta := math.Atan2(to.Y-from.Y, to.X-from.X) * 180 / math.Pi
	tA, tB := float64(from.Teeth), float64(to.Teeth)
	var phi float64
	if from.Internal || to.Internal {
		phi = theta + tA*(fromPhase-theta)/tB
	} else {
		phi = theta + 180 + (180-tA*(fromPhase-theta))/tB
	}
	return normalizeDeg(phi, to.ToothPitch()), nil
}

// circularMean averages angles modulo the given period.
func circularMean(vals []float64, period float64) float64 {
	if len(vals) == 1 {
		return normalizeDeg(vals[0], period)
	}
	scale := 2 * math.Pi / period
	var sx, sy float64
	for _, v := range vals {
		sx += math.Cos(v * scale)
		sy += math.Sin(v * scale)
	}
	return normalizeDeg(math.Atan2(sy, sx)/scale, period)
}

// spread is the largest pairwise circular distance among vals, degrees.
func spread(vals []float64, period float64) float64 {
	m := 0.0
	for i := range vals {
		for j := i + 1; j < len(vals); j++ {
			d := math.Abs(normalizeDeg(vals[i], period) - normalizeDeg(vals[j], period))
			if d > period/2 {
				d = period - d
			}
			if d > m {
				m = d
			}
		}
	}
	return m
}

// normalizeDeg wraps v into [0, period).
func normalizeDeg(v, period float64) float64 {
	v = math.Mod(v, period)
	if v < 0 {
		v += period
	}
	return v
}
