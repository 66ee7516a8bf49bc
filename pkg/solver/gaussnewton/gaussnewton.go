// Package gaussnewton is the pure-Go solver backend: damped Gauss-Newton
// over numerically differentiated constraint residuals, with an SVD rank
// pass for degree-of-freedom and redundancy reporting. It needs no native
// libraries, so it is the default backend; the libslvs binding (build tag
// slvs) is a drop-in alternative for parity testing.
package gaussnewton

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/snoble/slvsx/pkg/handle"
	"github.com/snoble/slvsx/pkg/solver"
)

// Backend implements solver.Backend.
type Backend struct{}

// New returns the Gauss-Newton backend.
func New() *Backend { return &Backend{} }

var _ solver.Backend = (*Backend)(nil)

// Name identifies the backend in diagnostics.
func (b *Backend) Name() string { return "gauss-newton" }

// stallStep is the step norm below which the iteration is considered
// stuck. A stuck iteration with a large residual means the constraints
// contradict each other.
const stallStep = 1e-12

// Solve runs the iteration for the params in group. The system is read
// but never mutated; solved values come back in the result.
func (b *Backend) Solve(ctx context.Context, sys *solver.System, group handle.Handle, opts solver.Options) (*solver.Result, error) {
	opts = opts.Normalize()

	// Partition params: free ones are the unknown vector, everything
	// else reads at its initial value.
	values := make(map[handle.Handle]float64, len(sys.Params))
	var free []handle.Handle
	for i := range sys.Params {
		p := sys.Params[i]
		values[p.Handle] = p.Value
		if p.Group == group {
			free = append(free, p.Handle)
		}
	}
	if len(free) > opts.MaxUnknowns {
		return &solver.Result{Status: solver.StatusTooManyUnknowns, DOF: len(free)}, nil
	}

	get := func(h handle.Handle) float64 { return values[h] }
	setX := func(x []float64) {
		for i, h := range free {
			values[h] = x[i]
		}
	}

	idx := indexEntities(sys)
	res, err := buildResiduals(sys, idx, group, get)
	if err != nil {
		return nil, err
	}

	n := len(free)
	x := make([]float64, n)
	for i, h := range free {
		x[i] = values[h]
	}

	if len(res) == 0 || n == 0 {
		out := &solver.Result{Status: solver.StatusOK, DOF: n, Params: groupParams(free, values)}
		if len(res) > 0 {
			// Constraints but nothing to move: just check them.
			r := evalResiduals(res, setX, get, x)
			out.Residual = maxAbs(r)
			if out.Residual > opts.Tolerance {
				out.Status = solver.StatusInconsistent
				out.Failing = blame(res, r, opts.Tolerance)
			}
		}
		return out, nil
	}

	eval := func(x []float64) []float64 { return evalResiduals(res, setX, get, x) }

	r := eval(x)
	lambda := 1e-3
	iters := 0
	converged := maxAbs(r) <= opts.Tolerance
	stalled := false

	for !converged && iters < opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iters++

		J := jacobian(eval, x, len(res))
		step, ok := dampedStep(J, r, lambda)
		if !ok {
			lambda *= 10
			continue
		}

		trial := make([]float64, n)
		floatsAdd(trial, x, step)
		rTrial := eval(trial)

		if normSq(rTrial) < normSq(r) {
			x, r = trial, rTrial
			lambda = math.Max(lambda*0.3, 1e-12)
			if maxAbs(r) <= opts.Tolerance {
				converged = true
			}
			if vecNorm(step) < stallStep {
				stalled = true
				break
			}
		} else {
			lambda *= 10
			if lambda > 1e12 {
				stalled = true
				break
			}
		}
	}

	setX(x)
	out := &solver.Result{
		Params:     groupParams(free, values),
		Iterations: iters,
		Residual:   maxAbs(r),
	}

	J := jacobian(eval, x, len(res))
	rank := matRank(J)
	out.DOF = n - rank
	if out.DOF < 0 {
		out.DOF = 0
	}

	switch {
	case converged:
		out.Status = solver.StatusOK
		if c, redundant := findRedundant(res, J, rank); redundant {
			out.Status = solver.StatusRedundantOK
			out.Failing = []handle.Handle{c}
		}
	case stalled:
		out.Status = solver.StatusInconsistent
		out.Failing = blame(res, r, opts.Tolerance)
	default:
		out.Status = solver.StatusDidNotConverge
		out.Failing = blame(res, r, opts.Tolerance)
	}
	return out, nil
}

// evalResiduals computes every residual at x.
func evalResiduals(res []residual, setX func([]float64), get getter, x []float64) []float64 {
	setX(x)
	out := make([]float64, len(res))
	for i := range res {
		out[i] = res[i].fn(get)
	}
	return out
}

// jacobian computes the residual Jacobian by central differences.
func jacobian(eval func([]float64) []float64, x []float64, m int) *mat.Dense {
	n := len(x)
	J := mat.NewDense(m, n, nil)
	xw := make([]float64, n)
	copy(xw, x)
	for j := 0; j < n; j++ {
		h := 1e-7 * math.Max(1, math.Abs(x[j]))
		xw[j] = x[j] + h
		rp := eval(xw)
		xw[j] = x[j] - h
		rm := eval(xw)
		xw[j] = x[j]
		for i := 0; i < m; i++ {
			J.Set(i, j, (rp[i]-rm[i])/(2*h))
		}
	}
	// Restore the evaluation state to x.
	eval(xw)
	return J
}

// dampedStep solves (JᵀJ + λI) δ = -Jᵀr.
func dampedStep(J *mat.Dense, r []float64, lambda float64) ([]float64, bool) {
	m, n := J.Dims()
	var jtj mat.Dense
	jtj.Mul(J.T(), J)
	for i := 0; i < n; i++ {
		jtj.Set(i, i, jtj.At(i, i)+lambda)
	}
	rv := mat.NewVecDense(m, r)
	var jtr mat.VecDense
	jtr.MulVec(J.T(), rv)
	jtr.ScaleVec(-1, &jtr)

	var delta mat.VecDense
	if err := delta.SolveVec(&jtj, &jtr); err != nil {
		return nil, false
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = delta.AtVec(i)
	}
	return out, true
}

// matRank is the numerical rank of J via singular values.
func matRank(J *mat.Dense) int {
	m, n := J.Dims()
	if m == 0 || n == 0 {
		return 0
	}
	var svd mat.SVD
	if !svd.Factorize(J, mat.SVDNone) {
		return 0
	}
	sv := svd.Values(nil)
	if len(sv) == 0 {
		return 0
	}
	tol := float64(max(m, n)) * sv[0] * 1e-10
	rank := 0
	for _, s := range sv {
		if s > tol {
			rank++
		}
	}
	return rank
}

// findRedundant looks for a constraint whose removal leaves the Jacobian
// rank unchanged: its equations add nothing, so the system is
// over-specified even though it solved.
func findRedundant(res []residual, J *mat.Dense, fullRank int) (handle.Handle, bool) {
	m, n := J.Dims()
	byOwner := map[handle.Handle][]int{}
	var owners []handle.Handle
	for i, r := range res {
		if _, seen := byOwner[r.owner]; !seen {
			owners = append(owners, r.owner)
		}
		byOwner[r.owner] = append(byOwner[r.owner], i)
	}
	if len(owners) < 2 {
		return 0, false
	}
	for _, owner := range owners {
		drop := map[int]bool{}
		for _, i := range byOwner[owner] {
			drop[i] = true
		}
		sub := mat.NewDense(m-len(drop), n, nil)
		row := 0
		for i := 0; i < m; i++ {
			if drop[i] {
				continue
			}
			for j := 0; j < n; j++ {
				sub.Set(row, j, J.At(i, j))
			}
			row++
		}
		if matRank(sub) == fullRank {
			return owner, true
		}
	}
	return 0, false
}

// blame returns the constraints whose residuals are still out of
// tolerance, deduplicated, in residual order.
func blame(res []residual, r []float64, tol float64) []handle.Handle {
	seen := map[handle.Handle]bool{}
	var out []handle.Handle
	for i := range res {
		if math.Abs(r[i]) > tol && !seen[res[i].owner] {
			seen[res[i].owner] = true
			out = append(out, res[i].owner)
		}
	}
	return out
}

func groupParams(free []handle.Handle, values map[handle.Handle]float64) map[handle.Handle]float64 {
	out := make(map[handle.Handle]float64, len(free))
	for _, h := range free {
		out[h] = values[h]
	}
	return out
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

func normSq(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return s
}

func vecNorm(v []float64) float64 { return math.Sqrt(normSq(v)) }

func floatsAdd(dst, a, b []float64) {
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
}
