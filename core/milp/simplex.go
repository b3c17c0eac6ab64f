package milp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// ErrInfeasible indicates the constraint set has no solution.
var ErrInfeasible = errors.New("milp infeasible")

// ErrUnbounded indicates the objective can decrease without limit.
var ErrUnbounded = errors.New("milp unbounded")

// ErrTimeout indicates the solve exceeded its time or node budget.
var ErrTimeout = errors.New("milp timeout")

const (
	boundEps = 1e-9
	feasEps  = 1e-6
)

func simplexSolve(c []float64, a mat.Matrix, b []float64, tol float64) (float64, []float64, error) {
	return lp.Simplex(c, a, b, tol, nil)
}

// lpSolve points to the function used to solve the LP relaxation. It can be
// overridden in tests to simulate solver failures.
var lpSolve = simplexSolve

// relaxation is the standard-form image min c'y s.t. Ay = b, y >= 0 of the
// problem under a specific set of bounds. Fixed variables (lb == ub) are
// substituted out, the rest are shifted by their lower bound, and upper
// bounds and inequality rows gain slack columns.
type relaxation struct {
	cvec []float64
	a    *mat.Dense
	b    []float64

	free     []int
	shift    []float64
	isFixed  []bool
	fixed    []float64
	constObj float64
}

type stdRow struct {
	cols  []int
	vals  []float64
	rhs   float64
	slack bool
}

// standardize converts the problem under the given bounds. It reports
// ErrInfeasible when crossed bounds or fully pinned rows already rule out a
// solution, and ErrUnbounded when an unconstrained variable can improve the
// objective forever.
func standardize(p *Problem, lb, ub []float64) (*relaxation, error) {
	n := len(lb)
	r := &relaxation{
		isFixed: make([]bool, n),
		fixed:   make([]float64, n),
	}

	for j := 0; j < n; j++ {
		if math.IsInf(lb[j], -1) {
			return nil, fmt.Errorf("variable %d has no lower bound", j)
		}
		if lb[j] > ub[j]+boundEps {
			return nil, fmt.Errorf("%w: variable %d has crossed bounds [%g, %g]", ErrInfeasible, j, lb[j], ub[j])
		}
		if ub[j]-lb[j] <= boundEps {
			r.isFixed[j] = true
			r.fixed[j] = lb[j]
		}
	}

	// Substitute fixed variables into the rows; rows left without any free
	// variable are feasibility-checked and dropped.
	type midRow struct {
		kind rowKind
		ids  []int
		cfs  []float64
		rhs  float64
	}
	mids := make([]midRow, 0, len(p.rows))
	appears := make([]bool, n)
	for _, rw := range p.rows {
		m := midRow{kind: rw.kind, rhs: rw.rhs}
		for j, cf := range rw.coeffs {
			if r.isFixed[j] {
				m.rhs -= cf * r.fixed[j]
				continue
			}
			m.ids = append(m.ids, j)
			m.cfs = append(m.cfs, cf)
			appears[j] = true
		}
		if len(m.ids) == 0 {
			if rw.kind == rowEQ && math.Abs(m.rhs) > feasEps {
				return nil, fmt.Errorf("%w: pinned variables violate an equality by %g", ErrInfeasible, math.Abs(m.rhs))
			}
			if rw.kind == rowLE && m.rhs < -feasEps {
				return nil, fmt.Errorf("%w: pinned variables violate an inequality by %g", ErrInfeasible, -m.rhs)
			}
			continue
		}
		mids = append(mids, m)
	}

	// A variable without an upper bound that appears in no row either makes
	// the problem unbounded or sits at its lower bound.
	for j := 0; j < n; j++ {
		if r.isFixed[j] || appears[j] || !math.IsInf(ub[j], 1) {
			continue
		}
		if p.obj[j] < -coefEps {
			return nil, fmt.Errorf("%w: variable %d is unconstrained with negative cost", ErrUnbounded, j)
		}
		r.isFixed[j] = true
		r.fixed[j] = lb[j]
	}

	col := make([]int, n)
	for j := 0; j < n; j++ {
		col[j] = -1
		if r.isFixed[j] {
			r.constObj += p.obj[j] * r.fixed[j]
			continue
		}
		col[j] = len(r.free)
		r.free = append(r.free, j)
		r.shift = append(r.shift, lb[j])
		r.constObj += p.obj[j] * lb[j]
	}

	rows := make([]stdRow, 0, len(mids)+len(r.free))
	nSlack := 0
	for _, m := range mids {
		sr := stdRow{rhs: m.rhs, slack: m.kind == rowLE}
		for t, j := range m.ids {
			k := col[j]
			sr.cols = append(sr.cols, k)
			sr.vals = append(sr.vals, m.cfs[t])
			sr.rhs -= m.cfs[t] * r.shift[k]
		}
		if sr.slack {
			nSlack++
		}
		rows = append(rows, sr)
	}
	for k, j := range r.free {
		if math.IsInf(ub[j], 1) {
			continue
		}
		rows = append(rows, stdRow{cols: []int{k}, vals: []float64{1}, rhs: ub[j] - r.shift[k], slack: true})
		nSlack++
	}

	nStd := len(r.free) + nSlack
	if len(rows) == 0 || nStd == 0 {
		return r, nil
	}

	r.a = mat.NewDense(len(rows), nStd, nil)
	r.b = make([]float64, len(rows))
	r.cvec = make([]float64, nStd)
	for k, j := range r.free {
		r.cvec[k] = p.obj[j]
	}
	slackCol := len(r.free)
	for i, sr := range rows {
		// Normalize to a non-negative right hand side.
		sign := 1.0
		if sr.rhs < 0 {
			sign = -1
		}
		for t, k := range sr.cols {
			r.a.Set(i, k, sign*sr.vals[t])
		}
		if sr.slack {
			r.a.Set(i, slackCol, sign)
			slackCol++
		}
		r.b[i] = sign * sr.rhs
	}
	return r, nil
}

// solveRelaxation solves the LP relaxation of the problem under the given
// bounds and maps the solution back to the original variable space.
func solveRelaxation(p *Problem, lb, ub []float64, tol float64) (float64, []float64, error) {
	r, err := standardize(p, lb, ub)
	if err != nil {
		return 0, nil, err
	}

	x := make([]float64, len(lb))
	if len(r.free) == 0 || r.a == nil {
		for j := range x {
			if r.isFixed[j] {
				x[j] = r.fixed[j]
			} else {
				x[j] = lb[j]
			}
		}
		return r.constObj, x, nil
	}

	opt, sol, err := lpSolve(r.cvec, r.a, r.b, tol)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return 0, nil, fmt.Errorf("%w: relaxation: %v", ErrInfeasible, err)
		case errors.Is(err, lp.ErrUnbounded):
			return 0, nil, fmt.Errorf("%w: relaxation: %v", ErrUnbounded, err)
		default:
			return 0, nil, fmt.Errorf("simplex: %w", err)
		}
	}

	for j := range x {
		if r.isFixed[j] {
			x[j] = r.fixed[j]
		}
	}
	for k, j := range r.free {
		x[j] = sol[k] + r.shift[k]
	}
	return opt + r.constObj, x, nil
}
