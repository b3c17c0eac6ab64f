// Package milp solves small mixed-integer linear programs by branch and
// bound over gonum's simplex implementation. Problems are stated in natural
// form (bounded variables, equality and inequality rows); conversion to the
// standard form the simplex expects happens internally.
package milp

import (
	"fmt"
	"math"
)

// coefEps discards coefficients that are numerically zero so they never
// produce all-zero rows or columns in the standardized matrix.
const coefEps = 1e-15

type rowKind int

const (
	rowLE rowKind = iota
	rowEQ
)

type row struct {
	kind   rowKind
	coeffs map[int]float64
	rhs    float64
}

// Problem is a mixed-integer linear program under construction. The zero
// value is not usable; create instances with NewProblem.
type Problem struct {
	lb, ub []float64
	obj    []float64
	binary []bool
	nBin   int
	rows   []row
}

// NewProblem returns an empty problem.
func NewProblem() *Problem {
	return &Problem{}
}

// AddVar adds a continuous variable with the given bounds and objective
// coefficient and returns its index. Bounds may be infinite upward; the
// lower bound must be finite.
func (p *Problem) AddVar(lb, ub, obj float64) int {
	p.lb = append(p.lb, lb)
	p.ub = append(p.ub, ub)
	p.obj = append(p.obj, obj)
	p.binary = append(p.binary, false)
	return len(p.lb) - 1
}

// AddBinary adds a {0,1} variable with the given objective coefficient and
// returns its index.
func (p *Problem) AddBinary(obj float64) int {
	i := p.AddVar(0, 1, obj)
	p.binary[i] = true
	p.nBin++
	return i
}

// NumVars returns the number of variables added so far.
func (p *Problem) NumVars() int { return len(p.lb) }

// NumBinaries returns the number of binary variables.
func (p *Problem) NumBinaries() int { return p.nBin }

// NumRows returns the number of constraint rows.
func (p *Problem) NumRows() int { return len(p.rows) }

// SetBounds tightens or replaces the bounds of a variable. Builders use it
// to pin variables, for example forcing a charging power to zero outside
// the availability window.
func (p *Problem) SetBounds(i int, lb, ub float64) {
	p.lb[i] = lb
	p.ub[i] = ub
}

// Bounds returns the current bounds of a variable.
func (p *Problem) Bounds(i int) (lb, ub float64) {
	return p.lb[i], p.ub[i]
}

// AddObj adds delta to the objective coefficient of a variable.
func (p *Problem) AddObj(i int, delta float64) {
	p.obj[i] += delta
}

// AddLE adds the constraint sum(coeffs[i]*x[i]) <= rhs. The map is copied.
func (p *Problem) AddLE(coeffs map[int]float64, rhs float64) {
	p.addRow(rowLE, coeffs, rhs, 1)
}

// AddGE adds the constraint sum(coeffs[i]*x[i]) >= rhs.
func (p *Problem) AddGE(coeffs map[int]float64, rhs float64) {
	p.addRow(rowLE, coeffs, rhs, -1)
}

// AddEQ adds the constraint sum(coeffs[i]*x[i]) = rhs. The map is copied.
func (p *Problem) AddEQ(coeffs map[int]float64, rhs float64) {
	p.addRow(rowEQ, coeffs, rhs, 1)
}

func (p *Problem) addRow(kind rowKind, coeffs map[int]float64, rhs, sign float64) {
	cp := make(map[int]float64, len(coeffs))
	for i, c := range coeffs {
		if i < 0 || i >= len(p.lb) {
			panic(fmt.Sprintf("milp: constraint references unknown variable %d", i))
		}
		if math.Abs(c) < coefEps {
			continue
		}
		cp[i] = sign * c
	}
	p.rows = append(p.rows, row{kind: kind, coeffs: cp, rhs: sign * rhs})
}
