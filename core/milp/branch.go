package milp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	defaultTol      = 1e-7
	defaultIntTol   = 1e-6
	defaultMaxNodes = 10000
	pruneEps        = 1e-9
)

// Options bound one Solve call. Zero values select the defaults.
type Options struct {
	// TimeLimit caps wall-clock time across all nodes. Zero means no limit
	// beyond the context.
	TimeLimit time.Duration
	// MaxNodes caps the number of explored branch and bound nodes.
	MaxNodes int
	// Tol is the simplex pivot tolerance.
	Tol float64
	// IntTol is the distance from an integer above which a binary variable
	// counts as fractional.
	IntTol float64
}

// Solution is the outcome of a Solve call. On ErrTimeout, X carries the best
// incumbent found so far and is nil when there is none.
type Solution struct {
	X         []float64
	Objective float64
	Nodes     int
}

type node struct {
	lb, ub []float64
}

// Solve minimizes the objective by branch and bound, depth first with
// most-fractional branching and incumbent pruning. The problem itself is not
// mutated, so a Problem can be solved repeatedly.
func (p *Problem) Solve(ctx context.Context, opts Options) (Solution, error) {
	tol := opts.Tol
	if tol == 0 {
		tol = defaultTol
	}
	intTol := opts.IntTol
	if intTol == 0 {
		intTol = defaultIntTol
	}
	maxNodes := opts.MaxNodes
	if maxNodes <= 0 {
		maxNodes = defaultMaxNodes
	}
	var deadline time.Time
	if opts.TimeLimit > 0 {
		deadline = time.Now().Add(opts.TimeLimit)
	}

	stack := []node{{lb: cloneFloats(p.lb), ub: cloneFloats(p.ub)}}
	var best []float64
	bestObj := math.Inf(1)
	nodes := 0

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return timeoutSolution(best, bestObj, nodes, fmt.Errorf("%w: %v", ErrTimeout, err))
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return timeoutSolution(best, bestObj, nodes, fmt.Errorf("%w: time limit %s exhausted", ErrTimeout, opts.TimeLimit))
		}
		if nodes >= maxNodes {
			return timeoutSolution(best, bestObj, nodes, fmt.Errorf("%w: node budget %d exhausted", ErrTimeout, maxNodes))
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		obj, x, err := solveRelaxation(p, nd.lb, nd.ub, tol)
		if errors.Is(err, ErrInfeasible) {
			continue
		}
		if err != nil {
			// Unbounded relaxations and backend failures abort the whole
			// search; a restriction of a bounded problem cannot become
			// unbounded, so these never hide a valid optimum.
			return Solution{Nodes: nodes}, err
		}
		if obj >= bestObj-pruneEps {
			continue
		}

		jf := mostFractional(p, x, intTol)
		if jf < 0 {
			snapBinaries(p, x)
			best = x
			bestObj = obj
			continue
		}

		down := node{lb: cloneFloats(nd.lb), ub: cloneFloats(nd.ub)}
		down.ub[jf] = 0
		up := node{lb: cloneFloats(nd.lb), ub: cloneFloats(nd.ub)}
		up.lb[jf] = 1
		// Explore the side the relaxation leans toward first.
		if x[jf] >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if best == nil {
		return Solution{Nodes: nodes}, fmt.Errorf("%w: no integer assignment satisfies all constraints", ErrInfeasible)
	}
	return Solution{X: best, Objective: bestObj, Nodes: nodes}, nil
}

func timeoutSolution(best []float64, bestObj float64, nodes int, err error) (Solution, error) {
	if best == nil {
		return Solution{Nodes: nodes}, err
	}
	return Solution{X: best, Objective: bestObj, Nodes: nodes}, err
}

// mostFractional returns the binary variable farthest from an integer value,
// or -1 when all binaries are integral within tol.
func mostFractional(p *Problem, x []float64, tol float64) int {
	bestJ := -1
	bestDist := tol
	for j, isBin := range p.binary {
		if !isBin {
			continue
		}
		f := x[j] - math.Floor(x[j])
		d := math.Min(f, 1-f)
		if d > bestDist {
			bestDist = d
			bestJ = j
		}
	}
	return bestJ
}

func snapBinaries(p *Problem, x []float64) {
	for j, isBin := range p.binary {
		if isBin {
			x[j] = math.Round(x[j])
		}
	}
}

func cloneFloats(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
