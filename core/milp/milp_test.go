package milp

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func solveOrFail(t *testing.T, p *Problem) Solution {
	t.Helper()
	sol, err := p.Solve(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	return sol
}

func TestSolvePureLP(t *testing.T) {
	p := NewProblem()
	x := p.AddVar(0, 6, 1)
	y := p.AddVar(0, 10, 2)
	p.AddEQ(map[int]float64{x: 1, y: 1}, 10)

	sol := solveOrFail(t, p)
	if math.Abs(sol.Objective-14) > 1e-5 {
		t.Errorf("objective = %g, want 14", sol.Objective)
	}
	if math.Abs(sol.X[x]-6) > 1e-5 || math.Abs(sol.X[y]-4) > 1e-5 {
		t.Errorf("solution = (%g, %g), want (6, 4)", sol.X[x], sol.X[y])
	}
	if sol.Nodes != 1 {
		t.Errorf("nodes = %d, want 1 for a pure LP", sol.Nodes)
	}
}

func TestSolveShiftedLowerBound(t *testing.T) {
	p := NewProblem()
	x := p.AddVar(2, 5, 1)

	sol := solveOrFail(t, p)
	if math.Abs(sol.X[x]-2) > 1e-5 {
		t.Errorf("x = %g, want lower bound 2", sol.X[x])
	}

	p.AddGE(map[int]float64{x: 1}, 3)
	sol = solveOrFail(t, p)
	if math.Abs(sol.X[x]-3) > 1e-5 {
		t.Errorf("x = %g, want 3 after tightening", sol.X[x])
	}
}

func TestSolveNegativeRHS(t *testing.T) {
	p := NewProblem()
	x := p.AddVar(0, 10, 1)
	y := p.AddVar(0, 10, 0)
	p.AddEQ(map[int]float64{x: 1, y: -1}, -3)

	sol := solveOrFail(t, p)
	if math.Abs(sol.X[x]) > 1e-5 || math.Abs(sol.X[y]-3) > 1e-5 {
		t.Errorf("solution = (%g, %g), want (0, 3)", sol.X[x], sol.X[y])
	}
}

func TestSolveFixedVariableSubstitution(t *testing.T) {
	p := NewProblem()
	x := p.AddVar(4, 4, 1)
	y := p.AddVar(0, 100, 1)
	p.AddEQ(map[int]float64{x: 1, y: 1}, 10)

	sol := solveOrFail(t, p)
	if math.Abs(sol.X[x]-4) > 1e-9 {
		t.Errorf("fixed x = %g, want exactly 4", sol.X[x])
	}
	if math.Abs(sol.X[y]-6) > 1e-5 {
		t.Errorf("y = %g, want 6", sol.X[y])
	}
	if math.Abs(sol.Objective-10) > 1e-5 {
		t.Errorf("objective = %g, want 10", sol.Objective)
	}
}

func TestSolveAllFixedSkipsSimplex(t *testing.T) {
	orig := lpSolve
	lpSolve = func([]float64, mat.Matrix, []float64, float64) (float64, []float64, error) {
		return 0, nil, errors.New("simplex must not run")
	}
	defer func() { lpSolve = orig }()

	p := NewProblem()
	x := p.AddVar(3, 3, 2)
	y := p.AddVar(7, 7, 1)
	p.AddEQ(map[int]float64{x: 1, y: 1}, 10)

	sol := solveOrFail(t, p)
	if math.Abs(sol.Objective-13) > 1e-9 {
		t.Errorf("objective = %g, want 13", sol.Objective)
	}
}

func TestSolveCrossedBoundsInfeasible(t *testing.T) {
	p := NewProblem()
	p.AddVar(5, 2, 1)

	_, err := p.Solve(context.Background(), Options{})
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("err = %v, want ErrInfeasible", err)
	}
}

func TestSolveContradictoryRowsInfeasible(t *testing.T) {
	p := NewProblem()
	x := p.AddVar(0, 1, 1)
	p.AddGE(map[int]float64{x: 1}, 3)

	_, err := p.Solve(context.Background(), Options{})
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("err = %v, want ErrInfeasible", err)
	}
}

func TestSolvePinnedRowViolationInfeasible(t *testing.T) {
	p := NewProblem()
	x := p.AddVar(2, 2, 0)
	y := p.AddVar(3, 3, 0)
	p.AddEQ(map[int]float64{x: 1, y: 1}, 9)

	_, err := p.Solve(context.Background(), Options{})
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("err = %v, want ErrInfeasible", err)
	}
}

func TestSolveUnbounded(t *testing.T) {
	p := NewProblem()
	p.AddVar(0, math.Inf(1), -1)

	_, err := p.Solve(context.Background(), Options{})
	if !errors.Is(err, ErrUnbounded) {
		t.Fatalf("err = %v, want ErrUnbounded", err)
	}
}

// A load that must draw either nothing or at least a minimum power has to
// jump to the minimum, not stop at the relaxed demand.
func TestSolveMinimumPowerDisjunction(t *testing.T) {
	p := NewProblem()
	pw := p.AddVar(0, 4.6, 1)
	act := p.AddBinary(0)
	p.AddLE(map[int]float64{pw: 1, act: -4.6}, 0)
	p.AddGE(map[int]float64{pw: 1, act: -1.38}, 0)
	p.AddGE(map[int]float64{pw: 1}, 1)

	sol := solveOrFail(t, p)
	if math.Abs(sol.X[pw]-1.38) > 1e-5 {
		t.Errorf("power = %g, want 1.38 (jump to minimum)", sol.X[pw])
	}
	if sol.X[act] != 1 {
		t.Errorf("activity = %g, want exactly 1", sol.X[act])
	}
	if sol.Nodes < 2 {
		t.Errorf("nodes = %d, want at least 2 (relaxation is fractional)", sol.Nodes)
	}
}

func TestSolveBinaryKnapsack(t *testing.T) {
	p := NewProblem()
	// Maximize 3a + 4b + 2c subject to 2a + 3b + c <= 4.
	a := p.AddBinary(-3)
	b := p.AddBinary(-4)
	c := p.AddBinary(-2)
	p.AddLE(map[int]float64{a: 2, b: 3, c: 1}, 4)

	sol := solveOrFail(t, p)
	if math.Abs(sol.Objective-(-6)) > 1e-5 {
		t.Errorf("objective = %g, want -6", sol.Objective)
	}
	want := []float64{0, 1, 1}
	for i, v := range []int{a, b, c} {
		if sol.X[v] != want[i] {
			t.Errorf("var %d = %g, want %g", i, sol.X[v], want[i])
		}
	}
}

func TestSolveNodeBudget(t *testing.T) {
	p := NewProblem()
	pw := p.AddVar(0, 4.6, 1)
	act := p.AddBinary(0)
	p.AddLE(map[int]float64{pw: 1, act: -4.6}, 0)
	p.AddGE(map[int]float64{pw: 1, act: -1.38}, 0)
	p.AddGE(map[int]float64{pw: 1}, 1)

	sol, err := p.Solve(context.Background(), Options{MaxNodes: 1})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if sol.X != nil {
		t.Errorf("no incumbent can exist after one fractional node, got %v", sol.X)
	}
	if sol.Nodes != 1 {
		t.Errorf("nodes = %d, want 1", sol.Nodes)
	}
}

func TestSolveContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProblem()
	p.AddVar(0, 1, 1)

	_, err := p.Solve(ctx, Options{})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestSolveBackendFailure(t *testing.T) {
	orig := lpSolve
	lpSolve = func([]float64, mat.Matrix, []float64, float64) (float64, []float64, error) {
		return 0, nil, errors.New("backend exploded")
	}
	defer func() { lpSolve = orig }()

	p := NewProblem()
	x := p.AddVar(0, 5, 1)
	p.AddGE(map[int]float64{x: 1}, 1)

	_, err := p.Solve(context.Background(), Options{})
	if err == nil || errors.Is(err, ErrInfeasible) || errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want plain backend error", err)
	}
}

func TestSolveRepeatable(t *testing.T) {
	p := NewProblem()
	x := p.AddVar(0, 6, 1)
	y := p.AddVar(0, 10, 2)
	p.AddEQ(map[int]float64{x: 1, y: 1}, 10)

	first := solveOrFail(t, p)
	second := solveOrFail(t, p)
	if first.Objective != second.Objective {
		t.Errorf("objective changed across solves: %g then %g", first.Objective, second.Objective)
	}
}
