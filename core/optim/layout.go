package optim

// Layout records which problem variable holds which domain quantity, so the
// extractor can read a solution back without re-deriving the build order.
// Index -1 marks a variable that was not created (inactive binary, load
// outside its window).
type Layout struct {
	Steps int

	GridImport []int
	GridExport []int
	GridExcl   []int

	BattCharge    []int
	BattDischarge []int
	BattSoC       []int

	Deferrable [][]int

	EVPower  [][]int
	EVSoC    [][]int
	EVActive [][]int
}

func newLayout(steps, nDefer, nEV int) *Layout {
	l := &Layout{
		Steps:      steps,
		GridImport: filled(steps),
		GridExport: filled(steps),
		Deferrable: make([][]int, nDefer),
		EVPower:    make([][]int, nEV),
		EVSoC:      make([][]int, nEV),
		EVActive:   make([][]int, nEV),
	}
	for j := range l.Deferrable {
		l.Deferrable[j] = filled(steps)
	}
	for i := range l.EVPower {
		l.EVPower[i] = filled(steps)
		l.EVSoC[i] = filled(steps + 1)
		l.EVActive[i] = filled(steps)
	}
	return l
}

// HasBattery reports whether stationary battery variables exist.
func (l *Layout) HasBattery() bool { return l.BattSoC != nil }

func filled(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = -1
	}
	return s
}
