package lmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolve_SharedUsageRespectsBound(t *testing.T) {
	sys := NewSystem(false)
	link := sys.NewConstraint("link", 100)
	link.Policy = Shared

	a := sys.NewVariable("a", 1, -1, 1)
	b := sys.NewVariable("b", 1, -1, 1)
	c := sys.NewVariable("c", 1, -1, 1)

	sys.Expand(link, a, 1)
	sys.Expand(link, b, 1)
	sys.Expand(link, c, 1)

	sys.Solve()

	usage := sys.ConstraintUsage(link)
	assert.LessOrEqual(t, usage, link.Bound*(1+1e-4))
	assert.InDelta(t, link.Bound/3, a.Value(), 1e-3)
	assert.InDelta(t, link.Bound/3, b.Value(), 1e-3)
	assert.InDelta(t, link.Bound/3, c.Value(), 1e-3)
}

func TestSolve_FatPipeUsesMaxNotSum(t *testing.T) {
	sys := NewSystem(false)
	link := sys.NewConstraint("host-out", 50)
	link.Policy = FatPipe

	a := sys.NewVariable("a", 1, -1, 1)
	b := sys.NewVariable("b", 1, -1, 1)
	sys.Expand(link, a, 1)
	sys.Expand(link, b, 1)

	sys.Solve()

	assert.InDelta(t, 50, a.Value(), 1e-3)
	assert.InDelta(t, 50, b.Value(), 1e-3)
}

func TestSolve_VariableBoundRespected(t *testing.T) {
	sys := NewSystem(false)
	link := sys.NewConstraint("link", 100)

	capped := sys.NewVariable("capped", 1, 10, 1)
	free := sys.NewVariable("free", 1, -1, 1)
	sys.Expand(link, capped, 1)
	sys.Expand(link, free, 1)

	sys.Solve()

	assert.InDelta(t, 10, capped.Value(), 1e-3, "bounded flow never exceeds its own cap")
	assert.InDelta(t, 90, free.Value(), 1e-3, "unbounded flow absorbs the capped flow's unused share")
}

func TestSolve_DoublingBoundDoublesEveryValue(t *testing.T) {
	sys := NewSystem(false)
	link := sys.NewConstraint("link", 100)
	a := sys.NewVariable("a", 1, -1, 1)
	b := sys.NewVariable("b", 2, -1, 1)
	sys.Expand(link, a, 1)
	sys.Expand(link, b, 1)
	sys.Solve()
	aBefore, bBefore := a.Value(), b.Value()

	sys2 := NewSystem(false)
	link2 := sys2.NewConstraint("link", 200)
	a2 := sys2.NewVariable("a", 1, -1, 1)
	b2 := sys2.NewVariable("b", 2, -1, 1)
	sys2.Expand(link2, a2, 1)
	sys2.Expand(link2, b2, 1)
	sys2.Solve()

	assert.InDelta(t, aBefore*2, a2.Value(), 1e-3)
	assert.InDelta(t, bBefore*2, b2.Value(), 1e-3)
}

func TestSolve_ProgressiveFillingIsFairAcrossBottlenecks(t *testing.T) {
	// a crosses two links in series; b only crosses the second. The
	// second link is shared fairly once a's share on it is fixed by the
	// first (tighter) link, leaving b the remainder rather than an even
	// split of the second link's raw bound.
	sys := NewSystem(false)
	firstHop := sys.NewConstraint("first", 10)
	secondHop := sys.NewConstraint("second", 100)

	a := sys.NewVariable("a", 1, -1, 2)
	b := sys.NewVariable("b", 1, -1, 1)

	sys.Expand(firstHop, a, 1)
	sys.Expand(secondHop, a, 1)
	sys.Expand(secondHop, b, 1)

	sys.Solve()

	assert.InDelta(t, 10, a.Value(), 1e-3, "a is capped by the first hop")
	assert.InDelta(t, 90, b.Value(), 1e-3, "b gets whatever a didn't use on the second hop")
}

func TestSolve_DisabledVariableContributesNothing(t *testing.T) {
	sys := NewSystem(false)
	link := sys.NewConstraint("link", 100)
	a := sys.NewVariable("a", 0, -1, 1)
	b := sys.NewVariable("b", 1, -1, 1)
	sys.Expand(link, a, 1)
	sys.Expand(link, b, 1)

	sys.Solve()

	assert.Equal(t, 0.0, a.Value())
	assert.InDelta(t, 100, b.Value(), 1e-3)
}

func TestSelectiveUpdate_MatchesFullSolve(t *testing.T) {
	build := func(selective bool) (*System, *Variable, *Variable) {
		sys := NewSystem(selective)
		link := sys.NewConstraint("link", 100)
		a := sys.NewVariable("a", 1, -1, 1)
		b := sys.NewVariable("b", 1, -1, 1)
		sys.Expand(link, a, 1)
		sys.Expand(link, b, 1)
		return sys, a, b
	}

	full, aFull, bFull := build(false)
	full.Solve()

	sel, aSel, bSel := build(true)
	sel.Solve()
	sel.UpdateVariableBound(aSel, 40)
	sel.Solve()

	full.UpdateVariableBound(aFull, 40)
	full.Solve()

	require.InDelta(t, aFull.Value(), aSel.Value(), 1e-3)
	require.InDelta(t, bFull.Value(), bSel.Value(), 1e-3)
}

func TestConcurrencyLimit_StagesExcessVariables(t *testing.T) {
	sys := NewSystem(false)
	c := sys.NewConstraint("cpu-core", 1)
	c.ConcurrencyLimit = 2

	v1 := sys.NewVariable("v1", 1, -1, 1)
	v2 := sys.NewVariable("v2", 1, -1, 1)
	v3 := sys.NewVariable("v3", 1, -1, 1)

	sys.Expand(c, v1, 1)
	sys.Expand(c, v2, 1)
	sys.Expand(c, v3, 1)

	assert.False(t, v1.Staged())
	assert.False(t, v2.Staged())
	assert.True(t, v3.Staged(), "third variable exceeds the concurrency limit of 2 and is parked")

	sys.disableVar(v1)
	sys.onDisabledVar(c)
	assert.False(t, v3.Staged(), "a freed concurrency slot promotes the staged variable")
	assert.Greater(t, v3.Weight(), 0.0)
}

func TestConstraintUsage_RecomputesFromElements(t *testing.T) {
	sys := NewSystem(false)
	link := sys.NewConstraint("link", 100)
	a := sys.NewVariable("a", 1, -1, 1)
	sys.Expand(link, a, 1)
	sys.Solve()

	assert.InDelta(t, a.Value(), sys.ConstraintUsage(link), 1e-3)
}
