// Package lmm implements the sparse max-min fairness linear system
// solver (spec.md §4.A, component A). It is the literal descendant of
// original_source/src/surf/maxmin.c and maxmin.cpp: the progressive-
// filling algorithm, the concurrency-limit staging mechanism, and the
// selective-update (modified-set) recursion are all ported from there,
// generalized from C's intrusive swags to Go values plus an
// internal/arena-backed element pool (see spec.md §9's design note).
package lmm

import "github.com/nmxmxh/simcore/internal/arena"

// Policy selects how a constraint's consumption is combined across its
// elements: SHARED sums contributions (e.g. a shared link's bandwidth),
// FatPipe takes the max (e.g. independent per-flow capacity).
type Policy int

const (
	Shared Policy = iota
	FatPipe
)

func (p Policy) String() string {
	if p == FatPipe {
		return "fatpipe"
	}
	return "shared"
}

// unboundedConcurrency is returned by concurrencySlack for constraints
// with no concurrency limit (ConcurrencyLimit < 0), named "666" in the
// original source's own FIXME; here it is just "plenty of slack".
const unboundedConcurrency = 1 << 30

// Constraint is a shared resource's instantaneous capacity equation.
// Use System.NewConstraint to create one.
type Constraint struct {
	ID     interface{}
	Bound  float64
	Policy Policy

	// ConcurrencyLimit caps how many enabled elements may simultaneously
	// contribute. -1 means unlimited.
	ConcurrencyLimit    int
	concurrencyCurrent  int
	concurrencyMaximum  int

	enabled  []arena.Index // elements with variable.sharingWeight > 0
	disabled []arena.Index // elements staged/disabled, FIFO promotion order

	// solve-transient state, valid only during System.Solve
	remaining float64
	usage     float64
	lightIdx  int // index into the solve's light table, -1 if absent
}

// Variable is one unknown of the linear system. Use System.NewVariable
// to create one.
type Variable struct {
	ID interface{}

	sharingWeight float64 // 0 == disabled
	stagedWeight  float64 // remembered weight while concurrency-staged

	Bound float64 // -1 == unbounded
	value float64

	// ConcurrencyShare is how many concurrency slots this variable
	// occupies in any concurrency-limited constraint it touches.
	// Defaults to 1.
	ConcurrencyShare int

	elements []arena.Index // all elements owned by this variable, insertion order
	visited  uint64        // selective-update recursion guard
	maxElements int

	// growing is solve-transient state, valid only during System.Solve: it
	// is true while the variable is still eligible to receive further
	// progressive-filling increments, and false once some constraint or
	// bound has fixed its final value for this solve.
	growing bool
}

// Value returns the solver's output x_v for this variable.
func (v *Variable) Value() float64 { return v.value }

// Weight returns the variable's current effective weight (0 if disabled
// or staged).
func (v *Variable) Weight() float64 { return v.sharingWeight }

// Staged reports whether the variable is currently parked in the
// concurrency-limit staging area (weight remembered, not contributing).
func (v *Variable) Staged() bool { return v.stagedWeight > 0 }

type element struct {
	cnst  *Constraint
	vari  *Variable
	coeff float64 // a_{c,v}
}

// elementConcurrency is the "0 if consumption < 1, else 1" rule from
// invariant (4) in spec.md §3.
func elementConcurrency(e *element) int {
	if e.coeff < 1 {
		return 0
	}
	return 1
}
