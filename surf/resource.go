// Package surf implements the CPU and network resource models
// (component B, spec.md §4.B): thin wrappers that translate simulated
// work into lmm variables/constraints and drive their progress over a
// time step. Grounded on original_source/src/surf/workstation_KCCFLN05.c
// (CPU model) and original_source/src/surf/network.c (network model,
// latency/bandwidth-factor and TCP-window bound logic).
package surf

import (
	"math"

	"github.com/nmxmxh/simcore/activity"
)

// Epsilon is the relative tolerance used for "is this action/constraint
// effectively done" comparisons, matching lmm.DefaultPrecision.
const Epsilon = 1e-5

// posInf is the "nothing pending" return value for ShareResources,
// matching the maestro loop's Δt := min(...) over every model.
var posInf = math.Inf(1)

// Model is the contract every resource model exposes to the scheduler
// (spec.md §4.B).
type Model interface {
	// ShareResources asks the LMM system to solve and returns the
	// smallest positive virtual-time delta until some action's state
	// would change, or +Inf if nothing is running.
	ShareResources(now float64) float64
	// UpdateActionsState advances every running action by delta and
	// finalizes any that complete.
	UpdateActionsState(now, delta float64)
}

// EventKind distinguishes the two external state-trace events a
// resource model reacts to (spec.md §6's "Traces").
type EventKind int

const (
	HostStateEvent EventKind = iota
	LinkStateEvent
)

// StateEvent is an external state-trace event applied via
// UpdateResourceState (spec.md §4.B).
type StateEvent struct {
	Kind   EventKind
	Target interface{} // *Host or *Link
	On     bool
}

// finishRunning transitions every action in running to state,
// removing it from running, used when a host or link goes off
// (spec.md §4.B "Failures").
func finishRunning(running map[*activity.Action]bool, pick func(*activity.Action) activity.State, now float64) {
	for a := range running {
		a.Finish(pick(a), now)
		delete(running, a)
	}
}
