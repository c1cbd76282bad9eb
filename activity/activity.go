// Package activity implements the action/activity layer (component E):
// the refcounted unit of in-flight simulated work shared between a
// resource model (surf) and the scheduler (simix). Grounded on
// spec.md §4.E and, for the exact communication-side field layout, on
// original_source/src/simix/smx_network.c.
package activity

import "github.com/nmxmxh/simcore/lmm"

// State is one of an action's lifecycle states (spec.md §3).
type State int

const (
	Inited State = iota
	Running
	Done
	Failed
	SrcTimeout
	DstTimeout
	SrcHostFailure
	DstHostFailure
	LinkFailure
	Canceled
)

func (s State) String() string {
	switch s {
	case Inited:
		return "inited"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case SrcTimeout:
		return "src_timeout"
	case DstTimeout:
		return "dst_timeout"
	case SrcHostFailure:
		return "src_host_failure"
	case DstHostFailure:
		return "dst_host_failure"
	case LinkFailure:
		return "link_failure"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal reports whether an action in this state will never change
// state again.
func (s State) Terminal() bool {
	return s != Inited && s != Running
}

// Kind distinguishes the resource model that owns an action, which
// determines which of its optional fields are meaningful.
type Kind int

const (
	KindExecute Kind = iota
	KindCommunicate
)

// MatchFn is a rendezvous match predicate: given the data the local
// simcall was issued with and the data the peer's pending simcall was
// issued with, report whether they pair up. A nil MatchFn matches
// anything (spec.md §4.D).
type MatchFn func(localData, peerData interface{}) bool

// CleanFn runs exactly once, when a detached send's action finally
// terminates, so the sender can reclaim its source buffer (spec.md
// §4.E, open question (c)).
type CleanFn func(sourceBuffer interface{})

// CopyFn performs the data-copy side effect of a completed
// communication exactly once, guarded by Action.copied.
type CopyFn func(sourceBuffer, destBuffer interface{}, size float64)

// Waiter is notified synchronously by maestro when the action it is
// attached to reaches a terminal state. There is no channel/goroutine
// handshake here: per spec.md §5 all simulator state is touched only
// by maestro, so waking a waiter is just calling its Notify function
// in place during comm_finish.
type Waiter struct {
	Notify func(a *Action)
}

// Action is the in-flight unit of simulated work described in
// spec.md §3/§4.E.
type Action struct {
	Kind  Kind
	State State

	Cost        float64
	Remaining   float64
	StartTime   float64
	FinishTime  float64
	MaxDuration float64 // -1 == unbounded
	Priority    float64

	Variable *lmm.Variable

	waiters  []*Waiter
	refcount int32

	// Communication-specific fields (spec.md §3's "Action" paragraph).
	Src, Dst         interface{} // opaque actor references (simix.Actor)
	SrcBuffer        interface{}
	DstBuffer        interface{}
	Size             float64
	Rendezvous       interface{} // opaque *simix.Rendezvous
	SrcTimeoutAt     float64     // -1 == none
	DstTimeoutAt     float64
	Detached         bool
	copied           bool
	Match            MatchFn
	Tag              interface{}
	cleanFn          CleanFn
}

// New creates an action with refcount 1, owned by its creator (usually
// a resource model). Use NewDetached for fire-and-forget sends.
func New(kind Kind, cost float64) *Action {
	return &Action{
		Kind:        kind,
		State:       Inited,
		Cost:        cost,
		Remaining:   cost,
		MaxDuration: -1,
		refcount:    1,
	}
}

// NewDetached creates a communication action whose sender does not
// intend to wait on it. Like New, it starts at refcount 1; cleanFn is
// invoked on the source buffer by the Unref that drops the refcount to
// zero, so the sender-side buffer can be freed without the sender
// blocking.
func NewDetached(cost float64, cleanFn CleanFn) *Action {
	a := New(KindCommunicate, cost)
	a.Detached = true
	a.cleanFn = cleanFn
	return a
}

// Ref increments the refcount; call once per additional owner (e.g.
// each waiting actor) beyond the creator.
func (a *Action) Ref() { a.refcount++ }

// Unref decrements the refcount and reports whether it reached zero.
// The caller (maestro) is expected to unlink the action from every
// list it is reachable from when this returns true; Unref itself does
// not touch the model's running-set or any rendezvous FIFO, since
// Action doesn't know which lists it's in.
func (a *Action) Unref() bool {
	a.refcount--
	if a.refcount > 0 {
		return false
	}
	if a.Detached && a.cleanFn != nil && a.Kind == KindCommunicate {
		a.cleanFn(a.SrcBuffer)
	}
	return true
}

// RefCount reports the current refcount (for tests/debugging).
func (a *Action) RefCount() int32 { return a.refcount }

// AddWaiter registers a callback to run exactly once, the moment this
// action transitions to a terminal state. If the action is already
// terminal, Notify runs synchronously before AddWaiter returns.
func (a *Action) AddWaiter(w *Waiter) {
	if a.State.Terminal() {
		w.Notify(a)
		return
	}
	a.waiters = append(a.waiters, w)
}

// Finish transitions the action to a terminal state and wakes every
// registered waiter in registration order, then clears the waiter
// list. Calling Finish on an already-terminal action is a no-op.
func (a *Action) Finish(state State, now float64) {
	if a.State.Terminal() {
		return
	}
	if !state.Terminal() {
		panic("activity: Finish called with a non-terminal state")
	}
	a.State = state
	a.FinishTime = now
	waiters := a.waiters
	a.waiters = nil
	for _, w := range waiters {
		w.Notify(a)
	}
}

// MarkCopied reports whether this is the first call for this action
// (the data-copy callback must run exactly once, per spec.md §4.D);
// subsequent calls return false.
func (a *Action) MarkCopied() bool {
	if a.copied {
		return false
	}
	a.copied = true
	return true
}

// Copy invokes fn exactly once for this action's lifetime, the first
// time it is called, passing the action's own buffers and size.
func (a *Action) Copy(fn CopyFn) {
	if !a.MarkCopied() {
		return
	}
	if fn == nil {
		return
	}
	fn(a.SrcBuffer, a.DstBuffer, a.Size)
}
