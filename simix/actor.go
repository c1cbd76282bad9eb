// Package simix implements the actor scheduler and synchronization layer
// (component D, spec.md §4.D): simcalls, mailboxes/rendezvous, mutex/cond/
// semaphore, and the maestro loop that drives everything else. Grounded
// on original_source/src/simix/smx_global.c (the maestro loop shape) and
// smx_synchro.c (mutex/cond/semaphore semantics).
package simix

import (
	"github.com/nmxmxh/simcore/activity"
	"github.com/nmxmxh/simcore/internal/arena"
	"github.com/nmxmxh/simcore/kcontext"
)

// ActorID is the opaque handle user-visible code holds, per spec.md §9's
// design note: resolved to an arena slot internally rather than exposing
// the *Actor pointer directly.
type ActorID arena.Index

// ActorState tracks where in the scheduling loop an actor currently sits.
type ActorState int

const (
	ActorReady ActorState = iota
	ActorRunning
	ActorBlocked
	ActorDead
)

// Body is the user code an actor runs, given its own handle. It returns
// nothing; the actor terminates and its exit hooks run when it returns.
type Body func(self *Actor)

// Actor is the scheduling-side record for one simulated process
// (spec.md §3's "Actor" paragraph).
type Actor struct {
	ID       ActorID
	Name     string
	Host     interface{} // *surf.Host; interface{} to avoid importing surf here
	ParentID ActorID

	ctx   *kcontext.Context
	State ActorState

	pending       *Simcall
	blockedAction *activity.Action // action this actor is waiting on, if any
	blockedWaiter *activity.Waiter
	wakeTimer     *timerEntry

	suspended    bool
	pendingReady bool
	started      bool
	userData     interface{}
	onExit       []func()

	joiners []*joinWait
}

type joinWait struct {
	waiter  *Actor
	sc      *Simcall
	timerID *timerEntry
}

// doSimcall records sc as this actor's pending request, suspends its
// context, and returns what maestro placed in sc.Result/sc.Err by the
// time it resumes — possibly many ticks later.
func (a *Actor) doSimcall(sc *Simcall) (interface{}, error) {
	a.pending = sc
	a.ctx.Suspend()
	return sc.Result, sc.Err
}

// UserData returns the opaque value attached at spawn time.
func (a *Actor) UserData() interface{} { return a.userData }

// OnExit registers a cleanup hook run, in registration order, once this
// actor terminates for any reason (spec.md §3's "on-exit hook list").
func (a *Actor) OnExit(fn func()) { a.onExit = append(a.onExit, fn) }

// Sleep blocks the calling actor for d virtual seconds.
func (a *Actor) Sleep(d float64) error {
	_, err := a.doSimcall(&Simcall{Kind: ScSleep, Duration: d})
	return err
}

// Execute posts a compute action of cost flops on this actor's host and
// returns its handle immediately (host_execute, spec.md §4.D); it does
// not itself block — call ExecutionWait to do that.
func (a *Actor) Execute(flops float64) (*activity.Action, error) {
	res, err := a.doSimcall(&Simcall{Kind: ScExecute, Flops: flops})
	if err != nil {
		return nil, err
	}
	return res.(*activity.Action), nil
}

// ExecutionWait blocks until act reaches a terminal state.
func (a *Actor) ExecutionWait(act *activity.Action) error {
	_, err := a.doSimcall(&Simcall{Kind: ScCommWait, Action: act, Timeout: -1})
	return err
}

// ExecutionCancel cancels a still-running execution.
func (a *Actor) ExecutionCancel(act *activity.Action) {
	if !act.State.Terminal() {
		act.Finish(activity.Canceled, 0)
	}
}

// Send posts a rendezvous send of size bytes carrying data, matched
// against pending receivers by match (nil matches anything), and
// returns the resulting action without blocking (comm_isend).
func (a *Actor) Send(rdv *Rendezvous, size float64, data interface{}, match activity.MatchFn) (*activity.Action, error) {
	res, err := a.doSimcall(&Simcall{Kind: ScCommISend, Rdv: rdv, Size: size, Tag: data, Match: match})
	if err != nil {
		return nil, err
	}
	return res.(*activity.Action), nil
}

// Recv posts a rendezvous receive, symmetric to Send (comm_irecv).
func (a *Actor) Recv(rdv *Rendezvous, data interface{}, match activity.MatchFn) (*activity.Action, error) {
	res, err := a.doSimcall(&Simcall{Kind: ScCommIRecv, Rdv: rdv, Tag: data, Match: match})
	if err != nil {
		return nil, err
	}
	return res.(*activity.Action), nil
}

// Wait blocks until act terminates or timeout (virtual seconds) elapses
// first; timeout < 0 means no timeout.
func (a *Actor) Wait(act *activity.Action, timeout float64) error {
	_, err := a.doSimcall(&Simcall{Kind: ScCommWait, Action: act, Timeout: timeout})
	return err
}

// WaitAny blocks until the first of actions terminates, returning its
// index.
func (a *Actor) WaitAny(actions []*activity.Action, timeout float64) (int, error) {
	res, err := a.doSimcall(&Simcall{Kind: ScCommWaitAny, Actions: actions, Timeout: timeout})
	if err != nil {
		return -1, err
	}
	return res.(int), nil
}

// Test reports whether act has already reached a terminal state without
// blocking (comm_test/host_execution_test).
func (a *Actor) Test(act *activity.Action) bool { return act.State.Terminal() }

// Kill marks target to die on its next scheduling opportunity.
func (a *Actor) Kill(target *Actor) {
	_, _ = a.doSimcall(&Simcall{Kind: ScKill, Target: target})
}

// Suspend/Resume mark an actor as not eligible/eligible to run.
func (a *Actor) Suspend(target *Actor) { _, _ = a.doSimcall(&Simcall{Kind: ScActorSuspend, Target: target}) }
func (a *Actor) ResumeActor(target *Actor) {
	_, _ = a.doSimcall(&Simcall{Kind: ScActorResume, Target: target})
}

// Join blocks until target terminates, or timeout elapses first.
func (a *Actor) Join(target *Actor, timeout float64) error {
	_, err := a.doSimcall(&Simcall{Kind: ScJoin, Target: target, Timeout: timeout})
	return err
}

// LockMutex blocks until this actor owns m.
func (a *Actor) LockMutex(m *Mutex) error {
	_, err := a.doSimcall(&Simcall{Kind: ScMutexLock, Mutex: m})
	return err
}

// TryLockMutex attempts to acquire m without blocking.
func (a *Actor) TryLockMutex(m *Mutex) bool {
	res, _ := a.doSimcall(&Simcall{Kind: ScMutexTrylock, Mutex: m})
	return res.(bool)
}

// UnlockMutex releases m, granting it to the next queued actor if any.
func (a *Actor) UnlockMutex(m *Mutex) {
	_, _ = a.doSimcall(&Simcall{Kind: ScMutexUnlock, Mutex: m})
}

// CondWait blocks on c until Signal/Broadcast wakes it, or timeout
// elapses first (timeout < 0 means no timeout). Unlike the classic
// monitor pattern, it does not itself release an associated mutex —
// callers that pair a cond with a mutex must unlock it before waiting
// and relock it after (documented simplification, see DESIGN.md).
func (a *Actor) CondWait(c *Cond, timeout float64) error {
	_, err := a.doSimcall(&Simcall{Kind: ScCondWait, Cond: c, Timeout: timeout})
	return err
}

// SignalOne wakes exactly one sleeper on c, if any.
func (a *Actor) SignalOne(c *Cond) { _, _ = a.doSimcall(&Simcall{Kind: ScCondSignal, Cond: c}) }

// Broadcast wakes every sleeper on c.
func (a *Actor) Broadcast(c *Cond) { _, _ = a.doSimcall(&Simcall{Kind: ScCondBroadcast, Cond: c}) }

// AcquireSem blocks until a permit on s is available, or timeout
// elapses first (timeout < 0 means no timeout).
func (a *Actor) AcquireSem(s *Semaphore, timeout float64) error {
	_, err := a.doSimcall(&Simcall{Kind: ScSemAcquire, Sem: s, Timeout: timeout})
	return err
}

// ReleaseSem returns a permit to s, waking its next waiter if any.
func (a *Actor) ReleaseSem(s *Semaphore) { _, _ = a.doSimcall(&Simcall{Kind: ScSemRelease, Sem: s}) }

// Random returns a deterministic pseudo-random float in [min, max),
// drawn from the scheduler's single seeded source (spec.md §5's
// determinism requirement: reruns must be bit-identical).
func (a *Actor) Random(min, max float64) float64 {
	res, _ := a.doSimcall(&Simcall{Kind: ScRandom, Min: min, Max: max})
	return res.(float64)
}

// exit runs this actor's on-exit hooks in registration order. Called by
// maestro once the body returns or the actor is killed.
func (a *Actor) exit() {
	for _, fn := range a.onExit {
		fn()
	}
}
