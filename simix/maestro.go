package simix

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/nmxmxh/simcore/activity"
	"github.com/nmxmxh/simcore/internal/arena"
	"github.com/nmxmxh/simcore/internal/klog"
	"github.com/nmxmxh/simcore/kcontext"
	"github.com/nmxmxh/simcore/simerr"
	"github.com/nmxmxh/simcore/surf"
)

// posInf mirrors surf's "nothing pending" sentinel for Δt computation.
var posInf = math.Inf(1)

// DeadlockError reports every actor blocked with no pending activity
// (spec.md §7's non-recoverable `deadlock` kind).
type DeadlockError struct {
	Blocked []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("simix: deadlock, %d actor(s) blocked: %v", len(e.Blocked), e.Blocked)
}

// Maestro is the single control thread of spec.md §4.D: it owns the
// actor roster, the ready/ran queues, the timer heap, and drives every
// resource model. There is exactly one of these per simulation
// (spec.md §9's "encapsulate in a single Simulator value" — Maestro is
// that value's scheduling half).
type Maestro struct {
	actors *arena.Arena[*Actor]
	roster []*Actor

	ready []ActorID
	ran   []ActorID

	clock  float64
	timers *timerQueue
	models []surf.Model
	rng    *rand.Rand
	log    *klog.Logger

	// ExecuteHook creates (or this tick, starts) a compute action for a
	// on its host; injected by the owning simulator, which alone knows
	// how actor.Host resolves to a *surf.Host.
	ExecuteHook func(a *Actor, flops, now float64) *activity.Action

	// StartComm promotes a provisional communication action (created by
	// postComm when no rendezvous match was found) into a running one,
	// once both ends are known; injected by the owning simulator, which
	// alone knows how to route between two hosts.
	StartComm func(act *activity.Action, srcHost, dstHost interface{}, now float64)
}

// NewMaestro creates a scheduler over models, seeded for deterministic
// reruns (spec.md §8's "rerunning yields bit-identical trajectories").
func NewMaestro(models []surf.Model, seed int64, log *klog.Logger) *Maestro {
	return &Maestro{
		actors: arena.New[*Actor](16),
		timers: newTimerQueue(),
		models: models,
		rng:    rand.New(rand.NewSource(seed)),
		log:    log,
	}
}

// Clock returns the current virtual time.
func (m *Maestro) Clock() float64 { return m.clock }

// SpawnActor creates a new actor bound to host, running body, and
// enqueues it onto the ready queue for the next tick.
func (m *Maestro) SpawnActor(name string, host interface{}, body Body, userData interface{}) *Actor {
	idx := m.actors.Alloc()
	a := &Actor{Name: name, Host: host, userData: userData, State: ActorReady}
	*m.actors.Get(idx) = a
	a.ID = ActorID(idx)

	entry := func(_ *kcontext.Context, _ []interface{}) { body(a) }
	a.ctx = kcontext.Create(entry, nil, a.exit, a)

	m.roster = append(m.roster, a)
	m.ready = append(m.ready, a.ID)
	return a
}

// ActorByID resolves a handle back to its actor record.
func (m *Maestro) ActorByID(id ActorID) *Actor { return *m.actors.Get(arena.Index(id)) }

// readyAgain puts a back onto the ready queue for the next tick, unless
// it has already terminated. A suspended actor (spec.md §4.D's
// process_suspend) is not enqueued; instead the "wants to run" fact is
// latched in pendingReady, and ScActorResume flushes it.
func (m *Maestro) readyAgain(a *Actor) {
	if a.State == ActorDead {
		return
	}
	if a.suspended {
		a.pendingReady = true
		return
	}
	a.State = ActorReady
	m.ready = append(m.ready, a.ID)
}

// Run drives the maestro loop of spec.md §4.D to completion: it returns
// nil once every actor has terminated, or a *DeadlockError if every
// actor is blocked with nothing pending.
func (m *Maestro) Run() error {
	for {
		for len(m.ready) > 0 {
			m.ran, m.ready = m.ready, m.ran[:0]
			for _, id := range m.ran {
				a := m.ActorByID(id)
				if a.State == ActorDead {
					continue
				}
				if err := m.runOne(a); err != nil {
					return err
				}
			}
		}

		if m.allDead() {
			return nil
		}

		delta, blocked := m.nextEventDelta()
		if math.IsInf(delta, 1) {
			return &DeadlockError{Blocked: blocked}
		}

		// Resource models take (now, delta) with now pre-advance — a
		// finishing action is timestamped now+delta inside the model
		// itself (see surf's UpdateActionsState) — so the model step
		// must run before the clock itself moves forward.
		for _, model := range m.models {
			model.UpdateActionsState(m.clock, delta)
		}
		m.clock += delta
		m.timers.popDue(m.clock)
	}
}

// runOne resumes a's context for one scheduling slice: the actor body
// runs until it suspends (at a simcall) or returns.
func (m *Maestro) runOne(a *Actor) error {
	a.State = ActorRunning
	if !a.started {
		a.started = true
		a.ctx.Start()
	} else {
		a.ctx.Resume()
	}

	if p := a.ctx.Panic(); p != nil {
		return fmt.Errorf("simix: actor %q panicked: %v", a.Name, p)
	}
	if a.ctx.Dead() {
		m.finishActor(a)
		return nil
	}

	sc := a.pending
	a.pending = nil
	m.handleSimcall(a, sc)
	return nil
}

func (m *Maestro) allDead() bool {
	for _, a := range m.roster {
		if a.State != ActorDead {
			return false
		}
	}
	return true
}

// nextEventDelta computes Δt := min over all timers, over all resource
// models (ShareResources), per spec.md §4.D's maestro pseudocode. It
// also collects the names of currently blocked actors, for deadlock
// reporting.
func (m *Maestro) nextEventDelta() (float64, []string) {
	// timers.nextAt reports an absolute fire time; every model's
	// ShareResources reports a relative duration, so the timer side
	// needs converting to the same units before the min() below.
	best := posInf
	if at := m.timers.nextAt(posInf); at < posInf {
		best = at - m.clock
	}
	for _, model := range m.models {
		if t := model.ShareResources(m.clock); t < best {
			best = t
		}
	}
	var blocked []string
	for _, a := range m.roster {
		if a.State == ActorBlocked {
			blocked = append(blocked, a.Name)
		}
	}
	return best, blocked
}

// finishActor runs once an actor's context has died (body returned, or
// it was killed before/while suspended): it marks the actor dead and
// wakes anything joined on it. on-exit hooks already ran as the
// kcontext cleanup callback (a.exit, registered at spawn time).
func (m *Maestro) finishActor(a *Actor) {
	a.State = ActorDead
	if a.wakeTimer != nil {
		m.timers.cancel(a.wakeTimer)
	}
	for _, j := range a.joiners {
		m.timers.cancel(j.timerID)
		j.sc.Err = nil
		m.readyAgain(j.waiter)
	}
	a.joiners = nil
	if m.log != nil {
		m.log.Debug("actor finished", klog.String("name", a.Name), klog.Float64("at", m.clock))
	}
}

func stateToError(s activity.State) error {
	switch s {
	case activity.Done:
		return nil
	case activity.SrcTimeout, activity.DstTimeout:
		return simerr.Timeout("activity timed out")
	case activity.SrcHostFailure:
		return simerr.Host("source host failed")
	case activity.DstHostFailure:
		return simerr.Host("destination host failed")
	case activity.LinkFailure:
		return simerr.Network("link failed mid-communication")
	case activity.Canceled:
		return simerr.Cancel("activity canceled")
	default:
		return simerr.InvariantErr(fmt.Sprintf("unexpected terminal state %v", s))
	}
}
