package simix

import (
	"github.com/nmxmxh/simcore/activity"
	"github.com/nmxmxh/simcore/simerr"
)

// handleSimcall dispatches a suspended actor's pending request. Per
// spec.md §5, this is the only place simulator state is mutated; it
// always runs inside maestro, never concurrently with actor code.
func (m *Maestro) handleSimcall(a *Actor, sc *Simcall) {
	switch sc.Kind {
	case ScSleep:
		m.handleSleep(a, sc)
	case ScExecute:
		sc.Result = m.ExecuteHook(a, sc.Flops, m.clock)
		m.readyAgain(a)
	case ScCommISend:
		m.postComm(a, sc, dirSend)
	case ScCommIRecv:
		m.postComm(a, sc, dirRecv)
	case ScCommWait:
		m.handleWait(a, sc)
	case ScCommWaitAny:
		m.handleWaitAny(a, sc)
	case ScMutexLock:
		m.handleMutexLock(a, sc)
	case ScMutexTrylock:
		sc.Result = sc.Mutex.tryAcquire(a)
		m.readyAgain(a)
	case ScMutexUnlock:
		if next := sc.Mutex.release(); next != nil {
			m.readyAgain(next)
		}
		m.readyAgain(a)
	case ScCondWait:
		m.handleCondWait(a, sc)
	case ScCondSignal:
		if next := sc.Cond.popOne(); next != nil {
			m.readyAgain(next)
		}
		m.readyAgain(a)
	case ScCondBroadcast:
		for _, next := range sc.Cond.popAll() {
			m.readyAgain(next)
		}
		m.readyAgain(a)
	case ScSemAcquire:
		m.handleSemAcquire(a, sc)
	case ScSemRelease:
		if next := sc.Sem.release(); next != nil {
			m.readyAgain(next)
		}
		m.readyAgain(a)
	case ScKill:
		m.handleKill(sc.Target)
		m.readyAgain(a)
	case ScActorSuspend:
		sc.Target.suspended = true
		m.readyAgain(a)
	case ScActorResume:
		target := sc.Target
		target.suspended = false
		if target.pendingReady {
			target.pendingReady = false
			target.State = ActorReady
			m.ready = append(m.ready, target.ID)
		}
		m.readyAgain(a)
	case ScJoin:
		m.handleJoin(a, sc)
	case ScRandom:
		sc.Result = sc.Min + m.rng.Float64()*(sc.Max-sc.Min)
		m.readyAgain(a)
	case ScMCSnapshot:
		// Model checking is out of scope (spec.md §1 Non-goals); a
		// snapshot request just hands back the current virtual time as
		// an opaque placeholder handle.
		sc.Result = m.clock
		m.readyAgain(a)
	default:
		sc.Err = simerr.InvariantErr("unknown simcall kind")
		m.readyAgain(a)
	}
}

func (m *Maestro) handleSleep(a *Actor, sc *Simcall) {
	a.State = ActorBlocked
	a.wakeTimer = m.timers.schedule(m.clock+sc.Duration, func() {
		sc.Err = nil
		m.readyAgain(a)
	})
}

// postComm implements comm_isend/comm_irecv's rendezvous match-or-enqueue
// rule (spec.md §4.D). Both calls are non-blocking posts: the actor
// always resumes this same tick holding an action handle, matched or
// not.
func (m *Maestro) postComm(a *Actor, sc *Simcall, dir commDirection) {
	rdv := sc.Rdv
	if p, i := rdv.findMatch(dir, sc.Tag, sc.Match); p != nil {
		rdv.unlinkAt(i)
		act := p.act
		var srcHost, dstHost interface{}
		size := sc.Size
		if size == 0 {
			size = p.size
		}
		if dir == dirSend {
			act.Src, act.Dst = a, p.actor
			srcHost, dstHost = a.Host, p.actor.Host
		} else {
			act.Src, act.Dst = p.actor, a
			srcHost, dstHost = p.actor.Host, a.Host
		}
		act.Size = size
		// A recv posted first created act with cost 0 (it carries no
		// size); the transfer cost is only known once the send matches.
		act.Cost, act.Remaining = size, size
		m.StartComm(act, srcHost, dstHost, m.clock)
		act.Ref() // shared by both sender and receiver
		sc.Result = act
		m.readyAgain(a)
		return
	}

	act := activity.New(activity.KindCommunicate, sc.Size)
	act.Size = sc.Size
	if dir == dirSend {
		act.Src = a
	} else {
		act.Dst = a
	}
	rdv.enqueue(&pendingComm{dir: dir, actor: a, size: sc.Size, tag: sc.Tag, match: sc.Match, act: act})
	sc.Result = act
	m.readyAgain(a)
}

// handleWait blocks a until sc.Action reaches a terminal state, or
// sc.Timeout elapses first (spec.md §5's comm wait-with-timeout race).
func (m *Maestro) handleWait(a *Actor, sc *Simcall) {
	act := sc.Action
	a.State = ActorBlocked
	a.blockedAction = act

	var timer *timerEntry
	waiter := &activity.Waiter{}
	waiter.Notify = func(finished *activity.Action) {
		if timer != nil {
			m.timers.cancel(timer)
		}
		sc.Err = stateToError(finished.State)
		a.blockedAction = nil
		m.readyAgain(a)
	}
	a.blockedWaiter = waiter

	if sc.Timeout >= 0 {
		timer = m.timers.schedule(m.clock+sc.Timeout, func() {
			if !act.State.Terminal() {
				act.Finish(activity.SrcTimeout, m.clock)
			}
		})
	}
	act.AddWaiter(waiter)
}

// handleWaitAny blocks a until the first of sc.Actions terminates.
func (m *Maestro) handleWaitAny(a *Actor, sc *Simcall) {
	a.State = ActorBlocked
	fired := false
	var timer *timerEntry

	for i, act := range sc.Actions {
		i, act := i, act
		waiter := &activity.Waiter{Notify: func(finished *activity.Action) {
			if fired {
				return
			}
			fired = true
			if timer != nil {
				m.timers.cancel(timer)
			}
			sc.Result = i
			sc.Err = stateToError(finished.State)
			m.readyAgain(a)
		}}
		act.AddWaiter(waiter)
		if fired {
			break
		}
	}

	if sc.Timeout >= 0 && !fired {
		timer = m.timers.schedule(m.clock+sc.Timeout, func() {
			if fired {
				return
			}
			fired = true
			sc.Result = -1
			sc.Err = simerr.Timeout("wait_any timed out")
			m.readyAgain(a)
		})
	}
}

func (m *Maestro) handleMutexLock(a *Actor, sc *Simcall) {
	mu := sc.Mutex
	if mu.tryAcquire(a) {
		m.readyAgain(a)
		return
	}
	mu.enqueue(a)
	a.State = ActorBlocked
}

func (m *Maestro) handleCondWait(a *Actor, sc *Simcall) {
	c := sc.Cond
	c.enqueue(a)
	a.State = ActorBlocked
	if sc.Timeout >= 0 {
		m.timers.schedule(m.clock+sc.Timeout, func() {
			if c.removeIfPresent(a) {
				sc.Err = simerr.Timeout("cond wait timed out")
				m.readyAgain(a)
			}
		})
	}
}

func (m *Maestro) handleSemAcquire(a *Actor, sc *Simcall) {
	s := sc.Sem
	if s.tryAcquire() {
		m.readyAgain(a)
		return
	}
	s.enqueue(a)
	a.State = ActorBlocked
	if sc.Timeout >= 0 {
		m.timers.schedule(m.clock+sc.Timeout, func() {
			if s.removeIfPresent(a) {
				sc.Err = simerr.Timeout("semaphore acquire timed out")
				m.readyAgain(a)
			}
		})
	}
}

// handleKill flags target to die and, if it's not already scheduled to
// run, forces it back onto the ready queue so kcontext's "resume while
// dying runs cleanup" contract actually gets exercised (spec.md §5's
// kill(actor) semantics). Unlinking target from whatever sync/rendezvous
// queue it was parked in is best-effort: the forced resume runs its
// on-exit hooks regardless, which is what user-visible behavior depends
// on; a queue it silently remains enqueued in no longer matters since
// its actor is dead and readyAgain ignores dead actors.
func (m *Maestro) handleKill(target *Actor) {
	if target.State == ActorDead {
		return
	}
	target.ctx.Kill()
	if target.wakeTimer != nil {
		m.timers.cancel(target.wakeTimer)
		target.wakeTimer = nil
	}
	target.suspended = false
	target.pendingReady = false
	target.State = ActorReady
	m.ready = append(m.ready, target.ID)
}

func (m *Maestro) handleJoin(a *Actor, sc *Simcall) {
	target := sc.Target
	if target.State == ActorDead {
		m.readyAgain(a)
		return
	}
	jw := &joinWait{waiter: a, sc: sc}
	target.joiners = append(target.joiners, jw)
	a.State = ActorBlocked
	if sc.Timeout >= 0 {
		jw.timerID = m.timers.schedule(m.clock+sc.Timeout, func() {
			for i, w := range target.joiners {
				if w == jw {
					target.joiners = append(target.joiners[:i], target.joiners[i+1:]...)
					sc.Err = simerr.Timeout("join timed out")
					m.readyAgain(a)
					return
				}
			}
		})
	}
}
