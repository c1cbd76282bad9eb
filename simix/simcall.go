package simix

import "github.com/nmxmxh/simcore/activity"

// SimcallKind tags a pending request record (spec.md §4.D's simcall
// list). Not every kind in that list has a dedicated constant here —
// process_create/rdv_create/destroy/get_by_name/mutex/cond/sem
// constructors are plain Go constructors (NewMutex, NewRendezvous, …)
// since they need nothing from maestro beyond an arena slot; only
// requests that must be handled exclusively inside maestro (because
// they touch shared actor/action/resource state) get a Simcall kind.
type SimcallKind int

const (
	ScSleep SimcallKind = iota
	ScExecute
	ScCommISend
	ScCommIRecv
	ScCommWait
	ScCommWaitAny
	ScMutexLock
	ScMutexTrylock
	ScMutexUnlock
	// ScCondWait carries an optional Timeout (-1 == none), unifying
	// spec.md §4.D's cond_wait/cond_wait_timeout into one kind.
	ScCondWait
	ScCondSignal
	ScCondBroadcast
	// ScSemAcquire carries an optional Timeout (-1 == none), unifying
	// sem_acquire/sem_acquire_timeout.
	ScSemAcquire
	ScSemRelease
	ScKill
	ScActorSuspend
	ScActorResume
	ScJoin
	ScRandom
	ScMCSnapshot
)

// Simcall is the request record an actor places before suspending
// (spec.md §4.D). Only the fields relevant to Kind are populated; the
// rest are the zero value.
type Simcall struct {
	Kind SimcallKind

	Duration float64
	Flops    float64
	Timeout  float64 // -1 == none

	Action  *activity.Action
	Actions []*activity.Action

	Rdv   *Rendezvous
	Size  float64
	Tag   interface{}
	Match activity.MatchFn

	Mutex *Mutex
	Cond  *Cond
	Sem   *Semaphore

	Target *Actor

	Min, Max float64

	Result interface{}
	Err    error
}
